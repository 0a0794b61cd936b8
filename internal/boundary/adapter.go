package boundary

import (
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/roach88/tapline/internal/event"
)

// Options configures an Adapter.
type Options struct {
	// Now returns the delivery instant. Defaults to time.Now.
	Now func() time.Time

	// Logger receives non-fatal conversion notes. Defaults to slog.Default().
	Logger *slog.Logger
}

// Adapter turns raw capture records into events.
//
// Thread-safety: Adapter holds no mutable state and is safe for concurrent use.
type Adapter struct {
	now    func() time.Time
	logger *slog.Logger
}

// NewAdapter creates an adapter.
func NewAdapter(opts Options) *Adapter {
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Adapter{now: now, logger: logger}
}

// Convert validates and copies raw into an owned event.
// raw and the buffers it points to may be released as soon as Convert returns.
func (a *Adapter) Convert(raw *RawEvent) (event.Event, error) {
	if raw == nil {
		return event.Event{}, unhandledType(0, fmt.Errorf("nil record"))
	}

	typ, category, err := classify(raw.Type)
	if err != nil {
		return event.Event{}, err
	}

	execUS, err := a.executionTime(raw.FunctionStart)
	if err != nil {
		return event.Event{}, err
	}

	base := event.Base{
		Type:             typ,
		IsBuiltinDisplay: raw.IsBuiltinDisplay,
		IsMainDisplay:    raw.IsMainDisplay,
		ProcessName:      displayString(raw.ProcessName),
		ProcessPath:      displayString(raw.ProcessPath),
		ExecutionTimeUS:  execUS,
	}

	var detail event.Detail
	switch category {
	case event.CategoryKeyboard:
		detail, err = a.keyboard(raw)
	case event.CategoryMouseClick:
		detail, err = mouseClick(raw)
	case event.CategoryMouseMove:
		detail, err = mouseMove(raw.MouseDistancePX, raw.MouseDistanceMM, raw.MouseAngleDeg, raw.MouseSpeedKPH)
	case event.CategoryScroll:
		detail = scroll(raw)
	case event.CategoryOutOfBand:
		detail = event.TapDisabled{}
	}
	if err != nil {
		return event.Event{}, err
	}

	ev, err := event.New(base, detail)
	if err != nil {
		// The checks above are meant to make this unreachable.
		return event.Event{}, outOfRange("", "event rejected by domain model: %v", err)
	}
	return ev, nil
}

// MotionSamples is a converted motion batch.
type MotionSamples struct {
	Events []event.Event

	// ExecutionTimeUS is measured from the batch's shared start.
	ExecutionTimeUS uint64
}

// ConvertMotionBatch converts every sample in batch. An empty batch converts
// to an empty result; rejecting it is the aggregator's job.
func (a *Adapter) ConvertMotionBatch(batch RawMotionBatch) (MotionSamples, error) {
	if len(batch.Samples) > MaxMotionBatch {
		return MotionSamples{}, outOfRange("count", "motion batch of %d exceeds %d samples", len(batch.Samples), MaxMotionBatch)
	}

	execUS, err := a.executionTime(batch.Start)
	if err != nil {
		return MotionSamples{}, err
	}

	events := make([]event.Event, 0, len(batch.Samples))
	for i := range batch.Samples {
		raw := &batch.Samples[i]

		typ, category, err := classify(raw.Type)
		if err != nil {
			return MotionSamples{}, err
		}
		if category != event.CategoryMouseMove {
			return MotionSamples{}, unhandledType(raw.Type, fmt.Errorf("sample %d is %s, not motion", i, category))
		}

		detail, err := mouseMove(raw.DistancePX, raw.DistanceMM, raw.AngleDeg, raw.VelocityKPH)
		if err != nil {
			return MotionSamples{}, err
		}
		ev, err := event.New(event.Base{
			Type:             typ,
			IsBuiltinDisplay: raw.IsBuiltinDisplay,
			IsMainDisplay:    raw.IsMainDisplay,
			ProcessName:      displayString(raw.ProcessName),
			ProcessPath:      displayString(raw.ProcessPath),
			ExecutionTimeUS:  execUS,
		}, detail)
		if err != nil {
			return MotionSamples{}, outOfRange("", "sample %d rejected by domain model: %v", i, err)
		}
		events = append(events, ev)
	}

	return MotionSamples{Events: events, ExecutionTimeUS: execUS}, nil
}

func classify(code uint32) (event.Type, event.Category, error) {
	typ, err := event.ParseType(code)
	if err != nil {
		return 0, 0, unhandledType(code, err)
	}
	category, err := typ.Category()
	if err != nil {
		return 0, 0, unhandledType(code, err)
	}
	return typ, category, nil
}

// executionTime returns now - start in microseconds.
func (a *Adapter) executionTime(start Timespec) (uint64, error) {
	if start.Nsec < 0 || start.Nsec >= int64(time.Second) {
		return 0, outOfRange("function_start.tv_nsec", "nanoseconds %d outside [0, 1e9)", start.Nsec)
	}
	elapsed := a.now().Sub(time.Unix(start.Sec, start.Nsec))
	if elapsed < 0 {
		return 0, &ConversionError{
			Code:    ErrCodeClockSkew,
			Field:   "function_start",
			Message: fmt.Sprintf("capture started %s after delivery", -elapsed),
		}
	}
	return uint64(elapsed.Microseconds()), nil
}

func (a *Adapter) keyboard(raw *RawEvent) (event.Detail, error) {
	timeDown, err := millis32("time_down", raw.TimeDownMS)
	if err != nil {
		return nil, err
	}
	keyChar, fellBack := keyCharString(raw.KeyChar)
	if fellBack {
		a.logger.Debug("key character decoded as UTF-16",
			"code", ErrCodeEncodingFallback,
			"key_code", raw.KeyCode,
			"key_char", keyChar,
		)
	}
	return event.Keyboard{
		TimeDownMS:     timeDown,
		KeyCode:        raw.KeyCode,
		KeyChar:        keyChar,
		KeyboardLayout: displayString(raw.KeyboardLayout),
	}, nil
}

func mouseClick(raw *RawEvent) (event.Detail, error) {
	timeDown, err := millis32("time_down", raw.TimeDownMS)
	if err != nil {
		return nil, err
	}
	px, err := distance32("dragged_distance_px", raw.DraggedDistancePX)
	if err != nil {
		return nil, err
	}
	mm, err := distance32("dragged_distance_mm", raw.DraggedDistanceMM)
	if err != nil {
		return nil, err
	}

	click := event.MouseClick{
		TimeDownMS: timeDown,
		ClickPoint: event.Point{
			X: unitInterval(raw.ClickX),
			Y: unitInterval(raw.ClickY),
		},
		DraggedDistancePX: px,
		DraggedDistanceMM: mm,
		DragSpeedKPH:      finite32(raw.DragSpeedKPH),
	}
	if px != 0 {
		angle := finite32(raw.DragAngle)
		click.DragAngle = &angle
	}
	return click, nil
}

func mouseMove(distPX, distMM, angleDeg, speed float64) (event.Detail, error) {
	px, err := distance32("mouse_distance_px", distPX)
	if err != nil {
		return nil, err
	}
	mm, err := distance32("mouse_distance_mm", distMM)
	if err != nil {
		return nil, err
	}
	return event.MouseMove{
		DistancePX:  px,
		DistanceMM:  mm,
		Angle:       degrees(angleDeg),
		VelocityKPH: finite32(speed),
	}, nil
}

func scroll(raw *RawEvent) event.Detail {
	s := event.Scroll{
		Delta:    [2]int32{raw.ScrollDeltaX, raw.ScrollDeltaY},
		SpeedKPH: finite32(raw.ScrollSpeedKPH),
	}
	if raw.ScrollDeltaX != 0 || raw.ScrollDeltaY != 0 {
		angle := finite32(raw.ScrollAngle)
		s.Angle = &angle
	}
	return s
}

// finite32 narrows f to float32, mapping NaN and ±Inf (including overflow
// from the narrowing itself) to zero.
func finite32(f float64) float32 {
	v := float32(f)
	if math.IsNaN(float64(v)) || math.IsInf(float64(v), 0) {
		return 0
	}
	return v
}

// unitInterval sanitizes a normalised coordinate into [0,1]. Points on the far
// display edge can land marginally outside.
func unitInterval(f float64) float32 {
	v := finite32(f)
	switch {
	case v < 0:
		return 0
	case v > 1:
		return 1
	}
	return v
}

// degrees normalises an angle into [0,360) whole degrees.
func degrees(f float64) uint16 {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0
	}
	d := math.Mod(math.Round(f), 360)
	if d < 0 {
		d += 360
	}
	return uint16(d)
}

func millis32(field string, v int64) (uint32, error) {
	if v < 0 || v > math.MaxUint32 {
		return 0, outOfRange(field, "%d ms does not fit an unsigned 32-bit value", v)
	}
	return uint32(v), nil
}

func distance32(field string, f float64) (uint32, error) {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, nil
	}
	r := math.Round(f)
	if r < 0 || r > math.MaxUint32 {
		return 0, outOfRange(field, "distance %g outside [0, %d]", f, uint32(math.MaxUint32))
	}
	return uint32(r), nil
}
