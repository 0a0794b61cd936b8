package event

import (
	"errors"
	"fmt"
	"math"
)

var (
	// ErrCategoryMismatch is returned by New when the detail payload does not
	// belong to the category of the base type.
	ErrCategoryMismatch = errors.New("detail does not match event type category")

	// ErrInvalidEvent wraps invariant violations detected by New.
	ErrInvalidEvent = errors.New("invalid event")
)

// MaxAggregateCount is the largest number of motion samples one event may summarise.
const MaxAggregateCount = 255

// Base holds the fields every event carries.
type Base struct {
	Type             Type
	IsBuiltinDisplay bool
	IsMainDisplay    bool
	ProcessName      string
	ProcessPath      string

	// ExecutionTimeUS is the time between the capture callback starting and
	// the event being delivered, in microseconds.
	ExecutionTimeUS uint64

	// AggregateCount is set when the event summarises several raw samples.
	AggregateCount *uint8
}

// Point is a click location normalised to the display, in [0,1]×[0,1].
type Point struct {
	X, Y float32
}

// Detail is the kind-specific payload of an Event.
// Implementations are restricted to this package.
type Detail interface {
	Category() Category
	detail()
}

// Keyboard is the payload of key down/up and modifier changes.
type Keyboard struct {
	TimeDownMS     uint32
	KeyCode        uint16
	KeyChar        string
	KeyboardLayout string
}

// MouseClick is the payload of button down/up/drag events.
type MouseClick struct {
	TimeDownMS        uint32
	ClickPoint        Point
	DraggedDistancePX uint32
	DraggedDistanceMM uint32
	DragAngle         *float32 // radians; nil when nothing was dragged
	DragSpeedKPH      float32
}

// MouseMove is the payload of pointer motion, raw or aggregated.
type MouseMove struct {
	DistancePX  uint32
	DistanceMM  uint32
	Angle       uint16 // degrees
	VelocityKPH float32
}

// Scroll is the payload of scroll wheel events.
type Scroll struct {
	Delta    [2]int32
	Angle    *float32 // radians; nil when both deltas are zero
	SpeedKPH float32
}

// TapDisabled is the payload of out-of-band notifications.
type TapDisabled struct{}

func (Keyboard) Category() Category    { return CategoryKeyboard }
func (MouseClick) Category() Category  { return CategoryMouseClick }
func (MouseMove) Category() Category   { return CategoryMouseMove }
func (Scroll) Category() Category      { return CategoryScroll }
func (TapDisabled) Category() Category { return CategoryOutOfBand }

func (Keyboard) detail()    {}
func (MouseClick) detail()  {}
func (MouseMove) detail()   {}
func (Scroll) detail()      {}
func (TapDisabled) detail() {}

// Event is a validated input event. The zero value is not valid; use New.
type Event struct {
	base     Base
	detail   Detail
	category Category
}

// New validates base and detail together and returns the event.
func New(base Base, detail Detail) (Event, error) {
	if detail == nil {
		return Event{}, fmt.Errorf("%w: nil detail", ErrInvalidEvent)
	}
	category, err := base.Type.Category()
	if err != nil {
		return Event{}, err
	}
	if detail.Category() != category {
		return Event{}, fmt.Errorf("%w: %s is %s, detail is %s",
			ErrCategoryMismatch, base.Type, category, detail.Category())
	}
	if base.AggregateCount != nil {
		if category != CategoryMouseMove {
			return Event{}, fmt.Errorf("%w: aggregate count on %s event", ErrInvalidEvent, category)
		}
		if *base.AggregateCount == 0 {
			return Event{}, fmt.Errorf("%w: aggregate count must be positive", ErrInvalidEvent)
		}
	}
	if err := validateDetail(detail); err != nil {
		return Event{}, fmt.Errorf("%w: %v", ErrInvalidEvent, err)
	}

	base.AggregateCount = cloneCount(base.AggregateCount)
	return Event{base: base, detail: cloneDetail(detail), category: category}, nil
}

func validateDetail(detail Detail) error {
	switch d := detail.(type) {
	case Keyboard, TapDisabled:
		return nil
	case MouseClick:
		if !unit(d.ClickPoint.X) || !unit(d.ClickPoint.Y) {
			return fmt.Errorf("click point (%v,%v) outside unit square", d.ClickPoint.X, d.ClickPoint.Y)
		}
		if (d.DragAngle == nil) != (d.DraggedDistancePX == 0) {
			return errors.New("drag angle must be set exactly when dragged distance is non-zero")
		}
		if d.DragAngle != nil && !finite(*d.DragAngle) {
			return errors.New("drag angle is not finite")
		}
		if !finite(d.DragSpeedKPH) {
			return errors.New("drag speed is not finite")
		}
	case MouseMove:
		if d.Angle >= 360 {
			return fmt.Errorf("angle %d outside [0,360)", d.Angle)
		}
		if !finite(d.VelocityKPH) {
			return errors.New("velocity is not finite")
		}
	case Scroll:
		still := d.Delta[0] == 0 && d.Delta[1] == 0
		if (d.Angle == nil) != still {
			return errors.New("scroll angle must be set exactly when a delta is non-zero")
		}
		if d.Angle != nil && !finite(*d.Angle) {
			return errors.New("scroll angle is not finite")
		}
		if !finite(d.SpeedKPH) {
			return errors.New("scroll speed is not finite")
		}
	default:
		return fmt.Errorf("unsupported detail %T", detail)
	}
	return nil
}

// Base returns a copy of the shared fields.
func (e Event) Base() Base {
	b := e.base
	b.AggregateCount = cloneCount(b.AggregateCount)
	return b
}

func (e Event) Type() Type              { return e.base.Type }
func (e Event) Category() Category      { return e.category }
func (e Event) Detail() Detail          { return cloneDetail(e.detail) }
func (e Event) ProcessName() string     { return e.base.ProcessName }
func (e Event) ExecutionTimeUS() uint64 { return e.base.ExecutionTimeUS }

// AggregateCount reports how many samples the event summarises.
func (e Event) AggregateCount() (uint8, bool) {
	if e.base.AggregateCount == nil {
		return 0, false
	}
	return *e.base.AggregateCount, true
}

func (e Event) Keyboard() (Keyboard, bool) {
	d, ok := e.detail.(Keyboard)
	return d, ok
}

func (e Event) MouseClick() (MouseClick, bool) {
	d, ok := e.detail.(MouseClick)
	if ok {
		d = cloneDetail(d).(MouseClick)
	}
	return d, ok
}

func (e Event) MouseMove() (MouseMove, bool) {
	d, ok := e.detail.(MouseMove)
	return d, ok
}

func (e Event) Scroll() (Scroll, bool) {
	d, ok := e.detail.(Scroll)
	if ok {
		d = cloneDetail(d).(Scroll)
	}
	return d, ok
}

// IsZero reports whether e was not built by New.
func (e Event) IsZero() bool {
	return e.detail == nil
}

// WithAggregateCount returns a copy of a mouse-move event marked as the
// summary of n samples.
func (e Event) WithAggregateCount(n uint8) (Event, error) {
	base := e.Base()
	base.AggregateCount = &n
	return New(base, e.detail)
}

func cloneCount(p *uint8) *uint8 {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

func cloneFloat(p *float32) *float32 {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

func cloneDetail(d Detail) Detail {
	switch v := d.(type) {
	case MouseClick:
		v.DragAngle = cloneFloat(v.DragAngle)
		return v
	case Scroll:
		v.Angle = cloneFloat(v.Angle)
		return v
	}
	return d
}

func finite(f float32) bool {
	return !math.IsNaN(float64(f)) && !math.IsInf(float64(f), 0)
}

func unit(f float32) bool {
	return finite(f) && f >= 0 && f <= 1
}
