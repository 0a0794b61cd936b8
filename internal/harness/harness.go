package harness

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/roach88/tapline/internal/boundary"
	"github.com/roach88/tapline/internal/capture"
	"github.com/roach88/tapline/internal/config"
	"github.com/roach88/tapline/internal/event"
	"github.com/roach88/tapline/internal/store"
	"github.com/roach88/tapline/internal/testutil"
)

// Epoch is the wall-clock reading at the start of every run.
var Epoch = time.Date(2024, 5, 17, 9, 30, 0, 0, time.UTC)

// SessionID is the id of the session every run records into.
const SessionID = "scenario-session"

// Harness replays scenario steps into a pipeline.
type Harness struct {
	store    *store.Store
	pipeline *capture.Pipeline
	clock    *testutil.WallClock
}

// Run executes a scenario and returns the result.
//
// Each scenario runs in a fresh in-memory database with a fixed clock, so
// results are reproducible.
func Run(scenario *Scenario) (*Result, error) {
	clock := testutil.NewWallClock(Epoch)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	st, err := store.Open(context.Background(), store.Options{
		Location: config.LocationMemory,
		Logger:   logger,
		Now:      clock.Now,
		IDs:      store.NewFixedGenerator(SessionID),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create in-memory store: %w", err)
	}
	defer st.Close()

	ctx := context.Background()
	if _, err := st.BeginSession(ctx, "scenario"); err != nil {
		return nil, fmt.Errorf("failed to begin session: %w", err)
	}

	pipeline, err := capture.NewPipeline(capture.Options{
		Recorder:  st,
		SessionID: SessionID,
		Now:       clock.Now,
		Logger:    logger,
	})
	if err != nil {
		return nil, err
	}

	h := &Harness{store: st, pipeline: pipeline, clock: clock}
	for i, step := range scenario.Steps {
		if err := h.deliver(step); err != nil {
			return nil, fmt.Errorf("steps[%d]: %w", i, err)
		}
		// Keep steps apart on the wall clock.
		clock.Advance(time.Millisecond)
	}

	result := NewResult()
	result.Stats = pipeline.Stats()
	if result.Rows, err = snapshot(ctx, st.DB()); err != nil {
		return nil, err
	}
	for _, a := range scenario.Assertions {
		if err := evaluate(ctx, st, result, a); err != nil {
			result.AddError(err.Error())
		}
	}
	return result, nil
}

func (h *Harness) deliver(step Step) error {
	start := testutil.Timespec(h.clock.Now().Add(-step.Took))

	switch {
	case step.Key != nil:
		typ, err := typeOr(step.Key.Type, event.KeyDown)
		if err != nil {
			return err
		}
		raw := testutil.KeyRecord(uint32(typ), step.Key.Code, step.Key.Char, processOr(step.Key.Process), time.Time{})
		raw.FunctionStart = start
		h.pipeline.HandleRaw(raw)

	case step.Click != nil:
		typ, err := typeOr(step.Click.Type, event.LeftMouseUp)
		if err != nil {
			return err
		}
		process := processOr(step.Click.Process)
		h.pipeline.HandleRaw(&boundary.RawEvent{
			Type:              uint32(typ),
			TimeDownMS:        100,
			ClickX:            step.Click.X,
			ClickY:            step.Click.Y,
			DraggedDistancePX: step.Click.DraggedPX,
			DraggedDistanceMM: step.Click.DraggedPX / 4,
			IsMainDisplay:     true,
			FunctionStart:     start,
			ProcessName:       testutil.CString(process),
			ProcessPath:       testutil.CString("/Applications/" + process + ".app"),
		})

	case step.Scroll != nil:
		process := processOr(step.Scroll.Process)
		h.pipeline.HandleRaw(&boundary.RawEvent{
			Type:          uint32(event.ScrollWheel),
			ScrollDeltaX:  step.Scroll.DX,
			ScrollDeltaY:  step.Scroll.DY,
			IsMainDisplay: true,
			FunctionStart: start,
			ProcessName:   testutil.CString(process),
			ProcessPath:   testutil.CString("/Applications/" + process + ".app"),
		})

	case step.Motion != nil:
		process := processOr(step.Motion.Process)
		samples := make([]boundary.RawMotion, len(step.Motion.Samples))
		for i, s := range step.Motion.Samples {
			samples[i] = testutil.MotionSample(process, s.PX, s.Angle, s.KPH)
		}
		h.pipeline.HandleMotionBatch(boundary.RawMotionBatch{Start: start, Samples: samples})

	case step.Raw != nil:
		process := processOr(step.Raw.Process)
		h.pipeline.HandleRaw(&boundary.RawEvent{
			Type:          step.Raw.Code,
			FunctionStart: start,
			ProcessName:   testutil.CString(process),
		})

	default:
		return fmt.Errorf("step has no record")
	}
	return nil
}

func typeOr(name string, fallback event.Type) (event.Type, error) {
	if name == "" {
		return fallback, nil
	}
	return event.ParseTypeName(name)
}

func processOr(name string) string {
	if name == "" {
		return DefaultProcess
	}
	return name
}

// snapshot reads every persisted event and renders it as one line.
func snapshot(ctx context.Context, db *sql.DB) ([]Row, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT s.id, p.name, s.type, s.category, s.execution_time_us, s.aggregate_count,
			s.key_code, s.key_char, s.mouse_x, s.mouse_y, s.dragged_distance_px,
			s.distance_px, s.angle, s.scroll_dx, s.scroll_dy
		FROM staged_inputs s
		JOIN processes p ON p.id = s.process_id
		ORDER BY s.id
	`)
	if err != nil {
		return nil, fmt.Errorf("snapshot: %w", err)
	}
	defer rows.Close()

	out := []Row{}
	for rows.Next() {
		var (
			row                Row
			typ, execUS        int64
			count              sql.NullInt64
			keyCode            sql.NullInt64
			keyChar            sql.NullString
			x, y               sql.NullFloat64
			dragged            sql.NullInt64
			distance           sql.NullInt64
			angle              sql.NullInt64
			scrollDX, scrollDY sql.NullInt64
		)
		if err := rows.Scan(&row.ID, &row.Process, &typ, &row.Category, &execUS, &count,
			&keyCode, &keyChar, &x, &y, &dragged, &distance, &angle, &scrollDX, &scrollDY); err != nil {
			return nil, fmt.Errorf("snapshot: scan: %w", err)
		}

		var b strings.Builder
		fmt.Fprintf(&b, "#%d %s %s exec=%dus", row.ID, row.Process, event.Type(typ), execUS)
		switch row.Category {
		case event.CategoryKeyboard.String():
			fmt.Fprintf(&b, " key=%d char=%q", keyCode.Int64, keyChar.String)
		case event.CategoryMouseClick.String():
			fmt.Fprintf(&b, " x=%.2f y=%.2f dragged=%dpx", x.Float64, y.Float64, dragged.Int64)
		case event.CategoryMouseMove.String():
			fmt.Fprintf(&b, " samples=%d px=%d angle=%d", count.Int64, distance.Int64, angle.Int64)
		case event.CategoryScroll.String():
			fmt.Fprintf(&b, " dx=%d dy=%d", scrollDX.Int64, scrollDY.Int64)
		}
		row.Line = b.String()
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("snapshot: %w", err)
	}
	return out, nil
}
