package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math"

	"golang.org/x/text/unicode/norm"

	"github.com/roach88/tapline/internal/event"
)

// ErrOutOfBandEvent is returned by RecordEvent for tap-disabled notifications.
// They describe the capture source, not the user, and are never persisted.
var ErrOutOfBandEvent = errors.New("out-of-band events are not persisted")

// EnsureProcess returns the id of the process row for name, inserting it
// when absent. Names are compared after NFC normalisation, so composed and
// decomposed spellings share a row. The path of the first sighting is kept.
func (s *Store) EnsureProcess(ctx context.Context, name, path string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("ensure process: begin tx: %w", err)
	}
	defer tx.Rollback() // No-op if committed

	id, err := ensureProcess(ctx, tx, name, path)
	if err != nil {
		return 0, err
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("ensure process: commit: %w", err)
	}
	return id, nil
}

func ensureProcess(ctx context.Context, tx *sql.Tx, name, path string) (int64, error) {
	name = norm.NFC.String(name)

	_, err := tx.ExecContext(ctx, `
		INSERT INTO processes (name, path)
		VALUES (?, ?)
		ON CONFLICT(name) DO NOTHING
	`, name, path)
	if err != nil {
		return 0, fmt.Errorf("ensure process: insert: %w", err)
	}

	var id int64
	if err := tx.QueryRowContext(ctx, `SELECT id FROM processes WHERE name = ?`, name).Scan(&id); err != nil {
		return 0, fmt.Errorf("ensure process: lookup: %w", err)
	}
	return id, nil
}

// RecordEvent persists ev and returns its row id. The process row (when
// new) and the fact row are written in one transaction: either both exist
// afterwards or neither does. sessionID may be empty.
func (s *Store) RecordEvent(ctx context.Context, sessionID string, ev event.Event) (int64, error) {
	if ev.IsZero() {
		return 0, errors.New("record event: event was not built by event.New")
	}
	if ev.Category() == event.CategoryOutOfBand {
		return 0, fmt.Errorf("record event %s: %w", ev.Type(), ErrOutOfBandEvent)
	}
	row := newFactRow(ev)
	base := ev.Base()

	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("record event: begin tx: %w", err)
	}
	defer tx.Rollback() // No-op if committed

	processID, err := ensureProcess(ctx, tx, base.ProcessName, base.ProcessPath)
	if err != nil {
		return 0, fmt.Errorf("record event: %w", err)
	}

	res, err := tx.ExecContext(ctx, `
		INSERT INTO staged_inputs (
			session_id, process_id, type, category,
			is_builtin_display, is_main_display, execution_time_us, aggregate_count,
			time_down_ms, key_code, key_char, keyboard_layout,
			mouse_x, mouse_y, dragged_distance_px, dragged_distance_mm, drag_angle, drag_speed_kph,
			distance_px, distance_mm, angle, velocity_kph,
			scroll_dx, scroll_dy, scroll_angle, scroll_speed_kph,
			recorded_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		sql.NullString{String: sessionID, Valid: sessionID != ""},
		processID,
		int64(base.Type),
		ev.Category().String(),
		base.IsBuiltinDisplay,
		base.IsMainDisplay,
		clampInt64(base.ExecutionTimeUS),
		row.aggregateCount,
		row.timeDownMS, row.keyCode, row.keyChar, row.keyboardLayout,
		row.mouseX, row.mouseY, row.draggedPX, row.draggedMM, row.dragAngle, row.dragSpeed,
		row.distancePX, row.distanceMM, row.angle, row.velocity,
		row.scrollDX, row.scrollDY, row.scrollAngle, row.scrollSpeed,
		formatTime(s.now()),
	)
	if err != nil {
		return 0, fmt.Errorf("record event: insert: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("record event: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("record event: commit: %w", err)
	}
	return id, nil
}

// factRow holds the nullable, kind-specific columns of a staged_inputs row.
type factRow struct {
	aggregateCount sql.NullInt64

	timeDownMS     sql.NullInt64
	keyCode        sql.NullInt64
	keyChar        sql.NullString
	keyboardLayout sql.NullString

	mouseX, mouseY       sql.NullFloat64
	draggedPX, draggedMM sql.NullInt64
	dragAngle, dragSpeed sql.NullFloat64

	distancePX, distanceMM, angle sql.NullInt64
	velocity                      sql.NullFloat64

	scrollDX, scrollDY       sql.NullInt64
	scrollAngle, scrollSpeed sql.NullFloat64
}

func newFactRow(ev event.Event) factRow {
	var r factRow
	if n, ok := ev.AggregateCount(); ok {
		r.aggregateCount = nullInt(int64(n))
	}

	if k, ok := ev.Keyboard(); ok {
		r.timeDownMS = nullInt(int64(k.TimeDownMS))
		r.keyCode = nullInt(int64(k.KeyCode))
		r.keyChar = sql.NullString{String: k.KeyChar, Valid: true}
		r.keyboardLayout = sql.NullString{String: k.KeyboardLayout, Valid: true}
	}
	if c, ok := ev.MouseClick(); ok {
		r.timeDownMS = nullInt(int64(c.TimeDownMS))
		r.mouseX = nullFloat(c.ClickPoint.X)
		r.mouseY = nullFloat(c.ClickPoint.Y)
		r.draggedPX = nullInt(int64(c.DraggedDistancePX))
		r.draggedMM = nullInt(int64(c.DraggedDistanceMM))
		if c.DragAngle != nil {
			r.dragAngle = nullFloat(*c.DragAngle)
		}
		r.dragSpeed = nullFloat(c.DragSpeedKPH)
	}
	if m, ok := ev.MouseMove(); ok {
		r.distancePX = nullInt(int64(m.DistancePX))
		r.distanceMM = nullInt(int64(m.DistanceMM))
		r.angle = nullInt(int64(m.Angle))
		r.velocity = nullFloat(m.VelocityKPH)
	}
	if sc, ok := ev.Scroll(); ok {
		r.scrollDX = nullInt(int64(sc.Delta[0]))
		r.scrollDY = nullInt(int64(sc.Delta[1]))
		if sc.Angle != nil {
			r.scrollAngle = nullFloat(*sc.Angle)
		}
		r.scrollSpeed = nullFloat(sc.SpeedKPH)
	}
	return r
}

func nullInt(v int64) sql.NullInt64 {
	return sql.NullInt64{Int64: v, Valid: true}
}

func nullFloat(v float32) sql.NullFloat64 {
	return sql.NullFloat64{Float64: float64(v), Valid: true}
}

func clampInt64(v uint64) int64 {
	if v > math.MaxInt64 {
		return math.MaxInt64
	}
	return int64(v)
}
