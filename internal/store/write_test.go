package store

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/tapline/internal/event"
)

func TestEnsureProcess_InsertsOnce(t *testing.T) {
	ctx := context.Background()
	s, _ := createTestStore(t)

	first, err := s.EnsureProcess(ctx, "Terminal", "/System/Applications/Utilities/Terminal.app")
	require.NoError(t, err)
	second, err := s.EnsureProcess(ctx, "Terminal", "/elsewhere/Terminal.app")
	require.NoError(t, err)

	assert.Equal(t, first, second)
	processes, err := s.Processes(ctx)
	require.NoError(t, err)
	require.Len(t, processes, 1)
	assert.Equal(t, "/System/Applications/Utilities/Terminal.app", processes[0].Path, "first path wins")
}

func TestEnsureProcess_NormalisesNames(t *testing.T) {
	ctx := context.Background()
	s, _ := createTestStore(t)

	composed, err := s.EnsureProcess(ctx, "Caf\u00e9", "")
	require.NoError(t, err)
	decomposed, err := s.EnsureProcess(ctx, "Cafe\u0301", "")
	require.NoError(t, err)

	assert.Equal(t, composed, decomposed)

	processes, err := s.Processes(ctx)
	require.NoError(t, err)
	require.Len(t, processes, 1)
	assert.Equal(t, "Caf\u00e9", processes[0].Name)
}

func TestRecordEvent_ReusesProcessDimension(t *testing.T) {
	ctx := context.Background()
	s, _ := createTestStore(t)

	id1, err := s.RecordEvent(ctx, "", keyEvent(t, "Terminal", "a"))
	require.NoError(t, err)
	id2, err := s.RecordEvent(ctx, "", keyEvent(t, "Terminal", "b"))
	require.NoError(t, err)
	assert.Less(t, id1, id2)

	assert.Equal(t, 1, countRows(t, s, "processes"))
	assert.Equal(t, 2, countRows(t, s, "staged_inputs"))

	var distinct int
	require.NoError(t, s.db.QueryRow(`SELECT count(DISTINCT process_id) FROM staged_inputs`).Scan(&distinct))
	assert.Equal(t, 1, distinct)
}

func TestRecordEvent_KeyboardColumns(t *testing.T) {
	ctx := context.Background()
	s, clock := createTestStore(t)

	id, err := s.RecordEvent(ctx, "", keyEvent(t, "Terminal", "é"))
	require.NoError(t, err)

	var (
		typ, execUS, timeDown, keyCode int64
		category, keyChar, layout      string
		builtin, main                  bool
		distance, aggregate            sql.NullInt64
		session                        sql.NullString
		recordedAt                     string
	)
	err = s.db.QueryRow(`
		SELECT type, category, is_builtin_display, is_main_display, execution_time_us,
		       time_down_ms, key_code, key_char, keyboard_layout,
		       distance_px, aggregate_count, session_id, recorded_at
		FROM staged_inputs WHERE id = ?
	`, id).Scan(&typ, &category, &builtin, &main, &execUS,
		&timeDown, &keyCode, &keyChar, &layout,
		&distance, &aggregate, &session, &recordedAt)
	require.NoError(t, err)

	assert.Equal(t, int64(event.KeyDown), typ)
	assert.Equal(t, "keyboard", category)
	assert.False(t, builtin)
	assert.True(t, main)
	assert.Equal(t, int64(1234), execUS)
	assert.Equal(t, int64(80), timeDown)
	assert.Equal(t, int64(0), keyCode)
	assert.Equal(t, "é", keyChar)
	assert.Equal(t, "com.apple.keylayout.US", layout)
	assert.False(t, distance.Valid, "motion columns stay NULL for keyboard events")
	assert.False(t, aggregate.Valid)
	assert.False(t, session.Valid)
	assert.Equal(t, formatTime(clock.Now()), recordedAt)
}

func TestRecordEvent_KindColumns(t *testing.T) {
	ctx := context.Background()
	s, _ := createTestStore(t)

	moveID, err := s.RecordEvent(ctx, "", motionEvent(t, "Finder", 60, 3))
	require.NoError(t, err)
	var px, angle, aggregate int64
	var velocity float64
	require.NoError(t, s.db.QueryRow(
		`SELECT distance_px, angle, velocity_kph, aggregate_count FROM staged_inputs WHERE id = ?`, moveID,
	).Scan(&px, &angle, &velocity, &aggregate))
	assert.Equal(t, int64(60), px)
	assert.Equal(t, int64(90), angle)
	assert.Equal(t, 2.5, velocity)
	assert.Equal(t, int64(3), aggregate)

	clickID, err := s.RecordEvent(ctx, "", clickEvent(t, "Finder", 0))
	require.NoError(t, err)
	var x, y float64
	var dragAngle sql.NullFloat64
	require.NoError(t, s.db.QueryRow(
		`SELECT mouse_x, mouse_y, drag_angle FROM staged_inputs WHERE id = ?`, clickID,
	).Scan(&x, &y, &dragAngle))
	assert.Equal(t, 0.25, x)
	assert.Equal(t, 0.75, y)
	assert.False(t, dragAngle.Valid, "no drag, no angle")

	scrollID, err := s.RecordEvent(ctx, "", scrollEvent(t, "Finder", 0))
	require.NoError(t, err)
	var dy int64
	var scrollAngle sql.NullFloat64
	require.NoError(t, s.db.QueryRow(
		`SELECT scroll_dy, scroll_angle FROM staged_inputs WHERE id = ?`, scrollID,
	).Scan(&dy, &scrollAngle))
	assert.Zero(t, dy)
	assert.False(t, scrollAngle.Valid)
}

func TestRecordEvent_RejectsOutOfBand(t *testing.T) {
	ctx := context.Background()
	s, _ := createTestStore(t)

	ev, err := event.New(event.Base{Type: event.TapDisabledByTimeout, ProcessName: "Terminal"}, event.TapDisabled{})
	require.NoError(t, err)

	_, err = s.RecordEvent(ctx, "", ev)
	assert.True(t, errors.Is(err, ErrOutOfBandEvent))
	assert.Zero(t, countRows(t, s, "processes"), "nothing persisted")

	_, err = s.RecordEvent(ctx, "", event.Event{})
	assert.Error(t, err)
}

func TestRecordEvent_FailureRollsBackProcessRow(t *testing.T) {
	ctx := context.Background()
	s, _ := createTestStore(t)

	// The session does not exist, so the fact row violates its foreign key
	// after the process row has been inserted in the same transaction.
	_, err := s.RecordEvent(ctx, "no-such-session", keyEvent(t, "Xcode", "x"))
	require.Error(t, err)

	assert.Zero(t, countRows(t, s, "processes"))
	assert.Zero(t, countRows(t, s, "staged_inputs"))
}

func TestRecordEvent_Concurrent(t *testing.T) {
	ctx := context.Background()
	s, _ := createTestStore(t)

	const writers, perWriter = 4, 25
	ev := motionEvent(t, "Finder", 1, 0)
	errs := make(chan error, writers)
	for w := 0; w < writers; w++ {
		go func() {
			for i := 0; i < perWriter; i++ {
				if _, err := s.RecordEvent(ctx, "", ev); err != nil {
					errs <- err
					return
				}
			}
			errs <- nil
		}()
	}
	for w := 0; w < writers; w++ {
		require.NoError(t, <-errs)
	}

	assert.Equal(t, writers*perWriter, countRows(t, s, "staged_inputs"))
	assert.Equal(t, 1, countRows(t, s, "processes"))
}
