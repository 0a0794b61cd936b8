package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/roach88/tapline/internal/config"
	"github.com/roach88/tapline/internal/event"
	"github.com/roach88/tapline/internal/testutil"
)

var testStart = time.Date(2024, 5, 17, 9, 30, 0, 0, time.UTC)

// createTestStore creates a new in-memory store with a fixed clock.
func createTestStore(t *testing.T, ids ...string) (*Store, *testutil.WallClock) {
	t.Helper()
	clock := testutil.NewWallClock(testStart)
	s, err := Open(context.Background(), Options{
		Location: config.LocationMemory,
		Now:      clock.Now,
		IDs:      NewFixedGenerator(ids...),
	})
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s, clock
}

func keyEvent(t *testing.T, process string, keyChar string) event.Event {
	t.Helper()
	ev, err := event.New(event.Base{
		Type:            event.KeyDown,
		IsMainDisplay:   true,
		ProcessName:     process,
		ProcessPath:     "/Applications/" + process + ".app",
		ExecutionTimeUS: 1234,
	}, event.Keyboard{
		TimeDownMS:     80,
		KeyCode:        0,
		KeyChar:        keyChar,
		KeyboardLayout: "com.apple.keylayout.US",
	})
	require.NoError(t, err)
	return ev
}

func motionEvent(t *testing.T, process string, px uint32, count uint8) event.Event {
	t.Helper()
	ev, err := event.New(event.Base{
		Type:        event.MouseMoved,
		ProcessName: process,
	}, event.MouseMove{DistancePX: px, DistanceMM: px / 4, Angle: 90, VelocityKPH: 2.5})
	require.NoError(t, err)
	if count > 0 {
		ev, err = ev.WithAggregateCount(count)
		require.NoError(t, err)
	}
	return ev
}

func clickEvent(t *testing.T, process string, dragged uint32) event.Event {
	t.Helper()
	click := event.MouseClick{
		TimeDownMS:        120,
		ClickPoint:        event.Point{X: 0.25, Y: 0.75},
		DraggedDistancePX: dragged,
		DraggedDistanceMM: dragged / 4,
		DragSpeedKPH:      1,
	}
	if dragged > 0 {
		angle := float32(1.5)
		click.DragAngle = &angle
	}
	ev, err := event.New(event.Base{Type: event.LeftMouseUp, ProcessName: process}, click)
	require.NoError(t, err)
	return ev
}

func scrollEvent(t *testing.T, process string, dy int32) event.Event {
	t.Helper()
	sc := event.Scroll{Delta: [2]int32{0, dy}, SpeedKPH: 0.5}
	if dy != 0 {
		angle := float32(-1.5707964)
		sc.Angle = &angle
	}
	ev, err := event.New(event.Base{Type: event.ScrollWheel, ProcessName: process}, sc)
	require.NoError(t, err)
	return ev
}

func countRows(t *testing.T, s *Store, table string) int {
	t.Helper()
	var n int
	require.NoError(t, s.db.QueryRow("SELECT count(*) FROM "+table).Scan(&n))
	return n
}
