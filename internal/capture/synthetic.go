package capture

import (
	"context"
	"time"
	"unsafe"

	"github.com/roach88/tapline/internal/boundary"
	"github.com/roach88/tapline/internal/event"
)

// SyntheticSource replays a fixed cycle of keyboard, click, scroll and
// motion callbacks. It stands in for the native capture mechanism during
// development and on platforms without one.
//
// Records point into Go-allocated NUL-terminated buffers, so they pass
// through the same copying and validation as native records.
type SyntheticSource struct {
	// Count is the number of callbacks to deliver; 0 runs until ctx is done.
	Count int

	// Interval is the pause between callbacks.
	Interval time.Duration

	// Now stamps each callback's start. Defaults to time.Now.
	Now func() time.Time
}

type syntheticApp struct {
	name, path string
}

var syntheticApps = []syntheticApp{
	{"Terminal", "/System/Applications/Utilities/Terminal.app"},
	{"Safari", "/Applications/Safari.app"},
	{"Xcode", "/Applications/Xcode.app"},
}

const syntheticText = "tapline"

// Run delivers callbacks to sink.
func (s *SyntheticSource) Run(ctx context.Context, sink boundary.Sink) error {
	now := s.Now
	if now == nil {
		now = time.Now
	}

	var ticker *time.Ticker
	if s.Interval > 0 {
		ticker = time.NewTicker(s.Interval)
		defer ticker.Stop()
	}

	for i := 0; s.Count == 0 || i < s.Count; i++ {
		if err := ctx.Err(); err != nil {
			return nil
		}
		if ticker != nil && i > 0 {
			select {
			case <-ctx.Done():
				return nil
			case <-ticker.C:
			}
		}
		s.deliver(i, now(), sink)
	}
	return nil
}

// deliver emits callback i of the cycle.
func (s *SyntheticSource) deliver(i int, start time.Time, sink boundary.Sink) {
	app := syntheticApps[(i/len(syntheticText))%len(syntheticApps)]
	ts := boundary.Timespec{Sec: start.Unix(), Nsec: int64(start.Nanosecond())}

	switch i % 6 {
	case 0, 1, 2:
		ch := syntheticText[i%len(syntheticText)]
		typ := event.KeyDown
		if i%2 == 1 {
			typ = event.KeyUp
		}
		sink.HandleRaw(&boundary.RawEvent{
			Type:           uint32(typ),
			TimeDownMS:     int64(60 + i%40),
			KeyCode:        uint16(ch - 'a'),
			KeyChar:        cstring(string(ch)),
			KeyboardLayout: cstring("com.apple.keylayout.US"),
			IsMainDisplay:  true,
			FunctionStart:  ts,
			ProcessName:    cstring(app.name),
			ProcessPath:    cstring(app.path),
		})
	case 3:
		sink.HandleMotionBatch(boundary.RawMotionBatch{
			Start:   ts,
			Samples: syntheticMotion(i, app),
		})
	case 4:
		sink.HandleRaw(&boundary.RawEvent{
			Type:              uint32(event.LeftMouseUp),
			TimeDownMS:        int64(90 + i%30),
			ClickX:            float64(i%10) / 10,
			ClickY:            0.5,
			DraggedDistancePX: float64(i % 3 * 12),
			DraggedDistanceMM: float64(i % 3 * 3),
			DragAngle:         0.785,
			DragSpeedKPH:      0.4,
			IsMainDisplay:     true,
			FunctionStart:     ts,
			ProcessName:       cstring(app.name),
			ProcessPath:       cstring(app.path),
		})
	case 5:
		sink.HandleRaw(&boundary.RawEvent{
			Type:           uint32(event.ScrollWheel),
			ScrollDeltaY:   int32(-(i % 4)),
			ScrollAngle:    -1.5708,
			ScrollSpeedKPH: 0.2,
			IsMainDisplay:  true,
			FunctionStart:  ts,
			ProcessName:    cstring(app.name),
			ProcessPath:    cstring(app.path),
		})
	}
}

func syntheticMotion(i int, app syntheticApp) []boundary.RawMotion {
	n := 3 + i%5
	samples := make([]boundary.RawMotion, n)
	for j := range samples {
		px := float64(4 + (i+j)%9)
		samples[j] = boundary.RawMotion{
			Type:          uint32(event.MouseMoved),
			IsMainDisplay: true,
			ProcessName:   cstring(app.name),
			ProcessPath:   cstring(app.path),
			DistancePX:    px,
			DistanceMM:    px / 4,
			AngleDeg:      float64((i*37 + j*11) % 360),
			VelocityKPH:   0.1 * float64(1+j),
		}
	}
	return samples
}

// cstring returns a NUL-terminated copy of s.
func cstring(s string) unsafe.Pointer {
	buf := make([]byte, len(s)+1)
	copy(buf, s)
	return unsafe.Pointer(&buf[0])
}
