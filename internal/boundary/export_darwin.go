//go:build darwin && cgo

package boundary

/*
#include <stdbool.h>
#include <stdint.h>

struct tap_timespec {
	int64_t tv_sec;
	int64_t tv_nsec;
};

struct tap_raw_event {
	int64_t time_down;
	uint32_t type;
	uint16_t key_code;
	const char *key_char;
	double click_x;
	double click_y;
	double mouse_distance_px;
	double mouse_distance_mm;
	double mouse_angle_deg;
	double mouse_speed_kph;
	int32_t scroll_delta_x;
	int32_t scroll_delta_y;
	double scroll_angle;
	double scroll_speed_kph;
	double dragged_distance_px;
	double dragged_distance_mm;
	double drag_angle;
	double drag_speed_kph;
	bool is_builtin_display;
	bool is_main_display;
	struct tap_timespec function_start;
	const char *keyboard_layout;
	const char *process_name;
	const char *process_path;
};

struct tap_raw_motion {
	uint32_t type;
	bool is_builtin_display;
	bool is_main_display;
	const char *process_name;
	const char *process_path;
	double distance_px;
	double distance_mm;
	double angle_deg;
	double velocity_kph;
};
*/
import "C"

import (
	"fmt"
	"log/slog"
	"runtime/cgo"
	"sync/atomic"
	"unsafe"
)

// active is the most recently registered handle, 0 when none.
var active atomic.Uintptr

// RegisterSink makes s reachable from the exported entry points. The returned
// handle is passed to the native capture mechanism as its user info and must
// be released with UnregisterSink once capture has stopped. It also becomes
// the value of tapline_active_sink, for mechanisms that carry no user info.
func RegisterSink(s Sink) uintptr {
	h := uintptr(cgo.NewHandle(s))
	active.Store(h)
	return h
}

// UnregisterSink releases a handle returned by RegisterSink.
func UnregisterSink(handle uintptr) {
	active.CompareAndSwap(handle, 0)
	cgo.Handle(handle).Delete()
}

//export tapline_active_sink
func tapline_active_sink() C.uintptr_t {
	return C.uintptr_t(active.Load())
}

//export tapline_handle_event
func tapline_handle_event(handle C.uintptr_t, raw *C.struct_tap_raw_event) {
	defer recoverCallback("tapline_handle_event")

	sink := sinkFor(handle)
	if sink == nil || raw == nil {
		return
	}
	ev := RawEvent{
		TimeDownMS:        int64(raw.time_down),
		Type:              uint32(raw._type),
		KeyCode:           uint16(raw.key_code),
		KeyChar:           unsafe.Pointer(raw.key_char),
		ClickX:            float64(raw.click_x),
		ClickY:            float64(raw.click_y),
		MouseDistancePX:   float64(raw.mouse_distance_px),
		MouseDistanceMM:   float64(raw.mouse_distance_mm),
		MouseAngleDeg:     float64(raw.mouse_angle_deg),
		MouseSpeedKPH:     float64(raw.mouse_speed_kph),
		ScrollDeltaX:      int32(raw.scroll_delta_x),
		ScrollDeltaY:      int32(raw.scroll_delta_y),
		ScrollAngle:       float64(raw.scroll_angle),
		ScrollSpeedKPH:    float64(raw.scroll_speed_kph),
		DraggedDistancePX: float64(raw.dragged_distance_px),
		DraggedDistanceMM: float64(raw.dragged_distance_mm),
		DragAngle:         float64(raw.drag_angle),
		DragSpeedKPH:      float64(raw.drag_speed_kph),
		IsBuiltinDisplay:  bool(raw.is_builtin_display),
		IsMainDisplay:     bool(raw.is_main_display),
		FunctionStart:     timespec(raw.function_start),
		KeyboardLayout:    unsafe.Pointer(raw.keyboard_layout),
		ProcessName:       unsafe.Pointer(raw.process_name),
		ProcessPath:       unsafe.Pointer(raw.process_path),
	}
	sink.HandleRaw(&ev)
}

//export tapline_handle_motion_batch
func tapline_handle_motion_batch(handle C.uintptr_t, samples *C.struct_tap_raw_motion, count C.int, start C.struct_tap_timespec) {
	defer recoverCallback("tapline_handle_motion_batch")

	sink := sinkFor(handle)
	if sink == nil {
		return
	}

	// Read at most one sample past the limit so the adapter can still
	// report an oversized batch without walking unbounded foreign memory.
	n := int(count)
	if n < 0 || samples == nil {
		n = 0
	}
	if n > MaxMotionBatch+1 {
		n = MaxMotionBatch + 1
	}

	batch := RawMotionBatch{Start: timespec(start), Samples: make([]RawMotion, 0, n)}
	for _, s := range unsafe.Slice(samples, n) {
		batch.Samples = append(batch.Samples, RawMotion{
			Type:             uint32(s._type),
			IsBuiltinDisplay: bool(s.is_builtin_display),
			IsMainDisplay:    bool(s.is_main_display),
			ProcessName:      unsafe.Pointer(s.process_name),
			ProcessPath:      unsafe.Pointer(s.process_path),
			DistancePX:       float64(s.distance_px),
			DistanceMM:       float64(s.distance_mm),
			AngleDeg:         float64(s.angle_deg),
			VelocityKPH:      float64(s.velocity_kph),
		})
	}
	sink.HandleMotionBatch(batch)
}

func timespec(ts C.struct_tap_timespec) Timespec {
	return Timespec{Sec: int64(ts.tv_sec), Nsec: int64(ts.tv_nsec)}
}

func sinkFor(handle C.uintptr_t) Sink {
	if handle == 0 {
		return nil
	}
	sink, _ := cgo.Handle(handle).Value().(Sink)
	return sink
}

// recoverCallback stops a panic from unwinding into the capture source.
func recoverCallback(entry string) {
	if r := recover(); r != nil {
		slog.Error("capture callback panicked", "entry", entry, "panic", fmt.Sprint(r))
	}
}
