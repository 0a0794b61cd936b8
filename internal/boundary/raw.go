package boundary

import "unsafe"

// MaxMotionBatch is the largest motion batch the capture source may deliver.
const MaxMotionBatch = 255

// Timespec mirrors struct timespec: wall-clock seconds plus nanoseconds.
type Timespec struct {
	Sec  int64
	Nsec int64
}

// RawEvent mirrors the C struct tap_raw_event field for field.
// The pointer fields reference NUL-terminated buffers owned by the capture
// source; they are only valid for the duration of the callback.
type RawEvent struct {
	TimeDownMS int64
	Type       uint32
	KeyCode    uint16
	KeyChar    unsafe.Pointer

	ClickX float64
	ClickY float64

	MouseDistancePX float64
	MouseDistanceMM float64
	MouseAngleDeg   float64
	MouseSpeedKPH   float64

	ScrollDeltaX   int32
	ScrollDeltaY   int32
	ScrollAngle    float64
	ScrollSpeedKPH float64

	DraggedDistancePX float64
	DraggedDistanceMM float64
	DragAngle         float64
	DragSpeedKPH      float64

	IsBuiltinDisplay bool
	IsMainDisplay    bool
	FunctionStart    Timespec

	KeyboardLayout unsafe.Pointer
	ProcessName    unsafe.Pointer
	ProcessPath    unsafe.Pointer
}

// RawMotion mirrors struct tap_raw_motion: one pointer-motion sample.
type RawMotion struct {
	Type             uint32
	IsBuiltinDisplay bool
	IsMainDisplay    bool
	ProcessName      unsafe.Pointer
	ProcessPath      unsafe.Pointer

	DistancePX  float64
	DistanceMM  float64
	AngleDeg    float64
	VelocityKPH float64
}

// RawMotionBatch is the set of motion samples gathered during one callback,
// sharing the callback's start time.
type RawMotionBatch struct {
	Samples []RawMotion
	Start   Timespec
}

// Sink receives raw records from a capture source.
// Implementations must not let errors or panics escape back to the caller.
type Sink interface {
	HandleRaw(raw *RawEvent)
	HandleMotionBatch(batch RawMotionBatch)
}
