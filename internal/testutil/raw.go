package testutil

import (
	"time"
	"unsafe"

	"github.com/roach88/tapline/internal/boundary"
)

// CString copies s into a fresh NUL-terminated buffer and returns a pointer
// to it, standing in for a buffer owned by the capture source.
func CString(s string) unsafe.Pointer {
	return CBytes([]byte(s))
}

// CBytes is CString for arbitrary bytes, including invalid UTF-8.
func CBytes(b []byte) unsafe.Pointer {
	buf := make([]byte, len(b)+1)
	copy(buf, b)
	return unsafe.Pointer(&buf[0])
}

// Timespec converts t into the capture source's timestamp layout.
func Timespec(t time.Time) boundary.Timespec {
	return boundary.Timespec{Sec: t.Unix(), Nsec: int64(t.Nanosecond())}
}

// KeyRecord builds a keyboard record started at start.
func KeyRecord(typ uint32, keyCode uint16, keyChar, process string, start time.Time) *boundary.RawEvent {
	return &boundary.RawEvent{
		Type:           typ,
		TimeDownMS:     80,
		KeyCode:        keyCode,
		KeyChar:        CString(keyChar),
		KeyboardLayout: CString("com.apple.keylayout.US"),
		ProcessName:    CString(process),
		ProcessPath:    CString("/Applications/" + process + ".app"),
		IsMainDisplay:  true,
		FunctionStart:  Timespec(start),
	}
}

// MotionSample builds one raw motion sample.
func MotionSample(process string, distancePX, angleDeg, velocityKPH float64) boundary.RawMotion {
	return boundary.RawMotion{
		Type:          5, // MouseMoved
		IsMainDisplay: true,
		ProcessName:   CString(process),
		ProcessPath:   CString("/Applications/" + process + ".app"),
		DistancePX:    distancePX,
		DistanceMM:    distancePX / 4,
		AngleDeg:      angleDeg,
		VelocityKPH:   velocityKPH,
	}
}
