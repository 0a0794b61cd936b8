// Package boundary converts raw capture records into owned domain events.
//
// The capture source hands over fixed-layout records whose string fields
// point at NUL-terminated buffers it owns. This package is the only code
// that dereferences those pointers: every buffer is copied before it is
// decoded, every numeric field is range checked, and every floating point
// quantity is made finite before an event.Event leaves the adapter.
//
// # Errors
//
// Conversion failures are reported as *ConversionError:
//   - UNHANDLED_TYPE: type code outside the enumeration or without a category
//   - OUT_OF_RANGE: an integer field does not fit its domain type
//   - CLOCK_SKEW: the capture start lies in the future of the delivery clock
//   - ENCODING_FALLBACK: key character decoded as UTF-16 (logged, not returned)
//
// On darwin with cgo enabled the package also exports the C entry points the
// native capture mechanism calls (see export_darwin.go).
package boundary
