package boundary

import (
	"errors"
	"fmt"
)

// ConversionErrorCode categorizes conversion errors.
type ConversionErrorCode string

const (
	// ErrCodeUnhandledType indicates a type code the domain model cannot place.
	ErrCodeUnhandledType ConversionErrorCode = "UNHANDLED_TYPE"

	// ErrCodeOutOfRange indicates a numeric field outside its valid range.
	ErrCodeOutOfRange ConversionErrorCode = "OUT_OF_RANGE"

	// ErrCodeClockSkew indicates the delivery time precedes the capture start.
	ErrCodeClockSkew ConversionErrorCode = "CLOCK_SKEW"

	// ErrCodeEncodingFallback indicates the key character was not UTF-8 and
	// was decoded as a single UTF-16 code unit. Non-fatal.
	ErrCodeEncodingFallback ConversionErrorCode = "ENCODING_FALLBACK"
)

// ConversionError reports why a raw record could not become an event.
type ConversionError struct {
	Code ConversionErrorCode

	// Field names the raw field at fault, if any.
	Field string

	Message string

	// Err is the underlying cause (optional).
	Err error
}

func (e *ConversionError) Error() string {
	msg := string(e.Code) + ": " + e.Message
	if e.Field != "" {
		msg = fmt.Sprintf("%s: %s (field=%s)", e.Code, e.Message, e.Field)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *ConversionError) Unwrap() error {
	return e.Err
}

// ConversionCode extracts the code from err, or "" if err is not a ConversionError.
func ConversionCode(err error) ConversionErrorCode {
	var ce *ConversionError
	if errors.As(err, &ce) {
		return ce.Code
	}
	return ""
}

// IsUnhandledType returns true if err is an UNHANDLED_TYPE conversion error.
func IsUnhandledType(err error) bool {
	return ConversionCode(err) == ErrCodeUnhandledType
}

// IsOutOfRange returns true if err is an OUT_OF_RANGE conversion error.
func IsOutOfRange(err error) bool {
	return ConversionCode(err) == ErrCodeOutOfRange
}

// IsClockSkew returns true if err is a CLOCK_SKEW conversion error.
func IsClockSkew(err error) bool {
	return ConversionCode(err) == ErrCodeClockSkew
}

func unhandledType(code uint32, err error) *ConversionError {
	return &ConversionError{
		Code:    ErrCodeUnhandledType,
		Field:   "type",
		Message: fmt.Sprintf("cannot handle event type %d", code),
		Err:     err,
	}
}

func outOfRange(field string, format string, args ...any) *ConversionError {
	return &ConversionError{
		Code:    ErrCodeOutOfRange,
		Field:   field,
		Message: fmt.Sprintf(format, args...),
	}
}
