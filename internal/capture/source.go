package capture

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/roach88/tapline/internal/boundary"
)

// Source delivers raw records to a sink until it is exhausted or ctx is done.
type Source interface {
	Run(ctx context.Context, sink boundary.Sink) error
}

// SourceFunc adapts a function literal to the Source interface.
type SourceFunc func(ctx context.Context, sink boundary.Sink) error

// Run calls the underlying function.
func (f SourceFunc) Run(ctx context.Context, sink boundary.Sink) error {
	return f(ctx, sink)
}

// ErrNativeUnavailable is returned by the native source when the binary was
// built without the native capture entry points.
var ErrNativeUnavailable = errors.New("native capture requires darwin with cgo enabled")

// Source names accepted by NewSource.
const (
	SourceSynthetic = "synthetic"
	SourceNative    = "native"
)

// SourceOptions configures NewSource.
type SourceOptions struct {
	// Count is the number of synthetic callbacks; 0 runs until ctx is done.
	Count int

	// Interval paces synthetic callbacks.
	Interval time.Duration

	Now    func() time.Time
	Logger *slog.Logger
}

// NewSource returns the named source.
func NewSource(name string, opts SourceOptions) (Source, error) {
	switch name {
	case SourceSynthetic:
		return &SyntheticSource{Count: opts.Count, Interval: opts.Interval, Now: opts.Now}, nil
	case SourceNative:
		return &NativeSource{Logger: opts.Logger}, nil
	}
	return nil, fmt.Errorf("unknown capture source %q (want %s or %s)", name, SourceSynthetic, SourceNative)
}
