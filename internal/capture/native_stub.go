//go:build !darwin || !cgo

package capture

import (
	"context"
	"log/slog"

	"github.com/roach88/tapline/internal/boundary"
)

// NativeSource is unavailable on this platform.
type NativeSource struct {
	Logger *slog.Logger
}

// Run always returns ErrNativeUnavailable.
func (s *NativeSource) Run(ctx context.Context, sink boundary.Sink) error {
	return ErrNativeUnavailable
}
