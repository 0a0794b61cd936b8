//go:build darwin && cgo

package capture

import (
	"context"
	"log/slog"

	"github.com/roach88/tapline/internal/boundary"
)

// NativeSource exposes the sink to the native capture mechanism through the
// exported C entry points and blocks until ctx is done.
type NativeSource struct {
	Logger *slog.Logger
}

// Run registers sink and waits. The capture mechanism calls
// tapline_handle_event and tapline_handle_motion_batch with the handle
// (also available from tapline_active_sink) until Run returns.
func (s *NativeSource) Run(ctx context.Context, sink boundary.Sink) error {
	logger := s.Logger
	if logger == nil {
		logger = slog.Default()
	}

	handle := boundary.RegisterSink(sink)
	defer boundary.UnregisterSink(handle)

	logger.Info("native capture sink registered", "handle", handle)
	<-ctx.Done()
	logger.Info("native capture sink released", "handle", handle)
	return nil
}
