package capture

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"
)

const (
	// DefaultLogBurst is the number of drop lines that may be logged back to back.
	DefaultLogBurst = 10

	// DefaultLogInterval is the steady-state spacing of drop lines.
	DefaultLogInterval = time.Second
)

// limitedLogger emits at most one line per interval after an initial burst.
// Suppressed lines are counted and reported on the next line that gets out.
type limitedLogger struct {
	logger     *slog.Logger
	limiter    *rate.Limiter
	suppressed atomic.Int64
}

func newLimitedLogger(logger *slog.Logger, every time.Duration, burst int) *limitedLogger {
	return &limitedLogger{
		logger:  logger,
		limiter: rate.NewLimiter(rate.Every(every), burst),
	}
}

func (l *limitedLogger) log(level slog.Level, msg string, args ...any) {
	if !l.logger.Enabled(context.Background(), level) {
		return
	}
	if !l.limiter.Allow() {
		l.suppressed.Add(1)
		return
	}
	if n := l.suppressed.Swap(0); n > 0 {
		args = append(args, "suppressed", n)
	}
	l.logger.Log(context.Background(), level, msg, args...)
}

// Suppressed returns the number of lines dropped since the last emitted one.
func (l *limitedLogger) Suppressed() int64 {
	return l.suppressed.Load()
}
