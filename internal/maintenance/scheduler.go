package maintenance

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/roach88/tapline/internal/store"
)

// DefaultTimeout bounds a single checkpoint run.
const DefaultTimeout = 2 * time.Minute

// Checkpointer is implemented by *store.Store.
type Checkpointer interface {
	Checkpoint(ctx context.Context) (store.CheckpointResult, error)
}

// Options configures a Scheduler.
type Options struct {
	// Schedule is a standard cron expression or descriptor such as
	// "@every 15m". Empty disables scheduling; RunOnce still works.
	Schedule string

	// Timeout bounds each run. Defaults to DefaultTimeout.
	Timeout time.Duration

	Logger *slog.Logger
}

// Scheduler checkpoints a store on a cron schedule.
//
// Overlapping runs are skipped and a panicking run is logged rather than
// taking the process down.
type Scheduler struct {
	target  Checkpointer
	timeout time.Duration
	logger  *slog.Logger
	cron    *cron.Cron
	entry   cron.EntryID

	runs     atomic.Int64
	failures atomic.Int64
}

// New validates the schedule and builds a stopped scheduler.
func New(target Checkpointer, opts Options) (*Scheduler, error) {
	if target == nil {
		return nil, fmt.Errorf("maintenance scheduler needs a checkpoint target")
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	s := &Scheduler{target: target, timeout: timeout, logger: logger}
	if opts.Schedule == "" {
		return s, nil
	}

	cl := cronLogger{logger}
	s.cron = cron.New(
		cron.WithLogger(cl),
		cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)),
	)
	id, err := s.cron.AddFunc(opts.Schedule, s.run)
	if err != nil {
		return nil, fmt.Errorf("checkpoint schedule %q: %w", opts.Schedule, err)
	}
	s.entry = id
	return s, nil
}

// Enabled reports whether a schedule was configured.
func (s *Scheduler) Enabled() bool {
	return s.cron != nil
}

// Start begins running checkpoints in the background.
func (s *Scheduler) Start() {
	if s.cron == nil {
		return
	}
	s.cron.Start()
	s.logger.Debug("checkpoint scheduler started", "next", s.Next())
}

// Stop halts the schedule and waits for a running checkpoint to finish or
// ctx to expire, whichever comes first.
func (s *Scheduler) Stop(ctx context.Context) error {
	if s.cron == nil {
		return nil
	}
	select {
	case <-s.cron.Stop().Done():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Next returns the next scheduled run, or the zero time when disabled or
// not started.
func (s *Scheduler) Next() time.Time {
	if s.cron == nil {
		return time.Time{}
	}
	return s.cron.Entry(s.entry).Next
}

// RunOnce checkpoints immediately.
func (s *Scheduler) RunOnce(ctx context.Context) (store.CheckpointResult, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	s.runs.Add(1)
	start := time.Now()
	res, err := s.target.Checkpoint(ctx)
	if err != nil {
		s.failures.Add(1)
		s.logger.Error("checkpoint failed", "error", err)
		return res, err
	}
	s.logger.Debug("checkpoint complete",
		"busy", res.Busy,
		"log_frames", res.LogFrames,
		"checkpointed_frames", res.CheckpointedFrames,
		"duration", time.Since(start),
	)
	return res, nil
}

// Runs returns how many checkpoints have been attempted and how many failed.
func (s *Scheduler) Runs() (total, failed int64) {
	return s.runs.Load(), s.failures.Load()
}

func (s *Scheduler) run() {
	_, _ = s.RunOnce(context.Background())
}

// cronLogger routes cron's own diagnostics through slog.
type cronLogger struct {
	logger *slog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...any) {
	l.logger.Debug("cron: "+msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...any) {
	l.logger.Error("cron: "+msg, append(keysAndValues, "error", err)...)
}
