package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/roach88/tapline/internal/capture"
	"github.com/roach88/tapline/internal/event"
	"github.com/roach88/tapline/internal/maintenance"
	"github.com/roach88/tapline/internal/store"
)

// shutdownTimeout bounds how long run waits for a checkpoint in flight.
const shutdownTimeout = 10 * time.Second

// RunOptions holds flags for the run command.
type RunOptions struct {
	*RootOptions
	Source   string
	Count    int
	Interval time.Duration

	// Signals overrides the shutdown signals (tests pass none).
	Signals []os.Signal
}

// RunResult is printed when capture stops.
type RunResult struct {
	SessionID string        `json:"session_id"`
	Source    string        `json:"source"`
	Database  string        `json:"database"`
	Duration  time.Duration `json:"duration_ns"`
	Stats     capture.Stats `json:"stats"`
}

// WriteText renders the result for humans.
func (r RunResult) WriteText(w io.Writer) error {
	fmt.Fprintf(w, "Session %s (%s) ran for %s\n", r.SessionID, r.Source, r.Duration.Round(time.Millisecond))
	fmt.Fprintf(w, "  Database:     %s\n", r.Database)
	fmt.Fprintf(w, "  Received:     %s\n", humanize.Comma(int64(r.Stats.Received)))
	fmt.Fprintf(w, "  Batches:      %s\n", humanize.Comma(int64(r.Stats.Batches)))
	fmt.Fprintf(w, "  Recorded:     %s\n", humanize.Comma(int64(r.Stats.Recorded)))
	fmt.Fprintf(w, "  Tap disabled: %s\n", humanize.Comma(int64(r.Stats.TapDisabled)))
	_, err := fmt.Fprintf(w, "  Dropped:      %s\n", humanize.Comma(int64(r.Stats.TotalDropped())))
	return err
}

// NewRunCommand creates the run command.
func NewRunCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RunOptions{RootOptions: rootOpts, Signals: []os.Signal{os.Interrupt, syscall.SIGTERM}}

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Capture input events into the database",
		Long: `Open the database, bring its schema up to date and record events from a
capture source until interrupted.

The native source hands the recorder to the platform capture mechanism and
is only available in darwin builds with cgo. The synthetic source generates
a deterministic stream and stops after --count callbacks (0 runs until
interrupted).

Example:
  tapline run
  TAPLINE_STORE=development tapline run --source synthetic --count 1000`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCapture(cmd, opts)
		},
	}

	cmd.Flags().StringVar(&opts.Source, "source", defaultSource(), "capture source (native|synthetic)")
	cmd.Flags().IntVar(&opts.Count, "count", 0, "synthetic callbacks to deliver (0 = until interrupted)")
	cmd.Flags().DurationVar(&opts.Interval, "interval", 10*time.Millisecond, "pause between synthetic callbacks")

	return cmd
}

func defaultSource() string {
	if runtime.GOOS == "darwin" {
		return capture.SourceNative
	}
	return capture.SourceSynthetic
}

func runCapture(cmd *cobra.Command, opts *RunOptions) error {
	logger := opts.Logger
	out := opts.formatter(cmd)

	if opts.Count < 0 {
		return NewExitError(ExitCommandError, "--count must not be negative")
	}
	src, err := capture.NewSource(opts.Source, capture.SourceOptions{
		Count:    opts.Count,
		Interval: opts.Interval,
		Logger:   logger,
	})
	if err != nil {
		return WrapExitError(ExitCommandError, "invalid source", err)
	}

	parentCtx := cmd.Context()
	if parentCtx == nil {
		parentCtx = context.Background()
	}
	ctx, cancel := context.WithCancel(parentCtx)
	defer cancel()

	if len(opts.Signals) > 0 {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, opts.Signals...)
		defer signal.Stop(sigChan)

		go func() {
			select {
			case sig := <-sigChan:
				logger.Info("received signal, shutting down", "signal", sig)
				cancel()
			case <-ctx.Done():
			}
		}()
	}

	// Migrations complete inside openStore, before the source can deliver anything.
	st, err := openStore(ctx, opts.RootOptions)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := st.Close(); closeErr != nil {
			logger.Error("error closing database", "error", closeErr)
		}
	}()

	sess, err := st.BeginSession(ctx, opts.Source)
	if err != nil {
		return WrapExitError(ExitFailure, "failed to begin session", err)
	}

	pipeline, err := capture.NewPipeline(capture.Options{
		Recorder:  st,
		SessionID: sess.ID,
		Logger:    logger,
		OnTapDisabled: func(typ event.Type) {
			logger.Warn("capture stopped by the system; re-enable input monitoring to resume", "reason", typ.String())
		},
	})
	if err != nil {
		return WrapExitError(ExitFailure, "failed to build pipeline", err)
	}

	sched, err := maintenance.New(st, maintenance.Options{
		Schedule: opts.Config.CheckpointSchedule,
		Logger:   logger,
	})
	if err != nil {
		return WrapExitError(ExitCommandError, "invalid checkpoint schedule", err)
	}
	sched.Start()

	logger.Info("capture starting", "source", opts.Source, "session", sess.ID, "db", st.Path())
	started := time.Now()
	runErr := src.Run(ctx, pipeline)
	elapsed := time.Since(started)

	stopCtx, stopCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer stopCancel()
	if err := sched.Stop(stopCtx); err != nil {
		logger.Warn("checkpoint still running at shutdown", "error", err)
	}
	if err := st.EndSession(context.Background(), sess.ID); err != nil {
		logger.Error("failed to end session", "session", sess.ID, "error", err)
	}

	if runErr != nil && !errors.Is(runErr, context.Canceled) {
		if errors.Is(runErr, capture.ErrNativeUnavailable) {
			return WrapExitError(ExitCommandError, "capture source unavailable", runErr)
		}
		return WrapExitError(ExitFailure, "capture failed", runErr)
	}

	logger.Info("capture stopped", "session", sess.ID)
	return out.Success(RunResult{
		SessionID: sess.ID,
		Source:    opts.Source,
		Database:  st.Path(),
		Duration:  elapsed,
		Stats:     pipeline.Stats(),
	})
}

// openStore opens the configured database, migrating it first.
func openStore(ctx context.Context, opts *RootOptions) (*store.Store, error) {
	storeOpts, err := storeOptions(opts)
	if err != nil {
		return nil, err
	}
	st, err := store.Open(ctx, storeOpts)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to open database", err)
	}
	return st, nil
}

func storeOptions(opts *RootOptions) (store.Options, error) {
	path, err := opts.Config.DatabasePath()
	if err != nil {
		return store.Options{}, WrapExitError(ExitCommandError, "failed to resolve database path", err)
	}
	return store.Options{
		Location: opts.Config.Store,
		Path:     path,
		Logger:   opts.Logger,
		Now:      opts.Now,
	}, nil
}
