package capture

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/roach88/tapline/internal/boundary"
	"github.com/roach88/tapline/internal/event"
	"github.com/roach88/tapline/internal/motion"
)

// Recorder persists events. Implemented by *store.Store.
type Recorder interface {
	RecordEvent(ctx context.Context, sessionID string, ev event.Event) (int64, error)
}

// Options configures a Pipeline.
type Options struct {
	// Recorder receives every converted event. Required.
	Recorder Recorder

	// SessionID tags persisted rows. May be empty.
	SessionID string

	// Now is the delivery clock used to measure execution time.
	// Defaults to time.Now.
	Now func() time.Time

	// Logger defaults to slog.Default().
	Logger *slog.Logger

	// LogInterval and LogBurst bound how often drop lines are logged.
	// Zero values use DefaultLogInterval and DefaultLogBurst.
	LogInterval time.Duration
	LogBurst    int

	// OnTapDisabled is called when the capture source reports it has been
	// switched off. Optional.
	OnTapDisabled func(event.Type)

	// Listener observes every persisted event with its row id. Optional.
	// It runs on the callback path and must return quickly.
	Listener func(ev event.Event, id int64)
}

// Pipeline converts, aggregates and persists records from a capture source.
//
// Thread-safety: Pipeline is safe for concurrent use; the Recorder is
// responsible for serialising writes.
type Pipeline struct {
	adapter       *boundary.Adapter
	recorder      Recorder
	sessionID     string
	logger        *slog.Logger
	drops         *limitedLogger
	onTapDisabled func(event.Type)
	listener      func(event.Event, int64)
	stats         counters
}

var _ boundary.Sink = (*Pipeline)(nil)

// NewPipeline validates opts and constructs a pipeline.
func NewPipeline(opts Options) (*Pipeline, error) {
	if opts.Recorder == nil {
		return nil, errors.New("capture pipeline needs a recorder")
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	interval := opts.LogInterval
	if interval <= 0 {
		interval = DefaultLogInterval
	}
	burst := opts.LogBurst
	if burst <= 0 {
		burst = DefaultLogBurst
	}

	return &Pipeline{
		adapter:       boundary.NewAdapter(boundary.Options{Now: opts.Now, Logger: logger}),
		recorder:      opts.Recorder,
		sessionID:     opts.SessionID,
		logger:        logger,
		drops:         newLimitedLogger(logger, interval, burst),
		onTapDisabled: opts.OnTapDisabled,
		listener:      opts.Listener,
	}, nil
}

// HandleRaw converts one raw record and persists it.
func (p *Pipeline) HandleRaw(raw *boundary.RawEvent) {
	defer p.recoverPanic("raw")
	p.stats.received.Add(1)

	ev, err := p.adapter.Convert(raw)
	if err != nil {
		p.drop(DropConversion, slog.LevelWarn, "dropping raw record", err,
			"code", boundary.ConversionCode(err))
		return
	}
	if ev.Category() == event.CategoryOutOfBand {
		p.tapDisabled(ev.Type())
		return
	}
	p.record(ev)
}

// HandleMotionBatch folds a batch of motion samples into one persisted event.
func (p *Pipeline) HandleMotionBatch(batch boundary.RawMotionBatch) {
	defer p.recoverPanic("motion_batch")
	p.stats.batches.Add(1)
	p.stats.received.Add(uint64(len(batch.Samples)))

	samples, err := p.adapter.ConvertMotionBatch(batch)
	if err != nil {
		p.drop(DropConversion, slog.LevelWarn, "dropping motion batch", err,
			"code", boundary.ConversionCode(err), "samples", len(batch.Samples))
		return
	}

	ev, err := motion.Aggregate(samples.Events, samples.ExecutionTimeUS)
	if err != nil {
		p.drop(DropAggregation, slog.LevelError, "dropping motion batch", err,
			"samples", len(samples.Events))
		return
	}
	p.record(ev)
}

// Stats returns a snapshot of the pipeline counters.
func (p *Pipeline) Stats() Stats {
	return p.stats.snapshot()
}

func (p *Pipeline) record(ev event.Event) {
	// The capture path has no deadline: a started write runs to completion.
	id, err := p.recorder.RecordEvent(context.Background(), p.sessionID, ev)
	if err != nil {
		p.drop(DropPersistence, slog.LevelWarn, "dropping event", err,
			"type", ev.Type().String(), "process", ev.ProcessName())
		return
	}
	p.stats.recorded.Add(1)
	if p.listener != nil {
		p.listener(ev, id)
	}
}

func (p *Pipeline) tapDisabled(typ event.Type) {
	p.stats.tapDisabled.Add(1)
	p.logger.Warn("capture source disabled", "type", typ.String())
	if p.onTapDisabled != nil {
		p.onTapDisabled(typ)
	}
}

func (p *Pipeline) drop(reason DropReason, level slog.Level, msg string, err error, args ...any) {
	p.stats.dropped(reason).Add(1)
	args = append(args, "reason", string(reason), "error", err)
	p.drops.log(level, msg, args...)
}

func (p *Pipeline) recoverPanic(entry string) {
	if r := recover(); r != nil {
		p.drop(DropPanic, slog.LevelError, "capture callback panicked",
			fmt.Errorf("%v", r), "entry", entry)
	}
}
