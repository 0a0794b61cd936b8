package motion

import (
	"errors"
	"fmt"
	"math"

	"github.com/roach88/tapline/internal/event"
)

var (
	// ErrEmptyBatch is returned when there is nothing to aggregate.
	ErrEmptyBatch = errors.New("motion batch is empty")

	// ErrBatchTooLarge is returned when the batch would overflow AggregateCount.
	ErrBatchTooLarge = errors.New("motion batch exceeds aggregate limit")

	// ErrNotMotion is returned when a sample is not a mouse-move event.
	ErrNotMotion = errors.New("sample is not a mouse-move event")
)

// Aggregate summarises samples into one mouse-move event.
//
// The result carries the base of the last sample (the most recent process
// and display context), executionTimeUS from the batch's shared start, and
// AggregateCount = len(samples). samples is not modified.
func Aggregate(samples []event.Event, executionTimeUS uint64) (event.Event, error) {
	switch {
	case len(samples) == 0:
		return event.Event{}, ErrEmptyBatch
	case len(samples) > event.MaxAggregateCount:
		return event.Event{}, fmt.Errorf("%w: %d samples, limit %d",
			ErrBatchTooLarge, len(samples), event.MaxAggregateCount)
	}

	var (
		px, mm, weighted uint64
		velocity         float32
	)
	for i, s := range samples {
		mv, ok := s.MouseMove()
		if !ok {
			return event.Event{}, fmt.Errorf("%w: sample %d is %s", ErrNotMotion, i, s.Type())
		}
		px += uint64(mv.DistancePX)
		mm += uint64(mv.DistanceMM)
		weighted += uint64(mv.Angle) * uint64(mv.DistancePX)
		if i == 0 || mv.VelocityKPH > velocity {
			velocity = mv.VelocityKPH
		}
	}

	base := samples[len(samples)-1].Base()
	base.ExecutionTimeUS = executionTimeUS
	count := uint8(len(samples))
	base.AggregateCount = &count

	return event.New(base, event.MouseMove{
		DistancePX:  saturate(px),
		DistanceMM:  saturate(mm),
		Angle:       meanAngle(weighted, px),
		VelocityKPH: velocity,
	})
}

// meanAngle returns weighted/total rounded half up, wrapped into [0,360).
func meanAngle(weighted, total uint64) uint16 {
	if total == 0 {
		return 0
	}
	mean := (weighted + total/2) / total
	return uint16(mean % 360)
}

func saturate(v uint64) uint32 {
	if v > math.MaxUint32 {
		return math.MaxUint32
	}
	return uint32(v)
}
