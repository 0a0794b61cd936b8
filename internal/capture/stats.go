package capture

import "sync/atomic"

// DropReason says why a record did not reach the store.
type DropReason string

const (
	DropConversion  DropReason = "conversion"
	DropAggregation DropReason = "aggregation"
	DropPersistence DropReason = "persistence"
	DropPanic       DropReason = "panic"
)

var dropReasons = []DropReason{DropConversion, DropAggregation, DropPersistence, DropPanic}

// Stats is a snapshot of pipeline counters.
type Stats struct {
	// Received counts raw records, with each motion sample counted once.
	Received uint64 `json:"received"`

	// Batches counts motion batch callbacks.
	Batches uint64 `json:"batches"`

	// Recorded counts rows written to the store.
	Recorded uint64 `json:"recorded"`

	// TapDisabled counts out-of-band notifications.
	TapDisabled uint64 `json:"tap_disabled"`

	Dropped map[DropReason]uint64 `json:"dropped"`
}

// TotalDropped sums Dropped over all reasons.
func (s Stats) TotalDropped() uint64 {
	var n uint64
	for _, v := range s.Dropped {
		n += v
	}
	return n
}

type counters struct {
	received    atomic.Uint64
	batches     atomic.Uint64
	recorded    atomic.Uint64
	tapDisabled atomic.Uint64

	conversion  atomic.Uint64
	aggregation atomic.Uint64
	persistence atomic.Uint64
	panics      atomic.Uint64
}

func (c *counters) dropped(reason DropReason) *atomic.Uint64 {
	switch reason {
	case DropConversion:
		return &c.conversion
	case DropAggregation:
		return &c.aggregation
	case DropPersistence:
		return &c.persistence
	default:
		return &c.panics
	}
}

func (c *counters) snapshot() Stats {
	s := Stats{
		Received:    c.received.Load(),
		Batches:     c.batches.Load(),
		Recorded:    c.recorded.Load(),
		TapDisabled: c.tapDisabled.Load(),
		Dropped:     make(map[DropReason]uint64, len(dropReasons)),
	}
	for _, r := range dropReasons {
		if n := c.dropped(r).Load(); n > 0 {
			s.Dropped[r] = n
		}
	}
	return s
}
