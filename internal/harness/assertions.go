package harness

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"github.com/roach88/tapline/internal/capture"
	"github.com/roach88/tapline/internal/store"
)

// AssertionError is returned when an assertion fails.
type AssertionError struct {
	Type     string // Assertion type for categorization
	Expected string // Human-readable expected outcome
	Actual   string // Human-readable actual outcome
	Rows     []Row  // Persisted rows for debugging context
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder
	fmt.Fprintf(&buf, "Assertion failed: %s\n", e.Type)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s\n", e.Actual)

	fmt.Fprintf(&buf, "\nRows:\n")
	if len(e.Rows) == 0 {
		fmt.Fprintf(&buf, "  (none)\n")
	}
	for _, row := range e.Rows {
		fmt.Fprintf(&buf, "  %s\n", row.Line)
	}
	return buf.String()
}

func evaluate(ctx context.Context, st *store.Store, result *Result, a Assertion) error {
	switch a.Type {
	case AssertStats:
		return assertStats(result, *a.Stats)
	case AssertRowCount:
		return assertRowCount(result, a.Category, a.Count)
	case AssertProcessEvents:
		return assertProcessEvents(ctx, st, result, a.Process, a.Count)
	}
	return fmt.Errorf("unknown assertion type %q", a.Type)
}

func assertStats(result *Result, want StatsExpect) error {
	got := result.Stats
	var diffs []string
	check := func(name string, want *uint64, got uint64) {
		if want != nil && *want != got {
			diffs = append(diffs, fmt.Sprintf("%s=%d (want %d)", name, got, *want))
		}
	}
	check("received", want.Received, got.Received)
	check("recorded", want.Recorded, got.Recorded)
	check("tap_disabled", want.TapDisabled, got.TapDisabled)
	if want.Dropped != nil {
		for reason, n := range want.Dropped {
			if g := got.Dropped[capture.DropReason(reason)]; g != n {
				diffs = append(diffs, fmt.Sprintf("dropped.%s=%d (want %d)", reason, g, n))
			}
		}
		for reason, n := range got.Dropped {
			if _, ok := want.Dropped[string(reason)]; !ok {
				diffs = append(diffs, fmt.Sprintf("dropped.%s=%d (want 0)", reason, n))
			}
		}
	}
	if len(diffs) == 0 {
		return nil
	}
	slices.Sort(diffs)
	return &AssertionError{
		Type:     AssertStats,
		Expected: "counters as listed",
		Actual:   strings.Join(diffs, ", "),
		Rows:     result.Rows,
	}
}

func assertRowCount(result *Result, category string, want int64) error {
	var got int64
	for _, row := range result.Rows {
		if category == "" || row.Category == category {
			got++
		}
	}
	if got == want {
		return nil
	}
	what := "rows"
	if category != "" {
		what = category + " rows"
	}
	return &AssertionError{
		Type:     AssertRowCount,
		Expected: fmt.Sprintf("%d %s", want, what),
		Actual:   fmt.Sprintf("%d %s", got, what),
		Rows:     result.Rows,
	}
}

// assertProcessEvents goes through the store's own read path so the
// process dimension is checked, not just the rendered rows.
func assertProcessEvents(ctx context.Context, st *store.Store, result *Result, process string, want int64) error {
	counts, err := st.ProcessCounts(ctx)
	if err != nil {
		return err
	}
	var got int64
	for _, c := range counts {
		if c.Name == process {
			got = c.Events
		}
	}
	if got == want {
		return nil
	}
	return &AssertionError{
		Type:     AssertProcessEvents,
		Expected: fmt.Sprintf("%d events for %s", want, process),
		Actual:   fmt.Sprintf("%d events for %s", got, process),
		Rows:     result.Rows,
	}
}
