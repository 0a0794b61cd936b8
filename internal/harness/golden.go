package harness

import (
	"fmt"
	"strings"
	"testing"

	"github.com/sebdah/goldie/v2"
)

// Render formats a result for golden comparison: the persisted rows, one
// per line, followed by the pipeline counters.
func Render(result *Result) []byte {
	var b strings.Builder
	for _, row := range result.Rows {
		b.WriteString(row.Line)
		b.WriteByte('\n')
	}
	s := result.Stats
	fmt.Fprintf(&b, "stats received=%d batches=%d recorded=%d tap_disabled=%d dropped=%d\n",
		s.Received, s.Batches, s.Recorded, s.TapDisabled, s.TotalDropped())
	return []byte(b.String())
}

// RunWithGolden executes a scenario and compares its rendering against
// testdata/golden/<scenario.Name>.golden.
//
// To regenerate golden files, run:
//
//	go test ./internal/harness -update
//
// Returns the result so callers can inspect assertion failures.
func RunWithGolden(t *testing.T, scenario *Scenario) (*Result, error) {
	t.Helper()

	result, err := Run(scenario)
	if err != nil {
		return nil, err
	}

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, scenario.Name, Render(result))
	return result, nil
}
