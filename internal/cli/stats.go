package cli

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/roach88/tapline/internal/config"
	"github.com/roach88/tapline/internal/event"
)

// StatsOptions holds flags for the stats command.
type StatsOptions struct {
	*RootOptions
	Sessions int
}

// SessionSummary is one capture session in the stats report.
type SessionSummary struct {
	ID        string    `json:"id"`
	Source    string    `json:"source"`
	StartedAt time.Time `json:"started_at"`
	EndedAt   time.Time `json:"ended_at,omitzero"`
}

// ProcessSummary is the event count of one process.
type ProcessSummary struct {
	Name   string `json:"name"`
	Events int64  `json:"events"`
}

// StatsReport is the result of the stats command.
type StatsReport struct {
	Database   string           `json:"database"`
	SizeBytes  uint64           `json:"size_bytes,omitempty"`
	Total      int64            `json:"total"`
	Samples    int64            `json:"motion_samples"`
	ByCategory map[string]int64 `json:"by_category"`
	Processes  []ProcessSummary `json:"processes"`
	Sessions   []SessionSummary `json:"sessions"`

	now time.Time
}

var reportCategories = []event.Category{
	event.CategoryKeyboard,
	event.CategoryMouseClick,
	event.CategoryMouseMove,
	event.CategoryScroll,
}

// WriteText renders the report with humanized numbers.
func (r StatsReport) WriteText(w io.Writer) error {
	size := "in memory"
	if r.Database != config.MemoryPath {
		size = humanize.IBytes(r.SizeBytes)
	}
	fmt.Fprintf(w, "Database: %s (%s)\n", r.Database, size)
	fmt.Fprintf(w, "Events:   %s\n", humanize.Comma(r.Total))
	for _, c := range reportCategories {
		fmt.Fprintf(w, "  %-12s %s\n", c.String(), humanize.Comma(r.ByCategory[c.String()]))
	}
	fmt.Fprintf(w, "Motion samples: %s\n", humanize.Comma(r.Samples))

	fmt.Fprintln(w)
	fmt.Fprintln(w, "=== Processes ===")
	if len(r.Processes) == 0 {
		fmt.Fprintln(w, "  (none)")
	}
	for i, p := range r.Processes {
		fmt.Fprintf(w, "  %s %s: %s\n", humanize.Ordinal(i+1), p.Name, humanize.Comma(p.Events))
	}

	fmt.Fprintln(w)
	fmt.Fprintln(w, "=== Sessions ===")
	if len(r.Sessions) == 0 {
		fmt.Fprintln(w, "  (none)")
	}
	for _, s := range r.Sessions {
		ended := "open"
		switch {
		case s.EndedAt.IsZero():
		case s.EndedAt.Sub(s.StartedAt) < time.Second:
			ended = "ran under a second"
		default:
			ended = "ran " + strings.TrimSpace(humanize.RelTime(s.StartedAt, s.EndedAt, "", ""))
		}
		fmt.Fprintf(w, "  %s %s started %s, %s\n",
			s.ID, s.Source, humanize.RelTime(s.StartedAt, r.now, "ago", "from now"), ended)
	}
	return nil
}

// NewStatsCommand creates the stats command.
func NewStatsCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &StatsOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Summarise recorded events",
		Long: `Summarise the recorded events: totals by category, events per process
(busiest first) and the most recent capture sessions.

Examples:
  tapline stats
  tapline stats --sessions 20 --format json`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStats(cmd, opts)
		},
	}

	cmd.Flags().IntVar(&opts.Sessions, "sessions", 5, "number of recent sessions to list")
	return cmd
}

func runStats(cmd *cobra.Command, opts *StatsOptions) error {
	ctx := cmd.Context()
	st, err := openStore(ctx, opts.RootOptions)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := st.Close(); closeErr != nil {
			opts.Logger.Error("error closing database", "error", closeErr)
		}
	}()

	counts, err := st.CountEvents(ctx)
	if err != nil {
		return WrapExitError(ExitFailure, "failed to count events", err)
	}
	procs, err := st.ProcessCounts(ctx)
	if err != nil {
		return WrapExitError(ExitFailure, "failed to count events per process", err)
	}
	sessions, err := st.Sessions(ctx, opts.Sessions)
	if err != nil {
		return WrapExitError(ExitFailure, "failed to list sessions", err)
	}

	report := StatsReport{
		Database:   st.Path(),
		Total:      counts.Total,
		Samples:    counts.Samples,
		ByCategory: make(map[string]int64, len(counts.ByCategory)),
		Processes:  make([]ProcessSummary, 0, len(procs)),
		Sessions:   make([]SessionSummary, 0, len(sessions)),
		now:        opts.now(),
	}
	for c, n := range counts.ByCategory {
		report.ByCategory[c.String()] = n
	}
	for _, p := range procs {
		report.Processes = append(report.Processes, ProcessSummary{Name: p.Name, Events: p.Events})
	}
	for _, s := range sessions {
		report.Sessions = append(report.Sessions, SessionSummary{
			ID:        s.ID,
			Source:    s.Source,
			StartedAt: s.StartedAt,
			EndedAt:   s.EndedAt,
		})
	}
	if st.Path() != config.MemoryPath {
		if info, err := os.Stat(st.Path()); err == nil {
			report.SizeBytes = uint64(info.Size())
		}
	}

	return opts.formatter(cmd).Success(report)
}
