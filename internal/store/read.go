package store

import (
	"context"
	"fmt"

	"github.com/roach88/tapline/internal/event"
)

// Process is a row of the processes dimension.
type Process struct {
	ID   int64
	Name string
	Path string
}

// ProcessCount is the number of persisted events attributed to a process.
type ProcessCount struct {
	Name   string
	Events int64
}

// Counts summarises the staged_inputs table.
type Counts struct {
	Total int64

	// ByCategory is keyed by event.Category; absent categories have no rows.
	ByCategory map[event.Category]int64

	// Samples is the number of raw motion samples behind aggregated rows.
	Samples int64
}

// Processes returns every process ordered by id (first sighting first).
// Returns an empty slice (not nil) when there are none.
func (s *Store) Processes(ctx context.Context) ([]Process, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, path
		FROM processes
		ORDER BY id ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("query processes: %w", err)
	}
	defer rows.Close()

	processes := []Process{}
	for rows.Next() {
		var p Process
		if err := rows.Scan(&p.ID, &p.Name, &p.Path); err != nil {
			return nil, fmt.Errorf("scan process: %w", err)
		}
		processes = append(processes, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate processes: %w", err)
	}
	return processes, nil
}

// ProcessCounts returns event counts per process, busiest first. Ties are
// broken by name so the order is deterministic. Processes without events
// are omitted.
func (s *Store) ProcessCounts(ctx context.Context) ([]ProcessCount, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT p.name, count(*) AS events
		FROM staged_inputs si
		JOIN processes p ON p.id = si.process_id
		GROUP BY p.id
		ORDER BY events DESC, p.name COLLATE BINARY ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("query process counts: %w", err)
	}
	defer rows.Close()

	counts := []ProcessCount{}
	for rows.Next() {
		var c ProcessCount
		if err := rows.Scan(&c.Name, &c.Events); err != nil {
			return nil, fmt.Errorf("scan process count: %w", err)
		}
		counts = append(counts, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate process counts: %w", err)
	}
	return counts, nil
}

// CountEvents returns totals over all persisted events.
func (s *Store) CountEvents(ctx context.Context) (Counts, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT category, count(*), coalesce(sum(aggregate_count), 0)
		FROM staged_inputs
		GROUP BY category
	`)
	if err != nil {
		return Counts{}, fmt.Errorf("count events: %w", err)
	}
	defer rows.Close()

	counts := Counts{ByCategory: map[event.Category]int64{}}
	for rows.Next() {
		var (
			name       string
			n, samples int64
		)
		if err := rows.Scan(&name, &n, &samples); err != nil {
			return Counts{}, fmt.Errorf("scan event count: %w", err)
		}
		category, ok := categoryByName[name]
		if !ok {
			return Counts{}, fmt.Errorf("count events: unknown category %q", name)
		}
		counts.ByCategory[category] = n
		counts.Total += n
		counts.Samples += samples
	}
	if err := rows.Err(); err != nil {
		return Counts{}, fmt.Errorf("iterate event counts: %w", err)
	}
	return counts, nil
}

// Sessions returns capture sessions, most recent first.
func (s *Store) Sessions(ctx context.Context, limit int) ([]Session, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, source, started_at, coalesce(ended_at, '')
		FROM capture_sessions
		ORDER BY started_at DESC, id DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("query sessions: %w", err)
	}
	defer rows.Close()

	sessions := []Session{}
	for rows.Next() {
		var (
			sess           Session
			started, ended string
		)
		if err := rows.Scan(&sess.ID, &sess.Source, &started, &ended); err != nil {
			return nil, fmt.Errorf("scan session: %w", err)
		}
		if sess.StartedAt, err = parseTime(started); err != nil {
			return nil, fmt.Errorf("session %s: started_at: %w", sess.ID, err)
		}
		if ended != "" {
			if sess.EndedAt, err = parseTime(ended); err != nil {
				return nil, fmt.Errorf("session %s: ended_at: %w", sess.ID, err)
			}
		}
		sessions = append(sessions, sess)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate sessions: %w", err)
	}
	return sessions, nil
}

var categoryByName = map[string]event.Category{
	event.CategoryKeyboard.String():   event.CategoryKeyboard,
	event.CategoryMouseClick.String(): event.CategoryMouseClick,
	event.CategoryMouseMove.String():  event.CategoryMouseMove,
	event.CategoryScroll.String():     event.CategoryScroll,
}
