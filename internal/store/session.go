package store

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

// ErrSessionNotOpen is returned by EndSession for unknown or already ended sessions.
var ErrSessionNotOpen = errors.New("capture session is not open")

// IDGenerator generates capture session ids.
// Implemented by UUIDv7Generator (production) and FixedGenerator (tests).
type IDGenerator interface {
	Generate() string
}

// UUIDv7Generator generates time-sortable UUIDv7 session ids, so sessions
// list in the order they started.
//
// Thread-safety: UUIDv7Generator is stateless and safe for concurrent use.
type UUIDv7Generator struct{}

// Generate creates a new UUIDv7 and returns it as a hyphenated string.
//
// Panics if UUID generation fails (should never happen in practice).
func (g UUIDv7Generator) Generate() string {
	return uuid.Must(uuid.NewV7()).String()
}

// FixedGenerator returns predetermined ids for testing.
//
// Thread-safety: FixedGenerator is safe for concurrent use via internal mutex.
type FixedGenerator struct {
	mu  sync.Mutex
	ids []string
	idx int
}

// NewFixedGenerator creates a generator that returns ids in order.
func NewFixedGenerator(ids ...string) *FixedGenerator {
	return &FixedGenerator{ids: ids}
}

// Generate returns the next predetermined id.
//
// Panics if all ids have been consumed; the test started more sessions
// than it declared.
func (g *FixedGenerator) Generate() string {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.idx >= len(g.ids) {
		panic("FixedGenerator: all ids exhausted")
	}
	id := g.ids[g.idx]
	g.idx++
	return id
}

// Session is one run of a capture source.
type Session struct {
	ID        string
	Source    string
	StartedAt time.Time

	// EndedAt is zero while the session is open.
	EndedAt time.Time
}

// BeginSession records the start of a capture run from source.
func (s *Store) BeginSession(ctx context.Context, source string) (Session, error) {
	sess := Session{
		ID:        s.ids.Generate(),
		Source:    source,
		StartedAt: s.now().UTC(),
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO capture_sessions (id, source, started_at)
		VALUES (?, ?, ?)
	`, sess.ID, sess.Source, formatTime(sess.StartedAt))
	if err != nil {
		return Session{}, fmt.Errorf("begin session: %w", err)
	}
	return sess, nil
}

// EndSession marks an open session as ended.
func (s *Store) EndSession(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx, `
		UPDATE capture_sessions SET ended_at = ?
		WHERE id = ? AND ended_at IS NULL
	`, formatTime(s.now().UTC()), id)
	if err != nil {
		return fmt.Errorf("end session: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("end session: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("end session %s: %w", id, ErrSessionNotOpen)
	}
	return nil
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(s string) (time.Time, error) {
	return time.Parse(time.RFC3339Nano, s)
}
