package store

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUUIDv7Generator_ValidFormat(t *testing.T) {
	id := UUIDv7Generator{}.Generate()

	parsed, err := uuid.Parse(id)
	require.NoError(t, err)
	assert.Equal(t, uuid.Version(7), parsed.Version())
	assert.Len(t, id, 36)
}

func TestUUIDv7Generator_Concurrent(t *testing.T) {
	gen := UUIDv7Generator{}
	const n = 100

	var (
		mu   sync.Mutex
		seen = make(map[string]bool, n)
		wg   sync.WaitGroup
	)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			id := gen.Generate()
			mu.Lock()
			seen[id] = true
			mu.Unlock()
		}()
	}
	wg.Wait()
	assert.Len(t, seen, n)
}

func TestFixedGenerator_Exhausted(t *testing.T) {
	gen := NewFixedGenerator("only")
	assert.Equal(t, "only", gen.Generate())
	assert.Panics(t, func() { gen.Generate() })
}

func TestSessions_Lifecycle(t *testing.T) {
	ctx := context.Background()
	s, clock := createTestStore(t, "session-a", "session-b")

	a, err := s.BeginSession(ctx, "synthetic")
	require.NoError(t, err)
	assert.Equal(t, "session-a", a.ID)
	assert.Equal(t, testStart, a.StartedAt)

	_, err = s.RecordEvent(ctx, a.ID, keyEvent(t, "Terminal", "a"))
	require.NoError(t, err)

	clock.Advance(time.Minute)
	require.NoError(t, s.EndSession(ctx, a.ID))
	assert.True(t, errors.Is(s.EndSession(ctx, a.ID), ErrSessionNotOpen), "already ended")
	assert.True(t, errors.Is(s.EndSession(ctx, "missing"), ErrSessionNotOpen))

	clock.Advance(time.Minute)
	b, err := s.BeginSession(ctx, "native")
	require.NoError(t, err)

	sessions, err := s.Sessions(ctx, 10)
	require.NoError(t, err)
	require.Len(t, sessions, 2)
	assert.Equal(t, b.ID, sessions[0].ID, "most recent first")
	assert.True(t, sessions[0].EndedAt.IsZero())
	assert.Equal(t, "synthetic", sessions[1].Source)
	assert.Equal(t, testStart.Add(time.Minute), sessions[1].EndedAt)

	var linked int
	require.NoError(t, s.db.QueryRow(`SELECT count(*) FROM staged_inputs WHERE session_id = ?`, a.ID).Scan(&linked))
	assert.Equal(t, 1, linked)
}
