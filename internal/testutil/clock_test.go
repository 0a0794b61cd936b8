package testutil

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestWallClock_ReadsInitialTime(t *testing.T) {
	start := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	clock := NewWallClock(start)
	assert.True(t, clock.Now().Equal(start))
}

func TestWallClock_AdvanceAndSet(t *testing.T) {
	start := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	clock := NewWallClock(start)

	clock.Advance(1500 * time.Microsecond)
	assert.Equal(t, 1500*time.Microsecond, clock.Now().Sub(start))

	clock.Advance(-time.Second)
	assert.True(t, clock.Now().Before(start))

	clock.Set(start)
	assert.True(t, clock.Now().Equal(start))
}

func TestWallClock_ConcurrentAdvance(t *testing.T) {
	start := time.Unix(0, 0)
	clock := NewWallClock(start)

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			clock.Advance(time.Millisecond)
		}()
	}
	wg.Wait()

	assert.Equal(t, 50*time.Millisecond, clock.Now().Sub(start))
}

func TestCString_IsTerminated(t *testing.T) {
	p := CString("ab")
	b := (*[3]byte)(p)
	assert.Equal(t, [3]byte{'a', 'b', 0}, *b)
}
