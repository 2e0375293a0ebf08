package mode

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSignalStartsCleared(t *testing.T) {
	assert.False(t, New().IsSet())

	var zero Signal
	assert.False(t, zero.IsSet())
}

func TestSetIsIrreversible(t *testing.T) {
	s := New()

	assert.True(t, s.Set(), "first Set performs the transition")
	assert.True(t, s.IsSet())

	assert.False(t, s.Set(), "second Set is a no-op")
	assert.True(t, s.IsSet())
}

func TestConcurrentSetFlipsOnce(t *testing.T) {
	s := New()

	var wg sync.WaitGroup
	var mu sync.Mutex
	transitions := 0

	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if s.Set() {
				mu.Lock()
				transitions++
				mu.Unlock()
			}
			_ = s.IsSet()
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, transitions)
	assert.True(t, s.IsSet())
}
