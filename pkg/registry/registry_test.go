package registry

import (
	"fmt"
	"math/rand"
	"slices"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInsertKeepsSortedOrder(t *testing.T) {
	reg := NewRegistry()

	require.NoError(t, reg.Insert("b1"))
	require.NoError(t, reg.Insert("a1"))
	require.NoError(t, reg.Insert("QF9"))
	require.NoError(t, reg.Insert(""))

	// Byte-wise order: "" < "QF9" (uppercase) < "a1" < "b1".
	assert.Equal(t, []string{"", "QF9", "a1", "b1"}, reg.Snapshot())
}

func TestInsertKeepsDuplicates(t *testing.T) {
	reg := NewRegistry()

	for _, id := range []string{"VH1", "VH1", "AA2", "VH1"} {
		require.NoError(t, reg.Insert(id))
	}

	assert.Equal(t, []string{"AA2", "VH1", "VH1", "VH1"}, reg.Snapshot())
	assert.Equal(t, 4, reg.Len())
}

func TestGrowthIncrement(t *testing.T) {
	tests := []struct {
		name      string
		cfg       Config
		inserts   int
		wantCap   int
		wantCount int
	}{
		{
			name:      "defaults stay at initial capacity",
			cfg:       Config{},
			inserts:   10,
			wantCap:   10,
			wantCount: 10,
		},
		{
			name:      "defaults grow by ten",
			cfg:       Config{},
			inserts:   11,
			wantCap:   20,
			wantCount: 11,
		},
		{
			name:      "defaults grow twice",
			cfg:       Config{},
			inserts:   21,
			wantCap:   30,
			wantCount: 21,
		},
		{
			name:      "custom sizing",
			cfg:       Config{InitialCapacity: 2, GrowthIncrement: 3},
			inserts:   6,
			wantCap:   8,
			wantCount: 6,
		},
		{
			name:      "growth clamped to max entries",
			cfg:       Config{InitialCapacity: 10, GrowthIncrement: 10, MaxEntries: 15},
			inserts:   15,
			wantCap:   15,
			wantCount: 15,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			reg := New(tt.cfg)
			for i := 0; i < tt.inserts; i++ {
				require.NoError(t, reg.Insert(fmt.Sprintf("P%03d", i)))
			}
			assert.Equal(t, tt.wantCap, reg.Cap())
			assert.Equal(t, tt.wantCount, reg.Len())
		})
	}
}

func TestCapacityExhausted(t *testing.T) {
	reg := New(Config{MaxEntries: 3})

	for _, id := range []string{"c", "a", "b"} {
		require.NoError(t, reg.Insert(id))
	}

	err := reg.Insert("d")
	require.ErrorIs(t, err, ErrCapacityExhausted)

	// The failed insert is dropped and the registry remains usable.
	assert.Equal(t, []string{"a", "b", "c"}, reg.Snapshot())
	assert.ErrorIs(t, reg.Insert("e"), ErrCapacityExhausted)
}

func TestSnapshotIsACopy(t *testing.T) {
	reg := NewRegistry()
	require.NoError(t, reg.Insert("a1"))

	snap := reg.Snapshot()
	snap[0] = "mutated"

	assert.Equal(t, []string{"a1"}, reg.Snapshot())
}

func TestSnapshotIdempotent(t *testing.T) {
	reg := NewRegistry()
	for _, id := range []string{"z", "m", "a"} {
		require.NoError(t, reg.Insert(id))
	}

	assert.Equal(t, reg.Snapshot(), reg.Snapshot())
}

func TestEmptySnapshot(t *testing.T) {
	assert.Empty(t, NewRegistry().Snapshot())
}

// TestConcurrentInsertAndSnapshot runs writers and readers together. Run
// with -race to check the locking discipline.
func TestConcurrentInsertAndSnapshot(t *testing.T) {
	reg := NewRegistry()

	const writers = 16
	const perWriter = 50

	var want []string
	for w := 0; w < writers; w++ {
		for i := 0; i < perWriter; i++ {
			want = append(want, fmt.Sprintf("W%02d-%03d", w, i))
		}
	}
	shuffled := slices.Clone(want)
	rand.Shuffle(len(shuffled), func(i, j int) { shuffled[i], shuffled[j] = shuffled[j], shuffled[i] })

	var wg sync.WaitGroup
	for w := 0; w < writers; w++ {
		wg.Add(1)
		go func(chunk []string) {
			defer wg.Done()
			for _, id := range chunk {
				assert.NoError(t, reg.Insert(id))
			}
		}(shuffled[w*perWriter : (w+1)*perWriter])
	}

	stop := make(chan struct{})
	var readers sync.WaitGroup
	for r := 0; r < 4; r++ {
		readers.Add(1)
		go func() {
			defer readers.Done()
			for {
				select {
				case <-stop:
					return
				default:
				}
				snap := reg.Snapshot()
				assert.True(t, slices.IsSorted(snap), "snapshot observed unsorted state")
			}
		}()
	}

	wg.Wait()
	close(stop)
	readers.Wait()

	slices.Sort(want)
	assert.Equal(t, want, reg.Snapshot())
}
