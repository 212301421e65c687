package capsule

import (
	"sync"
	"sync/atomic"
	"testing"

	"github.com/datacapsule-io/dcserver/internal/dchash"
	"github.com/stretchr/testify/require"
)

func TestAcquireWriterIsExclusive(t *testing.T) {
	c := New(Identity{Capsule: dchash.H([]byte("cap"))}, 0, dchash.NullHash, nil)

	require.True(t, c.AcquireWriter())
	require.False(t, c.AcquireWriter())

	c.ReleaseWriter()
	require.True(t, c.AcquireWriter())
}

func TestAdvanceUpdatesLatestAndWakesNotify(t *testing.T) {
	c := New(Identity{Capsule: dchash.H([]byte("cap"))}, 0, dchash.NullHash, nil)
	root := dchash.H([]byte("root"))

	c.Advance(1, root, dchash.Signature("sig"))

	committed, gotRoot, signed := c.Latest()
	require.Equal(t, uint64(1), committed)
	require.Equal(t, root, gotRoot)
	require.Equal(t, dchash.Signature("sig"), signed)
	require.Equal(t, uint64(1), c.Notify.Latest())
}

func TestRegistryGetPut(t *testing.T) {
	r := NewRegistry()
	name := dchash.H([]byte("cap"))

	_, ok := r.Get(name)
	require.False(t, ok)

	c := New(Identity{Capsule: name}, 0, dchash.NullHash, nil)
	r.Put(c)

	got, ok := r.Get(name)
	require.True(t, ok)
	require.Same(t, c, got)
}

func TestRegistryGetOrCreateBuildsOnlyOnce(t *testing.T) {
	r := NewRegistry()
	name := dchash.H([]byte("cap"))

	var builds int32
	build := func() (*Capsule, error) {
		atomic.AddInt32(&builds, 1)
		return New(Identity{Capsule: name}, 0, dchash.NullHash, nil), nil
	}

	const racers = 32
	results := make([]*Capsule, racers)
	var wg sync.WaitGroup
	wg.Add(racers)
	for i := 0; i < racers; i++ {
		go func(i int) {
			defer wg.Done()
			c, err := r.GetOrCreate(name, build)
			require.NoError(t, err)
			results[i] = c
		}(i)
	}
	wg.Wait()

	require.Equal(t, int32(1), atomic.LoadInt32(&builds))
	for _, c := range results {
		require.Same(t, results[0], c)
	}
}
