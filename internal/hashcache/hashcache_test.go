package hashcache

import (
	"testing"

	"github.com/datacapsule-io/dcserver/internal/dchash"
	"github.com/stretchr/testify/require"
)

func TestInsertContains(t *testing.T) {
	c := New(DefaultCapacity)
	h := dchash.H([]byte("hello"))

	require.False(t, c.Contains(h))
	c.Insert(h)
	require.True(t, c.Contains(h))
}

func TestEvictionIsDeterministic(t *testing.T) {
	// Two caches fed the same insert sequence from the same initial state
	// must agree at every step — this is the client/server parity
	// contract (spec §4.3, §8 property 5).
	inserts := make([]dchash.Hash, 50)
	for i := range inserts {
		inserts[i] = dchash.H([]byte{byte(i)})
	}

	a := New(16)
	b := New(16)
	for _, h := range inserts {
		a.Insert(h)
		b.Insert(h)
		require.Equal(t, a.Contains(h), b.Contains(h))
	}
}

func TestReplayReproducesState(t *testing.T) {
	seq := []dchash.Hash{
		dchash.H([]byte("a")),
		dchash.H([]byte("b")),
		dchash.H([]byte("c")),
	}

	original := New(8)
	for _, h := range seq {
		original.Insert(h)
	}

	replayed := New(8)
	replayed.Replay(seq)

	for _, h := range seq {
		require.Equal(t, original.Contains(h), replayed.Contains(h))
	}
}

func TestCapacityEvictsPriorOccupant(t *testing.T) {
	c := New(1)
	h1 := dchash.H([]byte("x"))
	h2 := dchash.H([]byte("y"))

	c.Insert(h1)
	require.True(t, c.Contains(h1))
	c.Insert(h2)
	require.False(t, c.Contains(h1))
	require.True(t, c.Contains(h2))
}
