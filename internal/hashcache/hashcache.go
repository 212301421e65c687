// Package hashcache implements the deterministic, fixed-capacity "proven
// hash" set shared in lockstep by a Reader session's client and server
// halves (spec §4.3). It is modeled the same way the teacher's bloom
// package treats a fixed-size region as a pure function of its insertion
// sequence (see bloom.InitV1/InsertV1), but a Bloom filter's bit-level,
// probabilistic membership test cannot serve here: the cache gates which
// proof bytes the server is allowed to omit, so a false positive would let
// an unproven hash slip past verification. Each slot therefore holds a
// whole hash, and insertion deterministically evicts the slot's prior
// occupant rather than setting bits.
package hashcache

import (
	"encoding/binary"

	"github.com/datacapsule-io/dcserver/internal/dchash"
)

// DefaultCapacity is the reference table size (spec §4.3, §6).
const DefaultCapacity = 1024

// Cache is a fixed-capacity, direct-mapped set of hashes. Eviction is a
// pure function of the sequence of inserts and the (empty) initial state:
// no randomness, no timing dependence, no address-based hashing — the
// cache is part of the protocol, not an implementation detail, and must be
// bit-identical between a client and its server session.
type Cache struct {
	capacity int
	slots    []dchash.Hash
	occupied []bool
}

// New builds an empty Cache with the given slot capacity.
func New(capacity int) *Cache {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Cache{
		capacity: capacity,
		slots:    make([]dchash.Hash, capacity),
		occupied: make([]bool, capacity),
	}
}

// index maps a hash to its direct-mapped slot via its low bits, matching
// the reference design of spec §4.3.
func (c *Cache) index(h dchash.Hash) int {
	low := binary.LittleEndian.Uint64(h[:8])
	return int(low % uint64(c.capacity))
}

// Insert places h in its slot, evicting any prior occupant.
func (c *Cache) Insert(h dchash.Hash) {
	i := c.index(h)
	c.slots[i] = h
	c.occupied[i] = true
}

// Contains reports whether h currently occupies its slot.
func (c *Cache) Contains(h dchash.Hash) bool {
	i := c.index(h)
	return c.occupied[i] && c.slots[i] == h
}

// Capacity returns the cache's slot count.
func (c *Cache) Capacity() int {
	return c.capacity
}

// Replay reinitializes the cache to empty and re-applies insertions in
// order, the mechanism behind Reader.startCache (spec §4.4.3): a client
// reusing a persisted cache from a prior session hands the server the
// insertion order, and the server rebuilds identical state by replaying
// it rather than trusting a serialized snapshot.
func (c *Cache) Replay(hashes []dchash.Hash) {
	for i := range c.occupied {
		c.occupied[i] = false
	}
	for _, h := range hashes {
		c.Insert(h)
	}
}
