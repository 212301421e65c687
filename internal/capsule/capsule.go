// Package capsule holds the in-memory per-Datacapsule state (spec §4.5):
// immutable identity fields read once at creation, and the mutable commit
// point plus writer coordination flag that every connection for that
// capsule shares. It is reconstructed from the storage layer at startup,
// the way the teacher's massifcontext.go reconstructs massif state from
// persisted blobs rather than trusting an in-memory cache across restarts.
package capsule

import (
	"sync"

	"github.com/datacapsule-io/dcserver/internal/dchash"
	"github.com/datacapsule-io/dcserver/internal/notify"
)

// Identity is the immutable portion of a capsule's state, fixed at
// creation (spec §4.4.1, §4.5).
type Identity struct {
	Capsule     dchash.Hash
	CreatorPub  []byte
	CreatorSig  []byte
	WriterPub   []byte
	Description string
}

// Capsule is the live, in-memory state for one Datacapsule: its identity,
// its commit point, and the single-writer coordination flag.
//
// committed is the number of records durably committed so far — spec
// §4.4.2/§4.7's externally visible latest_seq — which is *not* the same
// number as the 0-based index of the most recently committed record: a
// capsule with one committed record (index 0) has committed == 1. Keeping
// these distinct is what lets committed == 0 mean "nothing committed yet"
// unambiguously, instead of colliding with record index 0.
type Capsule struct {
	Identity

	mu           sync.Mutex
	committed    uint64
	latestRoot   dchash.Hash
	latestSigned dchash.Signature
	writerHeld   bool

	Notify *notify.Hub
}

// New constructs a Capsule's in-memory state from its identity and its
// last-known commit point, as reconstructed from storage at startup or
// right after CreateCapsule. committed is the number of records already
// committed (0 if none); latestRoot/latestSigned are meaningless when
// committed is 0.
func New(id Identity, committed uint64, latestRoot dchash.Hash, latestSigned dchash.Signature) *Capsule {
	return &Capsule{
		Identity:     id,
		committed:    committed,
		latestRoot:   latestRoot,
		latestSigned: latestSigned,
		Notify:       notify.New(committed),
	}
}

// Latest returns the capsule's current commit count (get_last_num's
// latest_seq) plus the most recent commit's root and signature.
func (c *Capsule) Latest() (committed uint64, root dchash.Hash, signed dchash.Signature) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.committed, c.latestRoot, c.latestSigned
}

// Advance records a new commit point: committed is the new total number of
// durably committed records (the last committed record's 0-based index,
// plus one). Callers must already hold the writer lock (AcquireWriter)
// when calling this from a commit operation; it is also used to seed
// state at startup.
func (c *Capsule) Advance(committed uint64, root dchash.Hash, signed dchash.Signature) {
	c.mu.Lock()
	c.committed = committed
	c.latestRoot = root
	c.latestSigned = signed
	c.mu.Unlock()
	c.Notify.Advance(committed)
}

// AcquireWriter enforces spec §5's "at most one Writer session has staged
// records" rule. It returns false if another Writer session already holds
// the flag.
func (c *Capsule) AcquireWriter() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.writerHeld {
		return false
	}
	c.writerHeld = true
	return true
}

// ReleaseWriter clears the writer coordination flag, on commit, on
// connection drop, or on any failure that discards the uncommitted batch
// (spec §4.4.2).
func (c *Capsule) ReleaseWriter() {
	c.mu.Lock()
	c.writerHeld = false
	c.mu.Unlock()
}
