package merkle

import (
	"github.com/datacapsule-io/dcserver/internal/dchash"
	"github.com/datacapsule-io/dcserver/internal/hashcache"
)

// SignedHash pairs a hash with a signature over it.
type SignedHash struct {
	Hash dchash.Hash
	Sig  dchash.Signature
}

// Proof is the ordered proof stream of spec §4.2: an optional SignedHash
// naming a committed root, followed by zero or more HashBlocks ordered
// top-down from that root to the target.
type Proof struct {
	Root   *SignedHash
	Blocks []HashBlock
}

// Session holds the per-connection state a Reader's client and server
// halves must keep bit-identical (spec §4.3): the hash cache, the last
// proven HashBlock, and the last accepted signed root.
type Session struct {
	Cache           *hashcache.Cache
	LastProvenBlock HashBlock
	LastSignedRoot  dchash.Hash
}

// NewSession creates a Session with the cache empty, LastProvenBlock the
// all-Null-children block, and LastSignedRoot the Null Hash — the required
// initial state for both client and server.
func NewSession(fanout, cacheCapacity int) *Session {
	return &Session{
		Cache:           hashcache.New(cacheCapacity),
		LastProvenBlock: nullBlock(fanout),
		LastSignedRoot:  dchash.NullHash,
	}
}

// anchored reports whether h is already justified: present in the cache or
// a child of the session's last proven block, or equal to the session's
// last signed root.
func (s *Session) anchored(h dchash.Hash) bool {
	return h == s.LastSignedRoot || s.LastProvenBlock.Contains(h) || s.Cache.Contains(h)
}

// acceptRoot applies a newly accepted SignedHash, moving the previous
// last-signed-root into the cache (spec §4.3).
func (s *Session) acceptRoot(sr SignedHash) {
	s.Cache.Insert(s.LastSignedRoot)
	s.LastSignedRoot = sr.Hash
}

// acceptBlock applies a newly accepted HashBlock, moving the previous
// last-proven-block's name into the cache (spec §4.3).
func (s *Session) acceptBlock(b HashBlock) {
	s.Cache.Insert(s.LastProvenBlock.Name())
	s.LastProvenBlock = b
}

// Verifier checks a commit root's signature under a Datacapsule's writer
// key. Both the client's prove-result verification and the server's own
// test mirroring share this contract.
type Verifier func(h dchash.Hash, sig dchash.Signature) bool

// Verify processes proof against target, mutating session exactly as the
// server-side session would, and reports whether the proof establishes
// target's inclusion (spec §4.2 "Verification").
func Verify(session *Session, verify Verifier, target dchash.Hash, proof Proof) (bool, error) {
	if proof.Root != nil {
		if !verify(proof.Root.Hash, proof.Root.Sig) {
			return false, nil
		}
		session.acceptRoot(*proof.Root)
	}

	for i, blk := range proof.Blocks {
		name := blk.Name()
		known := session.Cache.Contains(name) || session.LastProvenBlock.Contains(name)
		if i == 0 && proof.Root != nil {
			known = known || name == proof.Root.Hash
		}
		if !known {
			return false, ErrBlockNotAnchored
		}
		session.acceptBlock(blk)
	}

	if target == session.LastProvenBlock.Name() || session.LastProvenBlock.Contains(target) || session.Cache.Contains(target) {
		return true, nil
	}
	return false, nil
}
