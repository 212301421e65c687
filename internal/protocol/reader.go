package protocol

import (
	"github.com/datacapsule-io/dcserver/internal/capsule"
	"github.com/datacapsule-io/dcserver/internal/dchash"
	"github.com/datacapsule-io/dcserver/internal/merkle"
)

// ReaderSession is the per-connection state machine for the Reader role
// (spec §4.4.3): a session-scoped hash cache and last-proven-block, never
// shared with other connections.
type ReaderSession struct {
	d         *Dispatcher
	capsule   *capsule.Capsule
	session   *merkle.Session
	assembler *merkle.Assembler
}

// OpenReader begins a Reader session against capsule name.
func (d *Dispatcher) OpenReader(name dchash.Hash) (*ReaderSession, error) {
	c, err := d.loadOrGetCapsule(name)
	if err != nil {
		return nil, err
	}
	view := d.Store.View(name)
	assembler := merkle.NewAssembler(merkle.Config{SigAvoidMaxExtraHashes: d.Config.SigAvoidMaxExtraHashes}, view)
	return &ReaderSession{
		d:         d,
		capsule:   c,
		session:   merkle.NewSession(d.Config.MerkleFanout, d.Config.HashCacheCapacity),
		assembler: assembler,
	}, nil
}

// Read implements read(hash).
func (r *ReaderSession) Read(hash dchash.Hash) ([]byte, bool, error) {
	return r.d.Store.ReadRecord(r.capsule.Capsule, hash)
}

// StartCache implements the optional startCache(hashes[]): replays a
// client-held prior cache's insertion sequence into this session's cache
// (spec §4.4.3). The replay is not logged.
func (r *ReaderSession) StartCache(hashes []dchash.Hash) {
	r.session.Cache.Replay(hashes)
}

// ProveStream is the ordered element list of one prove(hash) proof, in
// wire order: an optional SignedHash, then zero or more HashBlocks.
type ProveStream struct {
	Root   *merkle.SignedHash
	Blocks []merkle.HashBlock
}

// Prove implements prove(hash): assembles the proof stream and advances
// this session's cache state in lockstep with what the client will do
// when it processes the same stream, mirroring spec §4.2's server-side
// verification used for testing.
func (r *ReaderSession) Prove(hash dchash.Hash) (ProveStream, bool, error) {
	proof, err := r.assembler.Assemble(r.session, hash)
	if err != nil {
		return ProveStream{}, false, err
	}

	validate := func(h dchash.Hash, sig dchash.Signature) bool {
		writerPub, err := dchash.ParsePublicKey(r.capsule.WriterPub)
		if err != nil {
			return false
		}
		return dchash.Verify(writerPub, h, sig)
	}

	ok, err := merkle.Verify(r.session, validate, hash, proof)
	if err != nil {
		return ProveStream{}, false, err
	}
	return ProveStream{Root: proof.Root, Blocks: proof.Blocks}, ok, nil
}
