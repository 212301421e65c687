package protocol

import (
	"github.com/datacapsule-io/dcserver/internal/capsule"
	"github.com/datacapsule-io/dcserver/internal/dchash"
	"github.com/datacapsule-io/dcserver/internal/merkle"
	"github.com/datacapsule-io/dcserver/internal/store"
)

// WriterSession is the per-connection state machine for the Writer role
// (spec §4.4.2): an ordered list of uncommitted record hashes plus their
// staged bytes, held entirely in memory until a successful commit.
type WriterSession struct {
	d       *Dispatcher
	capsule *capsule.Capsule

	pending []store.PendingRecord
}

// OpenWriter begins a Writer session against capsule name, acquiring the
// per-Datacapsule exclusive writer lock (spec §5). Returns ErrCapsuleBusy
// if another Writer session already holds it.
func (d *Dispatcher) OpenWriter(name dchash.Hash) (*WriterSession, error) {
	c, err := d.loadOrGetCapsule(name)
	if err != nil {
		return nil, err
	}
	if !c.AcquireWriter() {
		return nil, ErrCapsuleBusy
	}
	return &WriterSession{d: d, capsule: c}, nil
}

// Close releases the writer lock and discards any uncommitted batch,
// whether called after a successful Commit, a failed one, or on
// connection drop (spec §4.4.2, §5's cancellation rule).
func (w *WriterSession) Close() {
	w.pending = nil
	w.capsule.ReleaseWriter()
}

// Write implements write(encrypted_record_bytes, seq): stage the bytes and
// validate the advisory sequence number against latest_seq + |U| (spec
// §4.4.2), where latest_seq is the capsule's committed-record count, not
// the 0-based index of its most recently committed record — so the first
// write of the capsule's second and later commits correctly continues
// from the next unused record index instead of repeating 0.
func (w *WriterSession) Write(req WriteRequest) error {
	committed, _, _ := w.capsule.Latest()
	expected := committed + uint64(len(w.pending))
	if req.Seq != expected {
		return ErrSeqMismatch
	}
	h := dchash.H(req.EncryptedBytes)
	w.pending = append(w.pending, store.PendingRecord{Hash: h, Bytes: req.EncryptedBytes, Seq: req.Seq})
	return nil
}

// Commit implements commit(client_root_hash, client_signed_root): build
// the Merkle tree over the staged batch, verify it against the client's
// claim, persist it, advance the capsule's commit point, wake subscribers,
// and return the server's own corroborating signature. Any failure
// discards the uncommitted batch (spec §4.4.2).
func (w *WriterSession) Commit(req CommitRequest) (CommitResponse, error) {
	defer func() { w.pending = nil }()

	if len(w.pending) == 0 {
		return CommitResponse{OK: false}, nil
	}

	leaves := make([]dchash.Hash, len(w.pending))
	for i, r := range w.pending {
		leaves[i] = r.Hash
	}

	var extra, chained *dchash.Hash
	if req.IncludePrevRoot {
		_, prevRoot, _ := w.capsule.Latest()
		if !prevRoot.IsNull() {
			extra = &prevRoot
			chained = &prevRoot
		}
	}

	tree, err := merkle.Build(leaves, w.d.Config.MerkleFanout, extra)
	if err != nil {
		return CommitResponse{OK: false}, nil
	}
	root := tree.Root()
	if root != req.ClientRoot {
		return CommitResponse{OK: false}, nil
	}

	writerPub, err := dchash.ParsePublicKey(w.capsule.WriterPub)
	if err != nil {
		return CommitResponse{OK: false}, nil
	}
	if !dchash.Verify(writerPub, root, req.ClientSignedRoot) {
		return CommitResponse{OK: false}, nil
	}

	if err := w.d.Store.Commit(w.capsule.Capsule, w.pending, tree, req.ClientSignedRoot, chained); err != nil {
		return CommitResponse{}, err
	}

	lastSeq := w.pending[len(w.pending)-1].Seq
	w.capsule.Advance(lastSeq+1, root, req.ClientSignedRoot)

	serverSig, err := w.d.ServerSigner.Sign(root)
	if err != nil {
		return CommitResponse{}, err
	}
	return CommitResponse{OK: true, ServerSignedRoot: serverSig}, nil
}
