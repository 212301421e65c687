package store

import (
	"github.com/cockroachdb/pebble"
	"github.com/datacapsule-io/dcserver/internal/dchash"
	"github.com/datacapsule-io/dcserver/internal/merkle"
)

// CapsuleView adapts a Store, scoped to one capsule, to merkle.ChainLookup.
// merkle never imports store directly; this is the one place the two
// packages meet.
type CapsuleView struct {
	store   *Store
	capsule dchash.Hash
}

// View returns a ChainLookup scoped to capsule.
func (s *Store) View(capsule dchash.Hash) CapsuleView {
	return CapsuleView{store: s, capsule: capsule}
}

var _ merkle.ChainLookup = CapsuleView{}

func (v CapsuleView) Block(name dchash.Hash) (merkle.HashBlock, bool, error) {
	val, closer, err := v.store.db.Get(treeBlockKey(v.capsule, name))
	if err == pebble.ErrNotFound {
		return merkle.HashBlock{}, false, nil
	}
	if err != nil {
		return merkle.HashBlock{}, false, err
	}
	defer closer.Close()

	var row TreeBlockRow
	if err := decode(val, &row); err != nil {
		return merkle.HashBlock{}, false, err
	}
	children, err := bytesToHashes(row.Children)
	if err != nil {
		return merkle.HashBlock{}, false, err
	}
	return merkle.HashBlock{Children: children}, true, nil
}

func (v CapsuleView) ParentOfRecord(record dchash.Hash) (dchash.Hash, bool, error) {
	val, closer, err := v.store.db.Get(recordBlockKey(v.capsule, record))
	if err == pebble.ErrNotFound {
		return dchash.NullHash, false, nil
	}
	if err != nil {
		return dchash.NullHash, false, err
	}
	defer closer.Close()

	var row RecordBlockRow
	if err := decode(val, &row); err != nil {
		return dchash.NullHash, false, err
	}
	parent, err := dchash.HashFromBytes(row.Parent)
	if err != nil {
		return dchash.NullHash, false, err
	}
	return parent, true, nil
}

// ParentOfBlock resolves name's parent within its own commit's tree. A
// root block (IsSignedRoot) reports isRoot=true and stops the climb here:
// its Parent field (if set) records a later chaining, not a tree parent,
// and is consulted separately through NewerChainedRoot.
func (v CapsuleView) ParentOfBlock(name dchash.Hash) (parent dchash.Hash, isRoot bool, found bool, err error) {
	val, closer, getErr := v.store.db.Get(treeBlockKey(v.capsule, name))
	if getErr == pebble.ErrNotFound {
		return dchash.NullHash, false, false, nil
	}
	if getErr != nil {
		return dchash.NullHash, false, false, getErr
	}
	defer closer.Close()

	var row TreeBlockRow
	if decErr := decode(val, &row); decErr != nil {
		return dchash.NullHash, false, false, decErr
	}
	if row.IsSignedRoot {
		return dchash.NullHash, true, false, nil
	}
	parentHash, convErr := dchash.HashFromBytes(row.Parent)
	if convErr != nil {
		return dchash.NullHash, false, false, convErr
	}
	return parentHash, false, true, nil
}

func (v CapsuleView) RootSignature(root dchash.Hash) (dchash.Signature, bool, error) {
	val, closer, err := v.store.db.Get(sigBlockKey(v.capsule, root))
	if err == pebble.ErrNotFound {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	defer closer.Close()

	var row SigBlockRow
	if err := decode(val, &row); err != nil {
		return nil, false, err
	}
	return dchash.Signature(row.Sig), true, nil
}

func (v CapsuleView) NewerChainedRoot(oldRoot dchash.Hash) (dchash.Hash, bool, error) {
	val, closer, err := v.store.db.Get(chainedByKey(v.capsule, oldRoot))
	if err == pebble.ErrNotFound {
		return dchash.NullHash, false, nil
	}
	if err != nil {
		return dchash.NullHash, false, err
	}
	defer closer.Close()

	h, err := dchash.HashFromBytes(val)
	if err != nil {
		return dchash.NullHash, false, err
	}
	return h, true, nil
}

func bytesToHashes(bs [][]byte) ([]dchash.Hash, error) {
	out := make([]dchash.Hash, len(bs))
	for i, b := range bs {
		h, err := dchash.HashFromBytes(b)
		if err != nil {
			return nil, err
		}
		out[i] = h
	}
	return out, nil
}
