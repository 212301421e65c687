package store

import (
	"fmt"

	"github.com/cockroachdb/pebble"
	"github.com/datacapsule-io/dcserver/internal/dchash"
	"github.com/datacapsule-io/dcserver/internal/merkle"
)

// Store is the embedded persistence layer for every Datacapsule this
// server hosts (spec §4.6, table C4). It is backed by a single Pebble
// database, the storage engine the teacher's own stack reaches for when it
// needs an embedded, crash-consistent LSM KV store rather than the
// teacher's remote Azure blob backend, which is explicitly out of scope
// here.
type Store struct {
	db *pebble.DB
}

// Open opens (creating if absent) a Pebble database rooted at dir.
func Open(dir string) (*Store, error) {
	db, err := pebble.Open(dir, &pebble.Options{})
	if err != nil {
		return nil, fmt.Errorf("store: open %s: %w", dir, err)
	}
	return &Store{db: db}, nil
}

// Close releases the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// CreateCapsule persists a new Datacapsule's identity row. It refuses to
// overwrite an existing capsule (spec invariant: a Datacapsule name is
// bound once, at creation).
func (s *Store) CreateCapsule(capsule dchash.Hash, meta CapsuleMeta) error {
	key := metaKey(capsule)
	if _, closer, err := s.db.Get(key); err == nil {
		closer.Close()
		return ErrCapsuleExists
	} else if err != pebble.ErrNotFound {
		return err
	}

	val, err := encode(meta)
	if err != nil {
		return err
	}
	return s.db.Set(key, val, pebble.Sync)
}

// Meta returns a capsule's identity row.
func (s *Store) Meta(capsule dchash.Hash) (CapsuleMeta, bool, error) {
	var meta CapsuleMeta
	val, closer, err := s.db.Get(metaKey(capsule))
	if err == pebble.ErrNotFound {
		return meta, false, nil
	}
	if err != nil {
		return meta, false, err
	}
	defer closer.Close()
	if err := decode(val, &meta); err != nil {
		return meta, false, err
	}
	return meta, true, nil
}

// Latest returns a capsule's commit point: the highest committed sequence
// number and its root HashBlock name.
func (s *Store) Latest(capsule dchash.Hash) (seq uint64, root dchash.Hash, found bool, err error) {
	val, closer, err := s.db.Get(latestKey(capsule))
	if err == pebble.ErrNotFound {
		return 0, dchash.NullHash, false, nil
	}
	if err != nil {
		return 0, dchash.NullHash, false, err
	}
	defer closer.Close()
	var row LatestRow
	if err := decode(val, &row); err != nil {
		return 0, dchash.NullHash, false, err
	}
	rootHash, err := dchash.HashFromBytes(row.RootName)
	if err != nil {
		return 0, dchash.NullHash, false, err
	}
	return row.Seq, rootHash, true, nil
}

// ReadRecord returns a record's stored ciphertext by content hash.
func (s *Store) ReadRecord(capsule, record dchash.Hash) ([]byte, bool, error) {
	val, closer, err := s.db.Get(bindataKey(capsule, record))
	if err == pebble.ErrNotFound {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	defer closer.Close()
	out := make([]byte, len(val))
	copy(out, val)
	return out, true, nil
}

// NameFromNum resolves a committed sequence number to its record hash.
func (s *Store) NameFromNum(capsule dchash.Hash, seq uint64) (dchash.Hash, bool, error) {
	val, closer, err := s.db.Get(seqBlockKey(capsule, seq))
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

// NumFromName resolves a record hash to the sequence number that first
// produced it. A record that was written more than once in a single
// commit (spec §8 scenario S6) resolves to the lowest such sequence
// number; reads and inclusion proofs are unaffected, since both operate
// on the record hash rather than on a specific occurrence.
func (s *Store) NumFromName(capsule, record dchash.Hash) (uint64, bool, error) {
	val, closer, err := s.db.Get(recordBlockKey(capsule, record))
	if err == pebble.ErrNotFound {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, err
	}
	defer closer.Close()
	var row RecordBlockRow
	if err := decode(val, &row); err != nil {
		return 0, false, err
	}
	return row.Seq, true, nil
}

// PendingRecord is one record in a commit batch, ordered as it was built
// into the batch's leaves by merkle.Build.
type PendingRecord struct {
	Hash  dchash.Hash
	Bytes []byte
	Seq   uint64
}

// Commit persists one writer commit atomically: new record bytes, the
// commit's interior HashBlocks, its root signature, and the sequence
// index, then advances the capsule's commit point. It applies spec
// §4.6's durability ordering within a single Pebble batch so a crash
// either persists the whole commit or none of it; chained is the prior
// root this commit extended as its last leaf, if any, and is used to
// patch that root's treeblocks row with its new parent.
func (s *Store) Commit(capsule dchash.Hash, records []PendingRecord, tree *merkle.Tree, sig dchash.Signature, chained *dchash.Hash) error {
	batch := s.db.NewIndexedBatch()
	defer batch.Close()

	fanout := tree.Fanout
	for i, r := range records {
		if err := batch.Set(bindataKey(capsule, r.Hash), r.Bytes, nil); err != nil {
			return err
		}
		if err := batch.Set(seqBlockKey(capsule, r.Seq), r.Hash.Bytes(), nil); err != nil {
			return err
		}

		blockIdx := i / fanout
		parent := tree.Levels[0][blockIdx].Name()
		if err := setRecordBlockIfAbsent(batch, capsule, r.Hash, parent, r.Seq); err != nil {
			return err
		}
	}

	for level := 0; level < len(tree.Levels); level++ {
		blocks := tree.Levels[level]
		isTopLevel := level == len(tree.Levels)-1
		for i, b := range blocks {
			row := TreeBlockRow{
				IsSignedRoot: isTopLevel,
				Children:     hashesToBytes(b.Children),
			}
			if !isTopLevel {
				parentIdx := i / fanout
				row.Parent = tree.Levels[level+1][parentIdx].Name().Bytes()
			}
			val, err := encode(row)
			if err != nil {
				return err
			}
			if err := batch.Set(treeBlockKey(capsule, b.Name()), val, nil); err != nil {
				return err
			}
		}
	}

	root := tree.Root()

	if chained != nil {
		if err := patchParent(batch, capsule, *chained, root); err != nil {
			return err
		}
		if err := batch.Set(chainedByKey(capsule, *chained), root.Bytes(), nil); err != nil {
			return err
		}
	}

	sigVal, err := encode(SigBlockRow{Sig: sig})
	if err != nil {
		return err
	}
	if err := batch.Set(sigBlockKey(capsule, root), sigVal, nil); err != nil {
		return err
	}

	lastSeq := records[len(records)-1].Seq
	latestVal, err := encode(LatestRow{Seq: lastSeq, RootName: root.Bytes()})
	if err != nil {
		return err
	}
	if err := batch.Set(latestKey(capsule), latestVal, nil); err != nil {
		return err
	}

	return batch.Commit(pebble.Sync)
}

// setRecordBlockIfAbsent keeps the first-seen (parent, seq) pairing for a
// duplicated record hash within a commit, reading through the indexed
// batch so later duplicates in the same Commit call see earlier ones.
func setRecordBlockIfAbsent(batch *pebble.Batch, capsule, record, parent dchash.Hash, seq uint64) error {
	key := recordBlockKey(capsule, record)
	if _, closer, err := batch.Get(key); err == nil {
		closer.Close()
		return nil
	} else if err != pebble.ErrNotFound {
		return err
	}
	val, err := encode(RecordBlockRow{Parent: parent.Bytes(), Seq: seq})
	if err != nil {
		return err
	}
	return batch.Set(key, val, nil)
}

func patchParent(batch *pebble.Batch, capsule, blockName, parent dchash.Hash) error {
	key := treeBlockKey(capsule, blockName)
	val, closer, err := batch.Get(key)
	if err != nil {
		return err
	}
	var row TreeBlockRow
	decodeErr := decode(val, &row)
	closer.Close()
	if decodeErr != nil {
		return decodeErr
	}
	row.Parent = parent.Bytes()
	newVal, err := encode(row)
	if err != nil {
		return err
	}
	return batch.Set(key, newVal, nil)
}

func hashesToBytes(hs []dchash.Hash) [][]byte {
	out := make([][]byte, len(hs))
	for i, h := range hs {
		out[i] = h.Bytes()
	}
	return out
}
