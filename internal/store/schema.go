// Package store persists Datacapsules on an embedded Pebble key-value
// engine (spec §4.6). Keys are namespaced byte strings, following the
// teacher's own path-building convention (tenantblobpaths.go's
// fmt.Sprintf prefix builders) adapted from blob paths to key prefixes;
// values are CBOR-encoded rows, the same encoding the teacher uses for its
// signed MMR state.
package store

import (
	"encoding/binary"
	"fmt"

	"github.com/datacapsule-io/dcserver/internal/dchash"
	"github.com/fxamacker/cbor/v2"
)

const (
	prefixMeta         = "meta"
	prefixLatest       = "latest"
	prefixBindata      = "bindata"
	prefixRecordBlocks = "recordblocks"
	prefixTreeBlocks   = "treeblocks"
	prefixSigBlocks    = "sigblocks"
	prefixSeqBlocks    = "seqblocks"
	prefixChainedBy    = "chainedby" // oldRoot -> newerRoot, see NewerChainedRoot
)

func capsulePrefix(capsule dchash.Hash) string {
	return fmt.Sprintf("capsule/%x/", capsule.Bytes())
}

func metaKey(capsule dchash.Hash) []byte {
	return []byte(capsulePrefix(capsule) + prefixMeta)
}

func latestKey(capsule dchash.Hash) []byte {
	return []byte(capsulePrefix(capsule) + prefixLatest)
}

func bindataKey(capsule, record dchash.Hash) []byte {
	return []byte(fmt.Sprintf("%s%s/%x", capsulePrefix(capsule), prefixBindata, record.Bytes()))
}

func recordBlockKey(capsule, record dchash.Hash) []byte {
	return []byte(fmt.Sprintf("%s%s/%x", capsulePrefix(capsule), prefixRecordBlocks, record.Bytes()))
}

func treeBlockKey(capsule, name dchash.Hash) []byte {
	return []byte(fmt.Sprintf("%s%s/%x", capsulePrefix(capsule), prefixTreeBlocks, name.Bytes()))
}

func sigBlockKey(capsule, root dchash.Hash) []byte {
	return []byte(fmt.Sprintf("%s%s/%x", capsulePrefix(capsule), prefixSigBlocks, root.Bytes()))
}

func seqBlockKey(capsule dchash.Hash, seq uint64) []byte {
	var b [8]byte
	binary.BigEndian.PutUint64(b[:], seq)
	return []byte(fmt.Sprintf("%s%s/%x", capsulePrefix(capsule), prefixSeqBlocks, b[:]))
}

func chainedByKey(capsule, oldRoot dchash.Hash) []byte {
	return []byte(fmt.Sprintf("%s%s/%x", capsulePrefix(capsule), prefixChainedBy, oldRoot.Bytes()))
}

// CapsuleMeta is the capsule_meta row: creator and writer identity.
type CapsuleMeta struct {
	CreatorPub  []byte `cbor:"1,keyasint"`
	CreatorSig  []byte `cbor:"2,keyasint"`
	WriterPub   []byte `cbor:"3,keyasint"`
	Description string `cbor:"4,keyasint"`
}

// LatestRow is the latest table: the commit point of spec §4.6 step 7.
type LatestRow struct {
	Seq      uint64 `cbor:"1,keyasint"`
	RootName []byte `cbor:"2,keyasint"`
}

// RecordBlockRow is the recordblocks table: where a record's leaf sits and
// which sequence number first produced it.
type RecordBlockRow struct {
	Parent []byte `cbor:"1,keyasint"`
	Seq    uint64 `cbor:"2,keyasint"`
}

// TreeBlockRow is the treeblocks table. Parent is set at commit time for
// every non-root block; for a root block it is nil until a later commit
// chains this root in as its previous-root leaf.
type TreeBlockRow struct {
	Parent       []byte   `cbor:"1,keyasint,omitempty"`
	IsSignedRoot bool     `cbor:"2,keyasint"`
	Children     [][]byte `cbor:"3,keyasint"`
}

// SigBlockRow is the sigblocks table: the writer-key signature over a
// committed root. Its presence is the commit point's durability marker
// (spec §4.6's crash-recovery rule: missing sigblocks ⇒ discard).
type SigBlockRow struct {
	Sig []byte `cbor:"1,keyasint"`
}

func encode(v any) ([]byte, error) {
	return cbor.Marshal(v)
}

func decode(data []byte, v any) error {
	return cbor.Unmarshal(data, v)
}
