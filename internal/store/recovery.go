package store

import (
	"encoding/hex"
	"strings"

	"github.com/cockroachdb/pebble"
	"github.com/datacapsule-io/dcserver/internal/dchash"
)

// ListCapsules returns every Datacapsule identifier with a persisted
// identity row, by scanning the meta-key prefix.
func (s *Store) ListCapsules() ([]dchash.Hash, error) {
	lower := []byte("capsule/")
	upper := append([]byte{}, lower...)
	upper[len(upper)-1]++

	iter, err := s.db.NewIter(&pebble.IterOptions{LowerBound: lower, UpperBound: upper})
	if err != nil {
		return nil, err
	}
	defer iter.Close()

	var out []dchash.Hash
	for iter.First(); iter.Valid(); iter.Next() {
		key := string(iter.Key())
		if !strings.HasSuffix(key, "/"+prefixMeta) {
			continue
		}
		inner := strings.TrimPrefix(key, "capsule/")
		inner = strings.TrimSuffix(inner, "/"+prefixMeta)
		raw, err := hex.DecodeString(inner)
		if err != nil {
			continue
		}
		h, err := dchash.HashFromBytes(raw)
		if err != nil {
			continue
		}
		out = append(out, h)
	}
	return out, iter.Error()
}

// VerifyLatestSigned cross-checks a capsule's latest row against its
// sigblocks table (spec §4.6's recovery rule: a commit whose sigblocks row
// is missing is not a valid commit point). Pebble's atomic batch commit
// already makes this true by construction; this is a consistency
// assertion, not a repair (spec §10).
func (s *Store) VerifyLatestSigned(capsule dchash.Hash) (bool, error) {
	_, root, found, err := s.Latest(capsule)
	if err != nil {
		return false, err
	}
	if !found {
		return true, nil
	}
	_, ok, err := s.View(capsule).RootSignature(root)
	if err != nil {
		return false, err
	}
	return ok, nil
}
