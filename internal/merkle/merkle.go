// Package merkle builds fanout-F Merkle trees over a commit's record
// batch and assembles bandwidth-optimal inclusion proofs against a
// session-synchronized hash cache. It generalizes the teacher's
// leaf-at-a-time binary mountain range (mmr.AddHashedLeaf) to a
// breadth-first build over a fixed batch, since a Datacapsule commit
// authorizes one whole batch under one signature rather than growing
// node-by-node.
package merkle

import (
	"github.com/datacapsule-io/dcserver/internal/dchash"
)

// HashBlock is an interior Merkle node: an ordered tuple of child hashes.
// Its name is the hash of the concatenation of its children, in order. A
// child slot may hold the Null Hash when the level was padded.
type HashBlock struct {
	Children []dchash.Hash
}

// Name returns the HashBlock's content-bound name.
func (b HashBlock) Name() dchash.Hash {
	return dchash.HashBlockName(b.Children)
}

// Contains reports whether h appears as one of b's children.
func (b HashBlock) Contains(h dchash.Hash) bool {
	for _, c := range b.Children {
		if c == h {
			return true
		}
	}
	return false
}

// nullBlock returns a HashBlock of fanout Null Hash children, the session
// cache's initial "last proven block" anchor (§4.3).
func nullBlock(fanout int) HashBlock {
	return HashBlock{Children: make([]dchash.Hash, fanout)}
}

// Tree is the result of Build: every level of interior nodes produced from
// a commit's leaf batch, ordered leaf-level first, root level last.
type Tree struct {
	Fanout int
	Leaves []dchash.Hash
	Levels [][]HashBlock
}

// Root returns the hash of the tree's single top-level HashBlock.
func (t *Tree) Root() dchash.Hash {
	top := t.Levels[len(t.Levels)-1]
	return top[0].Name()
}

// RootBlock returns the tree's single top-level HashBlock.
func (t *Tree) RootBlock() HashBlock {
	return t.Levels[len(t.Levels)-1][0]
}

// Build constructs the sequence of interior HashBlocks for a batch of leaf
// hashes under the given fanout. If extra is non-nil it is appended as the
// last leaf (the chained previous commit's root) before padding. Build is
// pure and deterministic: identical inputs always produce byte-identical
// HashBlocks and root, since the root is what gets signed.
func Build(leaves []dchash.Hash, fanout int, extra *dchash.Hash) (*Tree, error) {
	if fanout < 2 {
		return nil, ErrBadFanout
	}

	current := make([]dchash.Hash, len(leaves))
	copy(current, leaves)
	if extra != nil {
		current = append(current, *extra)
	}
	if len(current) == 0 {
		return nil, ErrEmptyBatch
	}

	t := &Tree{Fanout: fanout, Leaves: current}

	for {
		numBlocks := (len(current) + fanout - 1) / fanout
		blocks := make([]HashBlock, numBlocks)
		for i := 0; i < numBlocks; i++ {
			children := make([]dchash.Hash, fanout)
			for j := 0; j < fanout; j++ {
				idx := i*fanout + j
				if idx < len(current) {
					children[j] = current[idx]
				}
			}
			blocks[i] = HashBlock{Children: children}
		}
		t.Levels = append(t.Levels, blocks)
		if numBlocks == 1 {
			break
		}
		next := make([]dchash.Hash, numBlocks)
		for i, b := range blocks {
			next[i] = b.Name()
		}
		current = next
	}

	return t, nil
}
