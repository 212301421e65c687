package merkle

import (
	"testing"

	"github.com/datacapsule-io/dcserver/internal/dchash"
	"github.com/stretchr/testify/require"
)

func leafHash(b byte) dchash.Hash {
	return dchash.H([]byte{b})
}

func TestBuildDeterministic(t *testing.T) {
	leaves := []dchash.Hash{leafHash(1), leafHash(2), leafHash(3)}

	t1, err := Build(leaves, 2, nil)
	require.NoError(t, err)
	t2, err := Build(leaves, 2, nil)
	require.NoError(t, err)

	require.Equal(t, t1.Root(), t2.Root())
	require.Equal(t, len(t1.Levels), len(t2.Levels))
}

func TestBuildSingleLeafFanout2(t *testing.T) {
	// S1: one record, fanout 2 — the root block has the record hash and
	// the Null Hash as children.
	r := leafHash(1)
	tree, err := Build([]dchash.Hash{r}, 2, nil)
	require.NoError(t, err)
	require.Len(t, tree.Levels, 1)

	root := tree.RootBlock()
	require.Equal(t, []dchash.Hash{r, dchash.NullHash}, root.Children)
	require.Equal(t, dchash.HashBlockName(root.Children), tree.Root())
}

func TestBuildChainedExtraLeaf(t *testing.T) {
	// S2: commit B has one record r2, chained to commit A's root R_A.
	r2 := leafHash(2)
	rA := leafHash(0xAA)
	tree, err := Build([]dchash.Hash{r2}, 2, &rA)
	require.NoError(t, err)
	require.Len(t, tree.Levels, 1)

	root := tree.RootBlock()
	require.Equal(t, []dchash.Hash{r2, rA}, root.Children)
}

func TestBuildPadsFinalBlock(t *testing.T) {
	leaves := []dchash.Hash{leafHash(1), leafHash(2), leafHash(3)}
	tree, err := Build(leaves, 2, nil)
	require.NoError(t, err)

	// level 0: blocks {1,2} and {3, Null}
	require.Len(t, tree.Levels[0], 2)
	require.Equal(t, dchash.NullHash, tree.Levels[0][1].Children[1])
}

func TestBuildRejectsBadFanout(t *testing.T) {
	_, err := Build([]dchash.Hash{leafHash(1)}, 1, nil)
	require.ErrorIs(t, err, ErrBadFanout)
}

func TestBuildRejectsEmptyBatch(t *testing.T) {
	_, err := Build(nil, 2, nil)
	require.ErrorIs(t, err, ErrEmptyBatch)
}
