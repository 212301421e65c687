package merkle

import (
	"testing"

	"github.com/datacapsule-io/dcserver/internal/dchash"
	"github.com/stretchr/testify/require"
)

func alwaysValid(dchash.Hash, dchash.Signature) bool { return true }

func TestVerifySingleBlockProof(t *testing.T) {
	// S1: one SignedHash + one HashBlock, record present as a child.
	record := leafHash(1)
	tree, err := Build([]dchash.Hash{record}, 2, nil)
	require.NoError(t, err)

	session := NewSession(2, hashCacheTestCapacity)
	proof := Proof{
		Root:   &SignedHash{Hash: tree.Root(), Sig: dchash.Signature("sig")},
		Blocks: []HashBlock{tree.RootBlock()},
	}

	ok, err := Verify(session, alwaysValid, record, proof)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, tree.Root(), session.LastSignedRoot)
	require.Equal(t, tree.RootBlock(), session.LastProvenBlock)
}

func TestVerifyRejectsUnanchoredBlock(t *testing.T) {
	session := NewSession(2, hashCacheTestCapacity)
	stray := HashBlock{Children: []dchash.Hash{leafHash(9), leafHash(10)}}
	proof := Proof{Blocks: []HashBlock{stray}}

	ok, err := Verify(session, alwaysValid, leafHash(9), proof)
	require.ErrorIs(t, err, ErrBlockNotAnchored)
	require.False(t, ok)
}

func TestVerifyChainedProof(t *testing.T) {
	// S2: fanout 2. Commit A has r1 (root R_A). Commit B has r2 chained to
	// R_A (root R_B). A Reader with an empty cache proves r1 via one
	// SignedHash(R_B) plus blocks [{r2,R_A}, {r1,Null}].
	r1 := leafHash(1)
	r2 := leafHash(2)

	treeA, err := Build([]dchash.Hash{r1}, 2, nil)
	require.NoError(t, err)
	rootA := treeA.Root()

	treeB, err := Build([]dchash.Hash{r2}, 2, &rootA)
	require.NoError(t, err)
	rootB := treeB.Root()

	session := NewSession(2, hashCacheTestCapacity)
	proof := Proof{
		Root: &SignedHash{Hash: rootB, Sig: dchash.Signature("sigB")},
		Blocks: []HashBlock{
			treeB.RootBlock(), // {r2, R_A}
			treeA.RootBlock(), // {r1, Null}
		},
	}

	ok, err := Verify(session, alwaysValid, r1, proof)
	require.NoError(t, err)
	require.True(t, ok)

	// Cache now contains R_B, which is the name of {r2, R_A}: it was
	// inserted as the previous last-proven-block's name when {r1, Null}
	// was accepted.
	require.True(t, session.Cache.Contains(treeB.RootBlock().Name()))
}

const hashCacheTestCapacity = 64
