package dchash

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestHashDeterministic(t *testing.T) {
	require.Equal(t, H([]byte("abc")), H([]byte("abc")))
	require.NotEqual(t, H([]byte("abc")), H([]byte("abd")))
}

func TestNullHash(t *testing.T) {
	require.True(t, NullHash.IsNull())
	require.False(t, H([]byte("x")).IsNull())
}

func TestSignAndVerify(t *testing.T) {
	signer, err := GenerateSigner()
	require.NoError(t, err)

	h := H([]byte("commit root"))
	sig, err := signer.Sign(h)
	require.NoError(t, err)

	require.True(t, Verify(signer.PublicKey(), h, sig))
}

func TestVerifyRejectsWrongHash(t *testing.T) {
	signer, err := GenerateSigner()
	require.NoError(t, err)

	sig, err := signer.Sign(H([]byte("a")))
	require.NoError(t, err)

	require.False(t, Verify(signer.PublicKey(), H([]byte("b")), sig))
}

func TestVerifyRejectsWrongKey(t *testing.T) {
	signerA, err := GenerateSigner()
	require.NoError(t, err)
	signerB, err := GenerateSigner()
	require.NoError(t, err)

	h := H([]byte("commit root"))
	sig, err := signerA.Sign(h)
	require.NoError(t, err)

	require.False(t, Verify(signerB.PublicKey(), h, sig))
}

func TestHashFromBytesRejectsBadWidth(t *testing.T) {
	_, err := HashFromBytes([]byte{1, 2, 3})
	require.ErrorIs(t, err, ErrBadHashWidth)
}
