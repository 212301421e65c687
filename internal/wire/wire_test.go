package wire

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestWriteReadFrameRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	payload := []byte("hello datacapsule")

	require.NoError(t, WriteFrame(&buf, payload))
	got, err := ReadFrame(&buf)
	require.NoError(t, err)
	require.Equal(t, payload, got)
}

func TestReadFrameRejectsOversizedLength(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteFrame(&buf, make([]byte, 16)))
	// Corrupt the length prefix to claim an oversized frame.
	raw := buf.Bytes()
	raw[0] = 0xFF
	_, err := ReadFrame(bytes.NewReader(raw))
	require.ErrorIs(t, err, ErrFrameTooLarge)
}

type sample struct {
	A int    `cbor:"1,keyasint"`
	B string `cbor:"2,keyasint"`
}

func TestCBORCodecRoundTrip(t *testing.T) {
	var codec CBORCodec
	in := sample{A: 7, B: "x"}

	data, err := codec.Encode(in)
	require.NoError(t, err)

	var out sample
	require.NoError(t, codec.Decode(data, &out))
	require.Equal(t, in, out)
}
