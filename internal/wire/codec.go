package wire

import "github.com/fxamacker/cbor/v2"

// Codec encodes and decodes message envelopes. The wire format is a
// pluggable collaborator (spec §6); the shipped default backs it with
// CBOR, the same codec the crypto façade uses for signed structures.
type Codec interface {
	Encode(v any) ([]byte, error)
	Decode(data []byte, v any) error
}

// CBORCodec is the default Codec.
type CBORCodec struct{}

func (CBORCodec) Encode(v any) ([]byte, error) {
	return cbor.Marshal(v)
}

func (CBORCodec) Decode(data []byte, v any) error {
	return cbor.Unmarshal(data, v)
}
