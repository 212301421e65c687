// Package dchash implements the cryptographic primitives façade used
// throughout the datacapsule server: content hashing, writer-key signature
// over a commit root, and verification of that signature. Record payload
// encryption is a client-side concern; this package never sees plaintext.
package dchash

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/sha256"
	"crypto/x509"
	"errors"

	"github.com/veraison/go-cose"
)

// Width is the fixed byte width of a Hash. It must agree between every peer
// that talks to this server; the reference implementation fixes it at 32
// bytes (SHA-256) rather than negotiating it per connection.
const Width = sha256.Size

// Hash is a fixed-width content hash. The all-zero value is the Null Hash,
// denoting an absent child or an uninitialized anchor.
type Hash [Width]byte

// NullHash is the all-zero Hash.
var NullHash Hash

// IsNull reports whether h is the Null Hash.
func (h Hash) IsNull() bool {
	return h == NullHash
}

// Bytes returns h as a byte slice.
func (h Hash) Bytes() []byte {
	return h[:]
}

// HashFromBytes copies b into a Hash, erroring if the width does not match.
func HashFromBytes(b []byte) (Hash, error) {
	var h Hash
	if len(b) != Width {
		return h, ErrBadHashWidth
	}
	copy(h[:], b)
	return h, nil
}

// ErrBadHashWidth is returned when a caller supplies a hash of the wrong
// byte width for this server's configured Width.
var ErrBadHashWidth = errors.New("dchash: hash has the wrong byte width")

// H hashes an arbitrary byte string under the server's configured digest.
func H(b []byte) Hash {
	return sha256.Sum256(b)
}

// HashBlockName hashes the concatenation of a HashBlock's children, in
// order, binding the block's name to its content.
func HashBlockName(children []Hash) Hash {
	h := sha256.New()
	for _, c := range children {
		h.Write(c[:])
	}
	var out Hash
	copy(out[:], h.Sum(nil))
	return out
}

// Signature is an opaque signature over a Hash, produced by a Datacapsule's
// writer key.
type Signature []byte

// ErrVerifyFailed is returned by Verify when a signature does not validate
// under the given public key.
var ErrVerifyFailed = errors.New("dchash: signature verification failed")

// Signer signs hashes on behalf of a Datacapsule writer key. It wraps a
// COSE_Sign1 envelope over ECDSA P-256 (go-cose's AlgorithmES256), the same
// signing stack the teacher repo uses for its committed root signatures.
type Signer struct {
	key    *ecdsa.PrivateKey
	signer cose.Signer
}

// NewSigner builds a Signer from an ECDSA P-256 private key.
func NewSigner(key *ecdsa.PrivateKey) (*Signer, error) {
	if key.Curve != elliptic.P256() {
		return nil, errors.New("dchash: signer requires a P-256 key")
	}
	signer, err := cose.NewSigner(cose.AlgorithmES256, key)
	if err != nil {
		return nil, err
	}
	return &Signer{key: key, signer: signer}, nil
}

// GenerateSigner creates a fresh P-256 signing key, for tests and tooling.
func GenerateSigner() (*Signer, error) {
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		return nil, err
	}
	return NewSigner(key)
}

// PublicKey returns the signer's public key, the value registered with a
// Datacapsule at creation time as its writer_pubkey.
func (s *Signer) PublicKey() *ecdsa.PublicKey {
	return &s.key.PublicKey
}

// Sign produces a COSE_Sign1 signature over h.
func (s *Signer) Sign(h Hash) (Signature, error) {
	msg := cose.NewSign1Message()
	msg.Headers.Protected.SetAlgorithm(cose.AlgorithmES256)
	msg.Payload = h.Bytes()
	if err := msg.Sign(rand.Reader, nil, s.signer); err != nil {
		return nil, err
	}
	data, err := msg.MarshalCBOR()
	if err != nil {
		return nil, err
	}
	return Signature(data), nil
}

// Verify checks that sig is a valid COSE_Sign1 signature over h under pub.
func Verify(pub *ecdsa.PublicKey, h Hash, sig Signature) bool {
	if pub == nil || len(sig) == 0 {
		return false
	}
	verifier, err := cose.NewVerifier(cose.AlgorithmES256, pub)
	if err != nil {
		return false
	}
	msg := cose.NewSign1Message()
	if err := msg.UnmarshalCBOR(sig); err != nil {
		return false
	}
	if string(msg.Payload) != string(h.Bytes()) {
		return false
	}
	if err := msg.Verify(nil, verifier); err != nil {
		return false
	}
	return true
}

// MarshalPublicKey encodes a P-256 public key as DER/PKIX bytes, the form
// a Datacapsule's writer_pubkey is registered and persisted in (spec
// §4.4.1, §4.5).
func MarshalPublicKey(pub *ecdsa.PublicKey) ([]byte, error) {
	return x509.MarshalPKIXPublicKey(pub)
}

// ParsePublicKey decodes a writer_pubkey back into a usable ECDSA key.
func ParsePublicKey(der []byte) (*ecdsa.PublicKey, error) {
	pub, err := x509.ParsePKIXPublicKey(der)
	if err != nil {
		return nil, err
	}
	ecPub, ok := pub.(*ecdsa.PublicKey)
	if !ok {
		return nil, errors.New("dchash: writer_pubkey is not an ECDSA key")
	}
	return ecPub, nil
}

// Encrypter and Decrypter describe client-side record encryption. The
// server treats every record payload as opaque and never imports an
// implementation of these — they exist only so client tooling and tests
// built against this module share one interface.
type Encrypter interface {
	Encrypt(key, plaintext []byte) (ciphertext []byte, err error)
}

type Decrypter interface {
	Decrypt(key, ciphertext []byte) (plaintext []byte, err error)
}
