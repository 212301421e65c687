package protocol

import "errors"

var (
	// ErrWrongRole is a ProtocolError: an operation was attempted on a
	// connection that did not Init into the role that serves it.
	ErrWrongRole = errors.New("protocol: operation not valid for this connection's role")

	// ErrUnknownCapsule is a ProtocolError: Init named a Datacapsule the
	// server has never created.
	ErrUnknownCapsule = errors.New("protocol: unknown datacapsule")

	// ErrCapsuleBusy is a ContentionError: a second Writer tried to
	// Init against a Datacapsule that already has one (spec §5, §7).
	ErrCapsuleBusy = errors.New("protocol: datacapsule already has an active writer")

	// ErrSeqMismatch is a ProtocolError: write()'s advisory seq did not
	// equal latest_seq + len(U).
	ErrSeqMismatch = errors.New("protocol: write sequence number does not match expected next sequence")

	// ErrCommitVerification is a VerificationError: the recomputed root
	// did not match the client's claimed root, or the client's signature
	// over it did not verify.
	ErrCommitVerification = errors.New("protocol: commit root or signature verification failed")
)
