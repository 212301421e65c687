// Package protocol implements the message vocabulary and per-role state
// machines of spec §4.4 and §6: one envelope type per wire message, and a
// Dispatcher that drives Creator, Writer, Reader, and Subscriber sessions
// against the capsule registry and storage layer.
package protocol

import "github.com/datacapsule-io/dcserver/internal/dchash"

// Role identifies which of the four session kinds a connection opened as.
type Role uint8

const (
	RoleCreator Role = iota + 1
	RoleWriter
	RoleReader
	RoleSubscriber
)

// MsgType discriminates an Envelope's payload.
type MsgType uint8

const (
	MsgInit MsgType = iota + 1
	MsgCreateRequest
	MsgCreateResponse
	MsgWriteRequest
	MsgCommitRequest
	MsgCommitResponse
	MsgReadRequest
	MsgReadResponse
	MsgProveRequest
	MsgProveSignedHash
	MsgProveHashBlock
	MsgProveEnd
	MsgGetLastNumRequest
	MsgGetLastNumResponse
	MsgNameFromNumRequest
	MsgNameFromNumResponse
	MsgNumFromNameRequest
	MsgNumFromNameResponse
	MsgWaitAfterRequest
	MsgWaitAfterResponse
	MsgProtocolError
)

// Envelope is the single self-describing wire message (spec §6): Type
// selects which of the payload fields is populated.
type Envelope struct {
	Type MsgType `cbor:"1,keyasint"`

	Init *InitMsg `cbor:"2,keyasint,omitempty"`

	CreateRequest  *CreateRequest  `cbor:"3,keyasint,omitempty"`
	CreateResponse *CreateResponse `cbor:"4,keyasint,omitempty"`

	WriteRequest  *WriteRequest  `cbor:"5,keyasint,omitempty"`
	CommitRequest *CommitRequest `cbor:"6,keyasint,omitempty"`
	CommitResponse *CommitResponse `cbor:"7,keyasint,omitempty"`

	ReadRequest  *ReadRequest  `cbor:"8,keyasint,omitempty"`
	ReadResponse *ReadResponse `cbor:"9,keyasint,omitempty"`

	ProveRequest *ProveRequest  `cbor:"10,keyasint,omitempty"`
	SignedHash   *SignedHashMsg `cbor:"11,keyasint,omitempty"`
	HashBlock    *HashBlockMsg  `cbor:"12,keyasint,omitempty"`
	ProveEnd     *ProveEndMsg   `cbor:"13,keyasint,omitempty"`

	GetLastNumResponse *GetLastNumResponse `cbor:"14,keyasint,omitempty"`

	NameFromNumRequest  *NameFromNumRequest  `cbor:"15,keyasint,omitempty"`
	NameFromNumResponse *NameFromNumResponse `cbor:"16,keyasint,omitempty"`

	NumFromNameRequest  *NumFromNameRequest  `cbor:"17,keyasint,omitempty"`
	NumFromNameResponse *NumFromNameResponse `cbor:"18,keyasint,omitempty"`

	WaitAfterRequest  *WaitAfterRequest  `cbor:"19,keyasint,omitempty"`
	WaitAfterResponse *WaitAfterResponse `cbor:"20,keyasint,omitempty"`

	Error *ProtocolErrorMsg `cbor:"21,keyasint,omitempty"`
}

// InitMsg opens a connection under a role, naming the target Datacapsule
// for every role but Creator.
type InitMsg struct {
	Role    Role        `cbor:"1,keyasint"`
	Capsule dchash.Hash `cbor:"2,keyasint,omitempty"`
}

// CreateRequest asks the server to mint a new Datacapsule (spec §4.4.1).
// CreatorPub is not named among the distilled spec's wire fields, but the
// Datacapsule identifier hash(creator_pubkey || writer_pubkey ||
// description) needs it from somewhere; it travels explicitly here rather
// than being recovered from CreatorSig.
type CreateRequest struct {
	CreatorPub  []byte `cbor:"1,keyasint"`
	WriterPub   []byte `cbor:"2,keyasint"`
	Description string `cbor:"3,keyasint"`
	CreatorSig  []byte `cbor:"4,keyasint"`
}

// CreateResponse reports the new capsule's name on success.
type CreateResponse struct {
	OK      bool        `cbor:"1,keyasint"`
	Capsule dchash.Hash `cbor:"2,keyasint,omitempty"`
}

// WriteRequest stages one record's bytes (spec §4.4.2). It carries no
// response; the framing-level ack, if any, is the dispatcher's concern.
type WriteRequest struct {
	EncryptedBytes []byte `cbor:"1,keyasint"`
	Seq            uint64 `cbor:"2,keyasint"`
}

// CommitRequest asks the server to seal the session's uncommitted batch.
type CommitRequest struct {
	ClientRoot       dchash.Hash     `cbor:"1,keyasint"`
	ClientSignedRoot dchash.Signature `cbor:"2,keyasint"`
	IncludePrevRoot  bool            `cbor:"3,keyasint"`
}

// CommitResponse carries the server's own signature over the new root.
// Empty (OK=false) on any verification failure (spec §7's deliberately
// coarse commit failure).
type CommitResponse struct {
	OK               bool            `cbor:"1,keyasint"`
	ServerSignedRoot dchash.Signature `cbor:"2,keyasint,omitempty"`
}

// ReadRequest fetches a record's stored ciphertext by hash.
type ReadRequest struct {
	Hash dchash.Hash `cbor:"1,keyasint"`
}

// ReadResponse carries the bytes, or Found=false if the hash is unknown.
type ReadResponse struct {
	Found bool   `cbor:"1,keyasint"`
	Bytes []byte `cbor:"2,keyasint,omitempty"`
}

// ProveRequest asks for an inclusion proof stream for hash.
type ProveRequest struct {
	Hash dchash.Hash `cbor:"1,keyasint"`
}

// SignedHashMsg carries one SignedHash element of a proof stream.
type SignedHashMsg struct {
	Hash dchash.Hash     `cbor:"1,keyasint"`
	Sig  dchash.Signature `cbor:"2,keyasint"`
}

// HashBlockMsg carries one HashBlock element of a proof stream.
type HashBlockMsg struct {
	Children []dchash.Hash `cbor:"1,keyasint"`
}

// ProveEndMsg terminates a proof stream, reporting the client-observable
// verdict so a client that verifies as it streams does not need its own
// framing to know when to stop.
type ProveEndMsg struct {
	OK bool `cbor:"1,keyasint"`
}

// GetLastNumResponse answers get_last_num().
type GetLastNumResponse struct {
	Seq uint64 `cbor:"1,keyasint"`
}

// NameFromNumRequest/-Response answer name_from_num(seq).
type NameFromNumRequest struct {
	Seq uint64 `cbor:"1,keyasint"`
}

type NameFromNumResponse struct {
	Found bool        `cbor:"1,keyasint"`
	Hash  dchash.Hash `cbor:"2,keyasint,omitempty"`
}

// NumFromNameRequest/-Response answer num_from_name(hash).
type NumFromNameRequest struct {
	Hash dchash.Hash `cbor:"1,keyasint"`
}

type NumFromNameResponse struct {
	Found bool   `cbor:"1,keyasint"`
	Seq   uint64 `cbor:"2,keyasint,omitempty"`
}

// WaitAfterRequest/-Response implement wait_after(seq).
type WaitAfterRequest struct {
	Seq uint64 `cbor:"1,keyasint"`
}

type WaitAfterResponse struct {
	NewLastSeq uint64 `cbor:"1,keyasint"`
}

// ProtocolErrorMsg reports a ProtocolError (spec §7): malformed frame,
// wrong role, unknown opcode, or out-of-order operation. The dispatcher
// closes the connection after sending it.
type ProtocolErrorMsg struct {
	Message string `cbor:"1,keyasint"`
}
