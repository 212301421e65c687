package protocol

import (
	"github.com/datacapsule-io/dcserver/internal/capsule"
	"github.com/datacapsule-io/dcserver/internal/dchash"
	"github.com/datacapsule-io/dcserver/internal/store"
)

// Config bounds the tunables spec §6 lists as recognized configuration
// options.
type Config struct {
	MerkleFanout           int
	HashCacheCapacity      int
	SigAvoidMaxExtraHashes int
}

// Dispatcher is the request dispatcher (C7): it owns no per-connection
// state itself, only the shared collaborators every session needs. The
// Creator role is served directly by CreateDatacapsule; every other
// accepted connection builds its own session (WriterSession, ReaderSession,
// SubscriberSession) bound to one Dispatcher.
type Dispatcher struct {
	Config       Config
	Store        *store.Store
	Registry     *capsule.Registry
	ServerSigner *dchash.Signer
}

// NewDispatcher builds a Dispatcher over the given shared collaborators.
func NewDispatcher(cfg Config, st *store.Store, reg *capsule.Registry, serverSigner *dchash.Signer) *Dispatcher {
	return &Dispatcher{Config: cfg, Store: st, Registry: reg, ServerSigner: serverSigner}
}

// capsuleIdentifier computes the Datacapsule identifier hash(creator_pubkey
// || writer_pubkey || description) (spec §3).
func capsuleIdentifier(creatorPub, writerPub []byte, description string) dchash.Hash {
	buf := make([]byte, 0, len(creatorPub)+len(writerPub)+len(description))
	buf = append(buf, creatorPub...)
	buf = append(buf, writerPub...)
	buf = append(buf, description...)
	return dchash.H(buf)
}

// loadOrGetCapsule returns the live in-memory Capsule for name, loading it
// from storage into the registry on first reference (spec §4.5's
// "reconstructed on startup" rule, applied lazily per-capsule for any
// capsule the startup recovery pass has not already registered). Concurrent first
// references to the same not-yet-resident capsule are serialized through
// Registry.GetOrCreate so exactly one Capsule object — and so exactly one
// writer lock and notify hub — is ever built for it (spec §5).
func (d *Dispatcher) loadOrGetCapsule(name dchash.Hash) (*capsule.Capsule, error) {
	return d.Registry.GetOrCreate(name, func() (*capsule.Capsule, error) {
		meta, found, err := d.Store.Meta(name)
		if err != nil {
			return nil, err
		}
		if !found {
			return nil, ErrUnknownCapsule
		}

		seq, root, found, err := d.Store.Latest(name)
		if err != nil {
			return nil, err
		}
		var sig dchash.Signature
		var committed uint64
		if found {
			sig, _, err = d.Store.View(name).RootSignature(root)
			if err != nil {
				return nil, err
			}
			committed = seq + 1
		} else {
			root = dchash.NullHash
		}

		id := capsule.Identity{
			Capsule:     name,
			CreatorPub:  meta.CreatorPub,
			CreatorSig:  meta.CreatorSig,
			WriterPub:   meta.WriterPub,
			Description: meta.Description,
		}
		return capsule.New(id, committed, root, sig), nil
	})
}
