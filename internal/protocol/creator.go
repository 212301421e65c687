package protocol

import (
	"github.com/datacapsule-io/dcserver/internal/capsule"
	"github.com/datacapsule-io/dcserver/internal/dchash"
	"github.com/datacapsule-io/dcserver/internal/store"
)

// CreateDatacapsule implements the Creator role's sole operation (spec
// §4.4.1): compute the Datacapsule identifier, reject a duplicate, persist
// the identity row, and seed its in-memory state.
func (d *Dispatcher) CreateDatacapsule(req CreateRequest) (CreateResponse, error) {
	creatorPub, err := dchash.ParsePublicKey(req.CreatorPub)
	if err != nil {
		return CreateResponse{OK: false}, nil
	}
	binding := dchash.H(append(append([]byte{}, req.WriterPub...), []byte(req.Description)...))
	if !dchash.Verify(creatorPub, binding, dchash.Signature(req.CreatorSig)) {
		return CreateResponse{OK: false}, nil
	}

	name := capsuleIdentifier(req.CreatorPub, req.WriterPub, req.Description)
	meta := store.CapsuleMeta{
		CreatorPub:  req.CreatorPub,
		CreatorSig:  req.CreatorSig,
		WriterPub:   req.WriterPub,
		Description: req.Description,
	}

	if err := d.Store.CreateCapsule(name, meta); err != nil {
		if err == store.ErrCapsuleExists {
			return CreateResponse{OK: false}, nil
		}
		return CreateResponse{}, err
	}

	id := capsule.Identity{
		Capsule:     name,
		CreatorPub:  meta.CreatorPub,
		CreatorSig:  meta.CreatorSig,
		WriterPub:   meta.WriterPub,
		Description: meta.Description,
	}
	d.Registry.Put(capsule.New(id, 0, dchash.NullHash, nil))

	return CreateResponse{OK: true, Capsule: name}, nil
}
