package main

import (
	"fmt"

	"github.com/datacapsule-io/dcserver/internal/capsule"
	"github.com/datacapsule-io/dcserver/internal/dchash"
	"github.com/datacapsule-io/dcserver/internal/store"
	"go.uber.org/zap"
)

// recoverCapsules performs the startup consistency pass of spec §10:
// every persisted capsule's latest commit point must carry a sigblocks
// signature. It also seeds the in-memory registry so the first connection
// against an existing capsule does not pay a lazy-load penalty.
func recoverCapsules(st *store.Store, registry *capsule.Registry, log *zap.SugaredLogger) error {
	names, err := st.ListCapsules()
	if err != nil {
		return err
	}

	for _, name := range names {
		ok, err := st.VerifyLatestSigned(name)
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("capsule %x: latest commit has no persisted signature", name.Bytes())
		}

		meta, found, err := st.Meta(name)
		if err != nil {
			return err
		}
		if !found {
			continue
		}
		seq, root, found, err := st.Latest(name)
		if err != nil {
			return err
		}
		var sig dchash.Signature
		var committed uint64
		if found {
			sig, _, err = st.View(name).RootSignature(root)
			if err != nil {
				return err
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
		registry.Put(capsule.New(id, committed, root, sig))
		log.Debugw("recovered capsule", "capsule", fmt.Sprintf("%x", name.Bytes()), "latest_seq", committed)
	}

	log.Infow("recovery pass complete", "capsules", len(names))
	return nil
}
