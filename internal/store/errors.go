package store

import "errors"

var (
	// ErrCapsuleExists is returned by CreateCapsule when the name is
	// already bound (spec invariant: name-content binding happens once).
	ErrCapsuleExists = errors.New("store: capsule already exists")
)
