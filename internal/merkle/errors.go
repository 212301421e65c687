package merkle

import "errors"

var (
	ErrEmptyBatch = errors.New("merkle: cannot build a tree with zero leaves")
	ErrBadFanout  = errors.New("merkle: fanout must be at least 2")

	ErrBlockNotAnchored = errors.New("merkle: proof HashBlock is not anchored by cache or prior block")

	// ErrRootNotSigned is a storage-consistency fault: every committed root
	// must carry a signature (spec invariant "Chain validity").
	ErrRootNotSigned = errors.New("merkle: commit root has no persisted signature")

	ErrTargetNotFound = errors.New("merkle: target hash not found in this capsule's log")
)
