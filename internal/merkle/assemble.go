package merkle

import "github.com/datacapsule-io/dcserver/internal/dchash"

// ChainLookup is the storage-side view an Assembler needs: enough to walk
// from any record or tree-node hash up to a signed root, and to discover
// when a later commit has chained (and so can re-sign) an earlier root.
// The concrete implementation lives in the storage package; merkle only
// depends on this narrow interface so the proof-assembly policy can be
// tested against a fake.
type ChainLookup interface {
	// Block fetches a persisted interior HashBlock by name.
	Block(name dchash.Hash) (HashBlock, bool, error)

	// ParentOfRecord resolves a record hash to the HashBlock that names it
	// as a child.
	ParentOfRecord(record dchash.Hash) (parent dchash.Hash, found bool, err error)

	// ParentOfBlock resolves a HashBlock's name to its own parent
	// HashBlock, and reports whether the block is itself a signed root.
	ParentOfBlock(name dchash.Hash) (parent dchash.Hash, isRoot bool, found bool, err error)

	// RootSignature returns the persisted SignedHash signature for a
	// committed root's HashBlock name.
	RootSignature(root dchash.Hash) (dchash.Signature, bool, error)

	// NewerChainedRoot returns the next newer committed root that chained
	// oldRoot in as its "previous root" leaf, if any such commit exists.
	NewerChainedRoot(oldRoot dchash.Hash) (newer dchash.Hash, ok bool, err error)
}

// Config bounds an Assembler's signature-avoidance policy (spec §4.2,
// §6 sig_avoid_max_extra_hashes).
type Config struct {
	SigAvoidMaxExtraHashes int
}

// Assembler builds proof streams for a single Datacapsule.
type Assembler struct {
	cfg    Config
	lookup ChainLookup
}

// NewAssembler builds an Assembler over the given storage lookup.
func NewAssembler(cfg Config, lookup ChainLookup) *Assembler {
	return &Assembler{cfg: cfg, lookup: lookup}
}

// pathToRoot walks upward from target to the committed root that covers
// it, returning the chain of HashBlocks bottom-up (chain[0] is the block
// that directly names target as a child; the last entry is the root
// block). A nil, nil return means target is itself a root block's name.
func (a *Assembler) pathToRoot(target dchash.Hash) ([]HashBlock, error) {
	parentName, found, err := a.lookup.ParentOfRecord(target)
	if err != nil {
		return nil, err
	}
	if !found {
		// target may itself be an interior node; its own parent chain
		// starts at whichever block names it as a child.
		var isRoot bool
		parentName, isRoot, found, err = a.lookup.ParentOfBlock(target)
		if err != nil {
			return nil, err
		}
		if !found {
			if isRoot {
				return nil, nil
			}
			return nil, ErrTargetNotFound
		}
	}

	var chain []HashBlock
	current := parentName
	for {
		block, ok, err := a.lookup.Block(current)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, ErrTargetNotFound
		}
		chain = append(chain, block)

		next, isRoot, parentFound, err := a.lookup.ParentOfBlock(current)
		if err != nil {
			return nil, err
		}
		if isRoot || !parentFound {
			return chain, nil
		}
		current = next
	}
}

// Assemble builds the proof stream for target against session's current
// cache state, applying the signature-avoidance policy of spec §4.2: the
// server elides a fresh SignedHash when the direct root (or a newer root
// that chains it) is already anchored in the client's cache, so long as
// the extra HashBlocks needed to reach that anchor stay within
// SigAvoidMaxExtraHashes.
func (a *Assembler) Assemble(session *Session, target dchash.Hash) (Proof, error) {
	if session.anchored(target) {
		return Proof{}, nil
	}

	chain, err := a.pathToRoot(target)
	if err != nil {
		return Proof{}, err
	}
	if chain == nil {
		return Proof{}, nil
	}

	rootName := chain[len(chain)-1].Name()
	extended := append([]HashBlock(nil), chain...)
	finalRoot := rootName

	for !session.anchored(finalRoot) {
		newer, ok, err := a.lookup.NewerChainedRoot(finalRoot)
		if err != nil {
			return Proof{}, err
		}
		if !ok {
			break
		}
		newerBlock, found, err := a.lookup.Block(newer)
		if err != nil {
			return Proof{}, err
		}
		if !found {
			break
		}
		if len(extended)-len(chain)+1 > a.cfg.SigAvoidMaxExtraHashes {
			break
		}
		extended = append(extended, newerBlock)
		finalRoot = newer
	}

	var signed *SignedHash
	if !session.anchored(finalRoot) {
		sig, ok, err := a.lookup.RootSignature(finalRoot)
		if err != nil {
			return Proof{}, err
		}
		if !ok {
			return Proof{}, ErrRootNotSigned
		}
		signed = &SignedHash{Hash: finalRoot, Sig: sig}
	}

	blocks := make([]HashBlock, len(extended))
	for i, b := range extended {
		blocks[len(extended)-1-i] = b
	}

	return Proof{Root: signed, Blocks: blocks}, nil
}
