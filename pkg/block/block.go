// Package block defines the block type, its sealing and mining lifecycle,
// and the chain-walk queries (ancestry, known-parent) built on top of a
// Store.
package block

import (
	"strconv"

	"github.com/knotex/knotex/pkg/hash"
	"github.com/knotex/knotex/pkg/types"
)

// Block is the fundamental on-chain record. Instances are built up in
// stages: New -> AsChildOf -> Seal -> (mined by the miner package), after
// which a Block is immutable and may be persisted.
type Block struct {
	Height        uint64
	Timestamp     uint64
	ParentHash    types.Hash
	ContentHash   types.Hash
	ComponentHash types.Hash
	Nonce         uint64
	Hash          types.Hash
}

// New creates a fresh, unsealed block carrying only its content hash and
// timestamp. Height is 0 and ParentHash/ComponentHash/Hash are Invalid
// until the block passes through AsChildOf and Seal.
func New(contentHash types.Hash, timestamp uint64) *Block {
	return &Block{
		Height:        0,
		Timestamp:     timestamp,
		ParentHash:    types.Invalid,
		ContentHash:   contentHash,
		ComponentHash: types.Invalid,
		Nonce:         0,
		Hash:          types.Invalid,
	}
}

// AsChildOf returns a copy of b positioned as the direct child of parent:
// Height = parent.Height+1, ParentHash = parent.Hash.
func (b *Block) AsChildOf(parent *Block) *Block {
	clone := *b
	clone.Height = parent.Height + 1
	clone.ParentHash = parent.Hash
	return &clone
}

// Seal computes ComponentHash from the block's immutable fields and
// returns the updated block. Sealing is idempotent: sealing an already
// sealed block yields byte-identical output.
func (b *Block) Seal() *Block {
	clone := *b
	clone.ComponentHash = hash.Perform(clone.Height, timestampComponent(clone.Timestamp), clone.ParentHash, clone.ContentHash)
	return &clone
}

// timestampComponent renders a timestamp for the seal preimage. A zero
// timestamp marks an unset clock and is rendered as the empty string,
// not "0"; changing this would change every component hash on the chain.
func timestampComponent(ts uint64) string {
	if ts == 0 {
		return ""
	}
	return strconv.FormatUint(ts, 10)
}

// PowHash derives the proof-of-work hash for a component hash and nonce
// candidate: the component bytes directly concatenated with the decimal
// form of the nonce, with no separator. Both the miner and EnsureFinal
// derive through here so the two can never drift apart.
func PowHash(component types.Hash, nonce uint64) types.Hash {
	preimage := append(component.Bytes(), strconv.FormatUint(nonce, 10)...)
	return hash.Perform(preimage)
}

// Difficulty returns the minimum number of leading zero bytes a block's
// Hash must carry at the given height. Difficulty increases by one every
// 128 heights.
func Difficulty(height uint64) int {
	return int(height/128) + 1
}
