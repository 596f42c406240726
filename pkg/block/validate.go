package block

import (
	"errors"
	"fmt"

	"github.com/knotex/knotex/pkg/hash"
	"github.com/knotex/knotex/pkg/types"
)

// Validation errors, in the order EnsureFinal reports them.
var (
	ErrComponentHashMismatch = errors.New("block: component hash mismatch")
	ErrHashMismatch          = errors.New("block: hash mismatch")
	ErrUnmetDifficulty       = hash.ErrUnmetDifficulty
	ErrUnknownParent         = errors.New("block: parent not found in store")
)

// EnsureFinal independently re-derives ComponentHash and Hash from the
// block's fields and checks them against the stored values, then checks
// that Hash meets the difficulty required at this height. Mismatches are
// reported in order: component hash, then hash, then difficulty.
func (b *Block) EnsureFinal() error {
	wantComponent := hash.Perform(b.Height, timestampComponent(b.Timestamp), b.ParentHash, b.ContentHash)
	if wantComponent != b.ComponentHash {
		return fmt.Errorf("%w: want %s got %s", ErrComponentHashMismatch,
			hash.ReadableShort(wantComponent, false), hash.ReadableShort(b.ComponentHash, false))
	}

	wantHash := PowHash(b.ComponentHash, b.Nonce)
	if wantHash != b.Hash {
		return fmt.Errorf("%w: want %s got %s", ErrHashMismatch,
			hash.ReadableShort(wantHash, false), hash.ReadableShort(b.Hash, false))
	}

	if err := hash.EnsureHardness(b.Hash, Difficulty(b.Height)); err != nil {
		return err
	}
	return nil
}

// Store is the subset of block persistence that the block package's
// chain-walk queries need. It is declared locally (rather than imported
// from the blockstore package) to avoid an import cycle between block and
// its storage implementation.
type Store interface {
	FindByHash(h types.Hash) (*Block, bool, error)
	FindByHashAndHeight(h types.Hash, height uint64) (*Block, bool, error)
}

// EnsureKnownParent succeeds iff the store holds a block with hash
// b.ParentHash at height b.Height-1. A block whose ParentHash is the zero
// hash is treated as genesis and always succeeds.
func (b *Block) EnsureKnownParent(store Store) error {
	if b.ParentHash == types.Zero {
		return nil
	}
	if b.Height == 0 {
		return ErrUnknownParent
	}
	_, ok, err := store.FindByHashAndHeight(b.ParentHash, b.Height-1)
	if err != nil {
		return fmt.Errorf("ensure known parent: %w", err)
	}
	if !ok {
		return ErrUnknownParent
	}
	return nil
}

// Mined reports whether b is both attached to a known parent in store and
// internally final (sealed, correctly mined, and meeting difficulty).
func (b *Block) Mined(store Store) bool {
	if err := b.EnsureKnownParent(store); err != nil {
		return false
	}
	if err := b.EnsureFinal(); err != nil {
		return false
	}
	return true
}

// Ancestry walks b's lineage via ParentHash, oldest ancestor first, not
// including b itself. n bounds the number of ancestors returned; n < 0
// means unbounded (walk until genesis). The walk stops when genesis
// (ParentHash == Zero) is reached or n ancestors have been collected,
// whichever comes first.
func (b *Block) Ancestry(store Store, n int) ([]*Block, error) {
	var reversed []*Block
	cur := b
	for n < 0 || len(reversed) < n {
		if cur.ParentHash == types.Zero {
			break
		}
		parent, ok, err := store.FindByHashAndHeight(cur.ParentHash, cur.Height-1)
		if err != nil {
			return nil, fmt.Errorf("ancestry: %w", err)
		}
		if !ok {
			return nil, ErrUnknownParent
		}
		reversed = append(reversed, parent)
		cur = parent
	}

	out := make([]*Block, len(reversed))
	for i, blk := range reversed {
		out[len(reversed)-1-i] = blk
	}
	return out, nil
}

// AncestryContains reports whether any ancestor of b (per Ancestry with an
// unbounded walk) has hash equal to target. Store errors encountered
// during the walk are propagated rather than silently treated as "not an
// ancestor", so callers can tell the two cases apart.
func (b *Block) AncestryContains(store Store, target types.Hash) (bool, error) {
	ancestors, err := b.Ancestry(store, -1)
	if err != nil {
		return false, err
	}
	for _, a := range ancestors {
		if a.Hash == target {
			return true, nil
		}
	}
	return false, nil
}
