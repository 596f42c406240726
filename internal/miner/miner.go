// Package miner implements the reference proof-of-work nonce search.
package miner

import (
	"context"

	"github.com/knotex/knotex/internal/log"
	"github.com/knotex/knotex/pkg/block"
	"github.com/knotex/knotex/pkg/hash"
)

// checkInterval is how often, in nonce iterations, the cancellation
// context is polled. Checking every iteration would be wasteful; checking
// too rarely makes cancellation sluggish.
const checkInterval = 1 << 16

// Mine searches for a nonce satisfying the difficulty required at
// sealed.Height, starting from nonce 0. It does not re-seal the block;
// the caller must have already called Seal. Cancellation is honored
// between nonce checks: if ctx is done before a solution is found, Mine
// returns ctx.Err().
func Mine(ctx context.Context, sealed *block.Block) (*block.Block, error) {
	logger := log.WithComponent("miner")
	target := block.Difficulty(sealed.Height)
	clone := *sealed

	for nonce := uint64(0); ; nonce++ {
		if nonce%checkInterval == 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			default:
			}
		}

		candidate := block.PowHash(clone.ComponentHash, nonce)
		if hash.EnsureHardness(candidate, target) == nil {
			clone.Nonce = nonce
			clone.Hash = candidate
			logger.Debug().
				Uint64("height", clone.Height).
				Uint64("nonce", nonce).
				Str("hash", hash.ReadableShort(candidate, false)).
				Msg("block mined")
			return &clone, nil
		}
	}
}
