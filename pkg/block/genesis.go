package block

import (
	"fmt"
	"sync"

	"github.com/knotex/knotex/pkg/types"
)

// GenesisConfig carries the statically configured genesis block fields.
// It is injected by the embedding process (see config.Genesis)
// rather than hardcoded here, so that different networks can run
// different genesis blocks against the same core.
type GenesisConfig struct {
	Timestamp     uint64
	Nonce         uint64
	ParentHash    types.Hash
	ContentHash   types.Hash
	ComponentHash types.Hash
	Hash          types.Hash
}

var (
	genesisMu  sync.RWMutex
	genesisCfg *GenesisConfig
)

// SetGenesisConfig installs the genesis fields used by Genesis. The
// supplied configuration must itself pass EnsureFinal as a height-0
// block with ParentHash == Zero; otherwise an error is returned and the
// previous configuration (if any) is left untouched.
func SetGenesisConfig(cfg GenesisConfig) error {
	if cfg.ParentHash != types.Zero {
		return fmt.Errorf("block: genesis parent hash must be zero, got %s", cfg.ParentHash)
	}
	candidate := &Block{
		Height:        0,
		Timestamp:     cfg.Timestamp,
		ParentHash:    cfg.ParentHash,
		ContentHash:   cfg.ContentHash,
		ComponentHash: cfg.ComponentHash,
		Nonce:         cfg.Nonce,
		Hash:          cfg.Hash,
	}
	if err := candidate.EnsureFinal(); err != nil {
		return fmt.Errorf("block: invalid genesis configuration: %w", err)
	}

	genesisMu.Lock()
	defer genesisMu.Unlock()
	c := cfg
	genesisCfg = &c
	return nil
}

// Genesis returns the configured genesis block. It panics if
// SetGenesisConfig has not yet been called successfully, since every node
// must be started with a genesis configuration before it can operate.
func Genesis() *Block {
	genesisMu.RLock()
	defer genesisMu.RUnlock()
	if genesisCfg == nil {
		panic("block: genesis configuration not set; call SetGenesisConfig at startup")
	}
	c := genesisCfg
	return &Block{
		Height:        0,
		Timestamp:     c.Timestamp,
		ParentHash:    c.ParentHash,
		ContentHash:   c.ContentHash,
		ComponentHash: c.ComponentHash,
		Nonce:         c.Nonce,
		Hash:          c.Hash,
	}
}
