package config

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/knotex/knotex/pkg/block"
	"github.com/knotex/knotex/pkg/types"
)

// =============================================================================
// Protocol Rules (immutable, defined in genesis)
// These MUST match across all nodes or consensus breaks.
// =============================================================================

// Genesis holds the configured genesis block fields. This is immutable
// after chain launch; every node on a network must carry the same
// values, and they must check out against the block derivation rules.
type Genesis struct {
	Timestamp     uint64     `json:"timestamp"`
	Nonce         uint64     `json:"nonce"`
	ParentHash    types.Hash `json:"parent_hash"`
	ContentHash   types.Hash `json:"content_hash"`
	ComponentHash types.Hash `json:"component_hash"`
	Hash          types.Hash `json:"hash"`
}

// DefaultGenesis returns the genesis block of the default network: the
// zero-content block at timestamp 0, mined at difficulty 1.
func DefaultGenesis() *Genesis {
	return &Genesis{
		Timestamp:     0,
		Nonce:         437,
		ParentHash:    types.Zero,
		ContentHash:   types.Zero,
		ComponentHash: mustHash("c85184afbb94b4f93bec9a631f841ac4c199ebdf9f436204ed913dd28a8ec5ff"),
		Hash:          mustHash("0002e8890bb0eaa5a3b9e52f0937dbf163c1cc2cf301a57f9b70307c575f79cf"),
	}
}

func mustHash(s string) types.Hash {
	h, err := types.HexToHash(s)
	if err != nil {
		panic(err)
	}
	return h
}

// LoadGenesisFile reads a genesis definition from a JSON file, for
// networks other than the default one.
func LoadGenesisFile(path string) (*Genesis, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read genesis file: %w", err)
	}
	var g Genesis
	if err := json.Unmarshal(data, &g); err != nil {
		return nil, fmt.Errorf("parse genesis file %s: %w", path, err)
	}
	return &g, nil
}

// BlockConfig converts the genesis definition into the block package's
// injectable form.
func (g *Genesis) BlockConfig() block.GenesisConfig {
	return block.GenesisConfig{
		Timestamp:     g.Timestamp,
		Nonce:         g.Nonce,
		ParentHash:    g.ParentHash,
		ContentHash:   g.ContentHash,
		ComponentHash: g.ComponentHash,
		Hash:          g.Hash,
	}
}

// Validate checks that the configured fields form a valid height-0
// block. Install is the authoritative check; this one exists so config
// errors read as config errors.
func (g *Genesis) Validate() error {
	if g.ParentHash != types.Zero {
		return fmt.Errorf("genesis parent_hash must be the zero hash")
	}
	if g.Hash == types.Zero || g.Hash == types.Invalid {
		return fmt.Errorf("genesis hash is unset")
	}
	return nil
}

// Install validates the genesis definition and makes it the process-wide
// genesis used by block.Genesis.
func (g *Genesis) Install() error {
	if err := g.Validate(); err != nil {
		return err
	}
	return block.SetGenesisConfig(g.BlockConfig())
}
