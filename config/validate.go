package config

import (
	"fmt"

	"github.com/knotex/knotex/pkg/types"
)

// Validate checks runtime node config for obvious operator mistakes.
func Validate(cfg *Config) error {
	if cfg == nil {
		return fmt.Errorf("config is nil")
	}
	if _, err := types.ParseURI(cfg.URI); err != nil {
		return fmt.Errorf("uri: %w", err)
	}
	if cfg.MaxPeers < 1 {
		return fmt.Errorf("maxpeers must be at least 1")
	}
	switch cfg.Storage.Backend {
	case StorageMemory:
	case StorageDisk:
		if cfg.DataDir == "" && cfg.Storage.Path == "" {
			return fmt.Errorf("storage.backend=disk requires datadir or storage.path")
		}
	default:
		return fmt.Errorf("storage.backend must be %q or %q", StorageMemory, StorageDisk)
	}
	for i, seed := range cfg.Seeds {
		if _, err := types.ParseURI(seed); err != nil {
			return fmt.Errorf("seeds[%d]: %w", i, err)
		}
	}
	switch cfg.Log.Level {
	case "", "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("log.level must be debug, info, warn, or error")
	}
	return nil
}
