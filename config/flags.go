package config

import (
	"flag"
	"fmt"
	"os"
	"strings"
)

// Flags holds parsed command-line flags.
type Flags struct {
	// Commands
	Help bool

	// Core
	URI     string
	DataDir string
	Genesis string

	// Peers
	Seeds    string
	MaxPeers int

	// Storage
	StorageBackend string
	StoragePath    string

	// Mining
	Mine bool

	// Logging
	LogLevel string
	LogFile  string
	LogJSON  bool
}

// ParseFlags parses command-line flags.
func ParseFlags(args []string) (*Flags, error) {
	f := &Flags{}
	fs := flag.NewFlagSet("knotexd", flag.ContinueOnError)

	fs.BoolVar(&f.Help, "help", false, "Show help message")
	fs.BoolVar(&f.Help, "h", false, "Show help message (shorthand)")

	fs.StringVar(&f.URI, "uri", "", "Node URI to listen on (tcp://host:port)")
	fs.StringVar(&f.DataDir, "datadir", "", "Data directory path")
	fs.StringVar(&f.Genesis, "genesis", "", "Path to a genesis JSON file (default: built-in network)")

	fs.StringVar(&f.Seeds, "seeds", "", "Comma-separated peer URIs to dial on startup")
	fs.IntVar(&f.MaxPeers, "maxpeers", 0, "Maximum number of connected peers")

	fs.StringVar(&f.StorageBackend, "storage", "", "Block store backend (memory or disk)")
	fs.StringVar(&f.StoragePath, "storage-path", "", "Disk backend directory (default: <datadir>/chaindata)")

	fs.BoolVar(&f.Mine, "mine", false, "Mine blocks onto the local chain")

	fs.StringVar(&f.LogLevel, "log-level", "", "Log level (debug, info, warn, error)")
	fs.StringVar(&f.LogFile, "log-file", "", "Log file path")
	fs.BoolVar(&f.LogJSON, "log-json", false, "Log JSON to the console")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	if f.Help {
		fs.Usage()
	}
	if rest := fs.Args(); len(rest) > 0 {
		return nil, fmt.Errorf("unexpected arguments: %s", strings.Join(rest, " "))
	}
	return f, nil
}

// Load builds the effective configuration: defaults overlaid with flags.
func Load() (*Config, *Flags, error) {
	flags, err := ParseFlags(os.Args[1:])
	if err != nil {
		return nil, nil, err
	}
	cfg := Default()
	flags.Apply(cfg)
	if err := Validate(cfg); err != nil {
		return nil, nil, err
	}
	return cfg, flags, nil
}

// Apply overlays explicitly set flags onto cfg.
func (f *Flags) Apply(cfg *Config) {
	if f.URI != "" {
		cfg.URI = f.URI
	}
	if f.DataDir != "" {
		cfg.DataDir = f.DataDir
	}
	if f.Seeds != "" {
		cfg.Seeds = nil
		for _, seed := range strings.Split(f.Seeds, ",") {
			if s := strings.TrimSpace(seed); s != "" {
				cfg.Seeds = append(cfg.Seeds, s)
			}
		}
	}
	if f.MaxPeers > 0 {
		cfg.MaxPeers = f.MaxPeers
	}
	if f.StorageBackend != "" {
		cfg.Storage.Backend = StorageBackend(f.StorageBackend)
	}
	if f.StoragePath != "" {
		cfg.Storage.Path = f.StoragePath
	}
	if f.LogLevel != "" {
		cfg.Log.Level = f.LogLevel
	}
	if f.LogFile != "" {
		cfg.Log.File = f.LogFile
	}
	if f.LogJSON {
		cfg.Log.JSON = true
	}
}
