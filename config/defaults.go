package config

import (
	"os"
	"path/filepath"
	"runtime"
)

// Default network settings.
const (
	DefaultHost     = "0.0.0.0"
	DefaultPort     = 4040
	DefaultMaxPeers = 50
)

// Default returns the default node configuration.
func Default() *Config {
	return &Config{
		URI:      "tcp://0.0.0.0:4040",
		DataDir:  DefaultDataDir(),
		Seeds:    []string{},
		MaxPeers: DefaultMaxPeers,
		Storage: StorageConfig{
			Backend: StorageDisk,
		},
		Log: LogConfig{
			Level: "info",
			JSON:  false,
		},
	}
}

// DefaultDataDir returns the platform-appropriate data directory.
func DefaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".knotex"
	}
	switch runtime.GOOS {
	case "darwin":
		return filepath.Join(home, "Library", "Application Support", "Knotex")
	case "windows":
		appData := os.Getenv("APPDATA")
		if appData != "" {
			return filepath.Join(appData, "Knotex")
		}
		return filepath.Join(home, "AppData", "Roaming", "Knotex")
	default:
		return filepath.Join(home, ".knotex")
	}
}

// ChainDataDir is where the disk block store lives, unless storage.path
// overrides it.
func (c *Config) ChainDataDir() string {
	if c.Storage.Path != "" {
		return c.Storage.Path
	}
	return filepath.Join(c.DataDir, "chaindata")
}

// LogsDir is where the default log file lives.
func (c *Config) LogsDir() string {
	return filepath.Join(c.DataDir, "logs")
}
