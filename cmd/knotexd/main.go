// Knotex node daemon.
//
// Usage:
//
//	knotexd [--uri tcp://host:port] [--seeds ...] [--mine] Run node
//	knotexd --help                                         Show help
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/knotex/knotex/config"
	klog "github.com/knotex/knotex/internal/log"
	"github.com/knotex/knotex/internal/miner"
	"github.com/knotex/knotex/node"
	"github.com/knotex/knotex/pkg/block"
	"github.com/knotex/knotex/pkg/types"
)

func main() {
	// ── 1. Load config (defaults → flags) ───────────────────────────────
	cfg, flags, err := config.Load()
	if err != nil {
		if err == flag.ErrHelp {
			os.Exit(0)
		}
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	if flags.Help {
		fmt.Println("knotexd runs a knotex node; see --help output above for flags")
		os.Exit(0)
	}

	// ── 2. Init logger ──────────────────────────────────────────────────
	// Default to logging to <datadir>/logs/knotex.log alongside console.
	logFile := cfg.Log.File
	if logFile == "" {
		logsDir := cfg.LogsDir()
		if err := os.MkdirAll(logsDir, 0755); err != nil {
			fmt.Fprintf(os.Stderr, "Error creating logs dir: %v\n", err)
			os.Exit(1)
		}
		logFile = logsDir + "/knotex.log"
	}
	if err := klog.Init(cfg.Log.Level, cfg.Log.JSON, logFile); err != nil {
		fmt.Fprintf(os.Stderr, "Error initializing logger: %v\n", err)
		os.Exit(1)
	}
	logger := klog.WithComponent("node")

	// ── 3. Genesis (built-in network unless --genesis overrides) ───────
	genesis := config.DefaultGenesis()
	if flags.Genesis != "" {
		genesis, err = config.LoadGenesisFile(flags.Genesis)
		if err != nil {
			logger.Fatal().Err(err).Str("path", flags.Genesis).Msg("Failed to load genesis")
		}
	}

	logger.Info().
		Str("uri", cfg.URI).
		Str("genesis", genesis.Hash.Short()).
		Str("storage", string(cfg.Storage.Backend)).
		Msg("Starting Knotex Node")

	// ── 4. Start the node ───────────────────────────────────────────────
	handle, err := node.Start(cfg.URI, genesis, cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to start node")
	}
	defer handle.Stop()

	// ── 5. Dial seed peers ──────────────────────────────────────────────
	for _, seed := range cfg.Seeds {
		if err := node.Connect(handle, seed); err != nil {
			logger.Warn().Err(err).Str("peer", seed).Msg("Skipping bad seed URI")
		}
	}

	// ── 6. Mining loop (optional) ───────────────────────────────────────
	mineCtx, stopMining := context.WithCancel(context.Background())
	defer stopMining()
	if flags.Mine {
		go mineLoop(mineCtx, handle)
		logger.Info().Msg("Mining enabled")
	}

	// ── 7. Wait for shutdown signal ─────────────────────────────────────
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh
	logger.Info().Str("signal", sig.String()).Msg("Shutting down")
}

// mineLoop seals and mines children of the current head until ctx is
// cancelled. Block payloads are outside this daemon's scope, so mined
// blocks carry the zero content hash.
func mineLoop(ctx context.Context, handle *node.Handle) {
	logger := klog.WithComponent("miner")
	for ctx.Err() == nil {
		head, err := handle.Logic.Head()
		if err != nil {
			return
		}
		sealed := block.New(types.Zero, uint64(time.Now().Unix())).AsChildOf(head).Seal()
		mined, err := miner.Mine(ctx, sealed)
		if err != nil {
			return // cancelled
		}
		if err := handle.Logic.SubmitBlock(mined); err != nil {
			// Somebody else extended the head while we were mining.
			logger.Debug().Err(err).Msg("Discarding stale mined block")
			continue
		}
	}
}
