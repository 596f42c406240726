// Package node provides a reusable knotex node that can be embedded in
// any binary: it wires genesis, storage, coordinator, and listener into
// one handle.
package node

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/knotex/knotex/config"
	"github.com/knotex/knotex/internal/blockstore"
	"github.com/knotex/knotex/internal/log"
	"github.com/knotex/knotex/internal/logic"
	"github.com/knotex/knotex/internal/netio"
	"github.com/knotex/knotex/internal/registry"
	"github.com/knotex/knotex/internal/storage"
	"github.com/knotex/knotex/pkg/types"
)

// listenerRestartDelay paces restarts after an abnormal listener exit.
const listenerRestartDelay = time.Second

// connectRetryDelay paces dial retries after an abnormal connector exit.
const connectRetryDelay = 2 * time.Second

// connectAttempts bounds how often a failing dial is retried before the
// connector gives up. A refused connection is a normal exit and is not
// retried.
const connectAttempts = 3

// names is the process-wide registry backing Start idempotency and
// (host, port, role) lookups across nodes in one process.
var names = registry.New()

var startMu sync.Mutex

// Handle bundles the running pieces of one node.
type Handle struct {
	URI      string
	Addr     types.NetAddr
	Logic    *logic.Logic
	Listener *netio.Listener
	Registry *registry.Registry

	db       storage.DB
	ctx      context.Context
	cancel   context.CancelFunc
	wg       sync.WaitGroup
	stopOnce sync.Once
}

// Start brings a node up on uri. Starting a node that is already running
// for the same URI returns the existing handle. A nil genesis means the
// default network; a nil cfg means default settings with a memory store.
func Start(uri string, genesis *config.Genesis, cfg *config.Config) (*Handle, error) {
	addr, err := types.ParseURI(uri)
	if err != nil {
		return nil, err
	}

	startMu.Lock()
	defer startMu.Unlock()

	if existing, ok := names.Lookup(registry.Via(addr, registry.RoleNode)); ok {
		return existing.(*Handle), nil
	}

	if genesis == nil {
		genesis = config.DefaultGenesis()
	}
	if err := genesis.Install(); err != nil {
		return nil, fmt.Errorf("install genesis: %w", err)
	}

	if cfg == nil {
		cfg = config.Default()
		cfg.Storage.Backend = config.StorageMemory
	}

	var db storage.DB
	switch cfg.Storage.Backend {
	case config.StorageDisk:
		db, err = storage.NewBadger(cfg.ChainDataDir())
		if err != nil {
			return nil, err
		}
	default:
		db = storage.NewMemory()
	}

	store := blockstore.New(db)
	lg, err := logic.New(addr, store)
	if err != nil {
		db.Close()
		return nil, err
	}

	ctx, cancel := context.WithCancel(context.Background())
	h := &Handle{
		URI:      addr.String(),
		Addr:     addr,
		Logic:    lg,
		Listener: netio.NewListener(addr, lg),
		Registry: names,
		db:       db,
		ctx:      ctx,
		cancel:   cancel,
	}

	for _, role := range []string{registry.RoleNode, registry.RoleLogic, registry.RoleListener,
		registry.RoleClients, registry.RoleConnectors} {
		var handle any = h
		switch role {
		case registry.RoleLogic:
			handle = lg
		case registry.RoleListener:
			handle = h.Listener
		}
		if err := names.Register(registry.Via(addr, role), handle); err != nil {
			h.teardown()
			return nil, err
		}
	}

	lg.Start()
	h.wg.Add(1)
	go h.runListener()

	log.Node.Info().Str("uri", h.URI).Msg("Node started")
	return h, nil
}

// runListener serves the node's listener with a transient restart
// policy: an orderly stop ends it, an abnormal exit restarts it after a
// short delay.
func (h *Handle) runListener() {
	defer h.wg.Done()
	for {
		err := h.Listener.Run(h.ctx)
		if err == nil || h.ctx.Err() != nil {
			return
		}
		log.Node.Warn().Err(err).Str("uri", h.URI).Msg("Listener exited; restarting")
		select {
		case <-time.After(listenerRestartDelay):
		case <-h.ctx.Done():
			return
		}
	}
}

// Connect spawns a connector that dials uri and hands the socket to this
// node's coordinator. The dial happens in the background; a refused
// connection is a normal outcome, and other failures are retried a few
// times before the connector gives up.
func Connect(h *Handle, uri string) error {
	if _, err := types.ParseURI(uri); err != nil {
		return err
	}
	h.wg.Add(1)
	go func() {
		defer h.wg.Done()
		for attempt := 1; ; attempt++ {
			err := netio.Connect(h.ctx, uri, h.Logic)
			if err == nil || h.ctx.Err() != nil {
				return
			}
			if attempt >= connectAttempts {
				log.Node.Error().Err(err).Str("peer", uri).Msg("Giving up on peer")
				return
			}
			select {
			case <-time.After(connectRetryDelay):
			case <-h.ctx.Done():
				return
			}
		}
	}()
	return nil
}

// Stop shuts the node down: listener first, then coordinator and peers,
// then storage. Stopping twice is safe.
func (h *Handle) Stop() {
	h.stopOnce.Do(func() {
		h.teardown()
		log.Node.Info().Str("uri", h.URI).Msg("Node stopped")
	})
}

func (h *Handle) teardown() {
	h.cancel()
	h.wg.Wait()
	h.Logic.Stop()
	_ = h.db.Close()

	for _, role := range []string{registry.RoleNode, registry.RoleLogic, registry.RoleListener,
		registry.RoleClients, registry.RoleConnectors} {
		names.Unregister(registry.Via(h.Addr, role))
	}
}
