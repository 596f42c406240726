// Package logic implements the per-node coordinator. All chain state is
// owned by a single command-processing goroutine; peers, listeners, and
// embedders talk to it through posted commands, so chain mutations are
// totally ordered and the coordinator never blocks on a peer.
package logic

import (
	"errors"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/knotex/knotex/internal/blockstore"
	"github.com/knotex/knotex/internal/log"
	"github.com/knotex/knotex/internal/peer"
	"github.com/knotex/knotex/internal/protocol"
	"github.com/knotex/knotex/internal/wire"
	"github.com/knotex/knotex/pkg/block"
	"github.com/knotex/knotex/pkg/types"
	"github.com/rs/zerolog"
)

// socketTimeout bounds the socket-handoff RPC into the coordinator. A
// caller that cannot get an answer in this window closes the socket.
const socketTimeout = 5 * time.Second

// mailboxDepth bounds queued commands. Peer readers block on a full
// mailbox, which is exactly the demand-driven backpressure we want.
const mailboxDepth = 256

// ErrStopped is returned for requests posted after shutdown began.
var ErrStopped = errors.New("logic: coordinator stopped")

type peerState struct {
	ready    bool
	lastEcho uint64
}

// Logic is the per-node coordinator singleton.
type Logic struct {
	addr   types.NetAddr
	store  *blockstore.Store
	logger zerolog.Logger

	cmds     chan func()
	done     chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup

	// Owned by the run goroutine; never touched from outside it.
	chain       []*block.Block // head first, genesis last
	peers       map[*peer.Peer]*peerState
	listenerErr error
}

// New creates a coordinator whose chain starts at the configured genesis
// block. The genesis is persisted so chain walks always terminate in the
// store.
func New(addr types.NetAddr, store *blockstore.Store) (*Logic, error) {
	genesis := block.Genesis()
	if _, err := store.Store(genesis); err != nil {
		return nil, fmt.Errorf("store genesis: %w", err)
	}
	return &Logic{
		addr:   addr,
		store:  store,
		logger: log.Logic.With().Str("uri", addr.String()).Logger(),
		cmds:   make(chan func(), mailboxDepth),
		done:   make(chan struct{}),
		chain:  []*block.Block{genesis},
		peers:  make(map[*peer.Peer]*peerState),
	}, nil
}

// Start launches the command loop.
func (l *Logic) Start() {
	l.wg.Add(1)
	go l.run()
}

// Stop shuts the coordinator down and closes every peer.
func (l *Logic) Stop() {
	l.stopOnce.Do(func() { close(l.done) })
	l.wg.Wait()
}

func (l *Logic) run() {
	defer l.wg.Done()
	for {
		select {
		case cmd := <-l.cmds:
			cmd()
		case <-l.done:
			for p := range l.peers {
				p.Close(nil)
			}
			l.peers = make(map[*peer.Peer]*peerState)
			l.logger.Info().Msg("Coordinator stopped")
			return
		}
	}
}

// post enqueues a command; commands posted after shutdown are dropped.
func (l *Logic) post(cmd func()) {
	select {
	case l.cmds <- cmd:
	case <-l.done:
	}
}

// call posts a command and waits for it to run, up to timeout.
func (l *Logic) call(timeout time.Duration, cmd func()) error {
	ran := make(chan struct{})
	select {
	case l.cmds <- func() { cmd(); close(ran) }:
	case <-l.done:
		return ErrStopped
	case <-time.After(timeout):
		return fmt.Errorf("logic: mailbox full after %s", timeout)
	}
	select {
	case <-ran:
		return nil
	case <-l.done:
		return ErrStopped
	case <-time.After(timeout):
		return fmt.Errorf("logic: command not processed within %s", timeout)
	}
}

// Addr returns the node address this coordinator serves.
func (l *Logic) Addr() types.NetAddr {
	return l.addr
}

// Head returns the current chain head.
func (l *Logic) Head() (*block.Block, error) {
	var head *block.Block
	err := l.call(socketTimeout, func() { head = l.chain[0] })
	return head, err
}

// ChainLength returns the number of blocks on the active chain.
func (l *Logic) ChainLength() (int, error) {
	var n int
	err := l.call(socketTimeout, func() { n = len(l.chain) })
	return n, err
}

// PeerCount returns the number of registered peers.
func (l *Logic) PeerCount() (int, error) {
	var n int
	err := l.call(socketTimeout, func() { n = len(l.peers) })
	return n, err
}

// OnClientSocket takes ownership of a freshly accepted or dialed socket,
// spawns the owning peer, and registers it. Implements netio.SocketSink;
// on error the caller closes the socket.
func (l *Logic) OnClientSocket(conn net.Conn, direction peer.Direction) error {
	p := peer.New(conn, direction, l)
	if err := l.call(socketTimeout, func() {
		l.peers[p] = &peerState{}
	}); err != nil {
		return err
	}
	p.Start()
	l.post(func() { l.onClientReady(p) })
	return nil
}

// onClientReady runs in the command loop once a peer is registered: an
// outbound peer opens with a ping, and every new link begins chain sync
// with a highest-block query.
func (l *Logic) onClientReady(p *peer.Peer) {
	state, ok := l.peers[p]
	if !ok {
		return
	}
	state.ready = true
	l.logger.Debug().
		Str("remote", p.RemoteAddr()).
		Str("direction", p.Direction().String()).
		Msg("Peer ready")

	if p.Direction() == peer.Outbound {
		if err := p.Send(protocol.Ping(1)); err != nil {
			return
		}
	}
	_ = p.Send(protocol.HighestQuery())
}

// OnClientData is invoked from a peer's reader goroutine; per-peer
// ordering is preserved because each reader posts sequentially.
func (l *Logic) OnClientData(p *peer.Peer, msg wire.Term) {
	l.post(func() { l.dispatch(p, msg) })
}

// OnClientClosed removes a peer that has shut down.
func (l *Logic) OnClientClosed(p *peer.Peer, reason error) {
	l.post(func() {
		delete(l.peers, p)
		evt := l.logger.Debug().Str("remote", p.RemoteAddr())
		if reason != nil {
			evt = evt.Err(reason)
		}
		evt.Msg("Peer removed")
	})
}

// OnListenerTerminating records why the node's listener went away; the
// node wrapper decides whether to restart it.
func (l *Logic) OnListenerTerminating(reason error) {
	l.post(func() {
		l.listenerErr = reason
		if reason != nil {
			l.logger.Error().Err(reason).Msg("Listener terminated")
		}
	})
}

func (l *Logic) dispatch(p *peer.Peer, msg wire.Term) {
	state, ok := l.peers[p]
	if !ok {
		// Data raced with removal; the peer is gone.
		return
	}

	tag, ok := wire.Tag(msg)
	if !ok {
		l.logger.Warn().Str("remote", p.RemoteAddr()).Msg("Untagged message ignored")
		return
	}

	switch tag {
	case protocol.TagPing:
		n, err := protocol.EchoValue(msg)
		if err != nil {
			l.logger.Warn().Err(err).Str("remote", p.RemoteAddr()).Msg("Bad ping ignored")
			return
		}
		_ = p.Send(protocol.Pong(n))

	case protocol.TagPong:
		n, err := protocol.EchoValue(msg)
		if err != nil {
			l.logger.Warn().Err(err).Str("remote", p.RemoteAddr()).Msg("Bad pong ignored")
			return
		}
		state.lastEcho = n

	case protocol.TagBlockQuery:
		tuple := msg.(wire.Tuple)
		if len(tuple) != 2 {
			_ = p.Send(protocol.BlockResponse(protocol.ErrorToTerm(protocol.ErrInvalidBlockQuery)))
			return
		}
		_ = p.Send(protocol.BlockResponse(l.ProcessBlockQuery(tuple[1])))

	case protocol.TagBlockResponse:
		tuple := msg.(wire.Tuple)
		if len(tuple) != 2 {
			l.logger.Warn().Str("remote", p.RemoteAddr()).Msg("Bad block response ignored")
			return
		}
		l.onBlockPayload(p, tuple[1])

	case protocol.TagAnnounce:
		tuple := msg.(wire.Tuple)
		if len(tuple) != 2 {
			l.logger.Warn().Str("remote", p.RemoteAddr()).Msg("Bad announce ignored")
			return
		}
		l.onBlockPayload(p, tuple[1])

	default:
		l.logger.Warn().
			Str("remote", p.RemoteAddr()).
			Str("tag", string(tag)).
			Msg("Unknown message tag ignored")
	}
}

// ProcessBlockQuery answers one of the three query shapes. The ancestry
// answer includes the target block itself, so the reply carries the full
// chain up to the queried hash; the lower-level Ancestry walk excludes
// its starting block.
func (l *Logic) ProcessBlockQuery(q wire.Term) wire.Term {
	switch v := q.(type) {
	case wire.Atom:
		switch v {
		case protocol.QueryGenesis:
			return protocol.BlockToTerm(block.Genesis())
		case protocol.QueryHighest:
			return protocol.BlockToTerm(l.chain[0])
		}
	case wire.Tuple:
		if len(v) == 2 && v[0] == protocol.QueryAncestry {
			h, err := protocol.HashFromTerm(v[1])
			if err != nil {
				return protocol.ErrorToTerm(protocol.ErrInvalidBlockQuery)
			}
			target, ok, err := l.store.FindByHash(h)
			if err != nil {
				l.logger.Error().Err(err).Msg("Ancestry lookup failed")
				return protocol.ErrorToTerm(err)
			}
			if !ok {
				return protocol.ErrorToTerm(protocol.ErrUnknownBlockHash)
			}
			ancestors, err := target.Ancestry(l.store, -1)
			if err != nil {
				l.logger.Error().Err(err).Msg("Ancestry walk failed")
				return protocol.ErrorToTerm(err)
			}
			return protocol.BlocksToTerm(append(ancestors, target))
		}
	}
	return protocol.ErrorToTerm(protocol.ErrInvalidBlockQuery)
}

// onBlockPayload handles the payload of {block_response, _} and
// {announce, _}: a single block, a list of blocks (ancestry replies,
// applied oldest first), or a remote error.
func (l *Logic) onBlockPayload(p *peer.Peer, payload wire.Term) {
	if err, ok := protocol.ErrorFromTerm(payload); ok {
		l.logger.Debug().Err(err).Str("remote", p.RemoteAddr()).Msg("Remote answered with error")
		return
	}
	if blocks, err := protocol.BlocksFromTerm(payload); err == nil {
		for _, b := range blocks {
			l.acceptBlock(p, b)
		}
		return
	}
	b, err := protocol.BlockFromTerm(payload)
	if err != nil {
		l.logger.Warn().Err(err).Str("remote", p.RemoteAddr()).Msg("Undecodable block payload ignored")
		return
	}
	l.acceptBlock(p, b)
}

// acceptBlock applies the chain extension policy: a block extends the
// chain only when it is fully mined and is the direct child of the
// current head. Valid blocks that do not extend the head are stored but
// left off the chain; fork choice is deliberately absent.
func (l *Logic) acceptBlock(from *peer.Peer, b *block.Block) {
	head := l.chain[0]
	if b.Hash == head.Hash {
		return // already our head; common during sync
	}
	if _, onChain, _ := l.store.FindByHashAndHeight(b.Hash, b.Height); onChain && b.Height <= head.Height {
		return // already known
	}

	if err := b.EnsureFinal(); err != nil {
		l.logger.Warn().Err(err).
			Str("remote", from.RemoteAddr()).
			Str("hash", b.Hash.Short()).
			Msg("Rejected block")
		return
	}

	if err := b.EnsureKnownParent(l.store); err != nil {
		// The remote is ahead of us by more than one block; ask it for
		// the full lineage of what it just showed us.
		l.logger.Debug().
			Str("remote", from.RemoteAddr()).
			Str("hash", b.Hash.Short()).
			Uint64("height", b.Height).
			Msg("Block with unknown parent; requesting ancestry")
		_ = from.Send(protocol.AncestryQuery(b.Hash))
		return
	}

	if _, err := l.store.Store(b); err != nil {
		l.logger.Error().Err(err).Str("hash", b.Hash.Short()).Msg("Failed to persist block")
		return
	}

	if b.ParentHash != head.Hash || b.Height != head.Height+1 {
		l.logger.Info().
			Str("hash", b.Hash.Short()).
			Uint64("height", b.Height).
			Msg("Stored block outside active chain")
		return
	}

	l.chain = append([]*block.Block{b}, l.chain...)
	l.logger.Info().
		Str("hash", b.Hash.Short()).
		Uint64("height", b.Height).
		Msg("Chain extended")
	l.broadcast(from, protocol.Announce(b))
}

// SubmitBlock feeds a locally mined block into the coordinator, as if it
// had been announced by a peer; on success it is gossiped to all peers.
func (l *Logic) SubmitBlock(b *block.Block) error {
	var accepted bool
	err := l.call(socketTimeout, func() {
		before := l.chain[0]
		l.acceptLocal(b)
		accepted = l.chain[0].Hash != before.Hash
	})
	if err != nil {
		return err
	}
	if !accepted {
		return fmt.Errorf("logic: block %s does not extend the chain", b.Hash.Short())
	}
	return nil
}

// acceptLocal is acceptBlock without a source peer.
func (l *Logic) acceptLocal(b *block.Block) {
	head := l.chain[0]
	if err := b.EnsureFinal(); err != nil {
		l.logger.Warn().Err(err).Str("hash", b.Hash.Short()).Msg("Rejected local block")
		return
	}
	if err := b.EnsureKnownParent(l.store); err != nil {
		l.logger.Warn().Err(err).Str("hash", b.Hash.Short()).Msg("Rejected local block")
		return
	}
	if _, err := l.store.Store(b); err != nil {
		l.logger.Error().Err(err).Str("hash", b.Hash.Short()).Msg("Failed to persist block")
		return
	}
	if b.ParentHash != head.Hash || b.Height != head.Height+1 {
		l.logger.Info().Str("hash", b.Hash.Short()).Msg("Stored local block outside active chain")
		return
	}
	l.chain = append([]*block.Block{b}, l.chain...)
	l.logger.Info().
		Str("hash", b.Hash.Short()).
		Uint64("height", b.Height).
		Msg("Mined block onto chain")
	l.broadcast(nil, protocol.Announce(b))
}

// broadcast sends a message to every ready peer except the source.
func (l *Logic) broadcast(except *peer.Peer, msg wire.Term) {
	for p, state := range l.peers {
		if p == except || !state.ready {
			continue
		}
		_ = p.Send(msg)
	}
}
