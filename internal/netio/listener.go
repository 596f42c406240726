// Package netio owns the transport edges of a node: the TCP listener
// that accepts inbound sockets and the one-shot connector that dials
// out. Both hand accepted sockets to the coordinator and never touch
// them again.
package netio

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"

	"github.com/knotex/knotex/internal/log"
	"github.com/knotex/knotex/internal/peer"
	"github.com/knotex/knotex/pkg/types"
)

// SocketSink is the coordinator surface netio hands sockets to. The
// callee takes ownership of the conn; on error the caller closes it.
type SocketSink interface {
	OnClientSocket(conn net.Conn, direction peer.Direction) error
	OnListenerTerminating(reason error)
}

// Listener accepts inbound sockets on a node's address.
type Listener struct {
	addr types.NetAddr
	sink SocketSink

	mu sync.Mutex
	ln net.Listener
}

// NewListener creates a listener for addr; Run binds and serves.
func NewListener(addr types.NetAddr, sink SocketSink) *Listener {
	return &Listener{addr: addr, sink: sink}
}

// Run binds the address and accepts until ctx is cancelled or the
// listener fails. The bound socket is released on every exit path. Run
// reports termination to the sink exactly once; it returns nil on an
// orderly shutdown and the accept error otherwise.
func (l *Listener) Run(ctx context.Context) error {
	logger := log.Netio.With().Str("listen", l.addr.String()).Logger()

	ln, err := net.Listen("tcp", l.addr.HostPort())
	if err != nil {
		err = fmt.Errorf("bind %s: %w", l.addr, err)
		l.sink.OnListenerTerminating(err)
		return err
	}
	l.mu.Lock()
	l.ln = ln
	l.mu.Unlock()
	logger.Info().Msg("Listening")

	// Close the socket as soon as the node shuts down so Accept unblocks.
	stop := context.AfterFunc(ctx, func() { _ = ln.Close() })
	defer stop()
	defer ln.Close()

	for {
		conn, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				logger.Info().Msg("Listener stopped")
				l.sink.OnListenerTerminating(nil)
				return nil
			}
			err = fmt.Errorf("accept on %s: %w", l.addr, err)
			logger.Error().Err(err).Msg("Listener failed")
			l.sink.OnListenerTerminating(err)
			return err
		}

		logger.Debug().Str("remote", conn.RemoteAddr().String()).Msg("Inbound connection")
		if err := l.sink.OnClientSocket(conn, peer.Inbound); err != nil {
			logger.Warn().Err(err).Str("remote", conn.RemoteAddr().String()).
				Msg("Coordinator rejected inbound socket")
			_ = conn.Close()
		}
	}
}

// Addr returns the address the listener was created for (the one Run
// binds), not the socket's actual local address.
func (l *Listener) Addr() types.NetAddr {
	return l.addr
}
