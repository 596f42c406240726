// Package peer runs one actor per connected socket: a blocking reader
// that forwards decoded frames to the coordinator, and a single writer
// goroutine that serializes outbound frames.
package peer

import (
	"errors"
	"fmt"
	"io"
	"net"
	"sync"

	"github.com/knotex/knotex/internal/log"
	"github.com/knotex/knotex/internal/wire"
	"github.com/rs/zerolog"
)

// Direction records which side opened the connection.
type Direction int

const (
	Inbound Direction = iota
	Outbound
)

func (d Direction) String() string {
	if d == Outbound {
		return "outbound"
	}
	return "inbound"
}

// sendBacklog bounds the outbound queue. A peer that cannot drain this
// many frames is a slow consumer and gets disconnected instead of
// stalling the coordinator.
const sendBacklog = 64

// ErrClosed is returned by Send after the peer has shut down.
var ErrClosed = errors.New("peer: connection closed")

// Handler is the coordinator-side surface a peer reports into.
// OnClientData is invoked from the peer's reader goroutine; OnClientClosed
// is invoked from whichever goroutine closes the peer (its own reader or
// writer, or a caller of Send or Close). Implementations must not block
// on the peer in return.
type Handler interface {
	OnClientData(p *Peer, msg wire.Term)
	OnClientClosed(p *Peer, reason error)
}

// Peer owns one socket. After New the caller must not touch the conn
// again; the handoff is the ownership transfer.
type Peer struct {
	conn      net.Conn
	direction Direction
	handler   Handler
	logger    zerolog.Logger

	out    chan wire.Term
	closed chan struct{}

	closeOnce sync.Once
	wg        sync.WaitGroup
}

// New wraps an owned socket. The peer does not read or write until
// Start.
func New(conn net.Conn, direction Direction, handler Handler) *Peer {
	return &Peer{
		conn:      conn,
		direction: direction,
		handler:   handler,
		logger: log.Peer.With().
			Str("remote", conn.RemoteAddr().String()).
			Str("direction", direction.String()).
			Logger(),
		out:    make(chan wire.Term, sendBacklog),
		closed: make(chan struct{}),
	}
}

// Start launches the reader and writer goroutines.
func (p *Peer) Start() {
	p.wg.Add(2)
	go p.readLoop()
	go p.writeLoop()
}

// Direction reports which side opened the connection.
func (p *Peer) Direction() Direction {
	return p.direction
}

// RemoteAddr identifies the far end, for logging and peer bookkeeping.
func (p *Peer) RemoteAddr() string {
	return p.conn.RemoteAddr().String()
}

// Send queues a frame for the writer goroutine. It never blocks: a full
// backlog means the remote has stopped draining, and the peer is closed
// rather than letting queues grow without bound.
func (p *Peer) Send(msg wire.Term) error {
	select {
	case <-p.closed:
		return ErrClosed
	default:
	}
	select {
	case p.out <- msg:
		return nil
	case <-p.closed:
		return ErrClosed
	default:
		err := fmt.Errorf("peer: send backlog full (%d frames)", sendBacklog)
		p.Close(err)
		return err
	}
}

// Close shuts the socket down and notifies the handler exactly once.
// A nil reason marks an orderly close.
func (p *Peer) Close(reason error) {
	p.closeOnce.Do(func() {
		close(p.closed)
		_ = p.conn.Close()
		if reason != nil {
			p.logger.Debug().Err(reason).Msg("Peer closed")
		} else {
			p.logger.Debug().Msg("Peer closed")
		}
		p.handler.OnClientClosed(p, reason)
	})
}

// Wait blocks until both peer goroutines have exited. Test support.
func (p *Peer) Wait() {
	p.wg.Wait()
}

// readLoop pulls one frame at a time off the socket; demand-driven
// backpressure is the blocking read itself.
func (p *Peer) readLoop() {
	defer p.wg.Done()
	for {
		msg, err := wire.ReadFrame(p.conn)
		if err != nil {
			select {
			case <-p.closed:
				// Already closing; the read failed because the socket went away.
				return
			default:
			}
			if err == io.EOF {
				p.Close(nil)
			} else {
				p.Close(err)
			}
			return
		}
		p.handler.OnClientData(p, msg)
	}
}

func (p *Peer) writeLoop() {
	defer p.wg.Done()
	for {
		select {
		case msg := <-p.out:
			if err := wire.WriteFrame(p.conn, msg); err != nil {
				p.Close(fmt.Errorf("peer write: %w", err))
				return
			}
		case <-p.closed:
			return
		}
	}
}
