package netio

import (
	"context"
	"errors"
	"fmt"
	"net"
	"syscall"
	"time"

	"github.com/knotex/knotex/internal/log"
	"github.com/knotex/knotex/internal/peer"
	"github.com/knotex/knotex/pkg/types"
)

// DialTimeout bounds a single outbound dial.
const DialTimeout = 10 * time.Second

// Connect dials uri once and hands the socket to the sink as an
// outbound client. A refused connection is a normal outcome (the remote
// is simply not up) and returns nil after a warning; other failures
// return the error so the caller's restart policy can decide.
func Connect(ctx context.Context, uri string, sink SocketSink) error {
	logger := log.Netio.With().Str("dial", uri).Logger()

	addr, err := types.ParseURI(uri)
	if err != nil {
		logger.Error().Err(err).Msg("Dial failed")
		return err
	}

	d := net.Dialer{Timeout: DialTimeout}
	conn, err := d.DialContext(ctx, "tcp", addr.HostPort())
	if err != nil {
		if errors.Is(err, syscall.ECONNREFUSED) {
			logger.Warn().Msg("Connection refused")
			return nil
		}
		err = fmt.Errorf("dial %s: %w", uri, err)
		logger.Error().Err(err).Msg("Dial failed")
		return err
	}

	logger.Debug().Str("remote", conn.RemoteAddr().String()).Msg("Outbound connection")
	if err := sink.OnClientSocket(conn, peer.Outbound); err != nil {
		_ = conn.Close()
		return fmt.Errorf("hand off socket for %s: %w", uri, err)
	}
	return nil
}
