package netio

import (
	"context"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/knotex/knotex/internal/peer"
	"github.com/knotex/knotex/pkg/types"
)

type fakeSink struct {
	mu          sync.Mutex
	conns       []net.Conn
	dirs        []peer.Direction
	terminated  int
	termReason  error
	gotConn     chan struct{}
	gotTerm     chan struct{}
	rejectConns bool
}

func newFakeSink() *fakeSink {
	return &fakeSink{
		gotConn: make(chan struct{}, 16),
		gotTerm: make(chan struct{}, 16),
	}
}

func (s *fakeSink) OnClientSocket(conn net.Conn, dir peer.Direction) error {
	s.mu.Lock()
	defer func() {
		s.mu.Unlock()
		s.gotConn <- struct{}{}
	}()
	if s.rejectConns {
		return context.Canceled
	}
	s.conns = append(s.conns, conn)
	s.dirs = append(s.dirs, dir)
	return nil
}

func (s *fakeSink) OnListenerTerminating(reason error) {
	s.mu.Lock()
	s.terminated++
	s.termReason = reason
	s.mu.Unlock()
	s.gotTerm <- struct{}{}
}

func freeAddr(t *testing.T) types.NetAddr {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	defer ln.Close()
	addr, err := types.ParseURI("tcp://" + ln.Addr().String())
	if err != nil {
		t.Fatal(err)
	}
	return addr
}

func waitFor(t *testing.T, ch chan struct{}, what string) {
	t.Helper()
	select {
	case <-ch:
	case <-time.After(5 * time.Second):
		t.Fatalf("timed out waiting for %s", what)
	}
}

func TestListenerHandsInboundSocketsToSink(t *testing.T) {
	addr := freeAddr(t)
	sink := newFakeSink()
	l := NewListener(addr, sink)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- l.Run(ctx) }()

	// Give the listener a moment to bind, then dial in.
	var conn net.Conn
	var err error
	for i := 0; i < 50; i++ {
		conn, err = net.Dial("tcp", addr.HostPort())
		if err == nil {
			break
		}
		time.Sleep(20 * time.Millisecond)
	}
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	waitFor(t, sink.gotConn, "OnClientSocket")
	sink.mu.Lock()
	if len(sink.conns) != 1 || sink.dirs[0] != peer.Inbound {
		t.Fatalf("sink saw %d conns, dirs %v", len(sink.conns), sink.dirs)
	}
	sink.mu.Unlock()

	cancel()
	waitFor(t, sink.gotTerm, "OnListenerTerminating")
	if err := <-done; err != nil {
		t.Fatalf("Run returned %v on orderly shutdown", err)
	}
	sink.mu.Lock()
	defer sink.mu.Unlock()
	if sink.terminated != 1 || sink.termReason != nil {
		t.Fatalf("terminated %d times, reason %v", sink.terminated, sink.termReason)
	}
}

func TestListenerClosesRejectedSockets(t *testing.T) {
	addr := freeAddr(t)
	sink := newFakeSink()
	sink.rejectConns = true
	l := NewListener(addr, sink)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = l.Run(ctx) }()

	var conn net.Conn
	var err error
	for i := 0; i < 50; i++ {
		conn, err = net.Dial("tcp", addr.HostPort())
		if err == nil {
			break
		}
		time.Sleep(20 * time.Millisecond)
	}
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	waitFor(t, sink.gotConn, "OnClientSocket")
	// The rejected socket should be closed by the listener: a read on our
	// end must terminate rather than block forever.
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	buf := make([]byte, 1)
	if _, err := conn.Read(buf); err == nil {
		t.Fatal("expected the rejected socket to be closed")
	}
}

func TestListenerBindFailureReportsTermination(t *testing.T) {
	// Occupy the port first.
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	defer ln.Close()
	addr, err := types.ParseURI("tcp://" + ln.Addr().String())
	if err != nil {
		t.Fatal(err)
	}

	sink := newFakeSink()
	l := NewListener(addr, sink)
	if err := l.Run(context.Background()); err == nil {
		t.Fatal("Run must fail when the port is taken")
	}
	waitFor(t, sink.gotTerm, "OnListenerTerminating")
	sink.mu.Lock()
	defer sink.mu.Unlock()
	if sink.termReason == nil {
		t.Fatal("bind failure must carry a termination reason")
	}
}

func TestConnectHandsOutboundSocketToSink(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	defer ln.Close()
	go func() {
		conn, err := ln.Accept()
		if err == nil {
			defer conn.Close()
			time.Sleep(100 * time.Millisecond)
		}
	}()

	sink := newFakeSink()
	if err := Connect(context.Background(), "tcp://"+ln.Addr().String(), sink); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	waitFor(t, sink.gotConn, "OnClientSocket")
	sink.mu.Lock()
	defer sink.mu.Unlock()
	if len(sink.conns) != 1 || sink.dirs[0] != peer.Outbound {
		t.Fatalf("sink saw %d conns, dirs %v", len(sink.conns), sink.dirs)
	}
	sink.conns[0].Close()
}

func TestConnectRefusedIsNormal(t *testing.T) {
	// Grab a port and release it so nothing is listening there.
	addr := freeAddr(t)
	sink := newFakeSink()
	if err := Connect(context.Background(), addr.String(), sink); err != nil {
		t.Fatalf("refused dial must return nil, got %v", err)
	}
	sink.mu.Lock()
	defer sink.mu.Unlock()
	if len(sink.conns) != 0 {
		t.Fatal("no socket should reach the sink on a refused dial")
	}
}

func TestConnectRejectsBadURI(t *testing.T) {
	sink := newFakeSink()
	if err := Connect(context.Background(), "127.0.0.1:4040", sink); err == nil {
		t.Fatal("expected error for URI without scheme")
	}
}
