package types

import (
	"fmt"
	"net"
	"strconv"
	"strings"
)

// URIScheme is the only transport scheme knotex speaks.
const URIScheme = "tcp"

// NetAddr identifies a node by host and port. Sub-components of a node
// (logic, listener, clients, connectors) are named by pairing a NetAddr
// with a role string in the registry.
type NetAddr struct {
	Host string
	Port int
}

// ParseURI parses a "tcp://host:port" URI into a NetAddr. The scheme is
// mandatory; bare host:port strings are rejected so that a future scheme
// can be introduced without ambiguity.
func ParseURI(uri string) (NetAddr, error) {
	rest, ok := strings.CutPrefix(uri, URIScheme+"://")
	if !ok {
		return NetAddr{}, fmt.Errorf("invalid node URI %q: expected scheme %s://", uri, URIScheme)
	}
	host, portStr, err := net.SplitHostPort(rest)
	if err != nil {
		return NetAddr{}, fmt.Errorf("invalid node URI %q: %w", uri, err)
	}
	if host == "" {
		return NetAddr{}, fmt.Errorf("invalid node URI %q: empty host", uri)
	}
	port, err := strconv.Atoi(portStr)
	if err != nil || port < 1 || port > 65535 {
		return NetAddr{}, fmt.Errorf("invalid node URI %q: bad port %q", uri, portStr)
	}
	return NetAddr{Host: host, Port: port}, nil
}

// String renders the address back into URI form.
func (a NetAddr) String() string {
	return URIScheme + "://" + a.HostPort()
}

// HostPort renders the address as "host:port", the form the net package
// dials and listens on.
func (a NetAddr) HostPort() string {
	return net.JoinHostPort(a.Host, strconv.Itoa(a.Port))
}
