// Package protocol defines the tagged messages peers exchange and the
// translation between domain values and wire terms.
package protocol

import (
	"errors"
	"fmt"

	"github.com/knotex/knotex/internal/wire"
	"github.com/knotex/knotex/pkg/types"
)

// Message tags.
const (
	TagPing          = wire.Atom("ping")
	TagPong          = wire.Atom("pong")
	TagBlockQuery    = wire.Atom("block_query")
	TagBlockResponse = wire.Atom("block_response")
	TagAnnounce      = wire.Atom("announce")
)

// Query tags inside {block_query, q}.
const (
	QueryGenesis  = wire.Atom("genesis")
	QueryHighest  = wire.Atom("highest")
	QueryAncestry = wire.Atom("ancestry")
)

// ErrBadMessage is returned when a decoded term is not one of the
// protocol's message shapes.
var ErrBadMessage = errors.New("protocol: malformed message")

// Ping builds {ping, n}.
func Ping(n uint64) wire.Term {
	return wire.Tuple{TagPing, wire.Int(n)}
}

// Pong builds {pong, n}.
func Pong(n uint64) wire.Term {
	return wire.Tuple{TagPong, wire.Int(n)}
}

// GenesisQuery builds {block_query, genesis}.
func GenesisQuery() wire.Term {
	return wire.Tuple{TagBlockQuery, QueryGenesis}
}

// HighestQuery builds {block_query, highest}.
func HighestQuery() wire.Term {
	return wire.Tuple{TagBlockQuery, QueryHighest}
}

// AncestryQuery builds {block_query, {ancestry, hash}}.
func AncestryQuery(h types.Hash) wire.Term {
	return wire.Tuple{TagBlockQuery, wire.Tuple{QueryAncestry, wire.Bytes(h.Bytes())}}
}

// BlockResponse builds {block_response, payload}. The payload is a block
// term, a list-of-blocks term, or an error term.
func BlockResponse(payload wire.Term) wire.Term {
	return wire.Tuple{TagBlockResponse, payload}
}

// EchoValue extracts n from {ping, n} or {pong, n}.
func EchoValue(t wire.Term) (uint64, error) {
	tuple, ok := t.(wire.Tuple)
	if !ok || len(tuple) != 2 {
		return 0, fmt.Errorf("%w: ping/pong must be a 2-tuple", ErrBadMessage)
	}
	n, ok := tuple[1].(wire.Int)
	if !ok {
		return 0, fmt.Errorf("%w: ping/pong payload must be an integer", ErrBadMessage)
	}
	return uint64(n), nil
}

// HashFromTerm extracts a 32-byte hash from a Bytes term.
func HashFromTerm(t wire.Term) (types.Hash, error) {
	b, ok := t.(wire.Bytes)
	if !ok {
		return types.Hash{}, fmt.Errorf("%w: expected a byte string hash", ErrBadMessage)
	}
	if len(b) != types.HashSize {
		return types.Hash{}, fmt.Errorf("%w: hash must be %d bytes, got %d", ErrBadMessage, types.HashSize, len(b))
	}
	var h types.Hash
	copy(h[:], b)
	return h, nil
}
