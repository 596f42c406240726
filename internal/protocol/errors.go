package protocol

import (
	"errors"
	"fmt"

	"github.com/knotex/knotex/internal/blockstore"
	"github.com/knotex/knotex/internal/wire"
	"github.com/knotex/knotex/pkg/block"
	"github.com/knotex/knotex/pkg/hash"
)

// Query errors answered over the wire. They live here rather than in the
// coordinator so both sides of the protocol share one vocabulary.
var (
	ErrUnknownBlockHash  = errors.New("protocol: unknown block hash")
	ErrInvalidBlockQuery = errors.New("protocol: invalid block query")
)

const errorTag = wire.Atom("error")

// Error atoms carried inside {error, reason}.
var errAtoms = []struct {
	atom wire.Atom
	err  error
}{
	{"unknown_block_hash", ErrUnknownBlockHash},
	{"invalid_block_query", ErrInvalidBlockQuery},
	{"component_hash_mismatch", block.ErrComponentHashMismatch},
	{"hash_mismatch", block.ErrHashMismatch},
	{"unmet_difficulty", hash.ErrUnmetDifficulty},
	{"unknown_parent", block.ErrUnknownParent},
	{"not_found", blockstore.ErrNotFound},
}

// ErrorToTerm encodes a structured error as {error, reason}. Errors
// outside the protocol vocabulary collapse to {error, internal}: the
// detail is for the local log, not the remote peer.
func ErrorToTerm(err error) wire.Term {
	for _, e := range errAtoms {
		if errors.Is(err, e.err) {
			return wire.Tuple{errorTag, e.atom}
		}
	}
	return wire.Tuple{errorTag, wire.Atom("internal")}
}

// ErrorFromTerm decodes {error, reason} back into the matching sentinel.
// Returns ok=false when the term is not an error term at all.
func ErrorFromTerm(t wire.Term) (error, bool) {
	tuple, ok := t.(wire.Tuple)
	if !ok || len(tuple) != 2 || tuple[0] != errorTag {
		return nil, false
	}
	reason, ok := tuple[1].(wire.Atom)
	if !ok {
		return nil, false
	}
	for _, e := range errAtoms {
		if e.atom == reason {
			return e.err, true
		}
	}
	return fmt.Errorf("protocol: remote error %s", reason), true
}
