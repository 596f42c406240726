package protocol

import (
	"fmt"

	"github.com/knotex/knotex/internal/wire"
	"github.com/knotex/knotex/pkg/block"
)

// blockTag leads every encoded block so a block term cannot be confused
// with an error term inside {block_response, _}.
const blockTag = wire.Atom("block")

// listTag leads an encoded list of blocks (ancestry responses).
const listTag = wire.Atom("blocks")

const blockTermLen = 8 // tag + 7 fields

// BlockToTerm encodes a block as a tagged tuple of its seven fields.
func BlockToTerm(b *block.Block) wire.Term {
	return wire.Tuple{
		blockTag,
		wire.Int(b.Height),
		wire.Int(b.Timestamp),
		wire.Bytes(b.ParentHash.Bytes()),
		wire.Bytes(b.ContentHash.Bytes()),
		wire.Bytes(b.ComponentHash.Bytes()),
		wire.Int(b.Nonce),
		wire.Bytes(b.Hash.Bytes()),
	}
}

// BlockFromTerm decodes a tagged block tuple.
func BlockFromTerm(t wire.Term) (*block.Block, error) {
	tuple, ok := t.(wire.Tuple)
	if !ok || len(tuple) != blockTermLen {
		return nil, fmt.Errorf("%w: block must be a %d-tuple", ErrBadMessage, blockTermLen)
	}
	if tuple[0] != blockTag {
		return nil, fmt.Errorf("%w: not a block term", ErrBadMessage)
	}

	height, ok := tuple[1].(wire.Int)
	if !ok {
		return nil, fmt.Errorf("%w: block height must be an integer", ErrBadMessage)
	}
	timestamp, ok := tuple[2].(wire.Int)
	if !ok {
		return nil, fmt.Errorf("%w: block timestamp must be an integer", ErrBadMessage)
	}
	parentHash, err := HashFromTerm(tuple[3])
	if err != nil {
		return nil, err
	}
	contentHash, err := HashFromTerm(tuple[4])
	if err != nil {
		return nil, err
	}
	componentHash, err := HashFromTerm(tuple[5])
	if err != nil {
		return nil, err
	}
	nonce, ok := tuple[6].(wire.Int)
	if !ok {
		return nil, fmt.Errorf("%w: block nonce must be an integer", ErrBadMessage)
	}
	hash, err := HashFromTerm(tuple[7])
	if err != nil {
		return nil, err
	}

	return &block.Block{
		Height:        uint64(height),
		Timestamp:     uint64(timestamp),
		ParentHash:    parentHash,
		ContentHash:   contentHash,
		ComponentHash: componentHash,
		Nonce:         uint64(nonce),
		Hash:          hash,
	}, nil
}

// Announce builds {announce, block}.
func Announce(b *block.Block) wire.Term {
	return wire.Tuple{TagAnnounce, BlockToTerm(b)}
}

// BlocksToTerm encodes an ordered list of blocks.
func BlocksToTerm(blocks []*block.Block) wire.Term {
	tuple := make(wire.Tuple, 0, len(blocks)+1)
	tuple = append(tuple, listTag)
	for _, b := range blocks {
		tuple = append(tuple, BlockToTerm(b))
	}
	return tuple
}

// BlocksFromTerm decodes a list of blocks, preserving order.
func BlocksFromTerm(t wire.Term) ([]*block.Block, error) {
	tuple, ok := t.(wire.Tuple)
	if !ok || len(tuple) == 0 || tuple[0] != listTag {
		return nil, fmt.Errorf("%w: not a block list term", ErrBadMessage)
	}
	blocks := make([]*block.Block, 0, len(tuple)-1)
	for _, elem := range tuple[1:] {
		b, err := BlockFromTerm(elem)
		if err != nil {
			return nil, err
		}
		blocks = append(blocks, b)
	}
	return blocks, nil
}
