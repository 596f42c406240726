// Package blockstore persists finalized blocks, content-addressed by
// hash with a secondary (height, hash) index.
package blockstore

import (
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/knotex/knotex/internal/storage"
	"github.com/knotex/knotex/pkg/block"
	"github.com/knotex/knotex/pkg/types"
)

// ErrNotFound is returned by Remove for absent keys. Lookups report an
// absent block through their boolean result instead.
var ErrNotFound = errors.New("blockstore: block not found")

// Key prefixes inside the store's namespace.
var (
	prefixBlock  = []byte("b/") // b/<hash(32)> -> block JSON
	prefixHeight = []byte("h/") // h/<height(8)><hash(32)> -> empty
)

// namespace isolates the block store's keys from any other state sharing
// the database.
var namespace = []byte("blocks/")

// Store is the durable map hash -> block. All operations are
// individually atomic; the underlying DB provides the synchronisation.
type Store struct {
	db *storage.PrefixDB
}

// New creates a block store on top of db.
func New(db storage.DB) *Store {
	return &Store{db: storage.NewPrefixDB(db, namespace)}
}

func blockKey(h types.Hash) []byte {
	return append(append([]byte{}, prefixBlock...), h.Bytes()...)
}

func heightKey(height uint64, h types.Hash) []byte {
	key := make([]byte, 0, len(prefixHeight)+8+types.HashSize)
	key = append(key, prefixHeight...)
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], height)
	key = append(key, buf[:]...)
	return append(key, h.Bytes()...)
}

// Store persists a finalized block and returns it unchanged. Storing an
// equal block twice is a no-op.
func (s *Store) Store(b *block.Block) (*block.Block, error) {
	data, err := json.Marshal(b)
	if err != nil {
		return nil, fmt.Errorf("block marshal: %w", err)
	}
	if err := s.db.Put(blockKey(b.Hash), data); err != nil {
		return nil, fmt.Errorf("block put: %w", err)
	}
	if err := s.db.Put(heightKey(b.Height, b.Hash), nil); err != nil {
		return nil, fmt.Errorf("height index put: %w", err)
	}
	return b, nil
}

// FindByHash looks a block up by hash. The middle return is false when
// the block is absent; the error is reserved for storage faults.
func (s *Store) FindByHash(h types.Hash) (*block.Block, bool, error) {
	data, err := s.db.Get(blockKey(h))
	if errors.Is(err, storage.ErrNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("block get: %w", err)
	}
	var b block.Block
	if err := json.Unmarshal(data, &b); err != nil {
		return nil, false, fmt.Errorf("block unmarshal: %w", err)
	}
	return &b, true, nil
}

// FindByHashAndHeight succeeds only when a block with the given hash
// exists at exactly the given height.
func (s *Store) FindByHashAndHeight(h types.Hash, height uint64) (*block.Block, bool, error) {
	ok, err := s.db.Has(heightKey(height, h))
	if err != nil {
		return nil, false, fmt.Errorf("height index get: %w", err)
	}
	if !ok {
		return nil, false, nil
	}
	return s.FindByHash(h)
}

// Remove deletes a block and its height index entry. Returns ErrNotFound
// when the hash is absent.
func (s *Store) Remove(h types.Hash) error {
	b, ok, err := s.FindByHash(h)
	if err != nil {
		return err
	}
	if !ok {
		return ErrNotFound
	}
	if err := s.db.Delete(blockKey(h)); err != nil {
		return fmt.Errorf("block delete: %w", err)
	}
	if err := s.db.Delete(heightKey(b.Height, h)); err != nil {
		return fmt.Errorf("height index delete: %w", err)
	}
	return nil
}

// Count returns the number of stored blocks.
func (s *Store) Count() (int, error) {
	var n int
	err := s.db.ForEach(prefixBlock, func(_, _ []byte) error {
		n++
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("block count: %w", err)
	}
	return n, nil
}

// Clear removes every block and index entry. Test support.
func (s *Store) Clear() error {
	return s.db.DeleteAll()
}
