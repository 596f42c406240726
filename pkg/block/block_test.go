package block

import (
	"testing"

	"github.com/knotex/knotex/pkg/hash"
	"github.com/knotex/knotex/pkg/types"
)

func TestSealIsIdempotent(t *testing.T) {
	b := &Block{Height: 3, Timestamp: 100, ParentHash: types.Zero, ContentHash: types.Zero}
	once := b.Seal()
	twice := once.Seal()
	if once.ComponentHash != twice.ComponentHash {
		t.Fatalf("sealing is not idempotent: %s != %s", once.ComponentHash, twice.ComponentHash)
	}
}

func TestEmptyBlockSealVector(t *testing.T) {
	b := New(types.Invalid, 0)
	sealed := b.Seal()
	if got := hash.ReadableShort(sealed.ComponentHash, false); got != "e3f001a9" {
		t.Fatalf("empty block component hash short = %s, want e3f001a9", got)
	}
}

func TestEmptyBlockMineVector(t *testing.T) {
	// The vector covers a freshly created block whose component hash is
	// still the Invalid sentinel; the miner hashes whatever is there.
	mined := mineForTest(t, New(types.Invalid, 0))
	if mined.Nonce != 224 {
		t.Fatalf("empty block mined nonce = %d, want 224", mined.Nonce)
	}
	if got := hash.ReadableShort(mined.Hash, false); got != "00551db3" {
		t.Fatalf("empty block mined hash short = %s, want 00551db3", got)
	}
}

func TestDifficultyBoundaries(t *testing.T) {
	cases := map[uint64]int{0: 1, 1: 1, 127: 1, 128: 2, 255: 2, 256: 3}
	for h, want := range cases {
		if got := Difficulty(h); got != want {
			t.Errorf("Difficulty(%d) = %d, want %d", h, got, want)
		}
	}
}

type fakeStore struct {
	byHash map[types.Hash]*Block
}

func newFakeStore() *fakeStore {
	return &fakeStore{byHash: make(map[types.Hash]*Block)}
}

func (s *fakeStore) put(b *Block) {
	s.byHash[b.Hash] = b
}

func (s *fakeStore) FindByHash(h types.Hash) (*Block, bool, error) {
	b, ok := s.byHash[h]
	return b, ok, nil
}

func (s *fakeStore) FindByHashAndHeight(h types.Hash, height uint64) (*Block, bool, error) {
	b, ok := s.byHash[h]
	if !ok || b.Height != height {
		return nil, false, nil
	}
	return b, true, nil
}

func mineForTest(t *testing.T, b *Block) *Block {
	t.Helper()
	clone := *b
	for nonce := uint64(0); ; nonce++ {
		candidate := PowHash(clone.ComponentHash, nonce)
		if hash.EnsureHardness(candidate, Difficulty(clone.Height)) == nil {
			clone.Nonce = nonce
			clone.Hash = candidate
			return &clone
		}
	}
}

func TestEnsureFinalErrorOrdering(t *testing.T) {
	genesis := mineForTest(t, (&Block{ParentHash: types.Zero, ContentHash: types.Zero}).Seal())
	child := mineForTest(t, (&Block{ContentHash: types.Zero}).AsChildOf(genesis).Seal())

	corruptComponent := *child
	corruptComponent.ComponentHash = types.Invalid
	if err := corruptComponent.EnsureFinal(); err != ErrComponentHashMismatch {
		if _, ok := unwrapIs(err, ErrComponentHashMismatch); !ok {
			t.Fatalf("expected ErrComponentHashMismatch, got %v", err)
		}
	}

	corruptHash := *child
	corruptHash.Hash = types.Invalid
	if _, ok := unwrapIs(corruptHash.EnsureFinal(), ErrHashMismatch); !ok {
		t.Fatalf("expected ErrHashMismatch, got %v", corruptHash.EnsureFinal())
	}
}

func unwrapIs(err, target error) (error, bool) {
	for err != nil {
		if err == target {
			return err, true
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			break
		}
		err = u.Unwrap()
	}
	return err, false
}

func TestEnsureKnownParentGenesis(t *testing.T) {
	genesis := mineForTest(t, (&Block{ParentHash: types.Zero, ContentHash: types.Zero}).Seal())
	store := newFakeStore()
	if err := genesis.EnsureKnownParent(store); err != nil {
		t.Fatalf("genesis must have a known parent trivially, got %v", err)
	}
}

func TestAncestryExcludesSelfAndOrdersOldestFirst(t *testing.T) {
	store := newFakeStore()
	genesis := mineForTest(t, (&Block{ParentHash: types.Zero, ContentHash: types.Zero}).Seal())
	store.put(genesis)

	cur := genesis
	var chain []*Block
	chain = append(chain, genesis)
	for i := 0; i < 3; i++ {
		next := mineForTest(t, (&Block{ContentHash: types.Zero}).AsChildOf(cur).Seal())
		store.put(next)
		chain = append(chain, next)
		cur = next
	}

	ancestry, err := cur.Ancestry(store, -1)
	if err != nil {
		t.Fatalf("Ancestry: %v", err)
	}
	if len(ancestry) != 3 {
		t.Fatalf("expected 3 ancestors, got %d", len(ancestry))
	}
	for i, b := range ancestry {
		if b.Hash != chain[i].Hash {
			t.Fatalf("ancestry[%d] = %s, want %s", i, b.Hash, chain[i].Hash)
		}
	}
	for _, b := range ancestry {
		if b.Hash == cur.Hash {
			t.Fatal("ancestry must not include the block itself")
		}
	}
}

func TestAncestryBoundedCount(t *testing.T) {
	store := newFakeStore()
	genesis := mineForTest(t, (&Block{ParentHash: types.Zero, ContentHash: types.Zero}).Seal())
	store.put(genesis)

	cur := genesis
	for i := 0; i < 4; i++ {
		cur = mineForTest(t, (&Block{ContentHash: types.Zero}).AsChildOf(cur).Seal())
		store.put(cur)
	}

	// n bounds the walk to the nearest ancestors.
	ancestry, err := cur.Ancestry(store, 2)
	if err != nil {
		t.Fatalf("Ancestry: %v", err)
	}
	if len(ancestry) != 2 {
		t.Fatalf("bounded ancestry length = %d, want 2", len(ancestry))
	}
	if ancestry[1].Hash != cur.ParentHash {
		t.Fatal("bounded ancestry must end with the direct parent")
	}
	if ancestry[0].Height != cur.Height-2 {
		t.Fatalf("bounded ancestry starts at height %d, want %d", ancestry[0].Height, cur.Height-2)
	}

	// n larger than the chain stops at genesis.
	all, err := cur.Ancestry(store, 100)
	if err != nil {
		t.Fatalf("Ancestry: %v", err)
	}
	if len(all) != 4 {
		t.Fatalf("over-bounded ancestry length = %d, want 4", len(all))
	}
}

func TestAncestryContainsPropagatesStoreErrors(t *testing.T) {
	store := newFakeStore()
	genesis := mineForTest(t, (&Block{ParentHash: types.Zero, ContentHash: types.Zero}).Seal())
	orphan := mineForTest(t, (&Block{ContentHash: types.Zero}).AsChildOf(genesis).Seal())
	// genesis deliberately not stored: orphan's parent lookup must fail.

	_, err := orphan.AncestryContains(store, genesis.Hash)
	if err == nil {
		t.Fatal("expected AncestryContains to propagate the store lookup error")
	}
}

func TestGenesisAncestryIsEmpty(t *testing.T) {
	store := newFakeStore()
	genesis := mineForTest(t, (&Block{ParentHash: types.Zero, ContentHash: types.Zero}).Seal())
	store.put(genesis)
	ancestry, err := genesis.Ancestry(store, -1)
	if err != nil {
		t.Fatalf("Ancestry on genesis: %v", err)
	}
	if len(ancestry) != 0 {
		t.Fatalf("genesis ancestry must be empty, got %d entries", len(ancestry))
	}
}
