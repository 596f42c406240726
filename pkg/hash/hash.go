// Package hash provides the hashing primitives used throughout knotex:
// computing digests over joined components, formatting them as hex, and
// checking proof-of-work hardness.
package hash

import (
	"crypto/sha256"
	"errors"
	"strconv"
	"strings"

	"github.com/knotex/knotex/pkg/types"
)

// ErrUnmetDifficulty is returned by EnsureHardness when a hash does not
// carry enough leading zero bytes for the required difficulty.
var ErrUnmetDifficulty = errors.New("hash: proof of work does not meet required difficulty")

// Perform joins items with an underscore separator and returns the SHA-256
// digest of the resulting byte string. Each item must be a uint64, an int,
// a types.Hash, a string, or a []byte; anything else causes a panic, since
// the set of joinable component kinds is fixed by the block model.
func Perform(items ...any) types.Hash {
	var parts [][]byte
	for _, it := range items {
		switch v := it.(type) {
		case uint64:
			parts = append(parts, []byte(strconv.FormatUint(v, 10)))
		case int:
			parts = append(parts, []byte(strconv.Itoa(v)))
		case types.Hash:
			parts = append(parts, v.Bytes())
		case string:
			parts = append(parts, []byte(v))
		case []byte:
			parts = append(parts, v)
		default:
			panic("hash.Perform: unsupported component type")
		}
	}
	joined := joinUnderscore(parts)
	return sha256.Sum256(joined)
}

func joinUnderscore(parts [][]byte) []byte {
	var buf strings.Builder
	for i, p := range parts {
		if i > 0 {
			buf.WriteByte('_')
		}
		buf.Write(p)
	}
	return []byte(buf.String())
}

// Readable renders a hash as a 64-character hex string, lowercase unless
// upper is true.
func Readable(h types.Hash, upper bool) string {
	s := h.String()
	if upper {
		return strings.ToUpper(s)
	}
	return s
}

// ReadableShort renders the first 8 hex characters of a hash.
func ReadableShort(h types.Hash, upper bool) string {
	return Readable(h, upper)[:8]
}

// FromString parses a 64-character hex string into a Hash.
func FromString(s string) (types.Hash, error) {
	return types.HexToHash(s)
}

// EnsureHardness succeeds iff the first n bytes of h are all zero. n == 0
// always succeeds.
func EnsureHardness(h types.Hash, n int) error {
	if n <= 0 {
		return nil
	}
	if n > types.HashSize {
		n = types.HashSize
	}
	for i := 0; i < n; i++ {
		if h[i] != 0 {
			return ErrUnmetDifficulty
		}
	}
	return nil
}
