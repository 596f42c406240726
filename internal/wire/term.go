// Package wire implements the framed, self-describing term encoding that
// peers exchange. A term is an atom (short tag), a non-negative integer,
// a byte string, or a tuple of terms; every protocol message is a tuple
// whose first element is an atom tag.
package wire

import (
	"encoding/binary"
	"errors"
	"fmt"
)

// Term is the closed set of encodable values.
type Term interface {
	isTerm()
}

// Atom is a short UTF-8 tag, at most 255 bytes.
type Atom string

// Int is a non-negative integer, encoded as 8 bytes big-endian.
type Int uint64

// Bytes is an arbitrary byte string, including raw hashes.
type Bytes []byte

// Tuple is an ordered sequence of at most 255 terms.
type Tuple []Term

func (Atom) isTerm()  {}
func (Int) isTerm()   {}
func (Bytes) isTerm() {}
func (Tuple) isTerm() {}

// Kind markers on the wire, one byte ahead of each term.
const (
	kindAtom  = 'a'
	kindInt   = 'i'
	kindBytes = 'b'
	kindTuple = 't'
)

const (
	maxAtomLen     = 255
	maxTupleLen    = 255
	maxBytesLen    = 1 << 20 // bounded so a hostile peer cannot force a huge allocation
	bytesLenSize   = 4
	intPayloadSize = 8
)

// ErrDecode wraps every malformed-input failure so callers can treat all
// of them as a protocol violation by the peer.
var ErrDecode = errors.New("wire: malformed term")

// Encode serializes a term. It returns an error only for terms that
// violate the structural limits (oversized atom, bytes, or tuple).
func Encode(t Term) ([]byte, error) {
	return appendTerm(nil, t)
}

func appendTerm(buf []byte, t Term) ([]byte, error) {
	switch v := t.(type) {
	case Atom:
		if len(v) == 0 || len(v) > maxAtomLen {
			return nil, fmt.Errorf("wire: atom length %d out of range", len(v))
		}
		buf = append(buf, kindAtom, byte(len(v)))
		return append(buf, v...), nil
	case Int:
		buf = append(buf, kindInt)
		var b [intPayloadSize]byte
		binary.BigEndian.PutUint64(b[:], uint64(v))
		return append(buf, b[:]...), nil
	case Bytes:
		if len(v) > maxBytesLen {
			return nil, fmt.Errorf("wire: byte string length %d exceeds limit", len(v))
		}
		buf = append(buf, kindBytes)
		var b [bytesLenSize]byte
		binary.BigEndian.PutUint32(b[:], uint32(len(v)))
		buf = append(buf, b[:]...)
		return append(buf, v...), nil
	case Tuple:
		if len(v) > maxTupleLen {
			return nil, fmt.Errorf("wire: tuple length %d exceeds limit", len(v))
		}
		buf = append(buf, kindTuple, byte(len(v)))
		var err error
		for _, elem := range v {
			if buf, err = appendTerm(buf, elem); err != nil {
				return nil, err
			}
		}
		return buf, nil
	case nil:
		return nil, fmt.Errorf("wire: cannot encode nil term")
	default:
		return nil, fmt.Errorf("wire: unsupported term type %T", t)
	}
}

// Decode parses a single term and requires the input to be fully
// consumed. All failures wrap ErrDecode.
func Decode(data []byte) (Term, error) {
	term, rest, err := decodeTerm(data)
	if err != nil {
		return nil, err
	}
	if len(rest) != 0 {
		return nil, fmt.Errorf("%w: %d trailing bytes", ErrDecode, len(rest))
	}
	return term, nil
}

func decodeTerm(data []byte) (Term, []byte, error) {
	if len(data) == 0 {
		return nil, nil, fmt.Errorf("%w: empty input", ErrDecode)
	}
	kind, data := data[0], data[1:]
	switch kind {
	case kindAtom:
		if len(data) < 1 {
			return nil, nil, fmt.Errorf("%w: truncated atom length", ErrDecode)
		}
		n := int(data[0])
		data = data[1:]
		if n == 0 {
			return nil, nil, fmt.Errorf("%w: empty atom", ErrDecode)
		}
		if len(data) < n {
			return nil, nil, fmt.Errorf("%w: truncated atom", ErrDecode)
		}
		return Atom(data[:n]), data[n:], nil
	case kindInt:
		if len(data) < intPayloadSize {
			return nil, nil, fmt.Errorf("%w: truncated integer", ErrDecode)
		}
		return Int(binary.BigEndian.Uint64(data[:intPayloadSize])), data[intPayloadSize:], nil
	case kindBytes:
		if len(data) < bytesLenSize {
			return nil, nil, fmt.Errorf("%w: truncated byte string length", ErrDecode)
		}
		n := int(binary.BigEndian.Uint32(data[:bytesLenSize]))
		data = data[bytesLenSize:]
		if n > maxBytesLen {
			return nil, nil, fmt.Errorf("%w: byte string length %d exceeds limit", ErrDecode, n)
		}
		if len(data) < n {
			return nil, nil, fmt.Errorf("%w: truncated byte string", ErrDecode)
		}
		out := make(Bytes, n)
		copy(out, data[:n])
		return out, data[n:], nil
	case kindTuple:
		if len(data) < 1 {
			return nil, nil, fmt.Errorf("%w: truncated tuple length", ErrDecode)
		}
		n := int(data[0])
		data = data[1:]
		tuple := make(Tuple, 0, n)
		for i := 0; i < n; i++ {
			var elem Term
			var err error
			elem, data, err = decodeTerm(data)
			if err != nil {
				return nil, nil, err
			}
			tuple = append(tuple, elem)
		}
		return tuple, data, nil
	default:
		return nil, nil, fmt.Errorf("%w: unknown kind %#x", ErrDecode, kind)
	}
}

// Tag returns the leading atom of a tagged tuple, or false if the term is
// not a tuple whose first element is an atom.
func Tag(t Term) (Atom, bool) {
	tuple, ok := t.(Tuple)
	if !ok || len(tuple) == 0 {
		return "", false
	}
	tag, ok := tuple[0].(Atom)
	return tag, ok
}
