package wire

import (
	"bytes"
	"errors"
	"io"
	"reflect"
	"testing"
)

func roundTrip(t *testing.T, term Term) Term {
	t.Helper()
	data, err := Encode(term)
	if err != nil {
		t.Fatalf("Encode(%v): %v", term, err)
	}
	back, err := Decode(data)
	if err != nil {
		t.Fatalf("Decode(Encode(%v)): %v", term, err)
	}
	return back
}

func TestRoundTripAtoms(t *testing.T) {
	for _, a := range []Atom{"ping", "pong", "block_query", "genesis", "highest", "ancestry", "announce", "x"} {
		if got := roundTrip(t, a); got != a {
			t.Errorf("round trip %q = %v", a, got)
		}
	}
}

func TestRoundTripInts(t *testing.T) {
	for _, n := range []Int{0, 1, 224, 1 << 40, ^Int(0)} {
		if got := roundTrip(t, n); got != n {
			t.Errorf("round trip %d = %v", n, got)
		}
	}
}

func TestRoundTripBytes(t *testing.T) {
	cases := []Bytes{{}, {0x00}, {0xFF, 0x00, 0x7F}, bytes.Repeat([]byte{0xAB}, 32)}
	for _, b := range cases {
		got := roundTrip(t, b)
		if !reflect.DeepEqual(got, b) {
			t.Errorf("round trip %x = %v", b, got)
		}
	}
}

func TestRoundTripNestedTuple(t *testing.T) {
	term := Tuple{
		Atom("block_query"),
		Tuple{Atom("ancestry"), Bytes(bytes.Repeat([]byte{0x01}, 32))},
		Int(7),
	}
	got := roundTrip(t, term)
	if !reflect.DeepEqual(got, term) {
		t.Fatalf("round trip = %#v, want %#v", got, term)
	}
}

func TestRoundTripFooBar(t *testing.T) {
	term := Tuple{Atom("foo"), Bytes("bar")}
	got := roundTrip(t, term)
	if !reflect.DeepEqual(got, term) {
		t.Fatalf("round trip = %#v", got)
	}
}

func TestDecodeGarbage(t *testing.T) {
	cases := [][]byte{
		{},
		{0x00},
		{'q', 1, 2, 3},
		{'a', 5, 'h', 'i'},       // truncated atom
		{'i', 0, 0},              // truncated int
		{'b', 0, 0, 0, 9, 1},     // truncated bytes
		{'t', 2, 'i', 0, 0, 0, 0, 0, 0, 0, 1}, // tuple missing second element
	}
	for _, data := range cases {
		if _, err := Decode(data); err == nil {
			t.Errorf("Decode(%x) succeeded, want error", data)
		} else if !errors.Is(err, ErrDecode) {
			t.Errorf("Decode(%x) error %v does not wrap ErrDecode", data, err)
		}
	}
}

func TestDecodeRejectsTrailingBytes(t *testing.T) {
	data, err := Encode(Atom("ping"))
	if err != nil {
		t.Fatal(err)
	}
	data = append(data, 0x00)
	if _, err := Decode(data); !errors.Is(err, ErrDecode) {
		t.Fatalf("expected ErrDecode for trailing bytes, got %v", err)
	}
}

func TestEncodeRejectsOversizedAtom(t *testing.T) {
	if _, err := Encode(Atom(bytes.Repeat([]byte{'a'}, 256))); err == nil {
		t.Fatal("expected error for oversized atom")
	}
	if _, err := Encode(Atom("")); err == nil {
		t.Fatal("expected error for empty atom")
	}
}

func TestFrameRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	term := Tuple{Atom("ping"), Int(1)}
	if err := WriteFrame(&buf, term); err != nil {
		t.Fatalf("WriteFrame: %v", err)
	}
	got, err := ReadFrame(&buf)
	if err != nil {
		t.Fatalf("ReadFrame: %v", err)
	}
	if !reflect.DeepEqual(got, term) {
		t.Fatalf("frame round trip = %#v, want %#v", got, term)
	}
}

func TestFrameSequenceKeepsBoundaries(t *testing.T) {
	var buf bytes.Buffer
	terms := []Term{
		Tuple{Atom("ping"), Int(1)},
		Tuple{Atom("pong"), Int(1)},
		Tuple{Atom("block_query"), Atom("highest")},
	}
	for _, term := range terms {
		if err := WriteFrame(&buf, term); err != nil {
			t.Fatalf("WriteFrame: %v", err)
		}
	}
	for i, want := range terms {
		got, err := ReadFrame(&buf)
		if err != nil {
			t.Fatalf("ReadFrame #%d: %v", i, err)
		}
		if !reflect.DeepEqual(got, want) {
			t.Fatalf("frame #%d = %#v, want %#v", i, got, want)
		}
	}
	if _, err := ReadFrame(&buf); err != io.EOF {
		t.Fatalf("expected io.EOF after last frame, got %v", err)
	}
}

func TestReadFrameRejectsOversizedHeader(t *testing.T) {
	var buf bytes.Buffer
	buf.Write([]byte{0xFF, 0xFF, 0xFF, 0xFF})
	if _, err := ReadFrame(&buf); !errors.Is(err, ErrDecode) {
		t.Fatalf("expected ErrDecode for oversized frame, got %v", err)
	}
}

func TestTag(t *testing.T) {
	if tag, ok := Tag(Tuple{Atom("announce"), Int(0)}); !ok || tag != "announce" {
		t.Fatalf("Tag = %q, %v", tag, ok)
	}
	if _, ok := Tag(Int(3)); ok {
		t.Fatal("Tag on non-tuple should fail")
	}
	if _, ok := Tag(Tuple{Int(3)}); ok {
		t.Fatal("Tag on tuple without atom head should fail")
	}
}
