package cursor

import (
	"errors"
	"testing"

	"blastdb/internal/dberr"
)

func TestReadU32BE(t *testing.T) {
	c := New([]byte{0x00, 0x00, 0x01, 0x2C, 0xFF})
	v, err := c.ReadU32BE()
	if err != nil {
		t.Fatalf("ReadU32BE failed: %v", err)
	}
	if v != 300 {
		t.Fatalf("expected 300, got %d", v)
	}
	if c.Position() != 4 {
		t.Fatalf("expected position 4, got %d", c.Position())
	}
}

func TestReadU32BETruncated(t *testing.T) {
	c := New([]byte{0x00, 0x01})
	if _, err := c.ReadU32BE(); !errors.Is(err, dberr.Truncated) {
		t.Fatalf("expected Truncated, got %v", err)
	}
	if c.Position() != 0 {
		t.Fatalf("cursor must not advance on failure, got position %d", c.Position())
	}
}

// TestReadU64MixedWordSwapped pins the word-swapped mixed-endian algorithm
// against the scenario-1 fixture from spec.md §8: a total_residues of 1
// encoded as 01 00 00 00 00 00 00 00.
func TestReadU64MixedWordSwapped(t *testing.T) {
	c := New([]byte{0x01, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00})
	v, err := c.ReadU64Mixed()
	if err != nil {
		t.Fatalf("ReadU64Mixed failed: %v", err)
	}
	if v != 1 {
		t.Fatalf("expected 1, got %d", v)
	}
}

func TestReadU64MixedLargerValue(t *testing.T) {
	// high word (big-endian) = 0x00000001, low word (big-endian) = 0x00000000,
	// stored in little-endian *word* order: low word bytes first, high word
	// bytes second, each word itself big-endian.
	c := New([]byte{0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x01})
	v, err := c.ReadU64Mixed()
	if err != nil {
		t.Fatalf("ReadU64Mixed failed: %v", err)
	}
	if v != 1<<32 {
		t.Fatalf("expected 2^32, got %d", v)
	}
}

func TestReadLengthPrefixedString(t *testing.T) {
	c := New([]byte{0x00, 0x00, 0x00, 0x01, 'a', 0xFF})
	s, err := c.ReadLengthPrefixedString()
	if err != nil {
		t.Fatalf("ReadLengthPrefixedString failed: %v", err)
	}
	if s != "a" {
		t.Fatalf("expected %q, got %q", "a", s)
	}
	if c.Remaining() != 1 {
		t.Fatalf("expected 1 remaining byte, got %d", c.Remaining())
	}
}

func TestReadLengthPrefixedStringTruncatedBody(t *testing.T) {
	c := New([]byte{0x00, 0x00, 0x00, 0x05, 'a', 'b'})
	if _, err := c.ReadLengthPrefixedString(); !errors.Is(err, dberr.Truncated) {
		t.Fatalf("expected Truncated, got %v", err)
	}
}

func TestPeekDoesNotAdvance(t *testing.T) {
	c := New([]byte{0x01, 0x02, 0x03})
	b, err := c.Peek(2)
	if err != nil {
		t.Fatalf("Peek failed: %v", err)
	}
	if len(b) != 2 || b[0] != 0x01 || b[1] != 0x02 {
		t.Fatalf("unexpected peek result: %v", b)
	}
	if c.Position() != 0 {
		t.Fatalf("Peek must not advance cursor, got position %d", c.Position())
	}
}
