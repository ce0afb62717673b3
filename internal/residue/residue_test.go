package residue

import (
	"errors"
	"testing"

	"blastdb/internal/dberr"
)

func TestLetterTable(t *testing.T) {
	cases := map[byte]byte{
		0:  0,
		1:  'A',
		19: 'V',
		27: '-',
	}
	for code, want := range cases {
		if got := Letter(code); got != want {
			t.Errorf("Letter(%d) = %q, want %q", code, got, want)
		}
	}
}

func TestLetterOverflow(t *testing.T) {
	if got := Letter(28); got != '?' {
		t.Errorf("Letter(28) = %q, want '?'", got)
	}
	if got := Letter(255); got != '?' {
		t.Errorf("Letter(255) = %q, want '?'", got)
	}
}

func TestDecodeProteinStopsAtTerminator(t *testing.T) {
	// A, B, terminator, C -- decoding should stop at the terminator.
	buf := []byte{1, 2, 0, 3}
	s, err := DecodeProtein(buf, 0, 4)
	if err != nil {
		t.Fatalf("DecodeProtein failed: %v", err)
	}
	if s != "AB" {
		t.Fatalf("decoded = %q, want %q", s, "AB")
	}
}

func TestDecodeProteinNeverExceedsRange(t *testing.T) {
	buf := []byte{1, 1, 1, 1, 1}
	s, err := DecodeProtein(buf, 1, 4)
	if err != nil {
		t.Fatalf("DecodeProtein failed: %v", err)
	}
	if len(s) > 3 {
		t.Fatalf("decoded length %d exceeds range length 3", len(s))
	}
	if s != "AAA" {
		t.Fatalf("decoded = %q, want %q", s, "AAA")
	}
}

func TestDecodeProteinInvertedRange(t *testing.T) {
	buf := []byte{1, 2, 3}
	if _, err := DecodeProtein(buf, 2, 1); !errors.Is(err, dberr.CorruptIndex) {
		t.Fatalf("expected CorruptIndex, got %v", err)
	}
}

func TestDecodeProteinOutOfBounds(t *testing.T) {
	buf := []byte{1, 2, 3}
	if _, err := DecodeProtein(buf, 0, 10); !errors.Is(err, dberr.CorruptIndex) {
		t.Fatalf("expected CorruptIndex, got %v", err)
	}
}
