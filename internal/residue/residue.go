// Package residue maps packed protein-residue codes to printable letters.
// It deliberately does not decode nucleotide sequences; spec.md marks that
// out of scope.
//
// Grounded on kNcbistdaaToAscii and DecodeSequence in
// original_source/src/app/blastdb/psq_reader.cpp.
package residue

import (
	"fmt"

	"blastdb/internal/dberr"
)

// table maps a residue code (index) to its printable ASCII letter. Index 0
// is the in-band terminator; indices beyond the table's range decode to '?'.
var table = [28]byte{
	0: 0, 1: 'A', 2: 'B', 3: 'C', 4: 'D', 5: 'E', 6: 'F', 7: 'G',
	8: 'H', 9: 'I', 10: 'K', 11: 'L', 12: 'M', 13: 'N', 14: 'P', 15: 'Q',
	16: 'R', 17: 'S', 18: 'T', 19: 'V', 20: 'W', 21: 'Y', 22: 'X', 23: 'Z',
	24: 'U', 25: 'O', 26: 'J', 27: '-',
}

// Letter decodes a single residue code. It is total on [0,27] (the
// terminator maps to the NUL byte) and returns '?' for anything at or above
// 28.
func Letter(code byte) byte {
	if int(code) < len(table) {
		return table[code]
	}
	return '?'
}

// DecodeProtein decodes the packed residue bytes of buf[start:end] into a
// printable string, stopping at the in-band NUL terminator if one appears
// before end. The decoded length never exceeds end-start.
func DecodeProtein(buf []byte, start, end uint32) (string, error) {
	if start > end {
		return "", fmt.Errorf("start %d > end %d: %w", start, end, dberr.CorruptIndex)
	}
	if end > uint32(len(buf)) {
		return "", fmt.Errorf("end %d exceeds buffer length %d: %w", end, len(buf), dberr.CorruptIndex)
	}

	out := make([]byte, 0, end-start)
	for _, code := range buf[start:end] {
		letter := Letter(code)
		if letter == 0 {
			break
		}
		out = append(out, letter)
	}
	return string(out), nil
}
