// Package oidset represents a selection of database record ordinal ids
// (OIDs) as a compressed bitmap, and parses the command-line range syntax
// used to pick a subset of a database to dump or inspect (e.g.
// "0-999,1500,2000-").
//
// Grounded on LocalBitmap in _examples/hupe1980-vecgo/metadata/bitmap.go,
// which wraps the same github.com/RoaringBitmap/roaring/v2 type for a
// compressed set of integer ids.
package oidset

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/RoaringBitmap/roaring/v2"

	"blastdb/internal/dberr"
)

// Set is a compressed set of OIDs.
type Set struct {
	bitmap *roaring.Bitmap
}

// New returns an empty Set.
func New() *Set {
	return &Set{bitmap: roaring.New()}
}

// All returns a Set containing every OID in [0, numRecords).
func All(numRecords uint32) *Set {
	s := New()
	if numRecords == 0 {
		return s
	}
	s.bitmap.AddRange(0, uint64(numRecords))
	return s
}

// Parse decodes a comma-separated list of OID ranges. Each term is one of:
//
//	N      a single OID
//	N-M    an inclusive range [N,M]
//	N-     an open range [N, numRecords)
//
// numRecords bounds open ranges and validates every OID against the
// database actually being addressed.
func Parse(spec string, numRecords uint32) (*Set, error) {
	s := New()
	for _, term := range strings.Split(spec, ",") {
		term = strings.TrimSpace(term)
		if term == "" {
			continue
		}

		if dash := strings.IndexByte(term, '-'); dash >= 0 {
			loStr, hiStr := term[:dash], term[dash+1:]
			lo, err := parseOID(loStr, numRecords)
			if err != nil {
				return nil, fmt.Errorf("range %q: %w", term, err)
			}
			hi := numRecords - 1
			if hiStr != "" {
				hi, err = parseOID(hiStr, numRecords)
				if err != nil {
					return nil, fmt.Errorf("range %q: %w", term, err)
				}
			}
			if lo > hi {
				return nil, fmt.Errorf("range %q: start exceeds end: %w", term, dberr.BadFormat)
			}
			s.bitmap.AddRange(uint64(lo), uint64(hi)+1)
			continue
		}

		oid, err := parseOID(term, numRecords)
		if err != nil {
			return nil, fmt.Errorf("term %q: %w", term, err)
		}
		s.bitmap.Add(oid)
	}
	return s, nil
}

func parseOID(s string, numRecords uint32) (uint32, error) {
	n, err := strconv.ParseUint(s, 10, 32)
	if err != nil {
		return 0, fmt.Errorf("invalid oid %q: %w", s, dberr.BadFormat)
	}
	if uint32(n) >= numRecords {
		return 0, fmt.Errorf("oid %d out of range [0,%d): %w", n, numRecords, dberr.BadFormat)
	}
	return uint32(n), nil
}

// Contains reports whether oid is in the set.
func (s *Set) Contains(oid uint32) bool { return s.bitmap.Contains(oid) }

// Add inserts oid into the set.
func (s *Set) Add(oid uint32) { s.bitmap.Add(oid) }

// Remove deletes oid from the set.
func (s *Set) Remove(oid uint32) { s.bitmap.Remove(oid) }

// Cardinality returns the number of OIDs in the set.
func (s *Set) Cardinality() uint64 { return s.bitmap.GetCardinality() }

// IsEmpty reports whether the set has no members.
func (s *Set) IsEmpty() bool { return s.bitmap.IsEmpty() }

// Slice returns the set's members in ascending order.
func (s *Set) Slice() []uint32 { return s.bitmap.ToArray() }

// Clone returns an independent copy of the set.
func (s *Set) Clone() *Set { return &Set{bitmap: s.bitmap.Clone()} }
