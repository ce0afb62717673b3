// Package dbindex parses the legacy index file (the "pin"-equivalent
// companion) into a typed Index record, and slices the header and sequence
// companion files per record using the offset tables it contains.
//
// Grounded on ParsePinFile in
// original_source/src/app/blastdb/legacy_header_reader.cpp and ParsePin in
// original_source/src/app/blastdb/psq_reader.cpp.
package dbindex

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/klauspost/compress/zstd"

	"blastdb/internal/cursor"
	"blastdb/internal/dberr"
)

// Index is the fully parsed index-file record (spec.md §3).
type Index struct {
	Version          uint32
	IsProtein        bool
	VolumeNumber     uint32 // only meaningful when Version == 5
	Title            string
	LMDBName         string // version 5 only
	CreationDate     string
	NumRecords       uint32
	TotalResidues    uint64
	MaxLength        uint32
	HeaderOffsets    []uint32
	SequenceOffsets  []uint32
	AmbiguityOffsets []uint32 // present iff !IsProtein

	// TrailingBytes is the count of bytes left unconsumed after the known
	// fields were parsed. A nonzero count is tolerated (spec.md §6) but
	// surfaced here for the caller to log as a warning.
	TrailingBytes int
}

// ParseIndex implements spec.md §4.2's algorithm over the full index-file
// bytes.
func ParseIndex(data []byte) (*Index, error) {
	c := cursor.New(data)
	idx := &Index{}

	version, err := c.ReadU32BE()
	if err != nil {
		return nil, fmt.Errorf("read version: %w", err)
	}
	if version != 4 && version != 5 {
		return nil, fmt.Errorf("version %d: %w", version, dberr.UnsupportedVersion)
	}
	idx.Version = version

	seqTypeFlag, err := c.ReadU32BE()
	if err != nil {
		return nil, fmt.Errorf("read sequence type flag: %w", err)
	}
	idx.IsProtein = seqTypeFlag == 1

	if idx.Version == 5 {
		idx.VolumeNumber, err = c.ReadU32BE()
		if err != nil {
			return nil, fmt.Errorf("read volume number: %w", err)
		}
	}

	idx.Title, err = c.ReadLengthPrefixedString()
	if err != nil {
		return nil, fmt.Errorf("read title: %w", err)
	}

	if idx.Version == 5 {
		idx.LMDBName, err = c.ReadLengthPrefixedString()
		if err != nil {
			return nil, fmt.Errorf("read lmdb name: %w", err)
		}
	}

	idx.CreationDate, err = c.ReadLengthPrefixedString()
	if err != nil {
		return nil, fmt.Errorf("read creation date: %w", err)
	}

	idx.NumRecords, err = c.ReadU32BE()
	if err != nil {
		return nil, fmt.Errorf("read num records: %w", err)
	}
	idx.TotalResidues, err = c.ReadU64Mixed()
	if err != nil {
		return nil, fmt.Errorf("read total residues: %w", err)
	}
	idx.MaxLength, err = c.ReadU32BE()
	if err != nil {
		return nil, fmt.Errorf("read max length: %w", err)
	}

	readOffsetTable := func(name string) ([]uint32, error) {
		count := int(idx.NumRecords) + 1
		table := make([]uint32, count)
		for i := 0; i < count; i++ {
			v, err := c.ReadU32BE()
			if err != nil {
				return nil, fmt.Errorf("read %s offset %d/%d: %w", name, i, count, err)
			}
			table[i] = v
		}
		return table, nil
	}

	idx.HeaderOffsets, err = readOffsetTable("header")
	if err != nil {
		return nil, err
	}
	idx.SequenceOffsets, err = readOffsetTable("sequence")
	if err != nil {
		return nil, err
	}
	if !idx.IsProtein {
		idx.AmbiguityOffsets, err = readOffsetTable("ambiguity")
		if err != nil {
			return nil, err
		}
	}

	if err := validateOffsetTable(idx.HeaderOffsets, idx.NumRecords); err != nil {
		return nil, fmt.Errorf("header offsets: %w", err)
	}
	if err := validateOffsetTable(idx.SequenceOffsets, idx.NumRecords); err != nil {
		return nil, fmt.Errorf("sequence offsets: %w", err)
	}
	if idx.NumRecords > 0 && idx.SequenceOffsets[0] >= idx.SequenceOffsets[idx.NumRecords] {
		return nil, fmt.Errorf("sequence_offsets[0] >= sequence_offsets[n]: %w", dberr.CorruptIndex)
	}
	if !idx.IsProtein {
		if err := validateOffsetTable(idx.AmbiguityOffsets, idx.NumRecords); err != nil {
			return nil, fmt.Errorf("ambiguity offsets: %w", err)
		}
	}

	idx.TrailingBytes = c.Remaining()

	return idx, nil
}

func validateOffsetTable(table []uint32, numRecords uint32) error {
	if numRecords > 0 && len(table) < 2 {
		return fmt.Errorf("offset table has %d entries, want >= 2: %w", len(table), dberr.CorruptIndex)
	}
	if uint32(len(table)) != numRecords+1 {
		return fmt.Errorf("offset table has %d entries, want %d: %w", len(table), numRecords+1, dberr.CorruptIndex)
	}
	for i := 1; i < len(table); i++ {
		if table[i] < table[i-1] {
			return fmt.Errorf("offset table not monotonically non-decreasing at %d: %w", i, dberr.CorruptIndex)
		}
	}
	return nil
}

// HeaderSlice returns the raw header-blob bytes for record i, sliced out of
// the header companion file's bytes (spec.md §4.3).
func (idx *Index) HeaderSlice(headerFile []byte, i int) ([]byte, error) {
	start, end, err := idx.headerRange(i)
	if err != nil {
		return nil, err
	}
	if end > uint32(len(headerFile)) {
		return nil, fmt.Errorf("header range [%d,%d) exceeds file length %d: %w", start, end, len(headerFile), dberr.CorruptIndex)
	}
	return headerFile[start:end], nil
}

func (idx *Index) headerRange(i int) (start, end uint32, err error) {
	if i < 0 || i+1 >= len(idx.HeaderOffsets) {
		return 0, 0, fmt.Errorf("record %d out of range [0,%d): %w", i, idx.NumRecords, dberr.CorruptIndex)
	}
	start, end = idx.HeaderOffsets[i], idx.HeaderOffsets[i+1]
	if end < start {
		return 0, 0, fmt.Errorf("inverted header range [%d,%d) for record %d: %w", start, end, i, dberr.CorruptIndex)
	}
	return start, end, nil
}

// SequenceRange returns the [start, end) byte range of record i within the
// sequence companion file.
func (idx *Index) SequenceRange(i int) (start, end uint32, err error) {
	if i < 0 || i+1 >= len(idx.SequenceOffsets) {
		return 0, 0, fmt.Errorf("record %d out of range [0,%d): %w", i, idx.NumRecords, dberr.CorruptIndex)
	}
	start, end = idx.SequenceOffsets[i], idx.SequenceOffsets[i+1]
	if end < start {
		return 0, 0, fmt.Errorf("inverted sequence range [%d,%d) for record %d: %w", start, end, i, dberr.CorruptIndex)
	}
	return start, end, nil
}

// DerivePath swaps the file extension of an index-file path for the
// companion extension, e.g. ".pin" -> ".phr". Mirrors DerivePhrPath in
// legacy_header_reader.cpp.
func DerivePath(indexPath, newExt string) string {
	base := strings.TrimSuffix(indexPath, ".zst")
	if dot := strings.LastIndex(base, "."); dot >= 0 {
		base = base[:dot]
	}
	return base + newExt
}

// OpenFile reads path into memory, once, as spec.md §5 requires. A ".zst"
// suffix is transparently decompressed; this is a domain-stack addition
// (SPEC_FULL.md §2.2) grounded on the zstd.Decoder usage in
// hupe1980-vecgo/wal/wal.go, not part of the historical on-disk format.
func OpenFile(path string) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	if !strings.HasSuffix(path, ".zst") {
		return io.ReadAll(f)
	}

	dec, err := zstd.NewReader(f)
	if err != nil {
		return nil, fmt.Errorf("open zstd stream %s: %w", path, err)
	}
	defer dec.Close()
	return io.ReadAll(dec)
}
