// Package record ties the index, header, and sequence files together into
// whole decoded records, and runs that decoding across many records
// concurrently.
//
// Grounded on ExtractHeaders / PrintSummary (the read-index-then-decode-
// each-header driving loop) in
// original_source/src/app/blastdb/legacy_header_reader.cpp, and on the
// errgroup.WithContext + SetLimit bounded-fan-out pattern in
// _examples/hupe1980-vecgo/blobstore/caching_store.go.
package record

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"blastdb/internal/dberr"
	"blastdb/internal/dbindex"
	"blastdb/internal/defline"
	"blastdb/internal/residue"
)

// Record is one fully decoded database entry.
type Record struct {
	OID      int
	DefLines []defline.DefLine
	Sequence string
	Warning  string
}

// Database holds the three parsed/loaded files that make up one legacy
// BLAST-style volume.
type Database struct {
	Index        *dbindex.Index
	HeaderFile   []byte
	SequenceFile []byte
}

// Open loads the index file at indexPath along with its sibling header
// (.phr) and sequence (.psq) files. An index path with a .zst suffix is
// decompressed; the header and sequence paths are derived with that suffix
// dropped (see dbindex.DerivePath), so those two files are read
// uncompressed.
func Open(indexPath string) (*Database, error) {
	indexData, err := dbindex.OpenFile(indexPath)
	if err != nil {
		return nil, fmt.Errorf("open index file: %w", err)
	}
	idx, err := dbindex.ParseIndex(indexData)
	if err != nil {
		return nil, fmt.Errorf("parse index file: %w", err)
	}

	headerData, err := dbindex.OpenFile(dbindex.DerivePath(indexPath, ".phr"))
	if err != nil {
		return nil, fmt.Errorf("open header file: %w", err)
	}
	sequenceData, err := dbindex.OpenFile(dbindex.DerivePath(indexPath, ".psq"))
	if err != nil {
		return nil, fmt.Errorf("open sequence file: %w", err)
	}

	return &Database{Index: idx, HeaderFile: headerData, SequenceFile: sequenceData}, nil
}

// NumRecords returns the number of records in the database.
func (db *Database) NumRecords() int { return int(db.Index.NumRecords) }

// Record decodes a single record by its ordinal id.
func (db *Database) Record(oid int) (Record, error) {
	if oid < 0 || oid >= db.NumRecords() {
		return Record{}, fmt.Errorf("oid %d out of range [0,%d): %w", oid, db.NumRecords(), dberr.CorruptIndex)
	}

	headerBlob, err := db.Index.HeaderSlice(db.HeaderFile, oid)
	if err != nil {
		return Record{}, fmt.Errorf("slice header for oid %d: %w", oid, err)
	}
	deflines, warning := defline.DecodeDeflineSet(headerBlob)

	var sequence string
	if db.Index.IsProtein {
		start, end, err := db.Index.SequenceRange(oid)
		if err != nil {
			return Record{}, fmt.Errorf("sequence range for oid %d: %w", oid, err)
		}
		sequence, err = residue.DecodeProtein(db.SequenceFile, start, end)
		if err != nil {
			return Record{}, fmt.Errorf("decode sequence for oid %d: %w", oid, err)
		}
	}

	return Record{OID: oid, DefLines: deflines, Sequence: sequence, Warning: warning}, nil
}

// DecodeAll decodes every record in the database concurrently, bounded by
// concurrency simultaneous decodes. The returned slice is ordered by OID
// regardless of completion order. A decode failure for any one record
// aborts the whole call and returns that error -- per-record BER/header
// warnings are carried on the Record itself and never cause this to fail.
func (db *Database) DecodeAll(ctx context.Context, concurrency int) ([]Record, error) {
	n := db.NumRecords()
	records := make([]Record, n)

	g, ctx := errgroup.WithContext(ctx)
	if concurrency > 0 {
		g.SetLimit(concurrency)
	}

	for oid := 0; oid < n; oid++ {
		oid := oid
		g.Go(func() error {
			select {
			case <-ctx.Done():
				return ctx.Err()
			default:
			}
			rec, err := db.Record(oid)
			if err != nil {
				return err
			}
			records[oid] = rec
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return records, nil
}

// DecodeSelected decodes exactly the given OIDs concurrently, bounded by
// concurrency simultaneous decodes (0 means unbounded). The result is
// ordered to match oids, not ascending OID order.
func (db *Database) DecodeSelected(ctx context.Context, oids []uint32, concurrency int) ([]Record, error) {
	records := make([]Record, len(oids))

	g, ctx := errgroup.WithContext(ctx)
	if concurrency > 0 {
		g.SetLimit(concurrency)
	}

	for i, oid := range oids {
		i, oid := i, oid
		g.Go(func() error {
			select {
			case <-ctx.Done():
				return ctx.Err()
			default:
			}
			rec, err := db.Record(int(oid))
			if err != nil {
				return err
			}
			records[i] = rec
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return records, nil
}
