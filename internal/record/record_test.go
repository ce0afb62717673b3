package record

import (
	"context"
	"testing"

	"blastdb/internal/dbindex"
)

// tlv builds a short-form definite-length BER element.
func tlv(tagByte byte, content []byte) []byte {
	out := []byte{tagByte, byte(len(content))}
	return append(out, content...)
}

func cat(parts ...[]byte) []byte {
	var out []byte
	for _, p := range parts {
		out = append(out, p...)
	}
	return out
}

// buildHeaderBlob encodes a single definition line with a title and one
// gi identifier, matching the fixtures in internal/defline's tests.
func buildHeaderBlob(title string, gi uint16) []byte {
	hi, lo := byte(gi>>8), byte(gi)
	giBytes := []byte{lo}
	if hi != 0 {
		giBytes = []byte{hi, lo}
	}
	giElement := tlv(0x8B, giBytes) // context [11]=gi, primitive integer
	seq := tlv(0x30, giElement)     // universal SEQUENCE
	field1 := tlv(0xA1, seq)        // context [1] seqid-list
	field0 := tlv(0x80, []byte(title))
	dl := tlv(0x30, cat(field0, field1))
	return tlv(0x30, dl)
}

// buildIndex constructs a minimal two-record version-4 protein index plus
// matching header and sequence files, mirroring spec.md §8 scenario 1's
// byte layout but with two records.
func buildIndex(t *testing.T) *Database {
	t.Helper()

	h0 := buildHeaderBlob("Record Zero", 100)
	h1 := buildHeaderBlob("Record One", 200)
	headerFile := cat(h0, h1)

	seq0 := []byte{1, 2, 3, 0} // "ABC" then terminator
	seq1 := []byte{4, 5, 0}    // "DE" then terminator (4=D,5=E per residue table)
	sequenceFile := cat(seq0, seq1)

	be32 := func(v uint32) []byte {
		return []byte{byte(v >> 24), byte(v >> 16), byte(v >> 8), byte(v)}
	}
	be64mixed := func(v uint64) []byte {
		b := make([]byte, 8)
		for i := 0; i < 8; i++ {
			b[i] = byte(v)
			v >>= 8
		}
		return b
	}

	data := cat(
		be32(4),                              // version
		be32(1),                              // protein
		be32(1), []byte("a"),                 // title
		be32(1), []byte("b"),                 // creation date
		be32(2),                              // num_records
		be64mixed(7),                         // total_residues
		be32(3),                              // max_length
		be32(0), be32(uint32(len(h0))), be32(uint32(len(h0)+len(h1))), // header_offsets
		be32(0), be32(uint32(len(seq0))), be32(uint32(len(seq0)+len(seq1))), // sequence_offsets
	)

	idx, err := dbindex.ParseIndex(data)
	if err != nil {
		t.Fatalf("ParseIndex failed: %v", err)
	}
	return &Database{Index: idx, HeaderFile: headerFile, SequenceFile: sequenceFile}
}

func TestDatabaseRecordEndToEnd(t *testing.T) {
	db := buildIndex(t)

	rec0, err := db.Record(0)
	if err != nil {
		t.Fatalf("Record(0) failed: %v", err)
	}
	if rec0.Warning != "" {
		t.Fatalf("unexpected warning: %s", rec0.Warning)
	}
	if len(rec0.DefLines) != 1 || rec0.DefLines[0].Title != "Record Zero" {
		t.Fatalf("unexpected deflines: %+v", rec0.DefLines)
	}
	if rec0.DefLines[0].SeqIDs[0].Value != "100" {
		t.Fatalf("unexpected gi: %+v", rec0.DefLines[0].SeqIDs)
	}
	if rec0.Sequence != "ABC" {
		t.Fatalf("sequence = %q, want ABC", rec0.Sequence)
	}

	rec1, err := db.Record(1)
	if err != nil {
		t.Fatalf("Record(1) failed: %v", err)
	}
	if rec1.Sequence != "DE" {
		t.Fatalf("sequence = %q, want DE", rec1.Sequence)
	}
}

func TestDatabaseDecodeAllOrdersByOID(t *testing.T) {
	db := buildIndex(t)
	recs, err := db.DecodeAll(context.Background(), 4)
	if err != nil {
		t.Fatalf("DecodeAll failed: %v", err)
	}
	if len(recs) != 2 {
		t.Fatalf("expected 2 records, got %d", len(recs))
	}
	if recs[0].OID != 0 || recs[1].OID != 1 {
		t.Fatalf("records out of order: %+v", recs)
	}
	if recs[0].DefLines[0].Title != "Record Zero" || recs[1].DefLines[0].Title != "Record One" {
		t.Fatalf("unexpected titles: %+v", recs)
	}
}

func TestDatabaseRecordOutOfRange(t *testing.T) {
	db := buildIndex(t)
	if _, err := db.Record(2); err == nil {
		t.Fatalf("expected out-of-range error")
	}
}
