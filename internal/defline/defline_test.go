package defline

import (
	"strings"
	"testing"
)

// tlv builds a short-form definite-length BER element: one tag byte, one
// length byte, and content. All fixtures below stay well under the
// 128-byte short-form length limit.
func tlv(tagByte byte, content []byte) []byte {
	if len(content) >= 128 {
		panic("test fixture exceeds short-form length")
	}
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

// blobWithDeflines wraps one or more already-encoded definition-line
// SEQUENCE elements in the outer Blast-def-line-set SEQUENCE.
func blobWithDeflines(deflines ...[]byte) []byte {
	return tlv(0x30, cat(deflines...))
}

func deflineOf(fields ...[]byte) []byte {
	return tlv(0x30, cat(fields...))
}

func titleFieldPrimitive(title string) []byte {
	return tlv(0x80, []byte(title)) // context [0] primitive
}

func taxidFieldPrimitive(taxid byte) []byte {
	return tlv(0x82, []byte{taxid}) // context [2] primitive
}

func seqidListField(seqids ...[]byte) []byte {
	seq := tlv(0x30, cat(seqids...)) // universal SEQUENCE
	return tlv(0xA1, seq)            // context [1] constructed, explicit-ish wrapper
}

func giSeqID(value uint16) []byte {
	hi := byte(value >> 8)
	lo := byte(value)
	if hi == 0 {
		return tlv(0x8B, []byte{lo}) // context [11]=gi, primitive integer
	}
	return tlv(0x8B, []byte{hi, lo})
}

func pdbSeqID(molName string, chain byte) []byte {
	content := cat(
		tlv(0x1A, []byte(molName)), // universal VisibleString (26)
		tlv(0x02, []byte{chain}),   // universal INTEGER (2)
	)
	return tlv(0xAE, content) // context [14]=pdb, constructed
}

// textSeqID builds a constructed, non-pdb seq-id (embl, number 5) with
// tag-0 and/or tag-1 accession fields in the given order, to exercise
// parseTextSeqID's tag-1-always-wins precedence.
func textSeqID(fields ...[]byte) []byte {
	return tlv(0xA5, cat(fields...)) // context [5], constructed
}

func tag0Field(accession string) []byte {
	return tlv(0x80, []byte(accession)) // context [0] primitive
}

func tag1Field(accession string) []byte {
	return tlv(0x81, []byte(accession)) // context [1] primitive
}

func TestDecodeDeflineSetGiAndTitle(t *testing.T) {
	dl := deflineOf(titleFieldPrimitive("Protein X"), seqidListField(giSeqID(123)))
	blob := blobWithDeflines(dl)

	lines, warning := DecodeDeflineSet(blob)
	if warning != "" {
		t.Fatalf("unexpected warning: %s", warning)
	}
	if len(lines) != 1 {
		t.Fatalf("expected 1 defline, got %d", len(lines))
	}
	if lines[0].Title != "Protein X" {
		t.Errorf("title = %q, want %q", lines[0].Title, "Protein X")
	}
	if len(lines[0].SeqIDs) != 1 || lines[0].SeqIDs[0].Type != "gi" || lines[0].SeqIDs[0].Value != "123" {
		t.Errorf("seqids = %+v, want one gi=123", lines[0].SeqIDs)
	}
}

func TestDecodeDeflineSetPDBIdentifier(t *testing.T) {
	dl := deflineOf(seqidListField(pdbSeqID("1ABC", 1)))
	blob := blobWithDeflines(dl)

	lines, warning := DecodeDeflineSet(blob)
	if warning != "" {
		t.Fatalf("unexpected warning: %s", warning)
	}
	if len(lines) != 1 || len(lines[0].SeqIDs) != 1 {
		t.Fatalf("expected 1 defline with 1 seqid, got %+v", lines)
	}
	id := lines[0].SeqIDs[0]
	if id.Type != "pdb" || id.Value != "1ABC" {
		t.Errorf("pdb seqid = %+v, want type=pdb value=1ABC", id)
	}
	if id.Version == nil || *id.Version != 1 {
		t.Errorf("pdb chain/version = %v, want 1", id.Version)
	}
}

func TestDecodeDeflineSetTaxID(t *testing.T) {
	dl := deflineOf(titleFieldPrimitive("T"), taxidFieldPrimitive(42))
	blob := blobWithDeflines(dl)

	lines, warning := DecodeDeflineSet(blob)
	if warning != "" {
		t.Fatalf("unexpected warning: %s", warning)
	}
	if len(lines) != 1 || lines[0].TaxID == nil || *lines[0].TaxID != 42 {
		t.Fatalf("taxid = %+v", lines)
	}
}

func TestDecodeDeflineSetSecondDeflineMalformedKeepsFirst(t *testing.T) {
	good := deflineOf(titleFieldPrimitive("Good One"), seqidListField(giSeqID(7)))
	// A SEQUENCE whose sole content byte is a dangling field tag with no
	// length byte following it anywhere in the buffer.
	bad := tlv(0x30, []byte{0x80})

	blob := blobWithDeflines(good, bad)

	lines, warning := DecodeDeflineSet(blob)
	if warning == "" {
		t.Fatalf("expected a warning for the malformed second defline")
	}
	if len(lines) != 1 {
		t.Fatalf("expected the first, well-formed defline to survive, got %d lines", len(lines))
	}
	if lines[0].Title != "Good One" {
		t.Errorf("title = %q, want %q", lines[0].Title, "Good One")
	}
}

func TestDecodeDeflineSetIndefiniteChunkedTitle(t *testing.T) {
	// Explicit title wrapper (definite length) containing one constructed,
	// indefinite-length VisibleString made of three primitive chunks.
	chunked := cat(
		[]byte{0x3A, 0x80}, // universal VisibleString, constructed, indefinite
		tlv(0x1A, []byte("AB")),
		tlv(0x1A, []byte("CD")),
		tlv(0x1A, []byte("EF")),
		[]byte{0x00, 0x00}, // end-of-contents
	)
	field0 := tlv(0xA0, chunked)

	dl := deflineOf(field0)
	blob := blobWithDeflines(dl)

	lines, warning := DecodeDeflineSet(blob)
	if warning != "" {
		t.Fatalf("unexpected warning: %s", warning)
	}
	if len(lines) != 1 || lines[0].Title != "ABCDEF" {
		t.Fatalf("title = %+v, want ABCDEF", lines)
	}
}

func TestDecodeDeflineSetTitleFallsBackToScanOnMalformedWrapper(t *testing.T) {
	// A title wrapper whose first child is not string-like (an INTEGER),
	// followed by one that is -- parseVisible fails, extractVisibleLike
	// should find the second child.
	content := cat(
		tlv(0x02, []byte{0x05}),
		tlv(0x1A, []byte("Fallback")),
	)
	field0 := tlv(0xA0, content)

	dl := deflineOf(field0)
	blob := blobWithDeflines(dl)

	lines, warning := DecodeDeflineSet(blob)
	if warning != "" {
		t.Fatalf("unexpected warning: %s", warning)
	}
	if len(lines) != 1 || lines[0].Title != "Fallback" {
		t.Fatalf("title = %+v, want Fallback", lines)
	}
}

func TestDecodeDeflineSetUnknownSeqIDTagNumberName(t *testing.T) {
	// Build a primitive seq-id with a tag number (31) that has no entry in
	// seqIDTypeNames, using long-form tag encoding.
	longFormTag := []byte{0x9F, 0x1F} // class=context(10), primitive, number=0x1F -> long form follows
	seqidContent := cat(longFormTag, []byte{0x01, 0x09})
	seq := tlv(0x30, seqidContent)
	field1 := tlv(0xA1, seq)

	dl := deflineOf(field1)
	blob := blobWithDeflines(dl)

	lines, warning := DecodeDeflineSet(blob)
	if warning != "" {
		t.Fatalf("unexpected warning: %s", warning)
	}
	if len(lines) != 1 || len(lines[0].SeqIDs) != 1 {
		t.Fatalf("expected 1 defline with 1 seqid, got %+v", lines)
	}
	if got := lines[0].SeqIDs[0].Type; !strings.HasPrefix(got, "unknown-") {
		t.Errorf("type = %q, want unknown-N fallback name", got)
	}
}

func TestDecodeDeflineSetSkipsUnrecognizedField(t *testing.T) {
	// A context field number (5) the decoder doesn't understand should be
	// skipped without disturbing the fields around it.
	unknownField := tlv(0x85, []byte("ignored"))
	dl := deflineOf(titleFieldPrimitive("Keep Me"), unknownField, seqidListField(giSeqID(1)))
	blob := blobWithDeflines(dl)

	lines, warning := DecodeDeflineSet(blob)
	if warning != "" {
		t.Fatalf("unexpected warning: %s", warning)
	}
	if len(lines) != 1 || lines[0].Title != "Keep Me" {
		t.Fatalf("unexpected result: %+v", lines)
	}
	if len(lines[0].SeqIDs) != 1 || lines[0].SeqIDs[0].Value != "1" {
		t.Fatalf("unexpected seqids: %+v", lines[0].SeqIDs)
	}
}

func TestDecodeDeflineSetRejectsNonSequenceOuter(t *testing.T) {
	blob := tlv(0x04, []byte("not a sequence")) // universal OCTET STRING
	lines, warning := DecodeDeflineSet(blob)
	if warning == "" {
		t.Fatalf("expected a warning for a non-SEQUENCE outer element")
	}
	if lines != nil {
		t.Fatalf("expected no lines, got %+v", lines)
	}
}

func TestDecodeDeflineSetTextSeqIDTag1WinsOverTag0(t *testing.T) {
	dl := deflineOf(seqidListField(textSeqID(tag0Field("TAG0ACC"), tag1Field("TAG1ACC"))))
	blob := blobWithDeflines(dl)

	lines, warning := DecodeDeflineSet(blob)
	if warning != "" {
		t.Fatalf("unexpected warning: %s", warning)
	}
	if len(lines) != 1 || len(lines[0].SeqIDs) != 1 {
		t.Fatalf("expected 1 defline with 1 seqid, got %+v", lines)
	}
	if got := lines[0].SeqIDs[0].Value; got != "TAG1ACC" {
		t.Errorf("value = %q, want %q (tag 1, seen second, should win)", got, "TAG1ACC")
	}
}

func TestDecodeDeflineSetTextSeqIDTag1WinsRegardlessOfOrder(t *testing.T) {
	dl := deflineOf(seqidListField(textSeqID(tag1Field("TAG1ACC"), tag0Field("TAG0ACC"))))
	blob := blobWithDeflines(dl)

	lines, warning := DecodeDeflineSet(blob)
	if warning != "" {
		t.Fatalf("unexpected warning: %s", warning)
	}
	if len(lines) != 1 || len(lines[0].SeqIDs) != 1 {
		t.Fatalf("expected 1 defline with 1 seqid, got %+v", lines)
	}
	if got := lines[0].SeqIDs[0].Value; got != "TAG1ACC" {
		t.Errorf("value = %q, want %q (tag 1, seen first, should still win)", got, "TAG1ACC")
	}
}

func TestDecodeDeflineSetTextSeqIDTag0OnlyIsKept(t *testing.T) {
	dl := deflineOf(seqidListField(textSeqID(tag0Field("ONLYACC"))))
	blob := blobWithDeflines(dl)

	lines, warning := DecodeDeflineSet(blob)
	if warning != "" {
		t.Fatalf("unexpected warning: %s", warning)
	}
	if len(lines) != 1 || len(lines[0].SeqIDs) != 1 {
		t.Fatalf("expected 1 defline with 1 seqid, got %+v", lines)
	}
	if got := lines[0].SeqIDs[0].Value; got != "ONLYACC" {
		t.Errorf("value = %q, want %q", got, "ONLYACC")
	}
}
