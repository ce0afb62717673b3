// Package defline decodes a Blast-def-line-set header blob: a BER-encoded
// sequence of definition lines, each carrying a title, a list of
// sequence identifiers, and an optional taxonomy id.
//
// Grounded on ExtractHeaders / DecodeDeflineSet / ParseSeqId / ParseTextSeqId
// / ParseVisible / ExtractVisibleLike / ParseExplicitVisible /
// ParseExplicitInteger / TagNameFromNumber in
// original_source/src/app/blastdb/legacy_header_reader.cpp.
package defline

import (
	"fmt"
	"strconv"

	"blastdb/internal/ber"
	"blastdb/internal/cursor"
	"blastdb/internal/dberr"
)

// SeqID is one decoded sequence-identifier variant. Type is the ASN.1
// choice name (e.g. "gi", "genbank", "pdb") or "unknown-N" for a tag number
// this decoder does not recognize by name.
type SeqID struct {
	Type    string
	Value   string
	Version *int64
}

// DefLine is one decoded definition line.
type DefLine struct {
	Title  string
	SeqIDs []SeqID
	TaxID  *int64
}

// seqIDTypeNames maps a context-specific tag number on a Seq-id CHOICE to
// its ASN.1 variant name.
var seqIDTypeNames = map[uint32]string{
	0: "local", 1: "gibbsq", 2: "gibbmt", 3: "giim", 4: "genbank",
	5: "embl", 6: "pir", 7: "swissprot", 8: "patent", 9: "other",
	10: "general", 11: "gi", 12: "ddbj", 13: "prf", 14: "pdb",
	15: "tpg", 16: "tpe", 17: "tpd", 18: "gpipe", 19: "named-annot-track",
}

func tagName(number uint32) string {
	if name, ok := seqIDTypeNames[number]; ok {
		return name
	}
	return fmt.Sprintf("unknown-%d", number)
}

// stringLikeNumbers holds the universal tag numbers whose primitive
// encoding is a run of printable bytes (the various ASN.1 string types).
var stringLikeNumbers = map[uint32]bool{
	12: true, 18: true, 19: true, 20: true, 21: true,
	22: true, 25: true, 26: true, 27: true, 28: true, 29: true, 30: true,
}

func isStringLike(tag ber.Tag) bool {
	return tag.Class == ber.Universal && stringLikeNumbers[tag.Number]
}

// DecodeDeflineSet decodes a full header blob into its definition lines.
// A malformed or truncated element part-way through the blob does not
// discard lines already decoded: decoding stops at that point and the
// lines decoded so far, plus the partially-decoded line if it carried any
// field, are returned alongside a non-empty warning describing what went
// wrong. An empty warning means the blob decoded cleanly.
func DecodeDeflineSet(blob []byte) ([]DefLine, string) {
	c := cursor.New(blob)

	outerTag, err := ber.ReadTag(c)
	if err != nil {
		return nil, err.Error()
	}
	if outerTag.Class != ber.Universal || outerTag.Number != 16 || !outerTag.Constructed {
		return nil, fmt.Errorf("expected definition-line-set sequence, got class=%d number=%d: %w",
			outerTag.Class, outerTag.Number, dberr.BadFormat).Error()
	}
	outerLen, err := ber.ReadLength(c)
	if err != nil {
		return nil, err.Error()
	}

	indefinite := outerLen.Indefinite
	end := 0
	if !indefinite {
		end = c.Position() + outerLen.Length
	}

	var lines []DefLine
	var warning string

	for {
		if indefinite {
			if ber.AtEOC(c) {
				if err := ber.ConsumeEOC(c); err != nil {
					warning = err.Error()
				}
				break
			}
		} else if c.Position() >= end {
			break
		}

		elementStart := c.Position()
		defTag, err := ber.ReadTag(c)
		if err != nil {
			warning = err.Error()
			break
		}
		if defTag.Class != ber.Universal || defTag.Number != 16 || !defTag.Constructed {
			if err := c.Seek(elementStart); err != nil {
				warning = err.Error()
				break
			}
			if err := ber.SkipElement(c); err != nil {
				warning = err.Error()
				break
			}
			continue
		}

		line, lineErr := decodeOneDefLine(c, defTag)
		if lineErr != nil {
			if warning == "" {
				warning = lineErr.Error()
			}
			if line.Title != "" || len(line.SeqIDs) > 0 || line.TaxID != nil {
				lines = append(lines, line)
			}
			break
		}
		lines = append(lines, line)
	}

	return lines, warning
}

// decodeOneDefLine decodes a single definition line. defTag has already
// been read by the caller; this function reads its length and then the
// context-specific fields inside (0=title, 1=seqid-list, 2=taxid).
func decodeOneDefLine(c *cursor.Cursor, defTag ber.Tag) (DefLine, error) {
	defLen, err := ber.ReadLength(c)
	if err != nil {
		return DefLine{}, err
	}

	indefinite := defLen.Indefinite
	end := 0
	if !indefinite {
		end = c.Position() + defLen.Length
	}

	var line DefLine
	for {
		if indefinite {
			if ber.AtEOC(c) {
				if err := ber.ConsumeEOC(c); err != nil {
					return line, err
				}
				break
			}
		} else if c.Position() >= end {
			break
		}

		fieldTag, err := ber.ReadTag(c)
		if err != nil {
			return line, err
		}
		if fieldTag.Class != ber.ContextSpecific {
			if err := skipUnread(c, fieldTag); err != nil {
				return line, err
			}
			continue
		}

		switch fieldTag.Number {
		case 0:
			fieldLen, err := ber.ReadLength(c)
			if err != nil {
				return line, err
			}
			if fieldTag.Constructed || fieldLen.Indefinite {
				v, err := parseExplicitVisible(c, fieldLen)
				if err != nil {
					return line, err
				}
				line.Title = v
			} else {
				b, err := c.ReadBytes(fieldLen.Length)
				if err != nil {
					return line, err
				}
				line.Title = string(b)
			}
		case 1:
			ids, err := parseSeqIDField(c)
			line.SeqIDs = ids
			if err != nil {
				return line, err
			}
		case 2:
			fieldLen, err := ber.ReadLength(c)
			if err != nil {
				return line, err
			}
			if fieldTag.Constructed || fieldLen.Indefinite {
				v, err := parseExplicitInteger(c, fieldLen)
				if err != nil {
					return line, err
				}
				line.TaxID = &v
			} else {
				v, err := decodeInteger(c, fieldLen.Length)
				if err != nil {
					return line, err
				}
				line.TaxID = &v
			}
		default:
			if err := skipUnread(c, fieldTag); err != nil {
				return line, err
			}
		}
	}
	return line, nil
}

// skipUnread skips the length and body of an element whose tag has already
// been consumed.
func skipUnread(c *cursor.Cursor, tag ber.Tag) error {
	length, err := ber.ReadLength(c)
	if err != nil {
		return err
	}
	return ber.SkipBody(c, tag, length)
}

// parseSeqIDField decodes the seqid-list field. The context-specific
// wrapper tag has already been read by the caller; this reads the
// wrapper's length, decodes the nested universal SEQUENCE OF Seq-id inside
// it, then skips any trailing bytes up to the wrapper's end.
func parseSeqIDField(c *cursor.Cursor) ([]SeqID, error) {
	length, err := ber.ReadLength(c)
	if err != nil {
		return nil, err
	}
	start := c.Position()

	ids, err := parseSeqIDList(c)
	if err != nil {
		return ids, err
	}

	if length.Indefinite {
		for !ber.AtEOC(c) {
			if err := ber.SkipElement(c); err != nil {
				return ids, err
			}
		}
		if err := ber.ConsumeEOC(c); err != nil {
			return ids, err
		}
	} else {
		end := start + length.Length
		if c.Position() < end {
			if err := c.Seek(end); err != nil {
				return ids, err
			}
		}
	}
	return ids, nil
}

func parseSeqIDList(c *cursor.Cursor) ([]SeqID, error) {
	tag, err := ber.ReadTag(c)
	if err != nil {
		return nil, err
	}
	if tag.Class != ber.Universal || tag.Number != 16 || !tag.Constructed {
		return nil, fmt.Errorf("expected SEQUENCE for seqid-list, got class=%d number=%d: %w",
			tag.Class, tag.Number, dberr.BadFormat)
	}
	length, err := ber.ReadLength(c)
	if err != nil {
		return nil, err
	}

	indefinite := length.Indefinite
	end := 0
	if !indefinite {
		end = c.Position() + length.Length
	}

	var ids []SeqID
	for {
		if indefinite {
			if ber.AtEOC(c) {
				if err := ber.ConsumeEOC(c); err != nil {
					return ids, err
				}
				break
			}
		} else if c.Position() >= end {
			break
		}

		id, err := parseSeqID(c)
		if err != nil {
			return ids, err
		}
		ids = append(ids, id)
	}
	return ids, nil
}

// parseSeqID decodes one Seq-id CHOICE, reading its own tag.
func parseSeqID(c *cursor.Cursor) (SeqID, error) {
	start := c.Position()
	tag, err := ber.ReadTag(c)
	if err != nil {
		return SeqID{}, err
	}
	if tag.Class != ber.ContextSpecific {
		return SeqID{}, fmt.Errorf("seq-id tag class %d, want context-specific: %w", tag.Class, dberr.BadFormat)
	}

	id := SeqID{Type: tagName(tag.Number)}

	if tag.Constructed {
		if tag.Number == 14 {
			if err := parsePDBSeqID(c, &id); err != nil {
				return SeqID{}, err
			}
		} else {
			textID, err := parseTextSeqID(c, nil)
			if err != nil {
				return SeqID{}, err
			}
			id.Value = textID.Value
			id.Version = textID.Version
		}
	} else {
		length, err := ber.ReadLength(c)
		if err != nil {
			return SeqID{}, err
		}
		if length.Indefinite {
			return SeqID{}, fmt.Errorf("primitive seq-id with indefinite length: %w", dberr.BadFormat)
		}
		value, err := decodeInteger(c, length.Length)
		if err != nil {
			return SeqID{}, err
		}
		id.Value = strconv.FormatInt(value, 10)
	}

	end := c.Position()
	if id.Value == "" {
		if recovered := recoverValue(c.Bytes()[start:end]); recovered != "" {
			id.Value = recovered
		}
	}
	return id, nil
}

// parsePDBSeqID decodes the structurally distinct PDB-seq-id variant: a
// constructed element carrying a mol-name string (universal tag 26) and an
// optional chain/version integer (universal tag 2).
func parsePDBSeqID(c *cursor.Cursor, id *SeqID) error {
	length, err := ber.ReadLength(c)
	if err != nil {
		return err
	}

	indefinite := length.Indefinite
	end := 0
	if !indefinite {
		end = c.Position() + length.Length
	}

	for {
		if indefinite {
			if ber.AtEOC(c) {
				if err := ber.ConsumeEOC(c); err != nil {
					return err
				}
				break
			}
		} else if c.Position() >= end {
			break
		}

		fieldTag, err := ber.ReadTag(c)
		if err != nil {
			return err
		}
		fieldLen, err := ber.ReadLength(c)
		if err != nil {
			return err
		}
		if fieldLen.Indefinite {
			return fmt.Errorf("indefinite length inside pdb seq-id: %w", dberr.BadFormat)
		}

		switch {
		case fieldTag.Class == ber.Universal && fieldTag.Number == 26 && id.Value == "":
			b, err := c.ReadBytes(fieldLen.Length)
			if err != nil {
				return err
			}
			id.Value = string(b)
		case fieldTag.Class == ber.Universal && fieldTag.Number == 2 && id.Version == nil:
			v, err := decodeInteger(c, fieldLen.Length)
			if err != nil {
				return err
			}
			id.Version = &v
		default:
			if err := ber.SkipBody(c, fieldTag, fieldLen); err != nil {
				return err
			}
		}
	}
	return nil
}

// parseTextSeqID decodes the common Textseq-id shape shared by most
// non-PDB Seq-id variants: an accession string (tag 0 or 1) and an
// optional version integer (tag 3). The element's own tag has already
// been consumed by the caller; this reads the length. An indefinite-length
// element is read until its end-of-contents marker; endLimit (nil means the
// buffer end) does not cut that loop short.
func parseTextSeqID(c *cursor.Cursor, endLimit *int) (SeqID, error) {
	var id SeqID

	length, err := ber.ReadLength(c)
	if err != nil {
		return SeqID{}, err
	}

	indefinite := length.Indefinite
	end := 0
	switch {
	case indefinite && endLimit != nil:
		end = *endLimit
	case indefinite:
		end = c.Len()
	default:
		end = c.Position() + length.Length
	}

	for {
		if indefinite {
			if ber.AtEOC(c) {
				if err := ber.ConsumeEOC(c); err != nil {
					return SeqID{}, err
				}
				break
			}
		} else if c.Position() >= end {
			break
		}

		tag, err := ber.ReadTag(c)
		if err != nil {
			return SeqID{}, err
		}
		fieldLen, err := ber.ReadLength(c)
		if err != nil {
			return SeqID{}, err
		}

		switch tag.Number {
		case 0:
			if id.Value != "" {
				if err := ber.SkipBody(c, tag, fieldLen); err != nil {
					return SeqID{}, err
				}
				continue
			}
			if tag.Constructed || fieldLen.Indefinite {
				v, err := parseExplicitVisible(c, fieldLen)
				if err != nil {
					return SeqID{}, err
				}
				id.Value = v
			} else {
				b, err := c.ReadBytes(fieldLen.Length)
				if err != nil {
					return SeqID{}, err
				}
				id.Value = string(b)
			}
		case 1:
			// Tag 1 always wins over tag 0, regardless of which the
			// byte stream happened to carry first.
			if tag.Constructed || fieldLen.Indefinite {
				v, err := parseExplicitVisible(c, fieldLen)
				if err != nil {
					return SeqID{}, err
				}
				id.Value = v
			} else {
				b, err := c.ReadBytes(fieldLen.Length)
				if err != nil {
					return SeqID{}, err
				}
				id.Value = string(b)
			}
		case 3:
			if tag.Constructed || fieldLen.Indefinite {
				v, err := parseExplicitInteger(c, fieldLen)
				if err != nil {
					return SeqID{}, err
				}
				id.Version = &v
			} else {
				v, err := decodeInteger(c, fieldLen.Length)
				if err != nil {
					return SeqID{}, err
				}
				id.Version = &v
			}
		default:
			if err := ber.SkipBody(c, tag, fieldLen); err != nil {
				return SeqID{}, err
			}
		}
	}
	return id, nil
}

// decodeInteger interprets length raw bytes as a big-endian two's
// complement integer, sign-extending from the top bit of the first byte.
func decodeInteger(c *cursor.Cursor, length int) (int64, error) {
	if length == 0 {
		return 0, fmt.Errorf("zero-length integer: %w", dberr.BadFormat)
	}
	if length > 8 {
		return 0, fmt.Errorf("integer of %d bytes exceeds int64: %w", length, dberr.BadFormat)
	}
	b, err := c.ReadBytes(length)
	if err != nil {
		return 0, err
	}
	var value int64
	if b[0]&0x80 != 0 {
		value = -1
	}
	for _, by := range b {
		value = (value << 8) | int64(by)
	}
	return value, nil
}

// parseExplicitVisible decodes a string field wrapped in an explicit
// context-specific tag: the common case is a single nested string-like
// element, but malformed input is recovered by scanning the wrapper's
// payload for the first string-like element found anywhere inside it.
// The outer tag and length have already been consumed by the caller.
func parseExplicitVisible(c *cursor.Cursor, length ber.Length) (string, error) {
	start := c.Position()
	end := c.Len()
	if !length.Indefinite {
		end = start + length.Length
	}

	value, err := parseVisible(c)
	if err != nil {
		if err := c.Seek(start); err != nil {
			return "", err
		}
		recovered, found, err := extractVisibleLike(c, end)
		if err != nil {
			return "", err
		}
		if found {
			value = recovered
		} else {
			value = ""
		}
	}

	if length.Indefinite {
		for c.Position() < end && !ber.AtEOC(c) {
			if err := ber.SkipElement(c); err != nil {
				return value, err
			}
		}
		if ber.AtEOC(c) {
			if err := ber.ConsumeEOC(c); err != nil {
				return value, err
			}
		}
	} else if c.Position() < end {
		if err := c.Seek(end); err != nil {
			return value, err
		}
	}
	return value, nil
}

// parseExplicitInteger mirrors parseExplicitVisible for an integer field:
// a single nested universal INTEGER is expected inside the wrapper.
func parseExplicitInteger(c *cursor.Cursor, length ber.Length) (int64, error) {
	start := c.Position()

	innerTag, err := ber.ReadTag(c)
	if err != nil {
		return 0, err
	}
	innerLen, err := ber.ReadLength(c)
	if err != nil {
		return 0, err
	}
	if innerTag.Class != ber.Universal || innerTag.Number != 2 || innerLen.Indefinite {
		return 0, fmt.Errorf("expected integer inside explicit wrapper: %w", dberr.BadFormat)
	}
	value, err := decodeInteger(c, innerLen.Length)
	if err != nil {
		return 0, err
	}

	if length.Indefinite {
		for !ber.AtEOC(c) {
			if err := ber.SkipElement(c); err != nil {
				return value, err
			}
		}
		if err := ber.ConsumeEOC(c); err != nil {
			return value, err
		}
	} else {
		end := start + length.Length
		if c.Position() < end {
			if err := c.Seek(end); err != nil {
				return value, err
			}
		}
	}
	return value, nil
}

// parseVisible decodes one string-like element starting at the cursor,
// concatenating the primitive chunks of a constructed (chunked) encoding.
func parseVisible(c *cursor.Cursor) (string, error) {
	tag, err := ber.ReadTag(c)
	if err != nil {
		return "", err
	}
	length, err := ber.ReadLength(c)
	if err != nil {
		return "", err
	}
	if !isStringLike(tag) {
		return "", fmt.Errorf("expected string-like tag, got class=%d number=%d: %w",
			tag.Class, tag.Number, dberr.BadFormat)
	}

	if !tag.Constructed {
		if length.Indefinite {
			return "", fmt.Errorf("primitive string with indefinite length: %w", dberr.BadFormat)
		}
		b, err := c.ReadBytes(length.Length)
		if err != nil {
			return "", err
		}
		return string(b), nil
	}

	indefinite := length.Indefinite
	end := 0
	if !indefinite {
		end = c.Position() + length.Length
	}

	var out []byte
	for {
		if indefinite {
			if ber.AtEOC(c) {
				if err := ber.ConsumeEOC(c); err != nil {
					return string(out), err
				}
				break
			}
		} else if c.Position() >= end {
			break
		}

		chunkTag, err := ber.ReadTag(c)
		if err != nil {
			return string(out), err
		}
		chunkLen, err := ber.ReadLength(c)
		if err != nil {
			return string(out), err
		}

		if isStringLike(chunkTag) && !chunkTag.Constructed && !chunkLen.Indefinite {
			b, err := c.ReadBytes(chunkLen.Length)
			if err != nil {
				return string(out), err
			}
			out = append(out, b...)
		} else if err := ber.SkipBody(c, chunkTag, chunkLen); err != nil {
			return string(out), err
		}
	}

	if !indefinite && c.Position() < end {
		if err := c.Seek(end); err != nil {
			return string(out), err
		}
	}
	return string(out), nil
}

// extractVisibleLike is the permissive fallback used when parseVisible
// cannot find a well-formed string where one was expected: it scans
// forward from the cursor up to limit, looking for the first string-like
// element of any kind. It descends into constructed string-like elements
// and into indefinite-length constructed elements; a definite-length
// constructed element that is not string-like is skipped whole. found is
// false, with no error, if the scan reaches limit without locating one.
func extractVisibleLike(c *cursor.Cursor, limit int) (string, bool, error) {
	for c.Position() < limit {
		if ber.AtEOC(c) {
			if err := ber.ConsumeEOC(c); err != nil {
				return "", false, err
			}
			break
		}

		elementStart := c.Position()
		tag, err := ber.ReadTag(c)
		if err != nil {
			return "", false, err
		}
		length, err := ber.ReadLength(c)
		if err != nil {
			return "", false, err
		}

		switch {
		case isStringLike(tag) && !tag.Constructed:
			if length.Indefinite {
				return "", false, fmt.Errorf("primitive string with indefinite length: %w", dberr.BadFormat)
			}
			b, err := c.ReadBytes(length.Length)
			if err != nil {
				return "", false, err
			}
			return string(b), true, nil

		case isStringLike(tag) && tag.Constructed:
			innerEnd := limit
			if !length.Indefinite {
				innerEnd = c.Position() + length.Length
			}
			inner, found, err := extractVisibleLike(c, innerEnd)
			if err != nil {
				return "", false, err
			}
			if found {
				return inner, true, nil
			}
			if !length.Indefinite && c.Position() < innerEnd {
				if err := c.Seek(innerEnd); err != nil {
					return "", false, err
				}
			}

		case length.Indefinite:
			if !tag.Constructed {
				return "", false, fmt.Errorf("indefinite length on primitive element: %w", dberr.BadFormat)
			}
			// The nested scan stops at, and consumes, this element's
			// end-of-contents marker (or stops at limit).
			inner, found, err := extractVisibleLike(c, limit)
			if err != nil {
				return "", false, err
			}
			if found {
				return inner, true, nil
			}

		default:
			if err := ber.SkipBody(c, tag, length); err != nil {
				return "", false, err
			}
		}

		if c.Position() <= elementStart {
			return "", false, fmt.Errorf("scan for string element made no forward progress: %w", dberr.BadFormat)
		}
	}
	return "", false, nil
}

// recoverValue returns the longest run of accession-like bytes
// ([A-Za-z0-9_.]) found in raw, or "" if none exists. It is the decoder's
// last resort for a Seq-id whose structured fields all came back empty.
func recoverValue(raw []byte) string {
	isAllowed := func(b byte) bool {
		return (b >= 'A' && b <= 'Z') || (b >= 'a' && b <= 'z') ||
			(b >= '0' && b <= '9') || b == '_' || b == '.'
	}

	var best, current []byte
	for _, b := range raw {
		if isAllowed(b) {
			current = append(current, b)
			continue
		}
		if len(current) > len(best) {
			best = append(best[:0:0], current...)
		}
		current = current[:0]
	}
	if len(current) > len(best) {
		best = append(best[:0:0], current...)
	}
	return string(best)
}
