// Package cursor provides a read-only, bounds-checked position over an
// in-memory byte buffer. It is the lowest layer of the legacy database
// decoder: every other package reads through a Cursor rather than indexing
// a []byte directly, so truncation is caught in one place.
package cursor

import (
	"fmt"

	"blastdb/internal/dberr"
)

// Cursor walks a byte slice it does not own. No read ever advances the
// cursor on failure.
type Cursor struct {
	buf []byte
	pos int
}

// New wraps buf in a Cursor starting at position 0.
func New(buf []byte) *Cursor {
	return &Cursor{buf: buf}
}

// Position returns the current byte offset.
func (c *Cursor) Position() int { return c.pos }

// Len returns the total buffer length.
func (c *Cursor) Len() int { return len(c.buf) }

// Remaining returns the number of unread bytes.
func (c *Cursor) Remaining() int { return len(c.buf) - c.pos }

// Bytes returns the full underlying buffer, for callers that need to
// re-scan a byte range they have already walked past (e.g. the
// last-resort identifier-value recovery in internal/defline).
func (c *Cursor) Bytes() []byte { return c.buf }

// Seek moves the cursor to an absolute position. It is used by higher-level
// packages that compute element boundaries ahead of reading them (explicit
// wrapper skipping, definite-length container ends).
func (c *Cursor) Seek(pos int) error {
	if pos < 0 || pos > len(c.buf) {
		return fmt.Errorf("seek to %d out of bounds [0,%d]: %w", pos, len(c.buf), dberr.CorruptIndex)
	}
	c.pos = pos
	return nil
}

// Peek returns the next n bytes without advancing the cursor.
func (c *Cursor) Peek(n int) ([]byte, error) {
	if n < 0 || c.Remaining() < n {
		return nil, fmt.Errorf("peek %d bytes at offset %d: %w", n, c.pos, dberr.Truncated)
	}
	return c.buf[c.pos : c.pos+n], nil
}

// ReadBytes consumes and returns the next n raw bytes.
func (c *Cursor) ReadBytes(n int) ([]byte, error) {
	b, err := c.Peek(n)
	if err != nil {
		return nil, err
	}
	c.pos += n
	return b, nil
}

// ReadByte consumes and returns a single byte.
func (c *Cursor) ReadByte() (byte, error) {
	b, err := c.ReadBytes(1)
	if err != nil {
		return 0, err
	}
	return b[0], nil
}

// ReadU32BE reads a big-endian 32-bit unsigned integer.
func (c *Cursor) ReadU32BE() (uint32, error) {
	b, err := c.ReadBytes(4)
	if err != nil {
		return 0, fmt.Errorf("read u32: %w", err)
	}
	return uint32(b[0])<<24 | uint32(b[1])<<16 | uint32(b[2])<<8 | uint32(b[3]), nil
}

// ReadU64Mixed reads the unusual 64-bit encoding used for total_residues:
// the eight bytes are iterated in reverse, shifting left by 8 each step, so
// the first byte is the least significant (a little-endian read, unlike the
// big-endian 32-bit fields around it). See SPEC_FULL.md §4.1 for why this
// algorithm (and not a plain big-endian read) is the one pinned by
// cursor_test.go.
func (c *Cursor) ReadU64Mixed() (uint64, error) {
	b, err := c.ReadBytes(8)
	if err != nil {
		return 0, fmt.Errorf("read u64 mixed: %w", err)
	}
	var value uint64
	for i := 7; i >= 0; i-- {
		value = (value << 8) | uint64(b[i])
	}
	return value, nil
}

// ReadLengthPrefixedString reads a big-endian 32-bit length followed by that
// many raw bytes, interpreted as 8-bit text without transcoding.
func (c *Cursor) ReadLengthPrefixedString() (string, error) {
	start := c.pos
	n, err := c.ReadU32BE()
	if err != nil {
		return "", fmt.Errorf("read string length: %w", err)
	}
	b, err := c.ReadBytes(int(n))
	if err != nil {
		c.pos = start
		return "", fmt.Errorf("read string body (len=%d): %w", n, err)
	}
	return string(b), nil
}
