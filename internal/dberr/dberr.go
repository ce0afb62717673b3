// Package dberr defines the error taxonomy shared by every legacy-database
// decoder package. Callers should use errors.Is against the sentinels below
// rather than comparing error strings.
package dberr

import "errors"

// Truncated means fewer bytes remain than a primitive read required.
var Truncated = errors.New("truncated: unexpected end of input")

// BadFormat means a structural violation: a bad length byte, an indefinite
// length on a primitive element, a scan loop that failed to advance, or a
// required element that is missing.
var BadFormat = errors.New("bad format")

// UnsupportedVersion means the index file declares a version other than 4 or 5.
var UnsupportedVersion = errors.New("unsupported database version")

// CorruptIndex means an offset table or slice range violates its invariants.
var CorruptIndex = errors.New("corrupt index")

// UnsupportedDatabase means a protein-only consumer was asked to handle a
// nucleotide database (or vice versa for an operation that requires protein).
var UnsupportedDatabase = errors.New("unsupported database type")
