// Package record implements the self-describing binary record format that
// the update engine reads and writes: arrays, maps, signed/unsigned integer
// sub-ranges, float32/float64, strings, binary blobs, and one extension
// type (decimal, used by the update engine's arithmetic operator).
//
// No library in the retrieval pack implements this exact tagged binary
// encoding (the pack's serialization libraries - cuelang.org/go/encoding/*,
// jsonenc - are all textual, JSON-shaped codecs); this package is
// necessarily standard-library-only (encoding/binary, math) for the wire
// layer itself, with github.com/cockroachdb/apd/v3 used for the one
// extension payload that needs arbitrary-precision decimal semantics.
package record

import "encoding/binary"

// tag identifies the type of the value that follows it in the wire format.
type tag byte

const (
	tagNil tag = iota
	tagFalse
	tagTrue
	tagUint8
	tagUint16
	tagUint32
	tagUint64
	tagInt8
	tagInt16
	tagInt32
	tagInt64
	tagFloat32
	tagFloat64
	tagStr8
	tagStr16
	tagStr32
	tagBin8
	tagBin16
	tagBin32
	tagArray16
	tagArray32
	tagMap16
	tagMap32
	tagExt8 // 1-byte ext type tag, followed by length-prefixed payload
)

// ExtType identifies an extension payload kind. Decimal is the only one
// this format defines, matching base spec §6's "extension types identified
// by a small integer tag; decimal uses one such tag."
type ExtType byte

const (
	ExtDecimal ExtType = 1
)

// byteOrder is used throughout for all fixed-width integer fields.
var byteOrder = binary.BigEndian
