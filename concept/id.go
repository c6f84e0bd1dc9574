// Package concept defines the value types stored in the knowledge
// graph: concept identifiers, concept nodes, associations, and the
// semantic metadata attached to a concept by classifiers outside the
// core.
package concept

import (
	"crypto/md5"
	"encoding/hex"
)

// ID is an opaque 128-bit concept identifier. Equality is byte
// equality; ordering is the lexicographic byte order imposed by
// snapshot.entryLess, not any semantic ordering of content.
type ID [16]byte

// NewIDFromContent derives a content-addressed ID by hashing b with
// MD5, giving deterministic dedup for repeated learns of identical
// content.
func NewIDFromContent(b []byte) ID {
	return ID(md5.Sum(b))
}

// NewIDFromBytes builds an ID from arbitrary caller-supplied bytes,
// right-padding or truncating to 16 bytes.
func NewIDFromBytes(b []byte) ID {
	var id ID
	copy(id[:], b)
	return id
}

// Hex returns the canonical textual form of id.
func (id ID) Hex() string {
	return hex.EncodeToString(id[:])
}

// String implements fmt.Stringer via the canonical hex form.
func (id ID) String() string {
	return id.Hex()
}

// IDFromHex parses the canonical textual form produced by Hex.
func IDFromHex(s string) (ID, error) {
	var id ID
	b, err := hex.DecodeString(s)
	if err != nil {
		return id, err
	}
	copy(id[:], b)
	return id, nil
}

// Less reports whether id sorts before other under byte-lexicographic
// order, the total order the concept-map B-tree is keyed by.
func (id ID) Less(other ID) bool {
	for i := range id {
		if id[i] != other[i] {
			return id[i] < other[i]
		}
	}
	return false
}

// IsZero reports whether id is the all-zero identifier, used as a
// sentinel for "no id supplied" in a handful of request paths.
func (id ID) IsZero() bool {
	return id == ID{}
}
