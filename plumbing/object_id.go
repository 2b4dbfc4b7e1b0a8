// Package plumbing holds the low-level, content-addressed types shared by
// the object database, the reference database and the revision resolver:
// object identities, object types, tree file modes and reference records.
package plumbing

import (
	"bytes"
	"encoding/hex"

	"github.com/haugantoine/git/hash"
)

// ObjectID is the 20-byte SHA-1 identity of a Git object. The zero value
// (ZeroID) is a reserved sentinel meaning "absent" in ref updates.
type ObjectID [hash.Size]byte

// ZeroID is the all-zero ObjectID, used to mean "no object" in ref update
// preconditions and deletions.
var ZeroID ObjectID

// FromHex parses the 40 character hexadecimal representation of an
// ObjectID. The second return value is false if in is not valid hex or
// not exactly hash.HexSize characters long.
func FromHex(in string) (ObjectID, bool) {
	var id ObjectID
	if len(in) != hash.HexSize {
		return id, false
	}

	out, err := hex.DecodeString(in)
	if err != nil {
		return id, false
	}

	copy(id[:], out)
	return id, true
}

// FromBytes builds an ObjectID from a raw 20-byte slice. ok is false if
// in is not exactly hash.Size bytes long.
func FromBytes(in []byte) (id ObjectID, ok bool) {
	if len(in) != hash.Size {
		return id, false
	}
	copy(id[:], in)
	return id, true
}

// String returns the lowercase hexadecimal representation of id.
func (id ObjectID) String() string {
	return hex.EncodeToString(id[:])
}

// Bytes returns the raw 20 bytes of id.
func (id ObjectID) Bytes() []byte {
	return id[:]
}

// IsZero reports whether id is the reserved "absent" sentinel.
func (id ObjectID) IsZero() bool {
	return id == ZeroID
}

// Compare compares id's bytes against b lexicographically, the same
// contract as bytes.Compare.
func (id ObjectID) Compare(b []byte) int {
	return bytes.Compare(id[:], b)
}

// HasPrefix reports whether id starts with the given raw byte prefix.
func (id ObjectID) HasPrefix(prefix []byte) bool {
	return bytes.HasPrefix(id[:], prefix)
}

// Less orders two ObjectIDs bytewise; used to keep tree entries and
// abbreviation candidate lists in a stable, sorted order.
func (id ObjectID) Less(other ObjectID) bool {
	return id.Compare(other[:]) < 0
}

// ObjectIDSlice attaches sort.Interface to []ObjectID in increasing order.
type ObjectIDSlice []ObjectID

func (s ObjectIDSlice) Len() int           { return len(s) }
func (s ObjectIDSlice) Less(i, j int) bool { return s[i].Less(s[j]) }
func (s ObjectIDSlice) Swap(i, j int)      { s[i], s[j] = s[j], s[i] }
