package plumbing

import (
	"encoding/hex"
	"fmt"

	"github.com/haugantoine/git/hash"
)

// AbbreviatedID is a prefix of an ObjectID: the first bitLen bits of hash,
// used to resolve short hex strings such as "a1b2c3" to full ids.
type AbbreviatedID struct {
	hash [hash.Size]byte
	bits uint
}

// MinAbbreviatedBits and MaxAbbreviatedBits bound the valid bit-length of
// an AbbreviatedID, per the object id's data model.
const (
	MinAbbreviatedBits = 4
	MaxAbbreviatedBits = hash.Size * 8
)

// NewAbbreviatedID parses a hexadecimal prefix (1 to 40 characters) into
// an AbbreviatedID. ok is false if the prefix is empty, too long, or not
// valid hex.
func NewAbbreviatedID(prefix string) (AbbreviatedID, bool) {
	var a AbbreviatedID
	if len(prefix) == 0 || len(prefix) > hash.HexSize {
		return a, false
	}

	padded := prefix
	if len(padded)%2 != 0 {
		padded += "0"
	}

	raw, err := hex.DecodeString(padded)
	if err != nil {
		return a, false
	}

	copy(a.hash[:], raw)
	a.bits = uint(len(prefix) * 4)
	return a, true
}

// Bits returns the number of significant leading bits of the prefix.
func (a AbbreviatedID) Bits() uint { return a.bits }

// String renders the abbreviation back to its hexadecimal form.
func (a AbbreviatedID) String() string {
	full := hex.EncodeToString(a.hash[:])
	nibbles := (a.bits + 3) / 4
	return full[:nibbles]
}

// LeadingByte returns the abbreviation's first full byte, used by
// fan-out tables (pack indexes) to bound a search to a contiguous
// range before doing a finer-grained bit comparison.
func (a AbbreviatedID) LeadingByte() byte {
	return a.hash[0]
}

// Matches reports whether id agrees with the abbreviation on its first
// Bits() bits.
func (a AbbreviatedID) Matches(id ObjectID) bool {
	fullBytes := a.bits / 8
	for i := uint(0); i < fullBytes; i++ {
		if id[i] != a.hash[i] {
			return false
		}
	}

	remBits := a.bits % 8
	if remBits == 0 {
		return true
	}

	mask := byte(0xFF << (8 - remBits))
	return id[fullBytes]&mask == a.hash[fullBytes]&mask
}

// AmbiguousIDError is returned when an abbreviation resolves to more
// than one candidate object.
type AmbiguousIDError struct {
	Abbrev     AbbreviatedID
	Candidates []ObjectID
}

func (e *AmbiguousIDError) Error() string {
	return fmt.Sprintf("short object id %s is ambiguous (%d candidates)", e.Abbrev, len(e.Candidates))
}

// Resolver is implemented by anything that can enumerate objects, so that
// an AbbreviatedID can be expanded to its matching full ids. Backends and
// the ObjectDatabase façade both satisfy it.
type Resolver interface {
	ResolvePrefix(a AbbreviatedID) ([]ObjectID, error)
}

// Resolve expands a against r and classifies the result: zero matches
// means "missing", exactly one means "unique", two or more is ambiguous
// and returned as an *AmbiguousIDError.
func (a AbbreviatedID) Resolve(r Resolver) (ObjectID, error) {
	candidates, err := r.ResolvePrefix(a)
	if err != nil {
		return ZeroID, err
	}

	switch len(candidates) {
	case 0:
		return ZeroID, ErrObjectNotFound
	case 1:
		return candidates[0], nil
	default:
		return ZeroID, &AmbiguousIDError{Abbrev: a, Candidates: candidates}
	}
}
