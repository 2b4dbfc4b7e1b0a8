// Package hash provides the hash implementation used across the module
// to compute and verify Git object identities.
package hash

import (
	"hash"

	"github.com/pjbgf/sha1cd"
)

// Size is the length in bytes of a Git object id.
const Size = 20

// HexSize is the length of the hexadecimal representation of an id.
const HexSize = Size * 2

// Hash is the same as hash.Hash, re-exported so callers don't need to
// import "hash" alongside this package.
type Hash interface {
	hash.Hash
}

// New returns a new collision-detecting SHA-1 hasher.
func New() Hash {
	return sha1cd.New()
}
