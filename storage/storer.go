// Package storage defines the Storer contract a backend (on-disk file
// backend, in-memory backend, or the transactional staging wrapper) must
// satisfy to back a repository's object and reference database.
package storage

import (
	"github.com/haugantoine/git/plumbing"
	"github.com/haugantoine/git/plumbing/storer"
)

// ErrReferenceHasChanged is returned when an atomic compare-and-swap
// operation fails because the reference has changed concurrently.
var ErrReferenceHasChanged = plumbing.ErrReferenceHasChanged

// Storer bundles the object database and reference database contracts
// that every backend (file, memory, transactional) implements.
type Storer interface {
	storer.EncodedObjectStorer
	storer.ReferenceStorer
	storer.ReflogStorer
}
