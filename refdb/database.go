// Package refdb implements the C5 reference database façade: resolution
// with git's fixed expansion order, single and batch reference updates,
// and the reflog surface (§4.4, §4.5 Reference Record & Database).
package refdb

import (
	"fmt"
	"sync"

	"github.com/haugantoine/git/plumbing"
	"github.com/haugantoine/git/plumbing/object"
	"github.com/haugantoine/git/plumbing/storer"
)

// Backend is what a concrete reference store (storage/memory,
// storage/filesystem) must provide to back a Database.
type Backend interface {
	storer.ReferenceStorer
	storer.ReflogStorer
}

// Database is the reference database façade. writeMu serialises batch
// updates in atomic mode so no partial batch is ever observed: a single
// database-wide lock, not one per ref, since an atomic batch may touch
// many refs at once.
type Database struct {
	backend Backend
	writeMu sync.Mutex
}

// NewDatabase returns a Database backed by backend.
func NewDatabase(backend Backend) *Database {
	return &Database{backend: backend}
}

// ExactRef reads name with no expansion.
func (db *Database) ExactRef(name plumbing.ReferenceName) (*plumbing.Reference, error) {
	return db.backend.Reference(name)
}

// findRefCandidates returns, in git's fixed precedence order, the
// reference names short tries before giving up (Open Question #2,
// resolved per spec: name, refs/<name>, refs/tags/<name>,
// refs/heads/<name>, refs/remotes/<name>, refs/remotes/<name>/HEAD).
func findRefCandidates(short string) []plumbing.ReferenceName {
	return []plumbing.ReferenceName{
		plumbing.ReferenceName(short),
		plumbing.ReferenceName("refs/" + short),
		plumbing.ReferenceName("refs/tags/" + short),
		plumbing.ReferenceName("refs/heads/" + short),
		plumbing.ReferenceName("refs/remotes/" + short),
		plumbing.ReferenceName("refs/remotes/" + short + "/HEAD"),
	}
}

// FindRef resolves a short name by trying each candidate in
// findRefCandidates' order, returning the first that exists.
func (db *Database) FindRef(short string) (*plumbing.Reference, error) {
	var firstErr error
	for _, name := range findRefCandidates(short) {
		ref, err := db.backend.Reference(name)
		if err == nil {
			return ref, nil
		}
		if err != plumbing.ErrReferenceNotFound {
			return nil, err
		}
		if firstErr == nil {
			firstErr = err
		}
	}
	return nil, plumbing.ErrReferenceNotFound
}

// GetRefs returns a snapshot of every stored reference.
func (db *Database) GetRefs() ([]*plumbing.Reference, error) {
	iter, err := db.backend.IterReferences()
	if err != nil {
		return nil, err
	}
	defer iter.Close()

	var out []*plumbing.Reference
	err = iter.ForEach(func(ref *plumbing.Reference) error {
		out = append(out, ref)
		return nil
	})
	return out, err
}

// Peel resolves ref's target through any chain of annotated tags down to
// a non-tag object, using open to load intermediate tag objects. The
// result is cached on the returned Reference (WithPeeled), per §4.4.
func (db *Database) Peel(ref *plumbing.Reference, open object.Opener) (*plumbing.Reference, error) {
	if ref.IsPeeled() {
		return ref, nil
	}
	if ref.Type() != plumbing.DirectReference {
		return nil, fmt.Errorf("%w: cannot peel a symbolic reference directly", plumbing.ErrInvalidType)
	}

	loader, err := open(ref.Hash())
	if err != nil {
		return nil, err
	}

	peeled, typ, err := object.Peel(open, ref.Hash(), loader.Type())
	if err != nil {
		return nil, err
	}

	if typ == plumbing.TagObject || peeled == ref.Hash() {
		// Not actually a tag chain: marked peeled, with no peeled id.
		return ref.WithPeeled(plumbing.ZeroID), nil
	}
	return ref.WithPeeled(peeled), nil
}

// UpdateRef performs a single compare-and-swap update: old is the
// expected current value (nil meaning the ref must not already exist).
func (db *Database) UpdateRef(ref, old *plumbing.Reference) error {
	return db.backend.CheckAndSetReference(ref, old)
}

// RemoveRef deletes name unconditionally.
func (db *Database) RemoveRef(name plumbing.ReferenceName) error {
	return db.backend.RemoveReference(name)
}

// AppendReflog appends e to name's reflog.
func (db *Database) AppendReflog(name plumbing.ReferenceName, e *plumbing.ReflogEntry) error {
	return db.backend.AppendReflog(name, e)
}

// ReadReflog returns name's reflog, oldest entry first.
func (db *Database) ReadReflog(name plumbing.ReferenceName) ([]*plumbing.ReflogEntry, error) {
	return db.backend.ReadReflog(name)
}
