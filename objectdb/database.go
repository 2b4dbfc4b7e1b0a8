// Package objectdb implements the C3 object database façade: one
// primary object backend plus an ordered, lazily-opened list of
// alternates, read from the primary's objects/info/alternates file
// (§4.2, §4.3 ObjectDatabase façade).
package objectdb

import (
	"io"
	"sync"

	"github.com/haugantoine/git/plumbing"
	"github.com/haugantoine/git/plumbing/storer"
)

// Backend is what a concrete object store (storage/memory,
// storage/filesystem) must provide to back a Database.
type Backend interface {
	storer.EncodedObjectStorer
	storer.AlternatesStorer
}

// AlternateOpener turns one line of an alternates file (a path to
// another git directory's object store) into a Backend. Concrete
// callers wire this to an osfs-backed storage/filesystem.ObjectStorage;
// objectdb itself stays filesystem-agnostic.
type AlternateOpener func(path string) (Backend, error)

// Database is the object database façade: reads consult the primary
// backend, then alternates in the order they were recorded, matching
// git's own alternates precedence.
type Database struct {
	primary Backend
	opener  AlternateOpener

	mu         sync.Mutex
	alternates []*Database // copy-on-write: replaced wholesale, never mutated in place
	loaded     bool
}

// NewDatabase returns a Database backed by primary. opener may be nil if
// the caller never expects alternates to be present; attempting to load
// an alternates file with a nil opener returns ErrNoAlternateOpener.
func NewDatabase(primary Backend, opener AlternateOpener) *Database {
	return &Database{primary: primary, opener: opener}
}

// ErrNoAlternateOpener is returned when the primary backend's
// objects/info/alternates file is non-empty but the Database was built
// without an AlternateOpener to resolve its entries.
var ErrNoAlternateOpener = plumbing.ErrObjectNotFound

// alternateDatabases returns the (lazily loaded) list of alternate
// Databases, opening each recorded path exactly once.
func (db *Database) alternateDatabases() ([]*Database, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	if db.loaded {
		return db.alternates, nil
	}

	paths, err := db.primary.Alternates()
	if err != nil {
		return nil, err
	}

	alts := make([]*Database, 0, len(paths))
	for _, path := range paths {
		if db.opener == nil {
			return nil, ErrNoAlternateOpener
		}
		backend, err := db.opener(path)
		if err != nil {
			return nil, err
		}
		alts = append(alts, NewDatabase(backend, db.opener))
	}

	db.alternates = alts
	db.loaded = true
	return db.alternates, nil
}

// AddAlternate records path as a new alternate object directory and
// invalidates the cached alternates list so it is picked up on next use.
func (db *Database) AddAlternate(path string) error {
	if err := db.primary.AddAlternate(path); err != nil {
		return err
	}

	db.mu.Lock()
	db.loaded = false
	db.alternates = nil
	db.mu.Unlock()
	return nil
}

// Has reports whether id is present in the primary backend or any
// alternate.
func (db *Database) Has(id plumbing.ObjectID) bool {
	if db.primary.HasEncodedObject(id) == nil {
		return true
	}

	alts, err := db.alternateDatabases()
	if err != nil {
		return false
	}
	for _, alt := range alts {
		if alt.Has(id) {
			return true
		}
	}
	return false
}

// Get loads id, checking the primary backend first and then each
// alternate in recorded order.
func (db *Database) Get(t plumbing.ObjectType, id plumbing.ObjectID) (plumbing.EncodedObject, error) {
	obj, err := db.primary.EncodedObject(t, id)
	if err == nil {
		return obj, nil
	}
	if err != plumbing.ErrObjectNotFound {
		return nil, err
	}

	alts, altErr := db.alternateDatabases()
	if altErr != nil {
		return nil, altErr
	}
	for _, alt := range alts {
		obj, err := alt.Get(t, id)
		if err == nil {
			return obj, nil
		}
		if err != plumbing.ErrObjectNotFound {
			return nil, err
		}
	}

	return nil, plumbing.ErrObjectNotFound
}

// ResolvePrefix expands an abbreviation against the primary backend and
// every alternate, merging and deduplicating candidates so a prefix
// shared across the primary and an alternate counts once. Satisfies
// plumbing.Resolver.
func (db *Database) ResolvePrefix(a plumbing.AbbreviatedID) ([]plumbing.ObjectID, error) {
	seen := make(map[plumbing.ObjectID]bool)
	var out []plumbing.ObjectID

	add := func(ids []plumbing.ObjectID) {
		for _, id := range ids {
			if !seen[id] {
				seen[id] = true
				out = append(out, id)
			}
		}
	}

	if resolver, ok := db.primary.(plumbing.Resolver); ok {
		ids, err := resolver.ResolvePrefix(a)
		if err != nil {
			return nil, err
		}
		add(ids)
	}

	alts, err := db.alternateDatabases()
	if err != nil {
		return nil, err
	}
	for _, alt := range alts {
		ids, err := alt.ResolvePrefix(a)
		if err != nil {
			return nil, err
		}
		add(ids)
	}

	return out, nil
}

// NewReader opens a streaming reader over id's payload; the reader must
// be closed by the caller. Satisfies the façade's "newReader" handle.
func (db *Database) NewReader(id plumbing.ObjectID) (io.ReadCloser, error) {
	obj, err := db.Get(plumbing.AnyObject, id)
	if err != nil {
		return nil, err
	}
	return obj.Reader()
}

// NewInserter returns a scoped handle for writing one or more objects
// into the primary backend. Concurrent inserters are safe: object writes
// are idempotent and content-addressed, so two inserters racing to store
// the same bytes both succeed with the same id.
func (db *Database) NewInserter() *Inserter {
	return &Inserter{backend: db.primary}
}
