// Package storer defines the interfaces a storage backend must satisfy
// to be usable by the object database and reference database façades. A
// backend variant (file-based loose+pack, or fully in-memory) implements
// these small interfaces rather than subclassing an abstract base type.
package storer

import (
	"errors"

	"github.com/haugantoine/git/plumbing"
)

// ErrStop is returned by a ForEach callback to stop iteration early
// without it being treated as an error by the caller.
var ErrStop = errors.New("storer: stop iteration")

// EncodedObjectStorer is the read/write contract a C2 object backend
// must implement.
type EncodedObjectStorer interface {
	NewEncodedObject() plumbing.EncodedObject
	SetEncodedObject(plumbing.EncodedObject) (plumbing.ObjectID, error)
	EncodedObject(plumbing.ObjectType, plumbing.ObjectID) (plumbing.EncodedObject, error)
	HasEncodedObject(plumbing.ObjectID) error
	EncodedObjectSize(plumbing.ObjectID) (int64, error)
	IterEncodedObjects(plumbing.ObjectType) (EncodedObjectIter, error)
}

// Transactioner is implemented by backends that can stage a batch of
// object writes and commit or discard them atomically (§4.2 Memory
// backend commitPack/rollbackPack). Both the memory and the file
// backend's ObjectStorage implement it through Begin.
type Transactioner interface {
	Begin() Transaction
}

// Transaction is a staging area for object writes.
type Transaction interface {
	SetEncodedObject(plumbing.EncodedObject) (plumbing.ObjectID, error)
	EncodedObject(plumbing.ObjectType, plumbing.ObjectID) (plumbing.EncodedObject, error)
	Commit() error
	Rollback() error
}

// AlternatesStorer is implemented by backends that can report and
// register alternate object directories.
type AlternatesStorer interface {
	AddAlternate(path string) error
	Alternates() ([]string, error)
}

// ReferenceStorer is the read/write contract a C5 reference backend must
// implement. SetReference performs an unconditional write;
// CheckAndSetReference performs a compare-and-swap against old (old may
// be nil to require the ref be absent).
type ReferenceStorer interface {
	SetReference(*plumbing.Reference) error
	CheckAndSetReference(new, old *plumbing.Reference) error
	Reference(plumbing.ReferenceName) (*plumbing.Reference, error)
	IterReferences() (ReferenceIter, error)
	RemoveReference(plumbing.ReferenceName) error
	CountLooseRefs() (int, error)
	PackRefs() error
}

// ReflogStorer is the append-only log contract (§4.5).
type ReflogStorer interface {
	AppendReflog(name plumbing.ReferenceName, e *plumbing.ReflogEntry) error
	ReadReflog(name plumbing.ReferenceName) ([]*plumbing.ReflogEntry, error)
	RemoveReflog(name plumbing.ReferenceName) error
}

// EncodedObjectIter iterates over a (possibly filtered) set of objects.
type EncodedObjectIter interface {
	Next() (plumbing.EncodedObject, error)
	ForEach(func(plumbing.EncodedObject) error) error
	Close()
}

// ReferenceIter iterates over a snapshot of references; the snapshot is
// taken at iterator creation time, matching §5's "iteration over
// returned collections is not synchronised".
type ReferenceIter interface {
	Next() (*plumbing.Reference, error)
	ForEach(func(*plumbing.Reference) error) error
	Close()
}
