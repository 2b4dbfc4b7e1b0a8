// Package memory implements the in-memory DFS object and reference
// backend: no disk footprint, every write held in process memory, used
// for scratch repositories and tests (§4.2 Memory backend, §4.3
// Reference database).
package memory

import (
	"fmt"
	"sync"

	"github.com/haugantoine/git/plumbing"
	"github.com/haugantoine/git/plumbing/storer"
)

// ErrUnsupportedObjectType is returned when SetEncodedObject is given an
// object whose type this backend does not file under a bucket.
var ErrUnsupportedObjectType = fmt.Errorf("unsupported object type")

// ObjectStorage is an EncodedObjectStorer, Transactioner and
// AlternatesStorer holding every object as a plumbing.MemoryObject keyed
// by id, bucketed by type for cheap IterEncodedObjects filtering.
type ObjectStorage struct {
	mu      sync.RWMutex
	objects map[plumbing.ObjectID]plumbing.EncodedObject
	commits map[plumbing.ObjectID]plumbing.EncodedObject
	trees   map[plumbing.ObjectID]plumbing.EncodedObject
	blobs   map[plumbing.ObjectID]plumbing.EncodedObject
	tags    map[plumbing.ObjectID]plumbing.EncodedObject

	alternates []string
}

// NewObjectStorage returns an empty in-memory object store.
func NewObjectStorage() *ObjectStorage {
	return &ObjectStorage{
		objects: make(map[plumbing.ObjectID]plumbing.EncodedObject),
		commits: make(map[plumbing.ObjectID]plumbing.EncodedObject),
		trees:   make(map[plumbing.ObjectID]plumbing.EncodedObject),
		blobs:   make(map[plumbing.ObjectID]plumbing.EncodedObject),
		tags:    make(map[plumbing.ObjectID]plumbing.EncodedObject),
	}
}

// NewEncodedObject returns a fresh, writable in-memory object.
func (o *ObjectStorage) NewEncodedObject() plumbing.EncodedObject {
	return plumbing.NewMemoryObject()
}

// SetEncodedObject files obj under its id, bucketed by type.
func (o *ObjectStorage) SetEncodedObject(obj plumbing.EncodedObject) (plumbing.ObjectID, error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	id := obj.ID()
	o.objects[id] = obj

	switch obj.Type() {
	case plumbing.CommitObject:
		o.commits[id] = obj
	case plumbing.TreeObject:
		o.trees[id] = obj
	case plumbing.BlobObject:
		o.blobs[id] = obj
	case plumbing.TagObject:
		o.tags[id] = obj
	default:
		delete(o.objects, id)
		return id, ErrUnsupportedObjectType
	}

	return id, nil
}

// HasEncodedObject reports whether id is present.
func (o *ObjectStorage) HasEncodedObject(id plumbing.ObjectID) error {
	o.mu.RLock()
	defer o.mu.RUnlock()

	if _, ok := o.objects[id]; !ok {
		return plumbing.ErrObjectNotFound
	}
	return nil
}

// EncodedObjectSize returns the payload size of the object named id.
func (o *ObjectStorage) EncodedObjectSize(id plumbing.ObjectID) (int64, error) {
	o.mu.RLock()
	defer o.mu.RUnlock()

	obj, ok := o.objects[id]
	if !ok {
		return 0, plumbing.ErrObjectNotFound
	}
	return obj.Size(), nil
}

// EncodedObject returns the object named id, checking its type against t
// unless t is plumbing.AnyObject.
func (o *ObjectStorage) EncodedObject(t plumbing.ObjectType, id plumbing.ObjectID) (plumbing.EncodedObject, error) {
	o.mu.RLock()
	defer o.mu.RUnlock()

	obj, ok := o.objects[id]
	if !ok {
		return nil, plumbing.ErrObjectNotFound
	}
	if t != plumbing.AnyObject && obj.Type() != t {
		return nil, &plumbing.IncorrectTypeError{ID: id, Expected: t, Actual: obj.Type()}
	}
	return obj, nil
}

// IterEncodedObjects returns a snapshot iterator over every object of
// type t, or every object if t is plumbing.AnyObject.
func (o *ObjectStorage) IterEncodedObjects(t plumbing.ObjectType) (storer.EncodedObjectIter, error) {
	o.mu.RLock()
	defer o.mu.RUnlock()

	var bucket map[plumbing.ObjectID]plumbing.EncodedObject
	switch t {
	case plumbing.AnyObject:
		bucket = o.objects
	case plumbing.CommitObject:
		bucket = o.commits
	case plumbing.TreeObject:
		bucket = o.trees
	case plumbing.BlobObject:
		bucket = o.blobs
	case plumbing.TagObject:
		bucket = o.tags
	}

	series := make([]plumbing.EncodedObject, 0, len(bucket))
	for _, obj := range bucket {
		series = append(series, obj)
	}
	return storer.NewEncodedObjectSliceIter(series), nil
}

// AddAlternate records path as an alternate object directory. The
// in-memory backend cannot actually search another process's memory, so
// this only tracks the path for Alternates() to report; a real
// multi-backend alternate chain is composed at the objectdb façade
// level instead.
func (o *ObjectStorage) AddAlternate(path string) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.alternates = append(o.alternates, path)
	return nil
}

// Alternates returns the recorded alternate paths.
func (o *ObjectStorage) Alternates() ([]string, error) {
	o.mu.RLock()
	defer o.mu.RUnlock()
	out := make([]string, len(o.alternates))
	copy(out, o.alternates)
	return out, nil
}

// Begin starts a transaction that stages writes until Commit.
func (o *ObjectStorage) Begin() storer.Transaction {
	return &txObjectStorage{
		storage: o,
		staged:  make(map[plumbing.ObjectID]plumbing.EncodedObject),
	}
}

type txObjectStorage struct {
	storage *ObjectStorage
	staged  map[plumbing.ObjectID]plumbing.EncodedObject
}

func (tx *txObjectStorage) SetEncodedObject(obj plumbing.EncodedObject) (plumbing.ObjectID, error) {
	id := obj.ID()
	tx.staged[id] = obj
	return id, nil
}

func (tx *txObjectStorage) EncodedObject(t plumbing.ObjectType, id plumbing.ObjectID) (plumbing.EncodedObject, error) {
	if obj, ok := tx.staged[id]; ok {
		if t != plumbing.AnyObject && obj.Type() != t {
			return nil, &plumbing.IncorrectTypeError{ID: id, Expected: t, Actual: obj.Type()}
		}
		return obj, nil
	}
	return tx.storage.EncodedObject(t, id)
}

// Commit flushes every staged object into the backing storage. Object
// writes have no partial-failure mode (§4.2 "writes are atomic-or-
// absent"), so once a write starts it will not fail midway for reasons
// other than an unsupported type, which was already validated when the
// object was built.
func (tx *txObjectStorage) Commit() error {
	for id, obj := range tx.staged {
		if _, err := tx.storage.SetEncodedObject(obj); err != nil {
			return err
		}
		delete(tx.staged, id)
	}
	return nil
}

// Rollback discards every staged object.
func (tx *txObjectStorage) Rollback() error {
	tx.staged = make(map[plumbing.ObjectID]plumbing.EncodedObject)
	return nil
}

// ReferenceStorage is a ReferenceStorer and ReflogStorer backed by two
// plain maps guarded by a RWMutex (§4.3: "memory backend ... a
// sync.RWMutex" per-instance, rather than per-ref locking).
type ReferenceStorage struct {
	mu     sync.RWMutex
	refs   map[plumbing.ReferenceName]*plumbing.Reference
	reflog map[plumbing.ReferenceName][]*plumbing.ReflogEntry
}

// NewReferenceStorage returns an empty in-memory reference store.
func NewReferenceStorage() *ReferenceStorage {
	return &ReferenceStorage{
		refs:   make(map[plumbing.ReferenceName]*plumbing.Reference),
		reflog: make(map[plumbing.ReferenceName][]*plumbing.ReflogEntry),
	}
}

// SetReference writes ref unconditionally.
func (r *ReferenceStorage) SetReference(ref *plumbing.Reference) error {
	if ref == nil {
		return nil
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.refs[ref.Name()] = ref
	return nil
}

// CheckAndSetReference writes ref only if the current value matches old
// (old == nil requires the ref be absent), per §4.3's compare-and-swap
// update contract.
func (r *ReferenceStorage) CheckAndSetReference(ref, old *plumbing.Reference) error {
	if ref == nil {
		return nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	current := r.refs[ref.Name()]
	if !referenceMatches(current, old) {
		return plumbing.ErrReferenceHasChanged
	}

	r.refs[ref.Name()] = ref
	return nil
}

func referenceMatches(current, expected *plumbing.Reference) bool {
	if expected == nil {
		return current == nil
	}
	if current == nil {
		return false
	}
	return current.Hash() == expected.Hash()
}

// Reference returns the named reference.
func (r *ReferenceStorage) Reference(name plumbing.ReferenceName) (*plumbing.Reference, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ref, ok := r.refs[name]
	if !ok {
		return nil, plumbing.ErrReferenceNotFound
	}
	return ref, nil
}

// IterReferences returns a snapshot iterator over every reference.
func (r *ReferenceStorage) IterReferences() (storer.ReferenceIter, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	refs := make([]*plumbing.Reference, 0, len(r.refs))
	for _, ref := range r.refs {
		refs = append(refs, ref)
	}
	return storer.NewReferenceSliceIter(refs), nil
}

// RemoveReference deletes the named reference, if present.
func (r *ReferenceStorage) RemoveReference(name plumbing.ReferenceName) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.refs, name)
	return nil
}

// CountLooseRefs reports how many references are stored; everything in
// this backend is "loose" in the sense that there is no packed-refs
// compaction step.
func (r *ReferenceStorage) CountLooseRefs() (int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.refs), nil
}

// PackRefs is a no-op: there is nothing to compact in memory.
func (r *ReferenceStorage) PackRefs() error {
	return nil
}

// AppendReflog appends e to name's reflog.
func (r *ReferenceStorage) AppendReflog(name plumbing.ReferenceName, e *plumbing.ReflogEntry) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.reflog[name] = append(r.reflog[name], e)
	return nil
}

// ReadReflog returns name's reflog, oldest entry first.
func (r *ReferenceStorage) ReadReflog(name plumbing.ReferenceName) ([]*plumbing.ReflogEntry, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	entries := r.reflog[name]
	out := make([]*plumbing.ReflogEntry, len(entries))
	copy(out, entries)
	return out, nil
}

// RemoveReflog deletes name's entire reflog.
func (r *ReferenceStorage) RemoveReflog(name plumbing.ReferenceName) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.reflog, name)
	return nil
}

// Storage bundles the object and reference backends the way a
// repository's storer needs them wired together.
type Storage struct {
	*ObjectStorage
	*ReferenceStorage
}

// NewStorage returns a fresh, empty in-memory backend pair.
func NewStorage() *Storage {
	return &Storage{
		ObjectStorage:    NewObjectStorage(),
		ReferenceStorage: NewReferenceStorage(),
	}
}
