// Package transactional wraps a base storage.Storer with a temporal one,
// so that a batch of object and reference writes can be staged against
// the temporal store and later folded into the base store with a single
// Commit, or discarded untouched (§4.3 "atomic batch reference update").
//
// The API and functionality of this package mirror an experimental
// go-git package of the same name and carry the same caveat: this is not
// production hardened.
package transactional

import (
	"github.com/haugantoine/git/plumbing"
	"github.com/haugantoine/git/plumbing/storer"
)

// ObjectStorage demuxes object reads and writes across a base and a
// temporal storer: reads check base first and fall back to temporal;
// writes go only to temporal until Commit copies them into base.
type ObjectStorage struct {
	storer.EncodedObjectStorer
	temporal storer.EncodedObjectStorer
}

// NewObjectStorage returns an ObjectStorage reading from base with writes
// staged against temporal.
func NewObjectStorage(base, temporal storer.EncodedObjectStorer) *ObjectStorage {
	return &ObjectStorage{EncodedObjectStorer: base, temporal: temporal}
}

// SetEncodedObject stages obj in the temporal store.
func (o *ObjectStorage) SetEncodedObject(obj plumbing.EncodedObject) (plumbing.ObjectID, error) {
	return o.temporal.SetEncodedObject(obj)
}

// HasEncodedObject checks base, falling back to temporal.
func (o *ObjectStorage) HasEncodedObject(id plumbing.ObjectID) error {
	err := o.EncodedObjectStorer.HasEncodedObject(id)
	if err == plumbing.ErrObjectNotFound {
		return o.temporal.HasEncodedObject(id)
	}
	return err
}

// EncodedObjectSize checks base, falling back to temporal.
func (o *ObjectStorage) EncodedObjectSize(id plumbing.ObjectID) (int64, error) {
	sz, err := o.EncodedObjectStorer.EncodedObjectSize(id)
	if err == plumbing.ErrObjectNotFound {
		return o.temporal.EncodedObjectSize(id)
	}
	return sz, err
}

// EncodedObject checks base, falling back to temporal.
func (o *ObjectStorage) EncodedObject(t plumbing.ObjectType, id plumbing.ObjectID) (plumbing.EncodedObject, error) {
	obj, err := o.EncodedObjectStorer.EncodedObject(t, id)
	if err == plumbing.ErrObjectNotFound {
		return o.temporal.EncodedObject(t, id)
	}
	return obj, err
}

// IterEncodedObjects iterates base's objects followed by temporal's.
func (o *ObjectStorage) IterEncodedObjects(t plumbing.ObjectType) (storer.EncodedObjectIter, error) {
	baseIter, err := o.EncodedObjectStorer.IterEncodedObjects(t)
	if err != nil {
		return nil, err
	}

	temporalIter, err := o.temporal.IterEncodedObjects(t)
	if err != nil {
		return nil, err
	}

	return storer.NewMultiEncodedObjectIter([]storer.EncodedObjectIter{baseIter, temporalIter}), nil
}

// Commit copies every object staged in temporal into base.
func (o *ObjectStorage) Commit() error {
	iter, err := o.temporal.IterEncodedObjects(plumbing.AnyObject)
	if err != nil {
		return err
	}
	defer iter.Close()

	return iter.ForEach(func(obj plumbing.EncodedObject) error {
		_, err := o.EncodedObjectStorer.SetEncodedObject(obj)
		return err
	})
}

// Rollback does nothing: staged objects stay in the temporal store,
// which owns that state, and are never copied into base unless Commit
// runs.
func (o *ObjectStorage) Rollback() error {
	return nil
}
