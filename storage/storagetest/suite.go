// Package storagetest is a conformance suite run against every Storer
// backend (file, memory, transactional) so the object and reference
// database façades can trust they all behave identically regardless of
// which one backs a given repository. Grounded on go-git's own
// storage/test/storage_suite.go, ported from gocheck to testify's
// suite package to match how the rest of this module is tested.
package storagetest

import (
	"io"

	"github.com/stretchr/testify/suite"

	"github.com/haugantoine/git/plumbing"
	"github.com/haugantoine/git/plumbing/storer"
	"github.com/haugantoine/git/storage"
)

// TestObject pairs a freshly built EncodedObject with its expected ID,
// so a suite test can assert round-tripping rather than recomputing the
// hash itself.
type TestObject struct {
	Object plumbing.EncodedObject
	ID     plumbing.ObjectID
	Type   plumbing.ObjectType
}

// BaseStorageSuite is embedded by a backend-specific suite that sets
// Storer in its SetupTest. It exercises the storage.Storer contract
// (EncodedObjectStorer + ReferenceStorer + ReflogStorer) without
// depending on any single backend's internals.
type BaseStorageSuite struct {
	suite.Suite

	Storer storage.Storer

	validTypes  []plumbing.ObjectType
	testObjects map[plumbing.ObjectType]TestObject
}

// Reset (re-)populates the suite's fixed set of test objects. A backend
// suite's SetupTest should call this after assigning Storer, since the
// objects are rebuilt (not reused) across tests to avoid one test's
// mutation of a MemoryObject buffer leaking into another's.
func (s *BaseStorageSuite) Reset() {
	commit := plumbing.NewMemoryObject()
	commit.SetType(plumbing.CommitObject)

	tree := plumbing.NewMemoryObject()
	tree.SetType(plumbing.TreeObject)

	blob := plumbing.NewMemoryObject()
	blob.SetType(plumbing.BlobObject)
	blob.SetBytes([]byte("hello"))

	tag := plumbing.NewMemoryObject()
	tag.SetType(plumbing.TagObject)

	s.validTypes = []plumbing.ObjectType{
		plumbing.CommitObject,
		plumbing.TreeObject,
		plumbing.BlobObject,
		plumbing.TagObject,
	}

	s.testObjects = map[plumbing.ObjectType]TestObject{
		plumbing.CommitObject: {commit, commit.ID(), plumbing.CommitObject},
		plumbing.TreeObject:   {tree, tree.ID(), plumbing.TreeObject},
		plumbing.BlobObject:   {blob, blob.ID(), plumbing.BlobObject},
		plumbing.TagObject:    {tag, tag.ID(), plumbing.TagObject},
	}
}

func (s *BaseStorageSuite) TestSetEncodedObjectAndGet() {
	for _, to := range s.testObjects {
		id, err := s.Storer.SetEncodedObject(to.Object)
		s.Require().NoError(err)
		s.Equal(to.ID, id)

		got, err := s.Storer.EncodedObject(to.Type, id)
		s.Require().NoError(err)
		s.Equal(to.ID, got.ID())

		got, err = s.Storer.EncodedObject(plumbing.AnyObject, id)
		s.Require().NoError(err)
		s.Equal(to.ID, got.ID())

		for _, t := range s.validTypes {
			if t == to.Type {
				continue
			}
			_, err := s.Storer.EncodedObject(t, id)
			s.ErrorIs(err, plumbing.ErrIncorrectType)

			var typeErr *plumbing.IncorrectTypeError
			if s.ErrorAs(err, &typeErr) {
				s.Equal(to.ID, typeErr.ID)
				s.Equal(t, typeErr.Expected)
				s.Equal(to.Type, typeErr.Actual)
			}
		}
	}
}

func (s *BaseStorageSuite) TestHasEncodedObject() {
	for _, to := range s.testObjects {
		_, err := s.Storer.SetEncodedObject(to.Object)
		s.Require().NoError(err)

		s.NoError(s.Storer.HasEncodedObject(to.ID))
	}

	s.ErrorIs(s.Storer.HasEncodedObject(plumbing.ZeroID), plumbing.ErrObjectNotFound)
}

func (s *BaseStorageSuite) TestEncodedObjectSize() {
	to := s.testObjects[plumbing.BlobObject]
	_, err := s.Storer.SetEncodedObject(to.Object)
	s.Require().NoError(err)

	size, err := s.Storer.EncodedObjectSize(to.ID)
	s.Require().NoError(err)
	s.Equal(int64(len("hello")), size)
}

func (s *BaseStorageSuite) TestIterEncodedObjects() {
	for _, to := range s.testObjects {
		id, err := s.Storer.SetEncodedObject(to.Object)
		s.Require().NoError(err)
		s.Equal(to.ID, id)
	}

	for _, t := range s.validTypes {
		iter, err := s.Storer.IterEncodedObjects(t)
		s.Require().NoError(err)

		obj, err := iter.Next()
		s.Require().NoError(err)
		s.Equal(s.testObjects[t].ID, obj.ID())

		_, err = iter.Next()
		s.ErrorIs(err, io.EOF)
		iter.Close()
	}

	iter, err := s.Storer.IterEncodedObjects(plumbing.AnyObject)
	s.Require().NoError(err)
	defer iter.Close()

	var found []plumbing.ObjectID
	s.Require().NoError(iter.ForEach(func(o plumbing.EncodedObject) error {
		found = append(found, o.ID())
		return nil
	}))
	s.Len(found, len(s.testObjects))
}

func (s *BaseStorageSuite) TestSetReferenceAndGetReference() {
	id := plumbing.HashObject(plumbing.BlobObject, []byte("x"))

	s.Require().NoError(s.Storer.SetReference(plumbing.NewHashReference("refs/heads/foo", id)))

	ref, err := s.Storer.Reference("refs/heads/foo")
	s.Require().NoError(err)
	s.Equal(id, ref.ID())
}

func (s *BaseStorageSuite) TestGetReferenceNotFound() {
	_, err := s.Storer.Reference("refs/heads/does-not-exist")
	s.ErrorIs(err, plumbing.ErrReferenceNotFound)
}

func (s *BaseStorageSuite) TestCheckAndSetReferenceRequiresAbsence() {
	id := plumbing.HashObject(plumbing.BlobObject, []byte("x"))
	ref := plumbing.NewHashReference("refs/heads/foo", id)

	s.Require().NoError(s.Storer.CheckAndSetReference(ref, nil))
	s.ErrorIs(s.Storer.CheckAndSetReference(ref, nil), storage.ErrReferenceHasChanged)
}

func (s *BaseStorageSuite) TestCheckAndSetReferenceCompareAndSwap() {
	id1 := plumbing.HashObject(plumbing.BlobObject, []byte("x"))
	id2 := plumbing.HashObject(plumbing.BlobObject, []byte("y"))

	ref1 := plumbing.NewHashReference("refs/heads/foo", id1)
	s.Require().NoError(s.Storer.CheckAndSetReference(ref1, nil))

	ref2 := plumbing.NewHashReference("refs/heads/foo", id2)
	s.Require().NoError(s.Storer.CheckAndSetReference(ref2, ref1))

	got, err := s.Storer.Reference("refs/heads/foo")
	s.Require().NoError(err)
	s.Equal(id2, got.ID())

	stale := plumbing.NewHashReference("refs/heads/foo", id1)
	s.ErrorIs(s.Storer.CheckAndSetReference(stale, ref1), storage.ErrReferenceHasChanged)
}

func (s *BaseStorageSuite) TestIterReferences() {
	id := plumbing.HashObject(plumbing.BlobObject, []byte("x"))
	s.Require().NoError(s.Storer.SetReference(plumbing.NewHashReference("refs/heads/foo", id)))

	iter, err := s.Storer.IterReferences()
	s.Require().NoError(err)
	defer iter.Close()

	ref, err := iter.Next()
	s.Require().NoError(err)
	s.Equal(plumbing.ReferenceName("refs/heads/foo"), ref.Name())

	_, err = iter.Next()
	s.ErrorIs(err, io.EOF)
}

func (s *BaseStorageSuite) TestRemoveReference() {
	id := plumbing.HashObject(plumbing.BlobObject, []byte("x"))
	s.Require().NoError(s.Storer.SetReference(plumbing.NewHashReference("refs/heads/foo", id)))
	s.Require().NoError(s.Storer.RemoveReference("refs/heads/foo"))

	_, err := s.Storer.Reference("refs/heads/foo")
	s.ErrorIs(err, plumbing.ErrReferenceNotFound)

	// Removing an already-absent reference is not an error.
	s.NoError(s.Storer.RemoveReference("refs/heads/foo"))
}

func (s *BaseStorageSuite) TestCountLooseRefs() {
	id := plumbing.HashObject(plumbing.BlobObject, []byte("x"))
	s.Require().NoError(s.Storer.SetReference(plumbing.NewHashReference("refs/heads/foo", id)))
	s.Require().NoError(s.Storer.SetReference(plumbing.NewHashReference("refs/heads/bar", id)))

	n, err := s.Storer.CountLooseRefs()
	s.Require().NoError(err)
	s.GreaterOrEqual(n, 2)
}

func (s *BaseStorageSuite) TestPackRefsIsIdempotent() {
	id := plumbing.HashObject(plumbing.BlobObject, []byte("x"))
	s.Require().NoError(s.Storer.SetReference(plumbing.NewHashReference("refs/heads/foo", id)))

	s.Require().NoError(s.Storer.PackRefs())

	ref, err := s.Storer.Reference("refs/heads/foo")
	s.Require().NoError(err)
	s.Equal(id, ref.ID())
}

func (s *BaseStorageSuite) TestReflogAppendReadRemove() {
	name := plumbing.ReferenceName("refs/heads/foo")
	old := plumbing.ZeroID
	new := plumbing.HashObject(plumbing.BlobObject, []byte("x"))

	entry := &plumbing.ReflogEntry{
		Old:     old,
		New:     new,
		Name:    "Ada",
		Email:   "ada@example.com",
		Message: "commit: initial",
	}
	s.Require().NoError(s.Storer.AppendReflog(name, entry))

	entries, err := s.Storer.ReadReflog(name)
	s.Require().NoError(err)
	s.Require().Len(entries, 1)
	s.Equal(new, entries[0].New)

	s.Require().NoError(s.Storer.RemoveReflog(name))

	entries, err = s.Storer.ReadReflog(name)
	s.Require().NoError(err)
	s.Empty(entries)
}

// TestTransactionerCommitAndRollback exercises the optional
// storer.Transactioner staging contract (the file and memory backends
// both satisfy it through Begin). Backends that don't implement it skip, the
// same way go-git's own storage_suite.go treats core.Transactioner as
// optional.
func (s *BaseStorageSuite) TestTransactionerCommitAndRollback() {
	txr, ok := s.Storer.(storer.Transactioner)
	if !ok {
		s.T().Skip("backend does not implement storer.Transactioner")
	}

	blob := s.testObjects[plumbing.BlobObject]

	tx := txr.Begin()
	id, err := tx.SetEncodedObject(blob.Object)
	s.Require().NoError(err)
	s.Equal(blob.ID, id)

	// Not visible on the underlying storer until committed.
	_, err = s.Storer.EncodedObject(plumbing.BlobObject, blob.ID)
	s.ErrorIs(err, plumbing.ErrObjectNotFound)

	s.Require().NoError(tx.Commit())

	got, err := s.Storer.EncodedObject(plumbing.BlobObject, blob.ID)
	s.Require().NoError(err)
	s.Equal(blob.ID, got.ID())
}

func (s *BaseStorageSuite) TestTransactionerRollbackDiscardsWrites() {
	txr, ok := s.Storer.(storer.Transactioner)
	if !ok {
		s.T().Skip("backend does not implement storer.Transactioner")
	}

	tree := s.testObjects[plumbing.TreeObject]

	tx := txr.Begin()
	_, err := tx.SetEncodedObject(tree.Object)
	s.Require().NoError(err)
	s.Require().NoError(tx.Rollback())

	_, err = s.Storer.EncodedObject(plumbing.TreeObject, tree.ID)
	s.ErrorIs(err, plumbing.ErrObjectNotFound)
}
