// Package filesystem implements the on-disk file backend: loose objects
// plus read-only pack files under the git directory, and a reference
// store backed by loose ref files and packed-refs (§4.2 File backend
// specifics, §4.3 Reference database).
package filesystem

import (
	"io"
	"sync"

	billy "github.com/go-git/go-billy/v5"

	"github.com/haugantoine/git/plumbing"
	"github.com/haugantoine/git/plumbing/cache"
	"github.com/haugantoine/git/plumbing/format/idxfile"
	"github.com/haugantoine/git/plumbing/format/objfile"
	"github.com/haugantoine/git/plumbing/format/packfile"
	"github.com/haugantoine/git/plumbing/storer"
	"github.com/haugantoine/git/storage/filesystem/dotgit"
)

// ObjectStorage is an EncodedObjectStorer backed by a DotGit directory:
// it reads loose objects directly and opens read-only packs on demand,
// caching their decoded indexes and an LRU of reconstructed objects.
type ObjectStorage struct {
	dir *dotgit.DotGit

	mu    sync.Mutex
	packs map[plumbing.ObjectID]*packfile.Packfile
	cache cache.Object
}

// NewObjectStorage wraps dir.
func NewObjectStorage(dir *dotgit.DotGit) *ObjectStorage {
	return &ObjectStorage{
		dir:   dir,
		packs: make(map[plumbing.ObjectID]*packfile.Packfile),
		cache: cache.NewObjectLRUDefault(),
	}
}

// NewEncodedObject returns a fresh, writable in-memory staging object;
// SetEncodedObject is what actually persists it to disk.
func (s *ObjectStorage) NewEncodedObject() plumbing.EncodedObject {
	return plumbing.NewMemoryObject()
}

// SetEncodedObject writes obj as a new loose object.
func (s *ObjectStorage) SetEncodedObject(obj plumbing.EncodedObject) (plumbing.ObjectID, error) {
	w, err := s.dir.NewObject()
	if err != nil {
		return plumbing.ZeroID, err
	}

	if err := w.WriteHeader(obj.Type(), obj.Size()); err != nil {
		w.Close()
		return plumbing.ZeroID, err
	}

	r, err := obj.Reader()
	if err != nil {
		w.Close()
		return plumbing.ZeroID, err
	}
	defer r.Close()

	if _, err := io.Copy(w, r); err != nil {
		w.Close()
		return plumbing.ZeroID, err
	}

	if err := w.Close(); err != nil {
		return plumbing.ZeroID, err
	}

	return w.ID(), nil
}

// HasEncodedObject reports whether id is stored loose or in any pack.
func (s *ObjectStorage) HasEncodedObject(id plumbing.ObjectID) error {
	if s.dir.HasObject(id) {
		return nil
	}
	if _, err := s.findInPacks(id); err == nil {
		return nil
	}
	return plumbing.ErrObjectNotFound
}

// EncodedObjectSize returns id's payload size.
func (s *ObjectStorage) EncodedObjectSize(id plumbing.ObjectID) (int64, error) {
	obj, err := s.EncodedObject(plumbing.AnyObject, id)
	if err != nil {
		return 0, err
	}
	return obj.Size(), nil
}

// EncodedObject loads id, checking loose storage first and falling back
// to packs.
func (s *ObjectStorage) EncodedObject(t plumbing.ObjectType, id plumbing.ObjectID) (plumbing.EncodedObject, error) {
	if s.dir.HasObject(id) {
		obj, err := s.readLoose(id)
		if err != nil {
			return nil, err
		}
		if t != plumbing.AnyObject && obj.Type() != t {
			return nil, &plumbing.IncorrectTypeError{ID: id, Expected: t, Actual: obj.Type()}
		}
		return obj, nil
	}

	pf, err := s.findInPacks(id)
	if err != nil {
		return nil, err
	}

	typ, data, err := pf.Get(id)
	if err != nil {
		return nil, err
	}
	if t != plumbing.AnyObject && typ != t {
		return nil, &plumbing.IncorrectTypeError{ID: id, Expected: t, Actual: typ}
	}

	obj := plumbing.NewMemoryObject()
	obj.SetType(typ)
	obj.SetBytes(data)
	return obj, nil
}

func (s *ObjectStorage) readLoose(id plumbing.ObjectID) (plumbing.EncodedObject, error) {
	f, err := s.dir.OpenObject(id)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	r, err := objfile.NewReader(f)
	if err != nil {
		return nil, err
	}
	defer r.Close()

	typ, _, err := r.Header()
	if err != nil {
		return nil, err
	}

	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}

	obj := plumbing.NewMemoryObject()
	obj.SetType(typ)
	obj.SetBytes(data)
	return obj, nil
}

// findInPacks returns the (cached) Packfile containing id, loading and
// decoding pack indexes from disk as needed.
func (s *ObjectStorage) findInPacks(id plumbing.ObjectID) (*packfile.Packfile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, pf := range s.packs {
		if pf.Has(id) {
			return pf, nil
		}
	}

	refs, err := s.dir.ObjectPacks()
	if err != nil {
		return nil, err
	}

	for _, ref := range refs {
		if _, ok := s.packs[ref.Checksum]; ok {
			continue
		}

		pf, err := s.openPack(ref)
		if err != nil {
			return nil, err
		}
		s.packs[ref.Checksum] = pf

		if pf.Has(id) {
			return pf, nil
		}
	}

	return nil, plumbing.ErrObjectNotFound
}

func (s *ObjectStorage) openPack(ref dotgit.PackRef) (*packfile.Packfile, error) {
	packFile, idxFile, err := s.dir.OpenPack(ref)
	if err != nil {
		return nil, err
	}
	defer idxFile.Close()

	idx, err := idxfile.Decode(idxFile)
	if err != nil {
		packFile.Close()
		return nil, err
	}

	return packfile.Open(readerAtFile{packFile}, idx, s.cache)
}

// readerAtFile adapts a billy.File (which is a ReadSeeker) to
// io.ReaderAt, since pack entries are addressed by absolute offset.
type readerAtFile struct {
	f billy.File
}

func (r readerAtFile) ReadAt(p []byte, off int64) (int, error) {
	if _, err := r.f.Seek(off, io.SeekStart); err != nil {
		return 0, err
	}
	return io.ReadFull(r.f, p)
}

// IterEncodedObjects iterates every loose object plus every packed
// object of the given type (or every object, for AnyObject).
func (s *ObjectStorage) IterEncodedObjects(t plumbing.ObjectType) (storer.EncodedObjectIter, error) {
	var series []plumbing.EncodedObject
	seen := make(map[plumbing.ObjectID]bool)

	err := s.dir.WalkLooseObjects(func(id plumbing.ObjectID) error {
		obj, err := s.readLoose(id)
		if err != nil {
			return err
		}
		if t != plumbing.AnyObject && obj.Type() != t {
			return nil
		}
		seen[id] = true
		series = append(series, obj)
		return nil
	})
	if err != nil {
		return nil, err
	}

	refs, err := s.dir.ObjectPacks()
	if err != nil {
		return nil, err
	}

	for _, ref := range refs {
		pf, err := s.cachedPack(ref)
		if err != nil {
			return nil, err
		}
		for _, id := range pf.IDs() {
			if seen[id] {
				continue
			}
			typ, data, err := pf.Get(id)
			if err != nil {
				return nil, err
			}
			if t != plumbing.AnyObject && typ != t {
				continue
			}
			obj := plumbing.NewMemoryObject()
			obj.SetType(typ)
			obj.SetBytes(data)
			seen[id] = true
			series = append(series, obj)
		}
	}

	return storer.NewEncodedObjectSliceIter(series), nil
}

func (s *ObjectStorage) cachedPack(ref dotgit.PackRef) (*packfile.Packfile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if pf, ok := s.packs[ref.Checksum]; ok {
		return pf, nil
	}
	pf, err := s.openPack(ref)
	if err != nil {
		return nil, err
	}
	s.packs[ref.Checksum] = pf
	return pf, nil
}

// AddAlternate registers another object directory to consult (§4.2: an
// alternates list, as opposed to deep inheritance).
func (s *ObjectStorage) AddAlternate(path string) error {
	return s.dir.AddAlternate(path)
}

// Alternates returns the recorded alternate paths.
func (s *ObjectStorage) Alternates() ([]string, error) {
	return s.dir.Alternates()
}

// Begin starts a transaction staging object writes in memory until
// Commit, so a batch can be discarded without leaving partial loose
// objects behind.
func (s *ObjectStorage) Begin() storer.Transaction {
	return &txObjectStorage{
		storage: s,
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
			return nil, plumbing.ErrObjectNotFound
		}
		return obj, nil
	}
	return tx.storage.EncodedObject(t, id)
}

func (tx *txObjectStorage) Commit() error {
	for id, obj := range tx.staged {
		if _, err := tx.storage.SetEncodedObject(obj); err != nil {
			return err
		}
		delete(tx.staged, id)
	}
	return nil
}

func (tx *txObjectStorage) Rollback() error {
	tx.staged = make(map[plumbing.ObjectID]plumbing.EncodedObject)
	return nil
}
