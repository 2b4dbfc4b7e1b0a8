package filesystem

import (
	billy "github.com/go-git/go-billy/v5"

	"github.com/haugantoine/git/plumbing/cache"
	"github.com/haugantoine/git/storage/filesystem/dotgit"
)

// Storage bundles the object and reference backends for one on-disk git
// directory.
type Storage struct {
	fs  billy.Filesystem
	dir *dotgit.DotGit

	*ObjectStorage
	*ReferenceStorage
}

// NewStorage returns a Storage rooted at fs, which must be rooted at the
// git directory itself (i.e. fs's root IS ".git"). objCache may be nil,
// in which case a default-sized LRU is created.
func NewStorage(fs billy.Filesystem, objCache cache.Object) *Storage {
	if objCache == nil {
		objCache = cache.NewObjectLRUDefault()
	}

	dir := dotgit.New(fs)
	objStorage := NewObjectStorage(dir)
	objStorage.cache = objCache

	return &Storage{
		fs:               fs,
		dir:              dir,
		ObjectStorage:    objStorage,
		ReferenceStorage: NewReferenceStorage(dir),
	}
}

// Filesystem returns the underlying git-directory filesystem.
func (s *Storage) Filesystem() billy.Filesystem {
	return s.fs
}
