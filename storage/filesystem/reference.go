package filesystem

import (
	"github.com/haugantoine/git/plumbing"
	"github.com/haugantoine/git/plumbing/storer"
	"github.com/haugantoine/git/storage/filesystem/dotgit"
)

// ReferenceStorage is a ReferenceStorer and ReflogStorer backed by a
// DotGit directory's loose ref files, packed-refs, and logs/ tree.
type ReferenceStorage struct {
	dir *dotgit.DotGit
}

// NewReferenceStorage wraps dir.
func NewReferenceStorage(dir *dotgit.DotGit) *ReferenceStorage {
	return &ReferenceStorage{dir: dir}
}

// SetReference writes ref unconditionally.
func (r *ReferenceStorage) SetReference(ref *plumbing.Reference) error {
	return r.dir.SetRefUnchecked(ref)
}

// CheckAndSetReference performs a compare-and-swap write; old may be
// nil to require the reference be absent.
func (r *ReferenceStorage) CheckAndSetReference(ref, old *plumbing.Reference) error {
	return r.dir.SetRef(ref, old)
}

// Reference reads the named reference.
func (r *ReferenceStorage) Reference(name plumbing.ReferenceName) (*plumbing.Reference, error) {
	return r.dir.Ref(name)
}

// IterReferences returns a snapshot iterator over every reference.
func (r *ReferenceStorage) IterReferences() (storer.ReferenceIter, error) {
	refs, err := r.dir.Refs()
	if err != nil {
		return nil, err
	}
	return storer.NewReferenceSliceIter(refs), nil
}

// RemoveReference deletes the named reference.
func (r *ReferenceStorage) RemoveReference(name plumbing.ReferenceName) error {
	return r.dir.RemoveRef(name)
}

// CountLooseRefs counts loose ref files under refs/.
func (r *ReferenceStorage) CountLooseRefs() (int, error) {
	return r.dir.CountLooseRefs()
}

// PackRefs compacts loose refs into packed-refs.
func (r *ReferenceStorage) PackRefs() error {
	return r.dir.PackRefs()
}

// AppendReflog appends e to name's reflog.
func (r *ReferenceStorage) AppendReflog(name plumbing.ReferenceName, e *plumbing.ReflogEntry) error {
	return r.dir.AppendReflog(name, e)
}

// ReadReflog returns name's reflog, oldest entry first.
func (r *ReferenceStorage) ReadReflog(name plumbing.ReferenceName) ([]*plumbing.ReflogEntry, error) {
	return r.dir.ReadReflog(name)
}

// RemoveReflog deletes name's entire reflog.
func (r *ReferenceStorage) RemoveReflog(name plumbing.ReferenceName) error {
	return r.dir.RemoveReflog(name)
}
