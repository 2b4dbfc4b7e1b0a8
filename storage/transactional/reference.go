package transactional

import (
	"github.com/haugantoine/git/plumbing"
	"github.com/haugantoine/git/plumbing/storer"
	"github.com/haugantoine/git/storage"
)

// ReferenceStorage demuxes reference reads and writes across a base and
// a temporal storer, the same base/temporal split as ObjectStorage.
type ReferenceStorage struct {
	storer.ReferenceStorer
	temporal storer.ReferenceStorer

	// deleted tracks names removed since the last Commit; RemoveReference
	// adds a name, SetReference clears it again.
	deleted map[plumbing.ReferenceName]struct{}

	// reflogged tracks names appended to since the last Commit, so their
	// staged entries can be folded into base's reflog.
	reflogged map[plumbing.ReferenceName]struct{}
}

// NewReferenceStorage returns a ReferenceStorage reading from base with
// writes staged against temporal.
func NewReferenceStorage(base, temporal storer.ReferenceStorer) *ReferenceStorage {
	return &ReferenceStorage{
		ReferenceStorer: base,
		temporal:        temporal,
		deleted:         make(map[plumbing.ReferenceName]struct{}),
		reflogged:       make(map[plumbing.ReferenceName]struct{}),
	}
}

// SetReference stages ref in the temporal store.
func (r *ReferenceStorage) SetReference(ref *plumbing.Reference) error {
	delete(r.deleted, ref.Name())
	return r.temporal.SetReference(ref)
}

// CheckAndSetReference performs the compare-and-swap against whichever
// of temporal or base currently holds old.Name(), then stages the write.
func (r *ReferenceStorage) CheckAndSetReference(ref, old *plumbing.Reference) error {
	if old == nil {
		_, err := r.Reference(ref.Name())
		if err == nil {
			return storage.ErrReferenceHasChanged
		}
		if err != plumbing.ErrReferenceNotFound {
			return err
		}
		return r.SetReference(ref)
	}

	current, err := r.temporal.Reference(old.Name())
	if err == plumbing.ErrReferenceNotFound {
		current, err = r.ReferenceStorer.Reference(old.Name())
	}
	if err != nil {
		return err
	}

	if current.Hash() != old.Hash() {
		return storage.ErrReferenceHasChanged
	}

	return r.SetReference(ref)
}

// Reference resolves name against the pending deletion set, then
// temporal, falling back to base.
func (r *ReferenceStorage) Reference(name plumbing.ReferenceName) (*plumbing.Reference, error) {
	if _, ok := r.deleted[name]; ok {
		return nil, plumbing.ErrReferenceNotFound
	}

	ref, err := r.temporal.Reference(name)
	if err == plumbing.ErrReferenceNotFound {
		return r.ReferenceStorer.Reference(name)
	}
	return ref, err
}

// IterReferences iterates base's references followed by temporal's.
func (r *ReferenceStorage) IterReferences() (storer.ReferenceIter, error) {
	baseIter, err := r.ReferenceStorer.IterReferences()
	if err != nil {
		return nil, err
	}

	temporalIter, err := r.temporal.IterReferences()
	if err != nil {
		return nil, err
	}

	return storer.NewMultiReferenceIter([]storer.ReferenceIter{baseIter, temporalIter}), nil
}

// CountLooseRefs sums both stores' counts.
func (r *ReferenceStorage) CountLooseRefs() (int, error) {
	tc, err := r.temporal.CountLooseRefs()
	if err != nil {
		return -1, err
	}

	bc, err := r.ReferenceStorer.CountLooseRefs()
	if err != nil {
		return -1, err
	}

	return tc + bc, nil
}

// PackRefs is a no-op: compaction belongs to the base store once
// committed, not to the staged overlay.
func (r *ReferenceStorage) PackRefs() error {
	return nil
}

// RemoveReference marks name deleted and stages the removal in temporal.
func (r *ReferenceStorage) RemoveReference(name plumbing.ReferenceName) error {
	r.deleted[name] = struct{}{}
	return r.temporal.RemoveReference(name)
}

// Commit applies every pending deletion to base, then copies every
// reference remaining in temporal into base.
func (r *ReferenceStorage) Commit() error {
	for name := range r.deleted {
		if err := r.ReferenceStorer.RemoveReference(name); err != nil {
			return err
		}
	}

	iter, err := r.temporal.IterReferences()
	if err != nil {
		return err
	}
	defer iter.Close()

	if err := iter.ForEach(func(ref *plumbing.Reference) error {
		return r.ReferenceStorer.SetReference(ref)
	}); err != nil {
		return err
	}

	baseLog := r.ReferenceStorer.(storer.ReflogStorer)
	temporalLog := r.temporal.(storer.ReflogStorer)
	for name := range r.reflogged {
		entries, err := temporalLog.ReadReflog(name)
		if err != nil {
			return err
		}
		for _, e := range entries {
			if err := baseLog.AppendReflog(name, e); err != nil {
				return err
			}
		}
	}
	r.reflogged = make(map[plumbing.ReferenceName]struct{})

	return nil
}

// Rollback discards staged reference state tracked by this wrapper; the
// temporal store's own content is the caller's to discard.
func (r *ReferenceStorage) Rollback() error {
	r.deleted = make(map[plumbing.ReferenceName]struct{})
	r.reflogged = make(map[plumbing.ReferenceName]struct{})
	return nil
}

// AppendReflog stages e against the temporal reflog store; Commit copies
// it into base alongside the reference it describes.
func (r *ReferenceStorage) AppendReflog(name plumbing.ReferenceName, e *plumbing.ReflogEntry) error {
	r.reflogged[name] = struct{}{}
	return r.temporal.(storer.ReflogStorer).AppendReflog(name, e)
}

// ReadReflog returns base's reflog followed by whatever has been staged
// in temporal but not yet committed.
func (r *ReferenceStorage) ReadReflog(name plumbing.ReferenceName) ([]*plumbing.ReflogEntry, error) {
	base, err := r.ReferenceStorer.(storer.ReflogStorer).ReadReflog(name)
	if err != nil {
		return nil, err
	}

	staged, err := r.temporal.(storer.ReflogStorer).ReadReflog(name)
	if err != nil {
		return nil, err
	}

	return append(base, staged...), nil
}

// RemoveReflog deletes name's reflog from both stores.
func (r *ReferenceStorage) RemoveReflog(name plumbing.ReferenceName) error {
	if err := r.temporal.(storer.ReflogStorer).RemoveReflog(name); err != nil {
		return err
	}
	return r.ReferenceStorer.(storer.ReflogStorer).RemoveReflog(name)
}
