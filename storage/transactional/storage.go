package transactional

import (
	"github.com/haugantoine/git/storage"
)

// Storage demuxes every read and write between a base storage.Storer and
// a temporal one, letting a batch of object and reference changes be
// assembled against the temporal store and folded into base in one
// Commit (§4.3's atomic batch reference update, generalised to the
// whole repository database).
type Storage struct {
	*ObjectStorage
	*ReferenceStorage
}

// NewStorage returns a Storage reading from base with writes staged
// against temporal.
func NewStorage(base, temporal storage.Storer) *Storage {
	return &Storage{
		ObjectStorage:    NewObjectStorage(base, temporal),
		ReferenceStorage: NewReferenceStorage(base, temporal),
	}
}

// Commit folds every staged object and reference write into base.
func (s *Storage) Commit() error {
	if err := s.ObjectStorage.Commit(); err != nil {
		return err
	}
	return s.ReferenceStorage.Commit()
}

// Rollback discards staged writes tracked by this wrapper.
func (s *Storage) Rollback() error {
	if err := s.ObjectStorage.Rollback(); err != nil {
		return err
	}
	return s.ReferenceStorage.Rollback()
}
