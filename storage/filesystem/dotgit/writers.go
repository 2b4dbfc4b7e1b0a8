package dotgit

import (
	"os"
	"path/filepath"
	"runtime"

	billy "github.com/go-git/go-billy/v5"

	"github.com/haugantoine/git/plumbing"
	"github.com/haugantoine/git/plumbing/format/objfile"
)

// ObjectWriter stages a new loose object under a temporary name and
// renames it into place under its final content-addressed path once
// writing finishes, so a reader never observes a partially-written
// object (§4.2: "object writes are independent and atomic-or-absent").
type ObjectWriter struct {
	*objfile.Writer
	fs billy.Filesystem
	f  billy.File
}

func newObjectWriter(fs billy.Filesystem, f billy.File) *ObjectWriter {
	return &ObjectWriter{
		Writer: objfile.NewWriter(f),
		fs:     fs,
		f:      f,
	}
}

// Close finishes the zlib stream, computes the final object id, and
// renames the temp file to objects/xx/<38 hex chars>.
func (w *ObjectWriter) Close() error {
	if err := w.Writer.Close(); err != nil {
		return err
	}
	if err := w.f.Close(); err != nil {
		return err
	}
	return w.save()
}

// ID returns the id of the object written so far. Only meaningful after
// WriteHeader and every Write call have completed.
func (w *ObjectWriter) ID() plumbing.ObjectID {
	return w.Writer.Hash()
}

func (w *ObjectWriter) save() error {
	id := w.Writer.Hash()
	path := looseObjectPath(id)

	if err := w.fs.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	if err := w.fs.Rename(w.f.Name(), path); err != nil {
		return err
	}

	fixPermissions(w.fs, path)
	return nil
}

func fixPermissions(fs billy.Filesystem, path string) {
	if runtime.GOOS == "windows" {
		return
	}
	if chmodFS, ok := fs.(interface {
		Chmod(name string, mode os.FileMode) error
	}); ok {
		_ = chmodFS.Chmod(path, 0o444)
	}
}
