package objectdb

import (
	"io"

	"github.com/haugantoine/git/plumbing"
)

// Inserter is a scoped handle for writing objects into a Database's
// primary backend. It satisfies io.Closer so callers can defer its
// cleanup the same way they would a file handle; Close is a no-op here
// since each Write already flushes its object, but it keeps the handle
// shape consistent with NewReader's io.ReadCloser.
type Inserter struct {
	backend Backend
	closed  bool
}

// Write hashes and stores one object of type t from data, returning its
// id. Safe to call repeatedly on the same Inserter and safe to call
// concurrently across different Inserters sharing a Database.
func (ins *Inserter) Write(t plumbing.ObjectType, data []byte) (plumbing.ObjectID, error) {
	obj := plumbing.NewMemoryObject()
	obj.SetType(t)
	obj.SetBytes(data)
	return ins.backend.SetEncodedObject(obj)
}

// WriteStream stores an object of type t and size read from r, without
// requiring the caller to buffer it themselves first.
func (ins *Inserter) WriteStream(t plumbing.ObjectType, size int64, r io.Reader) (plumbing.ObjectID, error) {
	obj := plumbing.NewMemoryObject()
	obj.SetType(t)
	obj.SetSize(size)

	w, err := obj.Writer()
	if err != nil {
		return plumbing.ZeroID, err
	}
	if _, err := io.Copy(w, r); err != nil {
		w.Close()
		return plumbing.ZeroID, err
	}
	if err := w.Close(); err != nil {
		return plumbing.ZeroID, err
	}

	return ins.backend.SetEncodedObject(obj)
}

// Close releases the Inserter. It never returns an error: nothing is
// buffered past the point a Write call returns.
func (ins *Inserter) Close() error {
	ins.closed = true
	return nil
}
