package object

import (
	"io"

	"github.com/haugantoine/git/plumbing"
)

// Blob is opaque file content; the core never interprets its bytes.
type Blob struct {
	Hash plumbing.ObjectID
	Size int64

	obj plumbing.ObjectLoader
}

// Decode wraps an ObjectLoader known to hold a blob.
func (b *Blob) Decode(o plumbing.ObjectLoader) error {
	if o.Type() != plumbing.BlobObject {
		return ErrUnsupportedObject
	}

	b.Hash = o.ID()
	b.Size = o.Size()
	b.obj = o
	return nil
}

// Reader streams the blob's bytes.
func (b *Blob) Reader() (io.ReadCloser, error) {
	return b.obj.Reader()
}

// Encode copies r's bytes into o as a blob.
func Encode(o plumbing.EncodedObject, r io.Reader, size int64) error {
	o.SetType(plumbing.BlobObject)
	o.SetSize(size)

	w, err := o.Writer()
	if err != nil {
		return err
	}
	defer w.Close()

	_, err = io.Copy(w, r)
	return err
}
