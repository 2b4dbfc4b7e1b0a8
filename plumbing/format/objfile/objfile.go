// Package objfile reads and writes the on-disk format of a loose Git
// object: zlib-compressed bytes whose plaintext starts with
// "<type> <size>\0" (§6).
package objfile

import (
	"bufio"
	"compress/zlib"
	"fmt"
	"io"
	"strconv"

	"github.com/haugantoine/git/plumbing"
)

// Reader decodes a loose object stream: it yields the object's type and
// size via Header, then its payload via Read.
type Reader struct {
	zr   io.ReadCloser
	body *bufio.Reader
	typ  plumbing.ObjectType
	size int64
}

// NewReader wraps r, inflating its zlib stream and parsing the header.
// The header must be read with Header before Read is called.
func NewReader(r io.Reader) (*Reader, error) {
	zr, err := zlib.NewReader(r)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", plumbing.ErrCorruptObject, err)
	}
	return &Reader{zr: zr}, nil
}

// Header parses and returns the object's type and size.
func (r *Reader) Header() (plumbing.ObjectType, int64, error) {
	br := bufio.NewReader(r.zr)

	typeName, err := br.ReadString(' ')
	if err != nil {
		return 0, 0, fmt.Errorf("%w: missing type header", plumbing.ErrCorruptObject)
	}
	typeName = typeName[:len(typeName)-1]

	sizeStr, err := br.ReadString(0)
	if err != nil {
		return 0, 0, fmt.Errorf("%w: missing size header", plumbing.ErrCorruptObject)
	}
	sizeStr = sizeStr[:len(sizeStr)-1]

	typ, err := plumbing.ParseObjectType(typeName)
	if err != nil {
		return 0, 0, err
	}

	size, err := strconv.ParseInt(sizeStr, 10, 64)
	if err != nil {
		return 0, 0, fmt.Errorf("%w: malformed size %q", plumbing.ErrCorruptObject, sizeStr)
	}

	r.typ = typ
	r.size = size
	r.body = br
	return typ, size, nil
}

func (r *Reader) Read(p []byte) (int, error) {
	return r.body.Read(p)
}

// Close releases the underlying zlib reader.
func (r *Reader) Close() error {
	return r.zr.Close()
}

// Writer encodes a loose object stream: call WriteHeader once, then
// Write the payload, then Close.
type Writer struct {
	w    io.Writer
	zw   *zlib.Writer
	hash plumbing.Hasher
}

// NewWriter wraps w, which will receive the zlib-compressed stream.
func NewWriter(w io.Writer) *Writer {
	return &Writer{w: w}
}

// WriteHeader writes the "<type> <size>\0" header and primes the hash
// used to compute the resulting object's id.
func (w *Writer) WriteHeader(t plumbing.ObjectType, size int64) error {
	w.zw = zlib.NewWriter(w.w)
	w.hash = plumbing.NewHasher(t, size)

	header := fmt.Sprintf("%s %d\x00", t, size)
	if _, err := w.zw.Write([]byte(header)); err != nil {
		return err
	}
	return nil
}

func (w *Writer) Write(p []byte) (int, error) {
	n, err := w.zw.Write(p)
	if n > 0 {
		w.hash.Write(p[:n])
	}
	return n, err
}

// Hash returns the object id computed from everything written so far.
// It is only meaningful once writing is complete.
func (w *Writer) Hash() plumbing.ObjectID {
	return w.hash.Sum()
}

// Close flushes the zlib stream.
func (w *Writer) Close() error {
	if w.zw == nil {
		return nil
	}
	return w.zw.Close()
}
