package plumbing

import (
	"bytes"
	"fmt"
	"io"

	"github.com/haugantoine/git/hash"
)

// ObjectLoader is returned by a backend's Open call. It yields the
// object's type and size immediately; the raw bytes are only fetched
// when Reader is called, so a caller that only needs the size (or wants
// to re-peel a tag) need not pull the whole payload into memory.
type ObjectLoader interface {
	ID() ObjectID
	Type() ObjectType
	Size() int64
	// Reader returns a fresh stream of the object's bytes. Each call
	// produces an independent reader.
	Reader() (io.ReadCloser, error)
}

// EncodedObject is a fully materialised ObjectLoader plus the means to
// write its payload incrementally; it's what inserters build before a
// backend hashes and stores them.
type EncodedObject interface {
	ObjectLoader
	SetType(ObjectType)
	SetSize(int64)
	Writer() (io.WriteCloser, error)
}

// MemoryObject is an EncodedObject fully buffered in memory. It backs
// the memory backend and is also used by the file backend as a staging
// area before an object is hashed and flushed to disk.
type MemoryObject struct {
	typ  ObjectType
	size int64
	id   ObjectID
	buf  bytes.Buffer
	idSet bool
}

// NewMemoryObject returns an empty, writable in-memory object.
func NewMemoryObject() *MemoryObject {
	return &MemoryObject{}
}

func (o *MemoryObject) ID() ObjectID {
	if !o.idSet {
		o.id = HashObject(o.typ, o.buf.Bytes())
		o.idSet = true
	}
	return o.id
}

func (o *MemoryObject) Type() ObjectType    { return o.typ }
func (o *MemoryObject) SetType(t ObjectType) { o.typ = t; o.idSet = false }
func (o *MemoryObject) Size() int64         { return o.size }
func (o *MemoryObject) SetSize(s int64)     { o.size = s }

func (o *MemoryObject) Reader() (io.ReadCloser, error) {
	return io.NopCloser(bytes.NewReader(o.buf.Bytes())), nil
}

func (o *MemoryObject) Writer() (io.WriteCloser, error) {
	o.idSet = false
	return nopWriteCloser{&o.buf}, nil
}

// Bytes returns the object's buffered payload without copying.
func (o *MemoryObject) Bytes() []byte {
	return o.buf.Bytes()
}

// SetBytes replaces the object's payload wholesale and updates its size.
func (o *MemoryObject) SetBytes(b []byte) {
	o.buf.Reset()
	o.buf.Write(b)
	o.size = int64(len(b))
	o.idSet = false
}

type nopWriteCloser struct{ io.Writer }

func (nopWriteCloser) Close() error { return nil }

// HashObject computes the ObjectID of a payload under Git's type-prefixed
// hashing scheme: SHA1("<type> <size>\0" || data).
func HashObject(t ObjectType, data []byte) ObjectID {
	h := NewHasher(t, int64(len(data)))
	h.Write(data)
	return h.Sum()
}

// Hasher incrementally computes an ObjectID the same way HashObject does,
// without requiring the whole payload to be buffered up front.
type Hasher struct {
	hash.Hash
}

// NewHasher primes a Hasher with the loose-object header for a payload of
// the given type and size.
func NewHasher(t ObjectType, size int64) Hasher {
	h := Hasher{Hash: hash.New()}
	fmt.Fprintf(h, "%s %d\x00", t, size)
	return h
}

// Sum finalises the hash into an ObjectID.
func (h Hasher) Sum() ObjectID {
	id, _ := FromBytes(h.Hash.Sum(nil))
	return id
}
