// Package packfile reads pack files: many objects, some stored as deltas
// against another object in the same pack, addressed by offset or by
// full object id (§4.2 File backend specifics).
package packfile

import (
	"bufio"
	"compress/zlib"
	"fmt"
	"io"

	"github.com/haugantoine/git/plumbing"
	"github.com/haugantoine/git/plumbing/cache"
	"github.com/haugantoine/git/plumbing/format/idxfile"
)

// objType is the pack-entry type tag, distinct from plumbing.ObjectType
// because it additionally carries the two delta kinds.
type objType uint8

const (
	objCommit   objType = 1
	objTree     objType = 2
	objBlob     objType = 3
	objTag      objType = 4
	objOFSDelta objType = 6
	objRefDelta objType = 7
)

// MaxDeltaChainDepth bounds delta-base resolution to stop a corrupt pack
// from sending a reader into an unbounded (or cyclic) walk.
const MaxDeltaChainDepth = 50

var packMagic = [4]byte{'P', 'A', 'C', 'K'}

// Packfile is a read-only view over one ".pack" file plus its decoded
// ".idx", with delta-chain reconstruction and an object cache for bases.
type Packfile struct {
	r   io.ReaderAt
	idx *idxfile.Index

	cache cache.Object
}

// Open wraps an already-decoded index over the pack data in r. objCache
// may be nil, in which case a private default LRU is used.
func Open(r io.ReaderAt, idx *idxfile.Index, objCache cache.Object) (*Packfile, error) {
	if objCache == nil {
		objCache = cache.NewObjectLRUDefault()
	}
	return &Packfile{r: r, idx: idx, cache: objCache}, nil
}

// Has reports whether id is stored in this pack.
func (p *Packfile) Has(id plumbing.ObjectID) bool {
	return p.idx.Contains(id)
}

// ResolvePrefix delegates abbreviation resolution to the index.
func (p *Packfile) ResolvePrefix(a plumbing.AbbreviatedID) ([]plumbing.ObjectID, error) {
	return p.idx.ResolvePrefix(a), nil
}

// IDs returns every object id this pack contains, in the index's sorted
// order, for backends that need to enumerate packed objects.
func (p *Packfile) IDs() []plumbing.ObjectID {
	entries := p.idx.Entries()
	ids := make([]plumbing.ObjectID, len(entries))
	for i, e := range entries {
		ids[i] = e.ID
	}
	return ids
}

// Checksum returns the trailing pack checksum recorded in the index.
func (p *Packfile) Checksum() plumbing.ObjectID {
	return p.idx.PackfileChecksum
}

// Get decodes and fully reconstructs the object named id, including
// walking and applying any delta chain.
func (p *Packfile) Get(id plumbing.ObjectID) (plumbing.ObjectType, []byte, error) {
	if cached, ok := p.cache.Get(id); ok {
		data, err := io.ReadAll(mustReader(cached))
		if err != nil {
			return 0, nil, err
		}
		return cached.Type(), data, nil
	}

	off, ok := p.idx.FindOffset(id)
	if !ok {
		return 0, nil, plumbing.ErrObjectNotFound
	}

	typ, data, err := p.getByOffset(int64(off), 0)
	if err != nil {
		return 0, nil, err
	}

	obj := plumbing.NewMemoryObject()
	obj.SetType(typ)
	obj.SetBytes(data)
	p.cache.Add(obj)

	return typ, data, nil
}

func mustReader(o plumbing.EncodedObject) io.Reader {
	r, _ := o.Reader()
	return r
}

type entryHeader struct {
	typ     objType
	size    int64
	baseID  plumbing.ObjectID // for REF_DELTA
	baseOff int64             // for OFS_DELTA, negative relative offset
	isDelta bool
}

func (p *Packfile) getByOffset(offset int64, depth int) (plumbing.ObjectType, []byte, error) {
	if depth > MaxDeltaChainDepth {
		return 0, nil, fmt.Errorf("%w: delta chain exceeds %d", plumbing.ErrCorruptObject, MaxDeltaChainDepth)
	}

	sr := io.NewSectionReader(p.r, offset, 1<<62)
	br := bufio.NewReader(sr)

	hdr, err := readEntryHeader(br)
	if err != nil {
		return 0, nil, err
	}

	zr, err := zlib.NewReader(br)
	if err != nil {
		return 0, nil, fmt.Errorf("%w: %s", plumbing.ErrCorruptObject, err)
	}
	defer zr.Close()

	raw, err := io.ReadAll(zr)
	if err != nil {
		return 0, nil, fmt.Errorf("%w: %s", plumbing.ErrCorruptObject, err)
	}

	switch hdr.typ {
	case objCommit:
		return plumbing.CommitObject, raw, nil
	case objTree:
		return plumbing.TreeObject, raw, nil
	case objBlob:
		return plumbing.BlobObject, raw, nil
	case objTag:
		return plumbing.TagObject, raw, nil
	case objOFSDelta:
		baseOffset := offset - hdr.baseOff
		baseType, baseData, err := p.getByOffset(baseOffset, depth+1)
		if err != nil {
			return 0, nil, err
		}
		result, err := applyDelta(baseData, raw)
		return baseType, result, err
	case objRefDelta:
		baseType, baseData, err := p.getByID(hdr.baseID, depth+1)
		if err != nil {
			return 0, nil, err
		}
		result, err := applyDelta(baseData, raw)
		return baseType, result, err
	default:
		return 0, nil, fmt.Errorf("%w: unknown pack entry type %d", plumbing.ErrCorruptObject, hdr.typ)
	}
}

func (p *Packfile) getByID(id plumbing.ObjectID, depth int) (plumbing.ObjectType, []byte, error) {
	off, ok := p.idx.FindOffset(id)
	if !ok {
		return 0, nil, fmt.Errorf("%w: delta base %s", plumbing.ErrObjectNotFound, id)
	}
	return p.getByOffset(int64(off), depth)
}

// readEntryHeader parses a pack object's variable-length type+size
// header, plus the delta-specific base reference that follows it for
// OFS_DELTA/REF_DELTA entries.
func readEntryHeader(r *bufio.Reader) (entryHeader, error) {
	var hdr entryHeader

	b, err := r.ReadByte()
	if err != nil {
		return hdr, err
	}

	hdr.typ = objType((b >> 4) & 0x7)
	size := int64(b & 0x0f)
	shift := uint(4)
	for b&0x80 != 0 {
		b, err = r.ReadByte()
		if err != nil {
			return hdr, err
		}
		size |= int64(b&0x7f) << shift
		shift += 7
	}
	hdr.size = size

	switch hdr.typ {
	case objOFSDelta:
		hdr.isDelta = true
		var off int64
		b, err = r.ReadByte()
		if err != nil {
			return hdr, err
		}
		off = int64(b & 0x7f)
		for b&0x80 != 0 {
			b, err = r.ReadByte()
			if err != nil {
				return hdr, err
			}
			off = ((off + 1) << 7) | int64(b&0x7f)
		}
		hdr.baseOff = off
	case objRefDelta:
		hdr.isDelta = true
		var raw [20]byte
		if _, err := io.ReadFull(r, raw[:]); err != nil {
			return hdr, err
		}
		hdr.baseID, _ = plumbing.FromBytes(raw[:])
	}

	return hdr, nil
}
