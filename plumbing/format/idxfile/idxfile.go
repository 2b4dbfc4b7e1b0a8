// Package idxfile decodes a pack ".idx" file: the sorted-by-id table
// that maps an object id to its byte offset within the companion
// ".pack" file (§4.2 File backend specifics).
package idxfile

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"

	"github.com/haugantoine/git/plumbing"
)

var idxHeader = [4]byte{0xff, 0x74, 0x4f, 0x63} // "\377tOc"

const supportedVersion = 2

// Entry is one object's id, crc32 and offset within the pack.
type Entry struct {
	ID     plumbing.ObjectID
	CRC32  uint32
	Offset uint64
}

// Index is a decoded pack index, queryable by id and enumerable in
// sorted-id order (the order the fan-out table requires).
type Index struct {
	fanout  [256]uint32
	entries []Entry // sorted by ID
	byID    map[plumbing.ObjectID]int

	PackfileChecksum plumbing.ObjectID
}

// Decode reads a version-2 pack index from r.
func Decode(r io.Reader) (*Index, error) {
	br := bufio.NewReader(r)

	var magic [4]byte
	if _, err := io.ReadFull(br, magic[:]); err != nil {
		return nil, fmt.Errorf("%w: %s", plumbing.ErrCorruptObject, err)
	}
	if magic != idxHeader {
		return nil, fmt.Errorf("%w: not a version-2 pack index (legacy index format unsupported)", plumbing.ErrCorruptObject)
	}

	var version uint32
	if err := binary.Read(br, binary.BigEndian, &version); err != nil {
		return nil, err
	}
	if version != supportedVersion {
		return nil, fmt.Errorf("%w: unsupported idx version %d", plumbing.ErrCorruptObject, version)
	}

	idx := &Index{}
	for i := 0; i < 256; i++ {
		if err := binary.Read(br, binary.BigEndian, &idx.fanout[i]); err != nil {
			return nil, err
		}
	}

	count := int(idx.fanout[255])
	idx.entries = make([]Entry, count)
	idx.byID = make(map[plumbing.ObjectID]int, count)

	for i := 0; i < count; i++ {
		var raw [20]byte
		if _, err := io.ReadFull(br, raw[:]); err != nil {
			return nil, fmt.Errorf("%w: truncated id table", plumbing.ErrCorruptObject)
		}
		id, _ := plumbing.FromBytes(raw[:])
		idx.entries[i].ID = id
		idx.byID[id] = i
	}

	for i := 0; i < count; i++ {
		if err := binary.Read(br, binary.BigEndian, &idx.entries[i].CRC32); err != nil {
			return nil, err
		}
	}

	var largeOffsets []int
	for i := 0; i < count; i++ {
		var off uint32
		if err := binary.Read(br, binary.BigEndian, &off); err != nil {
			return nil, err
		}
		if off&0x80000000 != 0 {
			largeOffsets = append(largeOffsets, i)
			idx.entries[i].Offset = uint64(off &^ 0x80000000) // index into the 8-byte table, resolved below
			continue
		}
		idx.entries[i].Offset = uint64(off)
	}

	for _, i := range largeOffsets {
		var off uint64
		if err := binary.Read(br, binary.BigEndian, &off); err != nil {
			return nil, err
		}
		idx.entries[i].Offset = off
	}

	var packChecksum [20]byte
	if _, err := io.ReadFull(br, packChecksum[:]); err != nil {
		return nil, fmt.Errorf("%w: truncated trailer", plumbing.ErrCorruptObject)
	}
	idx.PackfileChecksum, _ = plumbing.FromBytes(packChecksum[:])

	// idx checksum follows but isn't needed for lookups; callers that
	// care about integrity can verify the bytes via its own hash.
	return idx, nil
}

// FindOffset returns the byte offset of id within the pack, if present.
func (idx *Index) FindOffset(id plumbing.ObjectID) (uint64, bool) {
	i, ok := idx.byID[id]
	if !ok {
		return 0, false
	}
	return idx.entries[i].Offset, true
}

// Contains reports whether id is present in the index.
func (idx *Index) Contains(id plumbing.ObjectID) bool {
	_, ok := idx.byID[id]
	return ok
}

// ResolvePrefix returns every id in the index matching the given
// abbreviation. The fan-out table narrows the scan to the range of
// entries sharing the abbreviation's leading byte.
func (idx *Index) ResolvePrefix(a plumbing.AbbreviatedID) []plumbing.ObjectID {
	lead := a.LeadingByte()

	lo := 0
	if lead > 0 {
		lo = int(idx.fanout[lead-1])
	}
	hi := int(idx.fanout[lead])

	var matches []plumbing.ObjectID
	for i := lo; i < hi; i++ {
		if a.Matches(idx.entries[i].ID) {
			matches = append(matches, idx.entries[i].ID)
		}
	}
	return matches
}

// Entries returns the full, sorted entry list.
func (idx *Index) Entries() []Entry {
	return idx.entries
}
