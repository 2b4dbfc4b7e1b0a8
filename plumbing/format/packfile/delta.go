package packfile

import (
	"fmt"

	"github.com/haugantoine/git/plumbing"
)

// applyDelta reconstructs an object from base and Git's copy/insert delta
// encoding: a source-size varint, a target-size varint, then a sequence
// of copy (from base) and insert (literal) instructions.
func applyDelta(base, delta []byte) ([]byte, error) {
	srcSize, pos, err := readDeltaSize(delta, 0)
	if err != nil {
		return nil, err
	}
	if int(srcSize) != len(base) {
		return nil, fmt.Errorf("%w: delta base size mismatch (want %d, have %d)", plumbing.ErrCorruptObject, srcSize, len(base))
	}

	targetSize, pos, err := readDeltaSize(delta, pos)
	if err != nil {
		return nil, err
	}

	out := make([]byte, 0, targetSize)

	for pos < len(delta) {
		op := delta[pos]
		pos++

		if op&0x80 != 0 {
			var offset, size uint32
			if op&0x01 != 0 {
				offset |= uint32(delta[pos])
				pos++
			}
			if op&0x02 != 0 {
				offset |= uint32(delta[pos]) << 8
				pos++
			}
			if op&0x04 != 0 {
				offset |= uint32(delta[pos]) << 16
				pos++
			}
			if op&0x08 != 0 {
				offset |= uint32(delta[pos]) << 24
				pos++
			}
			if op&0x10 != 0 {
				size |= uint32(delta[pos])
				pos++
			}
			if op&0x20 != 0 {
				size |= uint32(delta[pos]) << 8
				pos++
			}
			if op&0x40 != 0 {
				size |= uint32(delta[pos]) << 16
				pos++
			}
			if size == 0 {
				size = 0x10000
			}

			if int(offset)+int(size) > len(base) {
				return nil, fmt.Errorf("%w: delta copy out of range", plumbing.ErrCorruptObject)
			}
			out = append(out, base[offset:offset+size]...)
		} else if op != 0 {
			n := int(op)
			if pos+n > len(delta) {
				return nil, fmt.Errorf("%w: delta insert out of range", plumbing.ErrCorruptObject)
			}
			out = append(out, delta[pos:pos+n]...)
			pos += n
		} else {
			return nil, fmt.Errorf("%w: reserved delta opcode 0", plumbing.ErrCorruptObject)
		}
	}

	if len(out) != int(targetSize) {
		return nil, fmt.Errorf("%w: delta target size mismatch (want %d, got %d)", plumbing.ErrCorruptObject, targetSize, len(out))
	}

	return out, nil
}

// readDeltaSize reads one of the two little-endian base-128 varints that
// precede a delta's instruction stream, returning the value and the
// position just past it.
func readDeltaSize(delta []byte, pos int) (uint64, int, error) {
	var size uint64
	shift := uint(0)
	for {
		if pos >= len(delta) {
			return 0, 0, fmt.Errorf("%w: truncated delta header", plumbing.ErrCorruptObject)
		}
		b := delta[pos]
		pos++
		size |= uint64(b&0x7f) << shift
		if b&0x80 == 0 {
			break
		}
		shift += 7
	}
	return size, pos, nil
}
