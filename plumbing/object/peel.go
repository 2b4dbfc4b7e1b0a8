package object

import (
	"fmt"

	"github.com/haugantoine/git/plumbing"
)

// MaxPeelDepth bounds the tag-chasing walk Peel performs, the same
// bound used for symbolic reference chains (§3 invariant I2, §4.4 peel).
const MaxPeelDepth = 5

// Opener loads an object by id, as implemented by the object database
// façade (kept as a narrow function type here so this package has no
// dependency on objectdb, avoiding an import cycle).
type Opener func(id plumbing.ObjectID) (plumbing.ObjectLoader, error)

// Peel follows a chain of annotated tags starting at id/typ until a
// non-tag object is reached, returning its id and type. If id does not
// name a tag, Peel returns (id, typ, nil) unchanged. A chain longer than
// MaxPeelDepth is treated as corrupt.
func Peel(open Opener, id plumbing.ObjectID, typ plumbing.ObjectType) (plumbing.ObjectID, plumbing.ObjectType, error) {
	for depth := 0; ; depth++ {
		if typ != plumbing.TagObject {
			return id, typ, nil
		}
		if depth >= MaxPeelDepth {
			return plumbing.ZeroID, plumbing.InvalidObject, fmt.Errorf("%w: tag chain exceeds depth %d", plumbing.ErrCorruptObject, MaxPeelDepth)
		}

		loader, err := open(id)
		if err != nil {
			return plumbing.ZeroID, plumbing.InvalidObject, err
		}

		var tag Tag
		if err := tag.Decode(loader); err != nil {
			return plumbing.ZeroID, plumbing.InvalidObject, err
		}

		id, typ = tag.Object, tag.ObjectType
	}
}
