package plumbing

import "fmt"

// ObjectType identifies one of the four Git object kinds.
type ObjectType int8

const (
	// InvalidObject is the zero value, never a valid stored object.
	InvalidObject ObjectType = iota
	CommitObject
	TreeObject
	BlobObject
	TagObject
	// AnyObject is used as a type hint meaning "don't check the type".
	AnyObject
)

func (t ObjectType) String() string {
	switch t {
	case CommitObject:
		return "commit"
	case TreeObject:
		return "tree"
	case BlobObject:
		return "blob"
	case TagObject:
		return "tag"
	case AnyObject:
		return "any"
	default:
		return "invalid"
	}
}

// Bytes returns the wire representation of the type, as used in the
// loose object header. Pack entries use numeric type codes instead.
func (t ObjectType) Bytes() []byte {
	return []byte(t.String())
}

// ParseObjectType maps a loose-object header type name to an ObjectType.
func ParseObjectType(s string) (ObjectType, error) {
	switch s {
	case "commit":
		return CommitObject, nil
	case "tree":
		return TreeObject, nil
	case "blob":
		return BlobObject, nil
	case "tag":
		return TagObject, nil
	default:
		return InvalidObject, fmt.Errorf("%w: %q", ErrInvalidType, s)
	}
}

// Valid reports whether t is one of the four storable object kinds (i.e.
// excludes InvalidObject and AnyObject).
func (t ObjectType) Valid() bool {
	switch t {
	case CommitObject, TreeObject, BlobObject, TagObject:
		return true
	default:
		return false
	}
}
