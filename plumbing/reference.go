package plumbing

import "strings"

// ReferenceName is a Unix-style path such as "refs/heads/main",
// "refs/tags/v1.0", "refs/remotes/origin/main", or "HEAD".
type ReferenceName string

// Well-known reference names and prefixes.
const (
	HEAD       ReferenceName = "HEAD"
	MergeHead  ReferenceName = "MERGE_HEAD"
	FetchHead  ReferenceName = "FETCH_HEAD"
	Master     ReferenceName = "refs/heads/master"

	refPrefix       = "refs/"
	refHeadPrefix   = refPrefix + "heads/"
	refTagPrefix    = refPrefix + "tags/"
	refRemotePrefix = refPrefix + "remotes/"
	refNotePrefix   = refPrefix + "notes/"
	symRefPrefix    = "ref: "
)

func (n ReferenceName) String() string { return string(n) }

func (n ReferenceName) IsBranch() bool { return strings.HasPrefix(string(n), refHeadPrefix) }
func (n ReferenceName) IsTag() bool    { return strings.HasPrefix(string(n), refTagPrefix) }
func (n ReferenceName) IsRemote() bool { return strings.HasPrefix(string(n), refRemotePrefix) }
func (n ReferenceName) IsNote() bool   { return strings.HasPrefix(string(n), refNotePrefix) }

// Short strips the well-known refs/heads, refs/tags, refs/remotes or
// refs/notes prefix, returning the name unchanged if it carries none of
// them.
func (n ReferenceName) Short() string {
	s := string(n)
	for _, prefix := range []string{refHeadPrefix, refTagPrefix, refRemotePrefix, refNotePrefix} {
		if strings.HasPrefix(s, prefix) {
			return s[len(prefix):]
		}
	}
	return s
}

// ReferenceType distinguishes the three target shapes a Reference can
// hold (§3 Ref data model).
type ReferenceType int8

const (
	InvalidReference ReferenceType = iota
	// DirectReference points straight at an object id.
	DirectReference
	// SymbolicReference names another reference.
	SymbolicReference
)

// StorageTier is advisory metadata describing where a ref's current
// value was last observed; it is used only by CAS semantics and listing,
// never to decide correctness.
type StorageTier int8

const (
	// UnknownTier is the zero value, used for refs not yet backed by a
	// concrete storage read (e.g. freshly constructed in memory).
	UnknownTier StorageTier = iota
	LooseTier
	PackedTier
	LoosePackedTier
	NewTier
)

// Reference is an immutable descriptor: (name, storage tier, target).
// Target is either Direct(ObjectID) or Symbolic(another ReferenceName).
// A reference also carries an optional peeled id cache (§3 invariant I5:
// a hint, not a truth).
type Reference struct {
	typ    ReferenceType
	name   ReferenceName
	tier   StorageTier
	target ObjectID       // valid iff typ == DirectReference
	symTo  ReferenceName   // valid iff typ == SymbolicReference

	peeled      ObjectID
	peeledValid bool // true once Peel has populated peeled (§4.4 peel)
}

// NewHashReference builds a direct reference name -> id.
func NewHashReference(name ReferenceName, id ObjectID) *Reference {
	return &Reference{typ: DirectReference, name: name, target: id}
}

// NewSymbolicReference builds a reference name -> target (another ref).
func NewSymbolicReference(name, target ReferenceName) *Reference {
	return &Reference{typ: SymbolicReference, name: name, symTo: target}
}

// NewReferenceFromStrings parses the on-disk textual form of a ref file:
// either "ref: <target>\n" (symbolic) or a 40-hex object id (direct).
func NewReferenceFromStrings(name, value string) *Reference {
	if strings.HasPrefix(value, symRefPrefix) {
		return NewSymbolicReference(ReferenceName(name), ReferenceName(strings.TrimSpace(value[len(symRefPrefix):])))
	}

	id, _ := FromHex(strings.TrimSpace(value))
	return NewHashReference(ReferenceName(name), id)
}

// WithTier returns a copy of r tagged with the given storage tier.
func (r *Reference) WithTier(t StorageTier) *Reference {
	cp := *r
	cp.tier = t
	return &cp
}

func (r *Reference) Type() ReferenceType   { return r.typ }
func (r *Reference) Name() ReferenceName   { return r.name }
func (r *Reference) Tier() StorageTier     { return r.tier }
func (r *Reference) Hash() ObjectID        { return r.target }
func (r *Reference) Target() ReferenceName { return r.symTo }

// IsPeeled reports whether Peel has populated this record's peeled
// field; PeeledHash is only meaningful when this is true.
func (r *Reference) IsPeeled() bool { return r.peeledValid }

// PeeledHash returns the cached peel result, or ZeroID if the ref was
// never an annotated tag (peeled=true, peeled id=null, per §4.4).
func (r *Reference) PeeledHash() ObjectID { return r.peeled }

// WithPeeled returns a copy of r with its peeled cache populated.
func (r *Reference) WithPeeled(id ObjectID) *Reference {
	cp := *r
	cp.peeled = id
	cp.peeledValid = true
	return &cp
}

// String renders the on-disk textual form of the reference.
func (r *Reference) String() string {
	switch r.typ {
	case SymbolicReference:
		return symRefPrefix + string(r.symTo)
	case DirectReference:
		return r.target.String()
	default:
		return ""
	}
}

func (r *Reference) IsBranch() bool { return r.name.IsBranch() }
func (r *Reference) IsTag() bool    { return r.name.IsTag() }
func (r *Reference) IsRemote() bool { return r.name.IsRemote() }
func (r *Reference) IsNote() bool   { return r.name.IsNote() }
