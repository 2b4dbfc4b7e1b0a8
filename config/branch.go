package config

import (
	"errors"
	"fmt"

	"github.com/haugantoine/git/plumbing"
	format "github.com/haugantoine/git/plumbing/format/config"
)

// ErrBranchEmptyName is returned when a Branch has no name.
var ErrBranchEmptyName = errors.New("branch config: empty name")

// ErrBranchInvalidMerge is returned when a Branch's Merge value is not a
// well-formed reference name.
var ErrBranchInvalidMerge = errors.New("branch config: invalid merge ref name")

// Branch is one [branch "name"] block, the config §4.6 "@{upstream}"
// resolution reads via Remote/Merge.
type Branch struct {
	Name   string
	Remote string
	Merge  plumbing.ReferenceName
	Rebase string

	raw *format.Subsection
}

// Validate checks the branch carries a name and, if Merge is set, that
// it looks like a reference name (starts with "refs/").
func (b *Branch) Validate() error {
	if b.Name == "" {
		return ErrBranchEmptyName
	}

	if b.Merge != "" && !isRefName(b.Merge) {
		return fmt.Errorf("%w: %q", ErrBranchInvalidMerge, b.Merge)
	}

	return nil
}

func isRefName(n plumbing.ReferenceName) bool {
	return len(n) > len("refs/") && n[:len("refs/")] == "refs/"
}

func (b *Branch) unmarshal(s *format.Subsection) error {
	b.raw = s
	b.Name = s.Name
	b.Remote = s.Options.Get(remoteKey)
	b.Merge = plumbing.ReferenceName(s.Options.Get(mergeKey))
	b.Rebase = s.Options.Get(rebaseKey)
	return nil
}

func (b *Branch) marshal() *format.Subsection {
	if b.raw == nil {
		b.raw = &format.Subsection{}
	}
	b.raw.Name = b.Name

	if b.Remote == "" {
		b.raw.RemoveOption(remoteKey)
	} else {
		b.raw.SetOption(remoteKey, b.Remote)
	}

	if b.Merge == "" {
		b.raw.RemoveOption(mergeKey)
	} else {
		b.raw.SetOption(mergeKey, string(b.Merge))
	}

	if b.Rebase == "" {
		b.raw.RemoveOption(rebaseKey)
	} else {
		b.raw.SetOption(rebaseKey, b.Rebase)
	}

	return b.raw
}
