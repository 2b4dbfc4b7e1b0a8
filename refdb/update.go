package refdb

import (
	"errors"
	"fmt"

	"github.com/haugantoine/git/plumbing"
	"github.com/haugantoine/git/plumbing/object"
)

// UpdateResult is the outcome a committed Update (or RenameRef) settles
// into (§4.4 "Update result state machine").
type UpdateResult int

const (
	// NotAttempted is the zero value: Commit has not run yet.
	NotAttempted UpdateResult = iota
	// New means the ref did not exist and has been created.
	New
	// NoChange means old and new ids were identical.
	NoChange
	// FastForward means new-id is a descendant of old-id (commit-only).
	FastForward
	// Forced means a non-fast-forward update was accepted because the
	// caller set ForceUpdate.
	Forced
	// Rejected means a non-fast-forward update was refused.
	Rejected
	// LockFailure means expected-old-id didn't match observed state, or
	// a concurrent writer held the ref's lock until the retry budget
	// was exhausted.
	LockFailure
	// IOFailure means a storage error other than lock contention.
	IOFailure
	// Renamed is reported only by RenameRef.
	Renamed
)

func (r UpdateResult) String() string {
	switch r {
	case NotAttempted:
		return "NOT_ATTEMPTED"
	case New:
		return "NEW"
	case NoChange:
		return "NO_CHANGE"
	case FastForward:
		return "FAST_FORWARD"
	case Forced:
		return "FORCED"
	case Rejected:
		return "REJECTED"
	case LockFailure:
		return "LOCK_FAILURE"
	case IOFailure:
		return "IO_FAILURE"
	case Renamed:
		return "RENAMED"
	default:
		return fmt.Sprintf("UpdateResult(%d)", int(r))
	}
}

// maxFastForwardSteps bounds the first-parent walk Update.Commit uses to
// decide FastForward vs Forced/Rejected, the same defensive role
// object.MaxPeelDepth plays for tag chains, but generous since first-
// parent chains are legitimately long.
const maxFastForwardSteps = 1 << 16

// maxSymbolicDepth bounds how many symbolic hops Update.Commit follows
// to find the leaf ref it actually writes, matching revision.go's own
// symbolic-chain bound.
const maxSymbolicDepth = 5

// Update is a builder for a single compare-and-swap reference update
// (§4.4 "Single updates"). Obtain one with Database.NewUpdate, configure
// it, then call Commit.
type Update struct {
	db   *Database
	name plumbing.ReferenceName

	detach      bool
	newID       plumbing.ObjectID
	hasNewID    bool
	expectedOld *plumbing.ObjectID
	force       bool
	opener      object.Opener

	reflogConfigured bool
	reflogWho        object.Signature
	reflogMessage    string
	reflogAppendNote bool
	disableRefLog    bool
}

// NewUpdate returns an Update targeting name. By default the update
// follows a symbolic chain to its leaf (e.g. writing refs/heads/main for
// an update addressed to HEAD); call Detach to write name itself.
func (db *Database) NewUpdate(name plumbing.ReferenceName) *Update {
	return &Update{db: db, name: name}
}

// Detach makes Commit replace name itself rather than the reference it
// symbolically points at (§4.4 "with detach=true they replace the
// symbolic ref itself").
func (u *Update) Detach() *Update {
	u.detach = true
	return u
}

// SetNew sets the required new-id the ref should point at after Commit.
func (u *Update) SetNew(id plumbing.ObjectID) *Update {
	u.newID = id
	u.hasNewID = true
	return u
}

// ExpectOldID sets the optional expected-old-id precondition. Passing
// plumbing.ZeroID asserts the ref must not already exist, matching git's
// own wire convention for ref-update preconditions.
func (u *Update) ExpectOldID(id plumbing.ObjectID) *Update {
	u.expectedOld = &id
	return u
}

// ForceUpdate allows a non-fast-forward transition to go through as
// Forced instead of being refused as Rejected.
func (u *Update) ForceUpdate(force bool) *Update {
	u.force = force
	return u
}

// WithOpener supplies the object opener used to walk first-parent
// ancestry for fast-forward detection. Without one, a transition that
// isn't a plain NoChange/New is always classified Forced or Rejected,
// never FastForward.
func (u *Update) WithOpener(open object.Opener) *Update {
	u.opener = open
	return u
}

// ReflogMessage configures the reflog entry Commit appends on success.
// When appendStatus is true, the classified result is appended to the
// message in parentheses (e.g. "pull: origin/main (fast-forward)"),
// matching git's own reflog convention.
func (u *Update) ReflogMessage(who object.Signature, message string, appendStatus bool) *Update {
	u.reflogConfigured = true
	u.reflogWho = who
	u.reflogMessage = message
	u.reflogAppendNote = appendStatus
	return u
}

// DisableRefLog suppresses the reflog entry Commit would otherwise
// append, even if ReflogMessage was called.
func (u *Update) DisableRefLog() *Update {
	u.disableRefLog = true
	return u
}

// Commit performs the update, returning the classified result. A non-nil
// error always accompanies a result other than NEW, NO_CHANGE,
// FAST_FORWARD, FORCED or RENAMED.
func (u *Update) Commit() (UpdateResult, error) {
	if !u.hasNewID {
		return IOFailure, errors.New("refdb: Update.SetNew must be called before Commit")
	}

	leafName, current, err := u.resolveTarget()
	if err != nil {
		return IOFailure, err
	}

	if u.expectedOld != nil {
		var currentID plumbing.ObjectID
		if current != nil && current.Type() == plumbing.DirectReference {
			currentID = current.Hash()
		}
		if currentID != *u.expectedOld {
			return LockFailure, plumbing.ErrReferenceHasChanged
		}
	}

	target := plumbing.NewHashReference(leafName, u.newID)

	result, err := u.classify(current, target)
	if err != nil {
		return IOFailure, err
	}
	if result == Rejected {
		return Rejected, fmt.Errorf("%w: %s is not a fast-forward of %s", plumbing.ErrReferenceHasChanged, u.newID, leafName)
	}

	if casErr := u.db.backend.CheckAndSetReference(target, current); casErr != nil {
		switch {
		case errors.Is(casErr, plumbing.ErrReferenceHasChanged), errors.Is(casErr, plumbing.ErrLockFailure):
			return LockFailure, casErr
		default:
			return IOFailure, casErr
		}
	}

	if !u.disableRefLog {
		u.appendReflog(leafName, current, target, result)
	}

	return result, nil
}

// resolveTarget returns the name Commit will actually write to (the leaf
// of name's symbolic chain, unless Detach was called) and that name's
// current value, or (name, nil, nil) if it is currently absent.
func (u *Update) resolveTarget() (plumbing.ReferenceName, *plumbing.Reference, error) {
	if u.detach {
		ref, err := u.db.backend.Reference(u.name)
		if errors.Is(err, plumbing.ErrReferenceNotFound) {
			return u.name, nil, nil
		}
		if err != nil {
			return "", nil, err
		}
		return u.name, ref, nil
	}

	name := u.name
	for depth := 0; ; depth++ {
		if depth > maxSymbolicDepth {
			return "", nil, plumbing.ErrMaxSymbolicRefDepth
		}

		ref, err := u.db.backend.Reference(name)
		if errors.Is(err, plumbing.ErrReferenceNotFound) {
			return name, nil, nil
		}
		if err != nil {
			return "", nil, err
		}
		if ref.Type() != plumbing.SymbolicReference {
			return name, ref, nil
		}
		name = ref.Target()
	}
}

// classify settles on a result without performing the write: New/NoChange
// need no ancestry check, FastForward/Forced/Rejected do for two direct
// references. A symbolic current value (reached only with Detach) holds
// no object id, so replacing it is classified New.
func (u *Update) classify(current, target *plumbing.Reference) (UpdateResult, error) {
	if current == nil || current.Type() == plumbing.SymbolicReference {
		return New, nil
	}
	if sameReferenceTarget(current, target) {
		return NoChange, nil
	}

	if current.Type() == plumbing.DirectReference && u.opener != nil {
		ok, err := isFirstParentAncestor(u.opener, current.Hash(), target.Hash())
		if err != nil {
			return NotAttempted, err
		}
		if ok {
			return FastForward, nil
		}
	}

	if u.force {
		return Forced, nil
	}
	return Rejected, nil
}

func sameReferenceTarget(a, b *plumbing.Reference) bool {
	if a.Type() != b.Type() {
		return false
	}
	if a.Type() == plumbing.SymbolicReference {
		return a.Target() == b.Target()
	}
	return a.Hash() == b.Hash()
}

// isFirstParentAncestor reports whether ancestor is reachable from
// descendant by repeatedly following parent[0] (§4.4 "new id is a
// descendant of old id (commit-only)"). A chain that reaches an object
// missing from the database is not a fast-forward.
func isFirstParentAncestor(open object.Opener, ancestor, descendant plumbing.ObjectID) (bool, error) {
	if ancestor == descendant {
		return true, nil
	}

	current := descendant
	for steps := 0; steps < maxFastForwardSteps; steps++ {
		loader, err := open(current)
		if errors.Is(err, plumbing.ErrObjectNotFound) {
			return false, nil
		}
		if err != nil {
			return false, err
		}
		if loader.Type() != plumbing.CommitObject {
			return false, nil
		}

		var c object.Commit
		if err := c.Decode(loader); err != nil {
			return false, err
		}
		if c.NumParents() == 0 {
			return false, nil
		}

		current = c.Parents[0]
		if current == ancestor {
			return true, nil
		}
	}

	return false, fmt.Errorf("%w: first-parent chain exceeds %d commits", plumbing.ErrCorruptObject, maxFastForwardSteps)
}

// appendReflog writes the configured reflog entry. Per §4.5, a reflog
// write must never fail a successful ref transition, so errors here are
// deliberately discarded.
func (u *Update) appendReflog(name plumbing.ReferenceName, current, target *plumbing.Reference, result UpdateResult) {
	if !u.reflogConfigured {
		return
	}

	var oldID plumbing.ObjectID
	if current != nil && current.Type() == plumbing.DirectReference {
		oldID = current.Hash()
	}

	msg := u.reflogMessage
	if u.reflogAppendNote {
		if note := resultReflogNote(result); note != "" {
			msg = msg + " (" + note + ")"
		}
	}

	_ = u.db.backend.AppendReflog(name, &plumbing.ReflogEntry{
		Old:     oldID,
		New:     target.Hash(),
		Name:    u.reflogWho.Name,
		Email:   u.reflogWho.Email,
		When:    u.reflogWho.When,
		Message: msg,
	})
}

func resultReflogNote(r UpdateResult) string {
	switch r {
	case New:
		return "new ref"
	case FastForward:
		return "fast-forward"
	case Forced:
		return "forced-update"
	default:
		return ""
	}
}

// RenameRef atomically renames from to to, retaining its current object
// id and, where possible, its reflog (§4.4 "Rename"). Renaming HEAD
// while it is detached (a direct reference) is rejected with
// plumbing.ErrDetachedHead: a detached HEAD has no branch identity to
// carry to the new name.
func (db *Database) RenameRef(from, to plumbing.ReferenceName) (UpdateResult, error) {
	if from == plumbing.HEAD {
		head, err := db.backend.Reference(plumbing.HEAD)
		if err != nil && !errors.Is(err, plumbing.ErrReferenceNotFound) {
			return IOFailure, err
		}
		if head != nil && head.Type() == plumbing.DirectReference {
			return IOFailure, plumbing.ErrDetachedHead
		}
	}

	db.writeMu.Lock()
	defer db.writeMu.Unlock()

	current, err := db.backend.Reference(from)
	if err != nil {
		if errors.Is(err, plumbing.ErrReferenceNotFound) {
			return Rejected, err
		}
		return IOFailure, err
	}
	if current.Type() != plumbing.DirectReference {
		return Rejected, fmt.Errorf("%w: cannot rename a symbolic reference", plumbing.ErrInvalidType)
	}

	if _, err := db.backend.Reference(to); err == nil {
		return Rejected, plumbing.ErrReferenceAlreadyExists
	} else if !errors.Is(err, plumbing.ErrReferenceNotFound) {
		return IOFailure, err
	}

	renamed := plumbing.NewHashReference(to, current.Hash())
	if err := db.backend.CheckAndSetReference(renamed, nil); err != nil {
		if errors.Is(err, plumbing.ErrReferenceHasChanged) || errors.Is(err, plumbing.ErrLockFailure) {
			return LockFailure, err
		}
		return IOFailure, err
	}

	if err := db.backend.RemoveReference(from); err != nil {
		return IOFailure, err
	}

	db.migrateReflog(from, to)

	return Renamed, nil
}

// migrateReflog copies from's reflog onto to, appends a "renamed from X
// to Y" entry, and drops the old log. Best-effort: a reflog-migration
// failure must not undo the rename that already succeeded (§4.5).
func (db *Database) migrateReflog(from, to plumbing.ReferenceName) {
	entries, err := db.backend.ReadReflog(from)
	if err != nil {
		return
	}

	for _, e := range entries {
		_ = db.backend.AppendReflog(to, e)
	}

	var last plumbing.ObjectID
	if n := len(entries); n > 0 {
		last = entries[n-1].New
	}
	_ = db.backend.AppendReflog(to, &plumbing.ReflogEntry{
		Old:     last,
		New:     last,
		Message: fmt.Sprintf("renamed from %s to %s", from, to),
	})

	_ = db.backend.RemoveReflog(from)
}
