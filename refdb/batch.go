package refdb

import (
	"errors"
	"fmt"

	"github.com/emirpasic/gods/sets/hashset"

	"github.com/haugantoine/git/plumbing"
	"github.com/haugantoine/git/plumbing/object"
	"github.com/haugantoine/git/storage/memory"
	"github.com/haugantoine/git/storage/transactional"
)

// ErrRejectedMissingObject is returned for a batch command whose new
// target does not name an object present in the object database (§4.4
// batch validation: "missing → REJECTED_MISSING_OBJECT").
var ErrRejectedMissingObject = errors.New("refdb: new target does not name a stored object")

// ErrDuplicateRefInBatch is returned when two commands in the same
// BatchUpdate target the same reference name, the way git's own
// receive-pack rejects two commands for one ref in a single push.
var ErrDuplicateRefInBatch = errors.New("refdb: duplicate reference name in batch")

// ObjectDatabase is the narrow view into an object database that batch
// validation needs: confirming a command's new target exists, and
// peeling an annotated tag down to the object its ref record should
// cache (§4.4 batch validation). *objectdb.Database satisfies this
// directly.
type ObjectDatabase interface {
	Has(id plumbing.ObjectID) bool
	Get(t plumbing.ObjectType, id plumbing.ObjectID) (plumbing.EncodedObject, error)
}

// Command is one entry of a BatchUpdate: set New (nil target id is a
// deletion) provided the reference's current value matches Old (nil
// meaning it must not already exist).
type Command struct {
	Name plumbing.ReferenceName
	Old  *plumbing.Reference
	New  *plumbing.Reference // nil means: delete Name
}

// BatchUpdate is a set of reference changes applied together.
type BatchUpdate struct {
	Commands []Command
	// Atomic requires every command to succeed or none to take effect
	// (§4.4 "atomic batch reference update"). Non-atomic applies each
	// command independently and reports the first failure, leaving
	// every successful command in place, matching git's own
	// update-ref --no-atomic behaviour.
	Atomic bool
}

// ApplyBatch runs batch against db. odb, when non-nil, is consulted to
// reject any command whose new target isn't a stored object and to peel
// annotated-tag targets before they're recorded; a nil odb skips both
// checks. In atomic mode every command is staged against a scratch
// in-memory overlay (storage/transactional) and validated before
// anything is written to the backing store; a single database-wide
// write lock (db.writeMu) ensures no other batch interleaves between
// validation and commit.
func (db *Database) ApplyBatch(batch BatchUpdate, odb ObjectDatabase) error {
	if err := rejectDuplicateNames(batch.Commands); err != nil {
		return err
	}

	commands, err := prepareCommands(batch.Commands, odb)
	if err != nil {
		return err
	}

	if !batch.Atomic {
		return db.applyNonAtomic(commands)
	}

	db.writeMu.Lock()
	defer db.writeMu.Unlock()

	temporal := memory.NewReferenceStorage()
	staged := transactional.NewReferenceStorage(db.backend, temporal)

	for _, cmd := range commands {
		if err := applyCommand(staged, cmd); err != nil {
			return err
		}
	}

	return staged.Commit()
}

func rejectDuplicateNames(commands []Command) error {
	seen := hashset.New()
	for _, cmd := range commands {
		key := string(cmd.Name)
		if seen.Contains(key) {
			return fmt.Errorf("%w: %s", ErrDuplicateRefInBatch, cmd.Name)
		}
		seen.Add(key)
	}
	return nil
}

// prepareCommands validates every command's new target against odb and
// peels annotated-tag targets, returning a copy of commands ready to
// apply. A nil odb (or a deletion command) is passed through unchanged.
func prepareCommands(commands []Command, odb ObjectDatabase) ([]Command, error) {
	out := make([]Command, len(commands))
	copy(out, commands)

	if odb == nil {
		return out, nil
	}

	for i, cmd := range out {
		if cmd.New == nil {
			continue
		}

		if !odb.Has(cmd.New.Hash()) {
			return nil, fmt.Errorf("%w: %s -> %s", ErrRejectedMissingObject, cmd.Name, cmd.New.Hash())
		}

		peeled, err := peelTagTarget(odb, cmd.New.Hash())
		if err != nil {
			return nil, err
		}
		if peeled != nil {
			out[i].New = cmd.New.WithPeeled(*peeled)
		}
	}
	return out, nil
}

// peelTagTarget returns the final non-tag object id that id peels to,
// or nil if id does not name an annotated tag at all.
func peelTagTarget(odb ObjectDatabase, id plumbing.ObjectID) (*plumbing.ObjectID, error) {
	obj, err := odb.Get(plumbing.AnyObject, id)
	if err != nil {
		return nil, err
	}
	if obj.Type() != plumbing.TagObject {
		return nil, nil
	}

	open := func(oid plumbing.ObjectID) (plumbing.ObjectLoader, error) {
		return odb.Get(plumbing.AnyObject, oid)
	}
	peeled, _, err := object.Peel(open, id, plumbing.TagObject)
	if err != nil {
		return nil, err
	}
	return &peeled, nil
}

func (db *Database) applyNonAtomic(commands []Command) error {
	var firstErr error
	for _, cmd := range commands {
		if err := applyCommand(db.backend, cmd); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// commandTarget is satisfied by both Database.backend and the
// transactional staging overlay used in atomic mode.
type commandTarget interface {
	CheckAndSetReference(new, old *plumbing.Reference) error
	Reference(plumbing.ReferenceName) (*plumbing.Reference, error)
	RemoveReference(plumbing.ReferenceName) error
}

func applyCommand(target commandTarget, cmd Command) error {
	if cmd.New == nil {
		if cmd.Old != nil {
			current, err := target.Reference(cmd.Name)
			if err != nil {
				return err
			}
			if current.Hash() != cmd.Old.Hash() {
				return plumbing.ErrReferenceHasChanged
			}
		}
		return target.RemoveReference(cmd.Name)
	}
	return target.CheckAndSetReference(cmd.New, cmd.Old)
}
