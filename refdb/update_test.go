package refdb_test

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/haugantoine/git/objectdb"
	"github.com/haugantoine/git/plumbing"
	"github.com/haugantoine/git/plumbing/object"
	"github.com/haugantoine/git/refdb"
	"github.com/haugantoine/git/storage/memory"
)

// newCommitChain writes n commits into odb, each one the first-parent
// child of the last, and returns their ids oldest first.
func newCommitChain(t *testing.T, odb *objectdb.Database, n int) []plumbing.ObjectID {
	t.Helper()

	ids := make([]plumbing.ObjectID, 0, n)
	var parent *plumbing.ObjectID
	for i := 0; i < n; i++ {
		c := object.Commit{
			Message: "commit",
		}
		if parent != nil {
			c.Parents = []plumbing.ObjectID{*parent}
		}

		obj := plumbing.NewMemoryObject()
		require.NoError(t, c.Encode(obj))

		ins := odb.NewInserter()
		id, err := ins.Write(obj.Type(), obj.Bytes())
		require.NoError(t, err)
		require.NoError(t, ins.Close())

		ids = append(ids, id)
		parent = &id
	}
	return ids
}

func openerFor(odb *objectdb.Database) object.Opener {
	return func(id plumbing.ObjectID) (plumbing.ObjectLoader, error) {
		return odb.Get(plumbing.AnyObject, id)
	}
}

func TestUpdateCommitCreatesNewRef(t *testing.T) {
	backend := memory.NewReferenceStorage()
	db := refdb.NewDatabase(backend)

	id := plumbing.HashObject(plumbing.BlobObject, []byte("x"))
	result, err := db.NewUpdate("refs/heads/main").SetNew(id).Commit()
	require.NoError(t, err)
	assert.Equal(t, refdb.New, result)

	ref, err := backend.Reference("refs/heads/main")
	require.NoError(t, err)
	assert.Equal(t, id, ref.Hash())
}

func TestUpdateCommitNoChange(t *testing.T) {
	backend := memory.NewReferenceStorage()
	db := refdb.NewDatabase(backend)

	id := plumbing.HashObject(plumbing.BlobObject, []byte("x"))
	require.NoError(t, backend.SetReference(plumbing.NewHashReference("refs/heads/main", id)))

	result, err := db.NewUpdate("refs/heads/main").SetNew(id).Commit()
	require.NoError(t, err)
	assert.Equal(t, refdb.NoChange, result)
}

func TestUpdateCommitFastForward(t *testing.T) {
	odb := objectdb.NewDatabase(memory.NewObjectStorage(), nil)
	ids := newCommitChain(t, odb, 3)

	backend := memory.NewReferenceStorage()
	db := refdb.NewDatabase(backend)
	require.NoError(t, backend.SetReference(plumbing.NewHashReference("refs/heads/main", ids[0])))

	result, err := db.NewUpdate("refs/heads/main").
		SetNew(ids[2]).
		WithOpener(openerFor(odb)).
		Commit()
	require.NoError(t, err)
	assert.Equal(t, refdb.FastForward, result)
}

func TestUpdateCommitRejectsNonFastForwardWithoutForce(t *testing.T) {
	odb := objectdb.NewDatabase(memory.NewObjectStorage(), nil)
	ids := newCommitChain(t, odb, 2)

	backend := memory.NewReferenceStorage()
	db := refdb.NewDatabase(backend)
	require.NoError(t, backend.SetReference(plumbing.NewHashReference("refs/heads/main", ids[1])))

	unrelated := plumbing.HashObject(plumbing.BlobObject, []byte("unrelated"))
	result, err := db.NewUpdate("refs/heads/main").
		SetNew(unrelated).
		WithOpener(openerFor(odb)).
		Commit()
	assert.Error(t, err)
	assert.Equal(t, refdb.Rejected, result)

	current, err := backend.Reference("refs/heads/main")
	require.NoError(t, err)
	assert.Equal(t, ids[1], current.Hash())
}

func TestUpdateCommitForcedAllowsNonFastForward(t *testing.T) {
	odb := objectdb.NewDatabase(memory.NewObjectStorage(), nil)
	ids := newCommitChain(t, odb, 2)

	backend := memory.NewReferenceStorage()
	db := refdb.NewDatabase(backend)
	require.NoError(t, backend.SetReference(plumbing.NewHashReference("refs/heads/main", ids[1])))

	unrelated := plumbing.HashObject(plumbing.BlobObject, []byte("unrelated"))
	result, err := db.NewUpdate("refs/heads/main").
		SetNew(unrelated).
		WithOpener(openerFor(odb)).
		ForceUpdate(true).
		Commit()
	require.NoError(t, err)
	assert.Equal(t, refdb.Forced, result)
}

func TestUpdateCommitExpectOldIDMismatch(t *testing.T) {
	backend := memory.NewReferenceStorage()
	db := refdb.NewDatabase(backend)

	staleID := plumbing.HashObject(plumbing.BlobObject, []byte("stale"))
	require.NoError(t, backend.SetReference(plumbing.NewHashReference("refs/heads/main", staleID)))

	newID := plumbing.HashObject(plumbing.BlobObject, []byte("new"))
	wrongExpected := plumbing.HashObject(plumbing.BlobObject, []byte("wrong"))

	result, err := db.NewUpdate("refs/heads/main").
		SetNew(newID).
		ExpectOldID(wrongExpected).
		Commit()
	assert.ErrorIs(t, err, plumbing.ErrReferenceHasChanged)
	assert.Equal(t, refdb.LockFailure, result)
}

func TestUpdateCommitDetachWritesSymbolicRefItself(t *testing.T) {
	backend := memory.NewReferenceStorage()
	db := refdb.NewDatabase(backend)

	require.NoError(t, backend.SetReference(plumbing.NewSymbolicReference(plumbing.HEAD, "refs/heads/main")))

	id := plumbing.HashObject(plumbing.BlobObject, []byte("x"))
	result, err := db.NewUpdate(plumbing.HEAD).Detach().SetNew(id).Commit()
	require.NoError(t, err)
	assert.Equal(t, refdb.New, result)

	head, err := backend.Reference(plumbing.HEAD)
	require.NoError(t, err)
	assert.Equal(t, plumbing.DirectReference, head.Type())
	assert.Equal(t, id, head.Hash())

	_, err = backend.Reference("refs/heads/main")
	assert.ErrorIs(t, err, plumbing.ErrReferenceNotFound)
}

func TestUpdateCommitFollowsSymbolicRefWithoutDetach(t *testing.T) {
	backend := memory.NewReferenceStorage()
	db := refdb.NewDatabase(backend)

	require.NoError(t, backend.SetReference(plumbing.NewSymbolicReference(plumbing.HEAD, "refs/heads/main")))

	id := plumbing.HashObject(plumbing.BlobObject, []byte("x"))
	result, err := db.NewUpdate(plumbing.HEAD).SetNew(id).Commit()
	require.NoError(t, err)
	assert.Equal(t, refdb.New, result)

	main, err := backend.Reference("refs/heads/main")
	require.NoError(t, err)
	assert.Equal(t, id, main.Hash())

	head, err := backend.Reference(plumbing.HEAD)
	require.NoError(t, err)
	assert.Equal(t, plumbing.SymbolicReference, head.Type())
}

// TestUpdateCommitConcurrentWritersExactlyOneWins exercises P6: N
// concurrent Update.Commit calls racing to move the same ref from a
// shared starting point, each with ExpectOldID pinned to that starting
// value. Exactly one should observe the precondition still holds; the
// rest must fail with LockFailure, never silently overwrite each other.
func TestUpdateCommitConcurrentWritersExactlyOneWins(t *testing.T) {
	backend := memory.NewReferenceStorage()
	db := refdb.NewDatabase(backend)

	startID := plumbing.HashObject(plumbing.BlobObject, []byte("start"))
	require.NoError(t, backend.SetReference(plumbing.NewHashReference("refs/heads/main", startID)))

	const n = 16
	results := make([]refdb.UpdateResult, n)

	var wg sync.WaitGroup
	wg.Add(n)
	for i := 0; i < n; i++ {
		i := i
		go func() {
			defer wg.Done()
			newID := plumbing.HashObject(plumbing.BlobObject, []byte{byte(i)})
			result, _ := db.NewUpdate("refs/heads/main").
				SetNew(newID).
				ExpectOldID(startID).
				ForceUpdate(true).
				Commit()
			results[i] = result
		}()
	}
	wg.Wait()

	wins := 0
	for _, r := range results {
		switch r {
		case refdb.New, refdb.FastForward, refdb.Forced, refdb.NoChange:
			wins++
		case refdb.LockFailure:
			// expected for every writer that lost the race
		default:
			t.Fatalf("unexpected result %s", r)
		}
	}
	assert.Equal(t, 1, wins)
}

func TestRenameRefMovesReflogAndTarget(t *testing.T) {
	backend := memory.NewReferenceStorage()
	db := refdb.NewDatabase(backend)

	id := plumbing.HashObject(plumbing.BlobObject, []byte("x"))
	require.NoError(t, backend.SetReference(plumbing.NewHashReference("refs/heads/old", id)))
	require.NoError(t, backend.AppendReflog("refs/heads/old", &plumbing.ReflogEntry{New: id, Message: "branch: created"}))

	result, err := db.RenameRef("refs/heads/old", "refs/heads/new")
	require.NoError(t, err)
	assert.Equal(t, refdb.Renamed, result)

	_, err = backend.Reference("refs/heads/old")
	assert.ErrorIs(t, err, plumbing.ErrReferenceNotFound)

	ref, err := backend.Reference("refs/heads/new")
	require.NoError(t, err)
	assert.Equal(t, id, ref.Hash())

	entries, err := backend.ReadReflog("refs/heads/new")
	require.NoError(t, err)
	assert.NotEmpty(t, entries)
}

func TestRenameRefRejectsExistingTarget(t *testing.T) {
	backend := memory.NewReferenceStorage()
	db := refdb.NewDatabase(backend)

	id := plumbing.HashObject(plumbing.BlobObject, []byte("x"))
	other := plumbing.HashObject(plumbing.BlobObject, []byte("y"))
	require.NoError(t, backend.SetReference(plumbing.NewHashReference("refs/heads/old", id)))
	require.NoError(t, backend.SetReference(plumbing.NewHashReference("refs/heads/new", other)))

	_, err := db.RenameRef("refs/heads/old", "refs/heads/new")
	assert.ErrorIs(t, err, plumbing.ErrReferenceAlreadyExists)
}

// TestRenameRefRejectsDetachedHead exercises S6: renaming HEAD while it
// is a direct (detached) reference has no branch identity to carry to
// the new name.
func TestRenameRefRejectsDetachedHead(t *testing.T) {
	backend := memory.NewReferenceStorage()
	db := refdb.NewDatabase(backend)

	id := plumbing.HashObject(plumbing.BlobObject, []byte("x"))
	require.NoError(t, backend.SetReference(plumbing.NewHashReference(plumbing.HEAD, id)))

	_, err := db.RenameRef(plumbing.HEAD, "refs/heads/detached-branch")
	assert.ErrorIs(t, err, plumbing.ErrDetachedHead)
}

func TestRenameRefAllowsHEADWhileSymbolic(t *testing.T) {
	backend := memory.NewReferenceStorage()
	db := refdb.NewDatabase(backend)

	id := plumbing.HashObject(plumbing.BlobObject, []byte("x"))
	require.NoError(t, backend.SetReference(plumbing.NewSymbolicReference(plumbing.HEAD, "refs/heads/old")))
	require.NoError(t, backend.SetReference(plumbing.NewHashReference("refs/heads/old", id)))

	result, err := db.RenameRef("refs/heads/old", "refs/heads/new")
	require.NoError(t, err)
	assert.Equal(t, refdb.Renamed, result)
}
