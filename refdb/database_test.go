package refdb_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/haugantoine/git/plumbing"
	"github.com/haugantoine/git/refdb"
	"github.com/haugantoine/git/storage/memory"
)

func TestFindRefExpansionOrder(t *testing.T) {
	backend := memory.NewReferenceStorage()
	db := refdb.NewDatabase(backend)

	id := plumbing.HashObject(plumbing.BlobObject, []byte("x"))
	tagRef := plumbing.NewHashReference("refs/tags/v1", id)
	require.NoError(t, backend.SetReference(tagRef))

	ref, err := db.FindRef("v1")
	require.NoError(t, err)
	assert.Equal(t, plumbing.ReferenceName("refs/tags/v1"), ref.Name())

	branchID := plumbing.HashObject(plumbing.BlobObject, []byte("y"))
	require.NoError(t, backend.SetReference(plumbing.NewHashReference("refs/heads/v1", branchID)))

	// refs/tags/<name> still wins over refs/heads/<name>.
	ref, err = db.FindRef("v1")
	require.NoError(t, err)
	assert.Equal(t, plumbing.ReferenceName("refs/tags/v1"), ref.Name())
}

func TestFindRefNotFound(t *testing.T) {
	db := refdb.NewDatabase(memory.NewReferenceStorage())
	_, err := db.FindRef("nope")
	assert.ErrorIs(t, err, plumbing.ErrReferenceNotFound)
}

func TestApplyBatchAtomicRollsBackOnFailure(t *testing.T) {
	backend := memory.NewReferenceStorage()
	db := refdb.NewDatabase(backend)

	id1 := plumbing.HashObject(plumbing.BlobObject, []byte("1"))
	id2 := plumbing.HashObject(plumbing.BlobObject, []byte("2"))
	staleID := plumbing.HashObject(plumbing.BlobObject, []byte("stale"))

	require.NoError(t, backend.SetReference(plumbing.NewHashReference("refs/heads/a", staleID)))

	err := db.ApplyBatch(refdb.BatchUpdate{
		Atomic: true,
		Commands: []refdb.Command{
			{Name: "refs/heads/new", New: plumbing.NewHashReference("refs/heads/new", id1)},
			{
				Name: "refs/heads/a",
				Old:  plumbing.NewHashReference("refs/heads/a", id2), // wrong expected value
				New:  plumbing.NewHashReference("refs/heads/a", id1),
			},
		},
	}, nil)
	assert.Error(t, err)

	// Neither command should have taken effect.
	_, err = backend.Reference("refs/heads/new")
	assert.ErrorIs(t, err, plumbing.ErrReferenceNotFound)

	current, err := backend.Reference("refs/heads/a")
	require.NoError(t, err)
	assert.Equal(t, staleID, current.Hash())
}

func TestApplyBatchAtomicCommitsAllOnSuccess(t *testing.T) {
	backend := memory.NewReferenceStorage()
	db := refdb.NewDatabase(backend)

	id1 := plumbing.HashObject(plumbing.BlobObject, []byte("1"))
	id2 := plumbing.HashObject(plumbing.BlobObject, []byte("2"))

	err := db.ApplyBatch(refdb.BatchUpdate{
		Atomic: true,
		Commands: []refdb.Command{
			{Name: "refs/heads/a", New: plumbing.NewHashReference("refs/heads/a", id1)},
			{Name: "refs/heads/b", New: plumbing.NewHashReference("refs/heads/b", id2)},
		},
	}, nil)
	require.NoError(t, err)

	a, err := backend.Reference("refs/heads/a")
	require.NoError(t, err)
	assert.Equal(t, id1, a.Hash())

	b, err := backend.Reference("refs/heads/b")
	require.NoError(t, err)
	assert.Equal(t, id2, b.Hash())
}
