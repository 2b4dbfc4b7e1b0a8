package refdb_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/haugantoine/git/objectdb"
	"github.com/haugantoine/git/plumbing"
	"github.com/haugantoine/git/plumbing/object"
	"github.com/haugantoine/git/refdb"
	"github.com/haugantoine/git/storage/memory"
)

func TestApplyBatchRejectsMissingObject(t *testing.T) {
	odb := objectdb.NewDatabase(memory.NewObjectStorage(), nil)
	backend := memory.NewReferenceStorage()
	db := refdb.NewDatabase(backend)

	missing := plumbing.HashObject(plumbing.BlobObject, []byte("never written"))

	err := db.ApplyBatch(refdb.BatchUpdate{
		Commands: []refdb.Command{
			{Name: "refs/heads/main", New: plumbing.NewHashReference("refs/heads/main", missing)},
		},
	}, odb)
	assert.ErrorIs(t, err, refdb.ErrRejectedMissingObject)

	_, err = backend.Reference("refs/heads/main")
	assert.ErrorIs(t, err, plumbing.ErrReferenceNotFound)
}

func TestApplyBatchAllowsStoredObject(t *testing.T) {
	odb := objectdb.NewDatabase(memory.NewObjectStorage(), nil)
	ins := odb.NewInserter()
	id, err := ins.Write(plumbing.BlobObject, []byte("hello"))
	require.NoError(t, err)
	require.NoError(t, ins.Close())

	backend := memory.NewReferenceStorage()
	db := refdb.NewDatabase(backend)

	err = db.ApplyBatch(refdb.BatchUpdate{
		Commands: []refdb.Command{
			{Name: "refs/heads/main", New: plumbing.NewHashReference("refs/heads/main", id)},
		},
	}, odb)
	require.NoError(t, err)

	ref, err := backend.Reference("refs/heads/main")
	require.NoError(t, err)
	assert.Equal(t, id, ref.Hash())
}

func TestApplyBatchPeelsAnnotatedTagTarget(t *testing.T) {
	store := memory.NewObjectStorage()
	odb := objectdb.NewDatabase(store, nil)

	ins := odb.NewInserter()
	blobID, err := ins.Write(plumbing.BlobObject, []byte("payload"))
	require.NoError(t, err)
	require.NoError(t, ins.Close())

	tag := object.Tag{
		Object:     blobID,
		ObjectType: plumbing.BlobObject,
		Name:       "v1",
		Message:    "release v1",
	}
	tagObj := plumbing.NewMemoryObject()
	require.NoError(t, tag.Encode(tagObj))

	ins = odb.NewInserter()
	tagID, err := ins.Write(tagObj.Type(), tagObj.Bytes())
	require.NoError(t, err)
	require.NoError(t, ins.Close())

	backend := memory.NewReferenceStorage()
	db := refdb.NewDatabase(backend)

	err = db.ApplyBatch(refdb.BatchUpdate{
		Commands: []refdb.Command{
			{Name: "refs/tags/v1", New: plumbing.NewHashReference("refs/tags/v1", tagID)},
		},
	}, odb)
	require.NoError(t, err)

	ref, err := backend.Reference("refs/tags/v1")
	require.NoError(t, err)
	assert.Equal(t, tagID, ref.Hash())
	assert.True(t, ref.IsPeeled())
	assert.Equal(t, blobID, ref.PeeledHash())
}

func TestApplyBatchRejectsDuplicateRefName(t *testing.T) {
	backend := memory.NewReferenceStorage()
	db := refdb.NewDatabase(backend)

	id1 := plumbing.HashObject(plumbing.BlobObject, []byte("1"))
	id2 := plumbing.HashObject(plumbing.BlobObject, []byte("2"))

	err := db.ApplyBatch(refdb.BatchUpdate{
		Commands: []refdb.Command{
			{Name: "refs/heads/main", New: plumbing.NewHashReference("refs/heads/main", id1)},
			{Name: "refs/heads/main", New: plumbing.NewHashReference("refs/heads/main", id2)},
		},
	}, nil)
	assert.ErrorIs(t, err, refdb.ErrDuplicateRefInBatch)
}
