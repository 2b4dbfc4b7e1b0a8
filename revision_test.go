package git_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	gogit "github.com/haugantoine/git"
	"github.com/haugantoine/git/config"
	"github.com/haugantoine/git/objectdb"
	"github.com/haugantoine/git/plumbing"
	"github.com/haugantoine/git/plumbing/filemode"
	"github.com/haugantoine/git/plumbing/object"
	"github.com/haugantoine/git/refdb"
	"github.com/haugantoine/git/storage/memory"
)

// buildRepo builds a small in-memory repository with two commits on
// main (c1 -> c2) and a tag pointing at c1, returning the Repository
// and both commit ids.
func buildRepo(t *testing.T) (*gogit.Repository, plumbing.ObjectID, plumbing.ObjectID) {
	t.Helper()

	objStore := memory.NewObjectStorage()
	refStore := memory.NewReferenceStorage()

	odb := objectdb.NewDatabase(objStore, nil)
	rdb := refdb.NewDatabase(refStore)

	blobID, err := odb.NewInserter().Write(plumbing.BlobObject, []byte("hello"))
	require.NoError(t, err)

	tree := object.Tree{Entries: []object.TreeEntry{
		{Name: "file.txt", Mode: filemode.Regular, Hash: blobID},
	}}
	treeObj := plumbing.NewMemoryObject()
	require.NoError(t, tree.Encode(treeObj))
	treeID, err := objStore.SetEncodedObject(treeObj)
	require.NoError(t, err)

	sig := object.Signature{Name: "Ada", Email: "ada@example.com", When: time.Unix(1000, 0)}

	c1 := object.Commit{Tree: treeID, Author: sig, Committer: sig, Message: "first\n"}
	c1Obj := plumbing.NewMemoryObject()
	require.NoError(t, c1.Encode(c1Obj))
	c1ID, err := objStore.SetEncodedObject(c1Obj)
	require.NoError(t, err)

	c2 := object.Commit{Tree: treeID, Parents: []plumbing.ObjectID{c1ID}, Author: sig, Committer: sig, Message: "second\n"}
	c2Obj := plumbing.NewMemoryObject()
	require.NoError(t, c2.Encode(c2Obj))
	c2ID, err := objStore.SetEncodedObject(c2Obj)
	require.NoError(t, err)

	require.NoError(t, refStore.SetReference(plumbing.NewHashReference("refs/heads/main", c2ID)))
	require.NoError(t, refStore.SetReference(plumbing.NewSymbolicReference(plumbing.HEAD, "refs/heads/main")))
	require.NoError(t, refStore.SetReference(plumbing.NewHashReference("refs/tags/v1", c1ID)))

	repo, err := gogit.Open(odb, rdb, config.New(), gogit.Options{})
	require.NoError(t, err)

	return repo, c1ID, c2ID
}

func TestResolveHEADAndBranch(t *testing.T) {
	repo, _, c2ID := buildRepo(t)

	id, err := repo.Resolve("HEAD")
	require.NoError(t, err)
	assert.Equal(t, c2ID, id)

	id, err = repo.Resolve("main")
	require.NoError(t, err)
	assert.Equal(t, c2ID, id)
}

func TestResolveFullHex(t *testing.T) {
	repo, c1ID, _ := buildRepo(t)

	id, err := repo.Resolve(c1ID.String())
	require.NoError(t, err)
	assert.Equal(t, c1ID, id)
}

func TestResolveParentAndAncestorSuffixes(t *testing.T) {
	repo, c1ID, _ := buildRepo(t)

	id, err := repo.Resolve("HEAD^")
	require.NoError(t, err)
	assert.Equal(t, c1ID, id)

	id, err = repo.Resolve("HEAD~1")
	require.NoError(t, err)
	assert.Equal(t, c1ID, id)

	id, err = repo.Resolve("HEAD~2")
	require.NoError(t, err)
	assert.True(t, id.IsZero(), "no grandparent exists")
}

func TestResolveCaretZeroAssertsCommit(t *testing.T) {
	repo, _, c2ID := buildRepo(t)

	id, err := repo.Resolve("HEAD^0")
	require.NoError(t, err)
	assert.Equal(t, c2ID, id)
}

func TestResolveCaretNTooLargeYieldsNull(t *testing.T) {
	repo, _, _ := buildRepo(t)

	id, err := repo.Resolve("HEAD^2")
	require.NoError(t, err)
	assert.True(t, id.IsZero())
}

func TestResolvePeelTypeMismatch(t *testing.T) {
	repo, _, c2ID := buildRepo(t)

	_, err := repo.Resolve("HEAD^{tree}")
	assert.ErrorIs(t, err, plumbing.ErrInvalidType)

	id, err := repo.Resolve("HEAD^{commit}")
	require.NoError(t, err)
	assert.Equal(t, c2ID, id)
}

func TestResolvePathSuffix(t *testing.T) {
	repo, _, _ := buildRepo(t)

	id, err := repo.Resolve("HEAD:file.txt")
	require.NoError(t, err)
	assert.False(t, id.IsZero())

	id, err = repo.Resolve("HEAD:missing.txt")
	require.NoError(t, err)
	assert.True(t, id.IsZero())
}

func TestResolveUnknownNameYieldsNullNotError(t *testing.T) {
	repo, _, _ := buildRepo(t)

	id, err := repo.Resolve("does-not-exist")
	require.NoError(t, err)
	assert.True(t, id.IsZero())
}

func TestResolveMalformedSuffixIsSyntaxError(t *testing.T) {
	repo, _, _ := buildRepo(t)

	_, err := repo.Resolve("HEAD@{upstream")
	assert.ErrorIs(t, err, plumbing.ErrRevisionSyntax)
}

func TestResolveTagExpandsBeforeHeads(t *testing.T) {
	repo, c1ID, c2ID := buildRepo(t)
	require.NoError(t, repo.Refs().UpdateRef(plumbing.NewHashReference("refs/heads/v1", c2ID), nil))

	id, err := repo.Resolve("v1")
	require.NoError(t, err)
	assert.Equal(t, c1ID, id)
}
