package git

import (
	"testing"

	"github.com/go-git/go-billy/v5/memfs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/haugantoine/git/config"
	"github.com/haugantoine/git/objectdb"
	"github.com/haugantoine/git/plumbing"
	"github.com/haugantoine/git/plumbing/object"
	"github.com/haugantoine/git/refdb"
	"github.com/haugantoine/git/storage/memory"
)

func newTestRepository(t *testing.T) *Repository {
	t.Helper()

	odb := objectdb.NewDatabase(memory.NewObjectStorage(), nil)
	rdb := refdb.NewDatabase(memory.NewReferenceStorage())

	repo, err := Open(odb, rdb, config.New(), Options{})
	require.NoError(t, err)
	return repo
}

func TestUseCountRetainAndClose(t *testing.T) {
	repo := newTestRepository(t)

	repo.Retain()
	require.NoError(t, repo.Close())
	require.NoError(t, repo.Close())
	assert.ErrorIs(t, repo.Close(), ErrRepositoryClosed)
	assert.ErrorIs(t, repo.checkOpen(), ErrRepositoryClosed)
}

func TestGetBranchDetachedHead(t *testing.T) {
	repo := newTestRepository(t)

	id := plumbing.HashObject(plumbing.BlobObject, []byte("x"))
	require.NoError(t, repo.refs.UpdateRef(plumbing.NewHashReference(plumbing.HEAD, id), nil))

	_, err := repo.getBranch()
	assert.ErrorIs(t, err, plumbing.ErrDetachedHead)
}

func TestGetBranchSymbolic(t *testing.T) {
	repo := newTestRepository(t)

	require.NoError(t, repo.refs.UpdateRef(plumbing.NewSymbolicReference(plumbing.HEAD, "refs/heads/main"), nil))

	short, err := repo.getBranch()
	require.NoError(t, err)
	assert.Equal(t, "main", short)
}

func TestGetTagsFiltersNonTagRefs(t *testing.T) {
	repo := newTestRepository(t)

	id := plumbing.HashObject(plumbing.BlobObject, []byte("x"))
	require.NoError(t, repo.refs.UpdateRef(plumbing.NewHashReference("refs/heads/main", id), nil))
	require.NoError(t, repo.refs.UpdateRef(plumbing.NewHashReference("refs/tags/v1", id), nil))

	tags, err := repo.getTags()
	require.NoError(t, err)
	require.Len(t, tags, 1)
	assert.Equal(t, plumbing.ReferenceName("refs/tags/v1"), tags[0].Name())
}

func TestScalarGitDirFilesRoundTrip(t *testing.T) {
	repo := newTestRepository(t)
	repo.gitDir = memfs.New()

	id := plumbing.HashObject(plumbing.BlobObject, []byte("merge"))
	require.NoError(t, repo.SetMergeHead(id))

	got, ok, err := repo.MergeHead()
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, id, got)

	require.NoError(t, repo.RemoveMergeHead())
	_, ok, err = repo.MergeHead()
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestRepositoryStateMarkers(t *testing.T) {
	repo := newTestRepository(t)
	repo.gitDir = memfs.New()

	state, err := repo.GetRepositoryState()
	require.NoError(t, err)
	assert.Equal(t, StateSafe, state)

	id := plumbing.HashObject(plumbing.BlobObject, []byte("merge"))
	require.NoError(t, repo.SetMergeHead(id))

	state, err = repo.GetRepositoryState()
	require.NoError(t, err)
	assert.Equal(t, StateMerging, state)
}

func TestRepositoryStateBare(t *testing.T) {
	repo := newTestRepository(t)
	repo.cfg.Core.IsBare = true

	state, err := repo.GetRepositoryState()
	require.NoError(t, err)
	assert.Equal(t, StateBare, state)
}

func TestBranchReferencesAndTagsWrappers(t *testing.T) {
	repo := newTestRepository(t)

	require.NoError(t, repo.refs.UpdateRef(plumbing.NewSymbolicReference(plumbing.HEAD, "refs/heads/main"), nil))

	id := plumbing.HashObject(plumbing.BlobObject, []byte("x"))
	require.NoError(t, repo.refs.UpdateRef(plumbing.NewHashReference("refs/heads/main", id), nil))
	require.NoError(t, repo.refs.UpdateRef(plumbing.NewHashReference("refs/tags/v1", id), nil))

	branch, err := repo.Branch()
	require.NoError(t, err)
	assert.Equal(t, "main", branch)

	refs, err := repo.References()
	require.NoError(t, err)
	assert.Len(t, refs, 3) // HEAD, refs/heads/main, refs/tags/v1

	tags, err := repo.Tags()
	require.NoError(t, err)
	require.Len(t, tags, 1)
	assert.Equal(t, plumbing.ReferenceName("refs/tags/v1"), tags[0].Name())
}

func TestReferencesByPeeledIDResolvesAnnotatedTags(t *testing.T) {
	odb := objectdb.NewDatabase(memory.NewObjectStorage(), nil)
	rdb := refdb.NewDatabase(memory.NewReferenceStorage())

	blobID, err := odb.NewInserter().Write(plumbing.BlobObject, []byte("hello"))
	require.NoError(t, err)

	tag := object.Tag{
		Object:     blobID,
		ObjectType: plumbing.BlobObject,
		Name:       "v1",
		Tagger:     object.Signature{Name: "Ada", Email: "ada@example.com"},
		Message:    "release\n",
	}
	tagObj := plumbing.NewMemoryObject()
	require.NoError(t, tag.Encode(tagObj))
	tagID, err := odb.NewInserter().Write(plumbing.TagObject, tagObj.Bytes())
	require.NoError(t, err)

	require.NoError(t, rdb.UpdateRef(plumbing.NewHashReference("refs/tags/v1", tagID), nil))
	require.NoError(t, rdb.UpdateRef(plumbing.NewHashReference("refs/heads/main", blobID), nil))

	repo, err := Open(odb, rdb, config.New(), Options{})
	require.NoError(t, err)

	grouped, err := repo.ReferencesByPeeledID()
	require.NoError(t, err)

	byBlob := grouped[blobID]
	require.Len(t, byBlob, 2)

	var names []string
	for _, ref := range byBlob {
		names = append(names, ref.Name().String())
	}
	assert.ElementsMatch(t, []string{"refs/tags/v1", "refs/heads/main"}, names)
}
