package objectdb_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/haugantoine/git/objectdb"
	"github.com/haugantoine/git/plumbing"
	"github.com/haugantoine/git/storage/memory"
)

func TestDatabaseGetAndHas(t *testing.T) {
	backend := memory.NewObjectStorage()
	db := objectdb.NewDatabase(backend, nil)

	ins := db.NewInserter()
	id, err := ins.Write(plumbing.BlobObject, []byte("hello"))
	require.NoError(t, err)
	require.NoError(t, ins.Close())

	assert.True(t, db.Has(id))

	obj, err := db.Get(plumbing.BlobObject, id)
	require.NoError(t, err)
	assert.Equal(t, plumbing.BlobObject, obj.Type())

	_, err = db.Get(plumbing.TreeObject, id)
	assert.ErrorIs(t, err, plumbing.ErrIncorrectType)
}

func TestDatabaseMissingIsNotFound(t *testing.T) {
	db := objectdb.NewDatabase(memory.NewObjectStorage(), nil)

	missing := plumbing.ObjectID{}
	assert.False(t, db.Has(missing))

	_, err := db.Get(plumbing.AnyObject, missing)
	assert.ErrorIs(t, err, plumbing.ErrObjectNotFound)
}

func TestDatabaseAlternates(t *testing.T) {
	alt := memory.NewObjectStorage()
	altDB := objectdb.NewDatabase(alt, nil)

	altIns := altDB.NewInserter()
	id, err := altIns.Write(plumbing.BlobObject, []byte("from alternate"))
	require.NoError(t, err)

	primary := memory.NewObjectStorage()
	opened := false
	db := objectdb.NewDatabase(primary, func(path string) (objectdb.Backend, error) {
		opened = true
		assert.Equal(t, "../other.git/objects", path)
		return alt, nil
	})

	require.NoError(t, db.AddAlternate("../other.git/objects"))

	assert.True(t, db.Has(id))
	assert.True(t, opened)

	obj, err := db.Get(plumbing.AnyObject, id)
	require.NoError(t, err)
	assert.Equal(t, []byte("from alternate"), obj.(*plumbing.MemoryObject).Bytes())
}

func TestDatabaseNewReader(t *testing.T) {
	backend := memory.NewObjectStorage()
	db := objectdb.NewDatabase(backend, nil)

	ins := db.NewInserter()
	id, err := ins.Write(plumbing.BlobObject, []byte("streamed"))
	require.NoError(t, err)

	r, err := db.NewReader(id)
	require.NoError(t, err)
	defer r.Close()

	buf := make([]byte, 8)
	n, err := r.Read(buf)
	require.NoError(t, err)
	assert.Equal(t, "streamed", string(buf[:n]))
}
