package storagetest

import (
	"testing"

	"github.com/go-git/go-billy/v5/memfs"
	"github.com/stretchr/testify/suite"

	"github.com/haugantoine/git/storage/filesystem"
)

// FilesystemStorageSuite runs the same conformance suite against the
// on-disk backend, backed by an in-memory billy filesystem so the
// suite stays fast and leaves nothing on the real disk.
type FilesystemStorageSuite struct {
	BaseStorageSuite
}

func (s *FilesystemStorageSuite) SetupTest() {
	s.Storer = filesystem.NewStorage(memfs.New(), nil)
	s.Reset()
}

func TestFilesystemStorageSuite(t *testing.T) {
	suite.Run(t, new(FilesystemStorageSuite))
}
