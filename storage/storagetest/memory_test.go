package storagetest

import (
	"testing"

	"github.com/stretchr/testify/suite"

	"github.com/haugantoine/git/storage/memory"
)

type MemoryStorageSuite struct {
	BaseStorageSuite
}

func (s *MemoryStorageSuite) SetupTest() {
	s.Storer = memory.NewStorage()
	s.Reset()
}

func TestMemoryStorageSuite(t *testing.T) {
	suite.Run(t, new(MemoryStorageSuite))
}
