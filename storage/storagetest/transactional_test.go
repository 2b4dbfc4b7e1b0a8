package storagetest

import (
	"testing"

	"github.com/stretchr/testify/suite"

	"github.com/haugantoine/git/storage/memory"
	"github.com/haugantoine/git/storage/transactional"
)

// TransactionalStorageSuite runs the conformance suite against the
// staging wrapper itself, with a memory backend on both sides of the
// base/temporal split — exercising the demux path (object reads check
// base and fall back to temporal; reference reads check temporal and
// fall back to base) rather than committing into durable storage.
type TransactionalStorageSuite struct {
	BaseStorageSuite
}

func (s *TransactionalStorageSuite) SetupTest() {
	s.Storer = transactional.NewStorage(memory.NewStorage(), memory.NewStorage())
	s.Reset()
}

func TestTransactionalStorageSuite(t *testing.T) {
	suite.Run(t, new(TransactionalStorageSuite))
}
