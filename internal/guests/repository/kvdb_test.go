package repository

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/suite"

	"guest_registry_backend/platform/kvdb"
)

type KVRepoSuite struct {
	guestStoreSuite
}

func TestKVRepoSuite(t *testing.T) {
	suite.Run(t, new(KVRepoSuite))
}

func (s *KVRepoSuite) SetupTest() {
	db, err := kvdb.Open(filepath.Join(s.T().TempDir(), "guests.db"))
	s.Require().NoError(err)
	s.T().Cleanup(func() { _ = db.Close() })

	repo, err := NewKVRepo(db)
	s.Require().NoError(err)
	s.repo = repo
}

func (s *KVRepoSuite) TestReopenKeepsData() {
	path := filepath.Join(s.T().TempDir(), "reopen.db")

	db, err := kvdb.Open(path)
	s.Require().NoError(err)
	repo, err := NewKVRepo(db)
	s.Require().NoError(err)
	s.repo = repo
	g := s.create("Ivan", "+79297169752", strPtr("ivan@test.ru"))
	s.Require().NoError(db.Close())

	db, err = kvdb.Open(path)
	s.Require().NoError(err)
	s.T().Cleanup(func() { _ = db.Close() })
	repo, err = NewKVRepo(db)
	s.Require().NoError(err)

	got, err := repo.GetByPhone(s.T().Context(), "+79297169752")
	s.Require().NoError(err)
	s.Equal(g, got)
}
