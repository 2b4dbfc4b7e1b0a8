package config_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/haugantoine/git/config"
	"github.com/haugantoine/git/plumbing"
)

func TestUnmarshalCoreAndUser(t *testing.T) {
	input := []byte(`[core]
	bare = true
[user]
	name = Ada Lovelace
	email = ada@example.com
`)

	cfg, err := config.ReadConfig(input)
	require.NoError(t, err)

	assert.True(t, cfg.Core.IsBare)
	assert.Equal(t, "Ada Lovelace", cfg.User.Name)
	assert.Equal(t, "ada@example.com", cfg.User.Email)
}

func TestUnmarshalRemoteAndBranch(t *testing.T) {
	input := []byte(`[remote "origin"]
	url = https://example.com/repo.git
	fetch = +refs/heads/*:refs/remotes/origin/*
[branch "main"]
	remote = origin
	merge = refs/heads/main
`)

	cfg, err := config.ReadConfig(input)
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	origin, ok := cfg.Remotes["origin"]
	require.True(t, ok)
	assert.Equal(t, []string{"https://example.com/repo.git"}, origin.URLs)
	assert.Equal(t, []string{"+refs/heads/*:refs/remotes/origin/*"}, origin.Fetch)

	main, ok := cfg.Branches["main"]
	require.True(t, ok)
	assert.Equal(t, "origin", main.Remote)
	assert.Equal(t, plumbing.ReferenceName("refs/heads/main"), main.Merge)
}

func TestMarshalRoundTrip(t *testing.T) {
	cfg := config.New()
	cfg.Core.IsBare = true
	cfg.Remotes["origin"] = &config.RemoteConfig{
		Name: "origin",
		URLs: []string{"https://example.com/repo.git"},
	}

	out, err := cfg.Marshal()
	require.NoError(t, err)

	round, err := config.ReadConfig(out)
	require.NoError(t, err)
	assert.True(t, round.Core.IsBare)
	assert.Equal(t, []string{"https://example.com/repo.git"}, round.Remotes["origin"].URLs)
}

func TestValidateRejectsUnsupportedRefStorage(t *testing.T) {
	input := []byte(`[extensions]
	refstorage = reftree
`)
	cfg, err := config.ReadConfig(input)
	require.NoError(t, err)

	assert.ErrorIs(t, cfg.Validate(), config.ErrUnsupportedRefStorage)
}

func TestBranchValidateRequiresRefName(t *testing.T) {
	bad := config.Branch{Name: "main", Merge: "not-a-ref"}
	assert.ErrorIs(t, bad.Validate(), config.ErrBranchInvalidMerge)

	good := config.Branch{Name: "main", Merge: "refs/heads/main"}
	assert.NoError(t, good.Validate())
}
