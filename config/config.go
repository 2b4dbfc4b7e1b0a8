// Package config is the git-semantics-aware configuration layer above
// plumbing/format/config's raw section/option tree: the typed Config
// struct spec.md §6 names (core, user, remote, branch, extensions), and
// its gcfg-backed marshal/unmarshal (§6 External Interfaces).
package config

import (
	"bytes"
	"errors"
	"fmt"
	"sort"

	format "github.com/haugantoine/git/plumbing/format/config"
)

// ErrInvalid is returned when a remote or branch's name does not match
// the map key it is filed under.
var ErrInvalid = errors.New("config invalid key in remote or branch")

// ConfigStorer is implemented by a repository backend that can persist a
// Config (the on-disk $GIT_DIR/config file, in the file backend's case).
type ConfigStorer interface {
	Config() (*Config, error)
	SetConfig(*Config) error
}

const (
	coreSection       = "core"
	userSection       = "user"
	remoteSection     = "remote"
	branchSection     = "branch"
	extensionsSection = "extensions"

	bareKey                    = "bare"
	worktreeKey                = "worktree"
	repositoryFormatVersionKey = "repositoryformatversion"
	nameKey                    = "name"
	emailKey                   = "email"
	urlKey                     = "url"
	fetchKey                   = "fetch"
	remoteKey                  = "remote"
	mergeKey                   = "merge"
	rebaseKey                  = "rebase"
	refStorageKey              = "refstorage"
)

// Config is the parsed form of a repository's $GIT_DIR/config file.
type Config struct {
	Core struct {
		IsBare                  bool
		Worktree                string
		RepositoryFormatVersion format.RepositoryFormatVersion
	}

	User struct {
		Name  string
		Email string
	}

	// Extensions.RefStorage names the ref backend extension in use.
	// Only "" (unset) resolves to the loose+packed-refs backend this
	// module implements; any other value is parsed but rejected by
	// ErrUnsupportedRefStorage (§6: "extensions.refStorage is parsed but
	// reftree is left as an explicit stubbed variant").
	Extensions struct {
		RefStorage string
	}

	Remotes  map[string]*RemoteConfig
	Branches map[string]*Branch

	// Raw preserves the parsed section/option tree verbatim, so that
	// keys this layer doesn't model are not lost on a read-modify-write
	// round trip.
	Raw *format.Config
}

// ErrUnsupportedRefStorage is returned when extensions.refStorage names
// a backend other than the default.
var ErrUnsupportedRefStorage = errors.New("config: unsupported extensions.refStorage")

// New returns an empty Config.
func New() *Config {
	return &Config{
		Remotes:  make(map[string]*RemoteConfig),
		Branches: make(map[string]*Branch),
		Raw:      format.New(),
	}
}

// ReadConfig parses b as a git-config file.
func ReadConfig(b []byte) (*Config, error) {
	cfg := New()
	if err := cfg.Unmarshal(b); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks every Remotes/Branches key matches its entry's Name
// and that the ref-storage extension, if set, is one this module
// supports.
func (c *Config) Validate() error {
	for name, r := range c.Remotes {
		if r.Name != name {
			return ErrInvalid
		}
		if err := r.Validate(); err != nil {
			return err
		}
	}

	for name, b := range c.Branches {
		if b.Name != name {
			return ErrInvalid
		}
		if err := b.Validate(); err != nil {
			return err
		}
	}

	if c.Extensions.RefStorage != "" {
		return fmt.Errorf("%w: %q", ErrUnsupportedRefStorage, c.Extensions.RefStorage)
	}

	return nil
}

// Unmarshal parses b as a git-config file (§6 uses
// github.com/go-git/gcfg via plumbing/format/config, exactly like the
// low-level codec's own decoder).
func (c *Config) Unmarshal(b []byte) error {
	d := format.NewDecoder(bytes.NewReader(b))

	c.Raw = format.New()
	if err := d.Decode(c.Raw); err != nil {
		return err
	}

	c.unmarshalCore()
	c.unmarshalUser()
	c.unmarshalExtensions()

	if err := c.unmarshalRemotes(); err != nil {
		return err
	}
	return c.unmarshalBranches()
}

func (c *Config) unmarshalCore() {
	s := c.Raw.Section(coreSection)
	c.Core.IsBare = s.Options.Get(bareKey) == "true"
	c.Core.Worktree = s.Options.Get(worktreeKey)

	c.Core.RepositoryFormatVersion = format.DefaultRepositoryFormatVersion
	if s.Options.Get(repositoryFormatVersionKey) == string(format.Version1) {
		c.Core.RepositoryFormatVersion = format.Version1
	}
}

func (c *Config) unmarshalUser() {
	s := c.Raw.Section(userSection)
	c.User.Name = s.Options.Get(nameKey)
	c.User.Email = s.Options.Get(emailKey)
}

func (c *Config) unmarshalExtensions() {
	s := c.Raw.Section(extensionsSection)
	c.Extensions.RefStorage = s.Options.Get(refStorageKey)
}

func (c *Config) unmarshalRemotes() error {
	s := c.Raw.Section(remoteSection)
	for _, sub := range s.Subsections {
		r := &RemoteConfig{}
		r.unmarshal(sub)
		c.Remotes[r.Name] = r
	}
	return nil
}

func (c *Config) unmarshalBranches() error {
	s := c.Raw.Section(branchSection)
	for _, sub := range s.Subsections {
		b := &Branch{}
		if err := b.unmarshal(sub); err != nil {
			return err
		}
		c.Branches[b.Name] = b
	}
	return nil
}

// Marshal renders the Config back to its git-config file textual form.
func (c *Config) Marshal() ([]byte, error) {
	c.marshalCore()
	c.marshalUser()
	c.marshalExtensions()
	c.marshalRemotes()
	c.marshalBranches()

	buf := bytes.NewBuffer(nil)
	if err := format.NewEncoder(buf).Encode(c.Raw); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (c *Config) marshalCore() {
	s := c.Raw.Section(coreSection)
	s.SetOption(bareKey, fmt.Sprintf("%t", c.Core.IsBare))
	if c.Core.Worktree != "" {
		s.SetOption(worktreeKey, c.Core.Worktree)
	}
	if c.Core.RepositoryFormatVersion == format.Version1 {
		s.SetOption(repositoryFormatVersionKey, string(format.Version1))
	}
}

func (c *Config) marshalUser() {
	s := c.Raw.Section(userSection)
	if c.User.Name != "" {
		s.SetOption(nameKey, c.User.Name)
	}
	if c.User.Email != "" {
		s.SetOption(emailKey, c.User.Email)
	}
}

func (c *Config) marshalExtensions() {
	if c.Extensions.RefStorage == "" {
		return
	}
	s := c.Raw.Section(extensionsSection)
	s.SetOption(refStorageKey, c.Extensions.RefStorage)
}

func (c *Config) marshalRemotes() {
	s := c.Raw.Section(remoteSection)
	names := make([]string, 0, len(c.Remotes))
	for name := range c.Remotes {
		names = append(names, name)
	}
	sort.Strings(names)

	subs := make(format.Subsections, 0, len(names))
	for _, name := range names {
		subs = append(subs, c.Remotes[name].marshal())
	}
	s.Subsections = subs
}

func (c *Config) marshalBranches() {
	s := c.Raw.Section(branchSection)
	names := make([]string, 0, len(c.Branches))
	for name := range c.Branches {
		names = append(names, name)
	}
	sort.Strings(names)

	subs := make(format.Subsections, 0, len(names))
	for _, name := range names {
		subs = append(subs, c.Branches[name].marshal())
	}
	s.Subsections = subs
}

// RemoteConfig is one [remote "name"] block.
type RemoteConfig struct {
	Name string
	URLs []string
	// Fetch holds the raw refspec strings recorded for this remote;
	// this module has no fetch operation to execute them against
	// (network transports are out of scope), so they are carried
	// verbatim rather than parsed into a typed RefSpec.
	Fetch []string

	raw *format.Subsection
}

// ErrRemoteConfigEmptyName is returned when a RemoteConfig has no name.
var ErrRemoteConfigEmptyName = errors.New("remote config: empty name")

// ErrRemoteConfigEmptyURL is returned when a RemoteConfig has no URL.
var ErrRemoteConfigEmptyURL = errors.New("remote config: empty URL")

// Validate checks the remote carries a name and at least one URL.
func (r *RemoteConfig) Validate() error {
	if r.Name == "" {
		return ErrRemoteConfigEmptyName
	}
	if len(r.URLs) == 0 {
		return ErrRemoteConfigEmptyURL
	}
	return nil
}

func (r *RemoteConfig) unmarshal(s *format.Subsection) {
	r.raw = s
	r.Name = s.Name
	r.URLs = append([]string(nil), s.Options.GetAll(urlKey)...)
	r.Fetch = append([]string(nil), s.Options.GetAll(fetchKey)...)
}

func (r *RemoteConfig) marshal() *format.Subsection {
	if r.raw == nil {
		r.raw = &format.Subsection{}
	}
	r.raw.Name = r.Name

	if len(r.URLs) == 0 {
		r.raw.RemoveOption(urlKey)
	} else {
		r.raw.SetOption(urlKey, r.URLs...)
	}

	if len(r.Fetch) == 0 {
		r.raw.RemoveOption(fetchKey)
	} else {
		r.raw.SetOption(fetchKey, r.Fetch...)
	}

	return r.raw
}
