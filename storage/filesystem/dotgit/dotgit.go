// Package dotgit maps the on-disk ".git" directory layout (loose
// objects, pack files, refs, packed-refs, reflogs) onto a go-billy
// filesystem, the way the file backend reads and writes it (§4.2 File
// backend specifics, §4.3 Reference database).
package dotgit

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	billy "github.com/go-git/go-billy/v5"
	"github.com/sirupsen/logrus"

	"github.com/haugantoine/git/plumbing"
)

const (
	objectsPath = "objects"
	packPath    = "pack"
	refsPath    = "refs"
	packedRefs  = "packed-refs"
	logsPath    = "logs"

	objectIDLength = 40
)

// DotGit is a thin, billy-backed view over one repository's git
// directory.
type DotGit struct {
	fs     billy.Filesystem
	logger *logrus.Entry
}

// options configures a DotGit's ambient behavior (§5 lock-retry
// diagnostics). Following the teacher's functional-option idiom
// (storage/memory.StorageOption).
type options struct {
	logger *logrus.Entry
}

func newOptions() options {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return options{logger: logrus.NewEntry(l)}
}

// Option configures a DotGit built by New.
type Option func(*options)

// WithLogger sets the logger that reports lock-retry backoff and final
// lock-acquisition failures (§5 "lock acquisition uses bounded retry
// with backoff").
func WithLogger(logger *logrus.Entry) Option {
	return func(o *options) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// New wraps fs, which is rooted at the git directory itself (i.e. fs's
// root IS ".git", not its parent).
func New(fs billy.Filesystem, opts ...Option) *DotGit {
	o := newOptions()
	for _, opt := range opts {
		opt(&o)
	}
	return &DotGit{fs: fs, logger: o.logger}
}

// Filesystem returns the underlying billy filesystem, for callers (such
// as the alternates resolver) that need to open another DotGit relative
// to this one.
func (d *DotGit) Filesystem() billy.Filesystem {
	return d.fs
}

// -- loose objects --------------------------------------------------

func looseObjectPath(id plumbing.ObjectID) string {
	hex := id.String()
	return filepath.Join(objectsPath, hex[0:2], hex[2:])
}

// HasObject reports whether id is stored as a loose object.
func (d *DotGit) HasObject(id plumbing.ObjectID) bool {
	_, err := d.fs.Stat(looseObjectPath(id))
	return err == nil
}

// OpenObject opens the loose object file for id for reading.
func (d *DotGit) OpenObject(id plumbing.ObjectID) (billy.File, error) {
	return d.fs.Open(looseObjectPath(id))
}

// NewObject returns a writer for a new loose object. The bytes are
// staged under a temp name and atomically renamed into place by the
// returned writer's Close, named after the hash computed while writing
// (mirrors git's own loose-object write path: never a partial file
// visible under its final name).
func (d *DotGit) NewObject() (*ObjectWriter, error) {
	if err := d.fs.MkdirAll(filepath.Join(objectsPath, packPath), 0o755); err != nil {
		return nil, err
	}

	f, err := d.fs.TempFile(filepath.Join(objectsPath, packPath), "tmp_obj_")
	if err != nil {
		return nil, err
	}

	return newObjectWriter(d.fs, f), nil
}

// WalkLooseObjects calls cb with every loose object id under objects/.
func (d *DotGit) WalkLooseObjects(cb func(plumbing.ObjectID) error) error {
	prefixes, err := d.fs.ReadDir(objectsPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}

	for _, p := range prefixes {
		name := p.Name()
		if len(name) != 2 || name == packPath {
			continue
		}

		entries, err := d.fs.ReadDir(filepath.Join(objectsPath, name))
		if err != nil {
			return err
		}

		for _, e := range entries {
			if len(e.Name()) != objectIDLength-2 {
				continue
			}
			id, ok := plumbing.FromHex(name + e.Name())
			if !ok {
				continue
			}
			if err := cb(id); err != nil {
				return err
			}
		}
	}

	return nil
}

// -- pack files -------------------------------------------------------

// PackRef names one pack by its checksum, along with its ".pack" and
// ".idx" paths.
type PackRef struct {
	Checksum plumbing.ObjectID
	PackPath string
	IdxPath  string
}

// ObjectPacks lists every pack stored under objects/pack.
func (d *DotGit) ObjectPacks() ([]PackRef, error) {
	entries, err := d.fs.ReadDir(filepath.Join(objectsPath, packPath))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	byChecksum := make(map[string]*PackRef)
	for _, e := range entries {
		name := e.Name()
		if !strings.HasPrefix(name, "pack-") {
			continue
		}

		ext := filepath.Ext(name)
		checksum := strings.TrimSuffix(strings.TrimPrefix(name, "pack-"), ext)

		ref, ok := byChecksum[checksum]
		if !ok {
			id, ok := plumbing.FromHex(checksum)
			if !ok {
				continue
			}
			ref = &PackRef{Checksum: id}
			byChecksum[checksum] = ref
		}

		full := filepath.Join(objectsPath, packPath, name)
		switch ext {
		case ".pack":
			ref.PackPath = full
		case ".idx":
			ref.IdxPath = full
		}
	}

	out := make([]PackRef, 0, len(byChecksum))
	for _, ref := range byChecksum {
		if ref.PackPath != "" && ref.IdxPath != "" {
			out = append(out, *ref)
		}
	}
	return out, nil
}

// OpenPack opens the pack and idx files named by ref.
func (d *DotGit) OpenPack(ref PackRef) (packFile billy.File, idxFile billy.File, err error) {
	packFile, err = d.fs.Open(ref.PackPath)
	if err != nil {
		return nil, nil, err
	}

	idxFile, err = d.fs.Open(ref.IdxPath)
	if err != nil {
		packFile.Close()
		return nil, nil, err
	}

	return packFile, idxFile, nil
}

// -- alternates --------------------------------------------------------

// AddAlternate appends path to objects/info/alternates.
func (d *DotGit) AddAlternate(path string) error {
	const infoPath = "objects/info/alternates"
	if err := d.fs.MkdirAll(filepath.Dir(infoPath), 0o755); err != nil {
		return err
	}

	f, err := d.fs.OpenFile(infoPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()

	_, err = fmt.Fprintln(f, path)
	return err
}

// Alternates reads objects/info/alternates, one path per line.
func (d *DotGit) Alternates() ([]string, error) {
	const infoPath = "objects/info/alternates"
	f, err := d.fs.Open(infoPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		return nil, err
	}

	var out []string
	for _, line := range strings.Split(string(data), "\n") {
		line = strings.TrimSpace(line)
		if line != "" {
			out = append(out, line)
		}
	}
	return out, nil
}
