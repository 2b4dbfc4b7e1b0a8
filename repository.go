package git

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"dario.cat/mergo"
	billy "github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/osfs"

	"github.com/haugantoine/git/config"
	"github.com/haugantoine/git/objectdb"
	"github.com/haugantoine/git/plumbing"
	"github.com/haugantoine/git/refdb"
	"github.com/haugantoine/git/storage/filesystem"
	"github.com/haugantoine/git/storage/filesystem/dotgit"
)

// ErrRepositoryClosed is returned by any call made after a Repository's
// use count has dropped to zero.
var ErrRepositoryClosed = errors.New("git: repository is closed")

// Repository is the C7 façade: one object database, one reference
// database and the parsed repository config, reference-counted so a
// caller that retains a Repository across goroutines can close its own
// handle without invalidating another's.
type Repository struct {
	mu       sync.Mutex
	useCount int

	objects *objectdb.Database
	refs    *refdb.Database
	cfg     *config.Config

	// gitDir is the git-directory filesystem, used for the scalar
	// marker files (MERGE_HEAD, ...) and state probing. It is nil for a
	// Repository built directly over in-memory databases with no
	// backing directory (PlainOpen always sets it).
	gitDir billy.Filesystem

	opts Options
}

// Open builds a Repository façade over an already-constructed object
// database, reference database and config. Options left at their zero
// value are filled from DefaultOptions.
func Open(db *objectdb.Database, rdb *refdb.Database, cfg *config.Config, opts Options) (*Repository, error) {
	if db == nil {
		return nil, errors.New("git: Open requires a non-nil object database")
	}
	if rdb == nil {
		return nil, errors.New("git: Open requires a non-nil reference database")
	}
	if cfg == nil {
		cfg = config.New()
	}
	if err := mergo.Merge(&opts, DefaultOptions); err != nil {
		return nil, err
	}

	return &Repository{
		useCount: 1,
		objects:  db,
		refs:     rdb,
		cfg:      cfg,
		opts:     opts,
	}, nil
}

// PlainOpen opens the on-disk git directory at path, wiring an
// osfs-backed FileBackend for both the object and reference databases.
func PlainOpen(path string) (*Repository, error) {
	return PlainOpenWithOptions(path, Options{})
}

// PlainOpenWithOptions is PlainOpen with explicit Options, so callers
// can reach the lock-retry diagnostics the file backend reports through
// opts.Logger.
func PlainOpenWithOptions(path string, opts Options) (*Repository, error) {
	if err := mergo.Merge(&opts, DefaultOptions); err != nil {
		return nil, err
	}

	fs := osfs.New(path)
	dir := dotgit.New(fs, dotgit.WithLogger(opts.Logger))

	objStorage := filesystem.NewObjectStorage(dir)
	refStorage := filesystem.NewReferenceStorage(dir)

	opener := func(altPath string) (objectdb.Backend, error) {
		altFS := osfs.New(altPath)
		return filesystem.NewObjectStorage(dotgit.New(altFS, dotgit.WithLogger(opts.Logger))), nil
	}

	odb := objectdb.NewDatabase(objStorage, opener)
	rrdb := refdb.NewDatabase(refStorage)

	cfg := config.New()
	if raw, err := readGitDirFile(fs, "config"); err == nil {
		if err := cfg.Unmarshal([]byte(raw)); err != nil {
			return nil, fmt.Errorf("git: parsing config: %w", err)
		}
	}

	repo, err := Open(odb, rrdb, cfg, opts)
	if err != nil {
		return nil, err
	}
	repo.gitDir = fs
	return repo, nil
}

// retain increments the use count, returning the same Repository for
// chaining.
func (r *Repository) retain() *Repository {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.useCount++
	return r
}

// close decrements the use count; at zero the Repository is considered
// released and further calls return ErrRepositoryClosed. Nothing is
// actually torn down here since neither façade owns OS handles beyond
// what their backends already manage.
func (r *Repository) close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.useCount <= 0 {
		return ErrRepositoryClosed
	}
	r.useCount--
	return nil
}

func (r *Repository) checkOpen() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.useCount <= 0 {
		return ErrRepositoryClosed
	}
	return nil
}

// Objects returns the repository's object database.
func (r *Repository) Objects() *objectdb.Database { return r.objects }

// Refs returns the repository's reference database.
func (r *Repository) Refs() *refdb.Database { return r.refs }

// Config returns the repository's parsed configuration.
func (r *Repository) Config() *config.Config { return r.cfg }

// GitDir returns the git-directory filesystem, or an error if this
// Repository was not opened with one (e.g. built directly over
// memory-only databases).
func (r *Repository) GitDir() (billy.Filesystem, error) {
	if r.gitDir == nil {
		return nil, plumbing.ErrNoWorkTree
	}
	return r.gitDir, nil
}

// WorkTreePath returns the work tree's root path. Bare repositories have
// none and this returns ErrNoWorkTree, matching core.bare.
func (r *Repository) WorkTreePath() (string, error) {
	if r.cfg.Core.IsBare {
		return "", plumbing.ErrNoWorkTree
	}
	if r.cfg.Core.Worktree != "" {
		return r.cfg.Core.Worktree, nil
	}
	if r.gitDir == nil {
		return "", plumbing.ErrNoWorkTree
	}
	// Conventional layout: the work tree is the git directory's parent.
	return parentOf(r.gitDir.Root()), nil
}

// IndexFilePath returns the conventional location of the index file
// relative to the git directory. The index format itself is out of
// scope; this is a path only.
func (r *Repository) IndexFilePath() (string, error) {
	if r.cfg.Core.IsBare {
		return "", plumbing.ErrNoWorkTree
	}
	return "index", nil
}

func parentOf(p string) string {
	p = strings.TrimRight(p, "/")
	if idx := strings.LastIndexByte(p, '/'); idx >= 0 {
		return p[:idx]
	}
	return "."
}

// getBranch returns the short name of HEAD's symbolic target (e.g.
// "main" for "refs/heads/main"). Returns ErrDetachedHead if HEAD is a
// direct reference.
func (r *Repository) getBranch() (string, error) {
	head, err := r.refs.ExactRef(plumbing.HEAD)
	if err != nil {
		return "", err
	}
	if head.Type() != plumbing.SymbolicReference {
		return "", plumbing.ErrDetachedHead
	}
	return head.Target().Short(), nil
}

// getAllRefs returns every stored reference.
func (r *Repository) getAllRefs() ([]*plumbing.Reference, error) {
	return r.refs.GetRefs()
}

// getTags returns every reference under refs/tags/.
func (r *Repository) getTags() ([]*plumbing.Reference, error) {
	all, err := r.refs.GetRefs()
	if err != nil {
		return nil, err
	}

	var tags []*plumbing.Reference
	for _, ref := range all {
		if ref.IsTag() {
			tags = append(tags, ref)
		}
	}
	return tags, nil
}

// getAllRefsByPeeledId groups every reference by the final, peeled
// object id its target resolves to, using open to walk any annotated
// tag chain (§4.4 peel).
func (r *Repository) getAllRefsByPeeledId(open objectOpenerFunc) (map[plumbing.ObjectID][]*plumbing.Reference, error) {
	all, err := r.refs.GetRefs()
	if err != nil {
		return nil, err
	}

	out := make(map[plumbing.ObjectID][]*plumbing.Reference)
	for _, ref := range all {
		if ref.Type() != plumbing.DirectReference {
			continue
		}

		peeled, err := r.refs.Peel(ref, open)
		if err != nil {
			return nil, err
		}

		id := peeled.PeeledHash()
		if id.IsZero() {
			id = peeled.Hash()
		}
		out[id] = append(out[id], ref)
	}
	return out, nil
}

// Branch returns the short name of HEAD's symbolic target (e.g. "main"
// for "refs/heads/main"). It returns plumbing.ErrDetachedHead if HEAD
// points directly at an object rather than at another reference.
func (r *Repository) Branch() (string, error) {
	if err := r.checkOpen(); err != nil {
		return "", err
	}
	return r.getBranch()
}

// References returns every reference stored in the repository.
func (r *Repository) References() ([]*plumbing.Reference, error) {
	if err := r.checkOpen(); err != nil {
		return nil, err
	}
	return r.getAllRefs()
}

// Tags returns every reference under refs/tags/.
func (r *Repository) Tags() ([]*plumbing.Reference, error) {
	if err := r.checkOpen(); err != nil {
		return nil, err
	}
	return r.getTags()
}

// ReferencesByPeeledID groups every direct reference by the object id
// its target ultimately peels to, resolving annotated tag chains
// through the repository's own object database.
func (r *Repository) ReferencesByPeeledID() (map[plumbing.ObjectID][]*plumbing.Reference, error) {
	if err := r.checkOpen(); err != nil {
		return nil, err
	}
	return r.getAllRefsByPeeledId(r.opener())
}

// objectOpenerFunc adapts the repository's object database into an
// object.Opener for peeling and revision resolution.
type objectOpenerFunc = func(id plumbing.ObjectID) (plumbing.ObjectLoader, error)

// opener returns an object.Opener backed by this repository's object
// database.
func (r *Repository) opener() objectOpenerFunc {
	return func(id plumbing.ObjectID) (plumbing.ObjectLoader, error) {
		return r.objects.Get(plumbing.AnyObject, id)
	}
}

// Resolve parses and resolves a revision expression against this
// repository (§4.6). A nil id with a nil error means the expression is
// syntactically valid but names nothing.
func (r *Repository) Resolve(expr string) (plumbing.ObjectID, error) {
	if err := r.checkOpen(); err != nil {
		return plumbing.ZeroID, err
	}
	return resolveRevision(r, expr)
}

// Retain increments the use count and returns the same Repository, for
// callers that hand it to a second owner.
func (r *Repository) Retain() *Repository { return r.retain() }

// Close decrements the use count; once it reaches zero further calls
// return ErrRepositoryClosed.
func (r *Repository) Close() error { return r.close() }

// --- Git-dir scalar files (§4.7) ---

const (
	mergeHeadFile      = "MERGE_HEAD"
	origHeadFile       = "ORIG_HEAD"
	cherryPickHeadFile = "CHERRY_PICK_HEAD"
	revertHeadFile     = "REVERT_HEAD"
	mergeMsgFile       = "MERGE_MSG"
	squashMsgFile      = "SQUASH_MSG"
	commitEditMsgFile  = "COMMIT_EDITMSG"
)

func readGitDirFile(fs billy.Filesystem, name string) (string, error) {
	f, err := fs.Open(name)
	if err != nil {
		return "", err
	}
	defer f.Close()

	b, err := io.ReadAll(f)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func writeGitDirFile(fs billy.Filesystem, name, content string) error {
	f, err := fs.Create(name)
	if err != nil {
		return err
	}
	defer f.Close()

	_, err = f.Write([]byte(content))
	return err
}

// readStateID reads a scalar git-dir file expected to hold a single
// 40-hex object id, returning (ZeroID, false, nil) if the file is
// absent.
func (r *Repository) readStateID(name string) (plumbing.ObjectID, bool, error) {
	fs, err := r.GitDir()
	if err != nil {
		return plumbing.ZeroID, false, err
	}

	raw, err := readGitDirFile(fs, name)
	if err != nil {
		if os.IsNotExist(err) {
			return plumbing.ZeroID, false, nil
		}
		return plumbing.ZeroID, false, err
	}

	id, ok := plumbing.FromHex(strings.TrimSpace(raw))
	if !ok {
		return plumbing.ZeroID, false, fmt.Errorf("%w: malformed %s", plumbing.ErrCorruptObject, name)
	}
	return id, true, nil
}

func (r *Repository) writeStateID(name string, id plumbing.ObjectID) error {
	fs, err := r.GitDir()
	if err != nil {
		return err
	}
	return writeGitDirFile(fs, name, id.String()+"\n")
}

func (r *Repository) removeStateFile(name string) error {
	fs, err := r.GitDir()
	if err != nil {
		return err
	}
	err = fs.Remove(name)
	if err != nil && os.IsNotExist(err) {
		return nil
	}
	return err
}

// MergeHead reads the MERGE_HEAD scalar file.
func (r *Repository) MergeHead() (plumbing.ObjectID, bool, error) { return r.readStateID(mergeHeadFile) }

// SetMergeHead writes the MERGE_HEAD scalar file.
func (r *Repository) SetMergeHead(id plumbing.ObjectID) error { return r.writeStateID(mergeHeadFile, id) }

// RemoveMergeHead deletes the MERGE_HEAD scalar file, if present.
func (r *Repository) RemoveMergeHead() error { return r.removeStateFile(mergeHeadFile) }

// OrigHead reads the ORIG_HEAD scalar file.
func (r *Repository) OrigHead() (plumbing.ObjectID, bool, error) { return r.readStateID(origHeadFile) }

// SetOrigHead writes the ORIG_HEAD scalar file.
func (r *Repository) SetOrigHead(id plumbing.ObjectID) error { return r.writeStateID(origHeadFile, id) }

// CherryPickHead reads the CHERRY_PICK_HEAD scalar file.
func (r *Repository) CherryPickHead() (plumbing.ObjectID, bool, error) {
	return r.readStateID(cherryPickHeadFile)
}

// SetCherryPickHead writes the CHERRY_PICK_HEAD scalar file.
func (r *Repository) SetCherryPickHead(id plumbing.ObjectID) error {
	return r.writeStateID(cherryPickHeadFile, id)
}

// RemoveCherryPickHead deletes the CHERRY_PICK_HEAD scalar file.
func (r *Repository) RemoveCherryPickHead() error { return r.removeStateFile(cherryPickHeadFile) }

// RevertHead reads the REVERT_HEAD scalar file.
func (r *Repository) RevertHead() (plumbing.ObjectID, bool, error) { return r.readStateID(revertHeadFile) }

// SetRevertHead writes the REVERT_HEAD scalar file.
func (r *Repository) SetRevertHead(id plumbing.ObjectID) error { return r.writeStateID(revertHeadFile, id) }

// RemoveRevertHead deletes the REVERT_HEAD scalar file.
func (r *Repository) RemoveRevertHead() error { return r.removeStateFile(revertHeadFile) }

func (r *Repository) readStateMsg(name string) (string, bool, error) {
	fs, err := r.GitDir()
	if err != nil {
		return "", false, err
	}
	raw, err := readGitDirFile(fs, name)
	if err != nil {
		if os.IsNotExist(err) {
			return "", false, nil
		}
		return "", false, err
	}
	return raw, true, nil
}

// MergeMsg reads the MERGE_MSG scalar file.
func (r *Repository) MergeMsg() (string, bool, error) { return r.readStateMsg(mergeMsgFile) }

// SetMergeMsg writes the MERGE_MSG scalar file.
func (r *Repository) SetMergeMsg(msg string) error {
	fs, err := r.GitDir()
	if err != nil {
		return err
	}
	return writeGitDirFile(fs, mergeMsgFile, msg)
}

// SquashMsg reads the SQUASH_MSG scalar file.
func (r *Repository) SquashMsg() (string, bool, error) { return r.readStateMsg(squashMsgFile) }

// CommitEditMsg reads the COMMIT_EDITMSG scalar file.
func (r *Repository) CommitEditMsg() (string, bool, error) { return r.readStateMsg(commitEditMsgFile) }

// SetCommitEditMsg writes the COMMIT_EDITMSG scalar file.
func (r *Repository) SetCommitEditMsg(msg string) error {
	fs, err := r.GitDir()
	if err != nil {
		return err
	}
	return writeGitDirFile(fs, commitEditMsgFile, msg)
}
