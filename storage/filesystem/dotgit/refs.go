package dotgit

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	billy "github.com/go-git/go-billy/v5"

	"github.com/haugantoine/git/plumbing"
)

// lockSuffix names the sentinel file used to serialise concurrent
// writers to the same loose ref (§4.3: "per-ref locking via <ref>.lock
// sentinel files").
const lockSuffix = ".lock"

// ErrReferenceHasChanged is returned by SetRef when old does not match
// the reference's current value.
var ErrReferenceHasChanged = plumbing.ErrReferenceHasChanged

func refPath(name plumbing.ReferenceName) string {
	return filepath.FromSlash(name.String())
}

// Ref reads one reference, preferring a loose ref file over an entry in
// packed-refs (a loose ref always shadows a packed one of the same
// name, per git's own precedence).
func (d *DotGit) Ref(name plumbing.ReferenceName) (*plumbing.Reference, error) {
	ref, err := d.readLooseRef(name)
	if err == nil {
		return ref, nil
	}
	if !os.IsNotExist(err) {
		return nil, err
	}

	refs, err := d.readPackedRefs()
	if err != nil {
		return nil, err
	}
	if ref, ok := refs[name]; ok {
		return ref, nil
	}

	return nil, plumbing.ErrReferenceNotFound
}

func (d *DotGit) readLooseRef(name plumbing.ReferenceName) (*plumbing.Reference, error) {
	f, err := d.fs.Open(refPath(name))
	if err != nil {
		return nil, err
	}
	defer f.Close()

	return readRefFile(f, name)
}

func readRefFile(r io.Reader, name plumbing.ReferenceName) (*plumbing.Reference, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}

	line := strings.TrimSpace(string(data))
	if line == "" {
		return nil, fmt.Errorf("%w: empty ref file %s", plumbing.ErrCorruptObject, name)
	}

	return plumbing.NewReferenceFromStrings(name.String(), line), nil
}

// SetRefUnchecked writes a loose ref file unconditionally, overwriting
// whatever was there before. The write is still serialised against
// other writers via a <ref>.lock file.
func (d *DotGit) SetRefUnchecked(ref *plumbing.Reference) error {
	path := refPath(ref.Name())

	unlock, err := d.lockRefPath(path)
	if err != nil {
		return err
	}
	defer unlock()

	return d.writeRefFile(path, ref)
}

// SetRef performs a compare-and-swap write of a loose ref file: the
// reference's current value (loose or packed) must match old first, or
// old being nil requires the reference be absent. The write is
// serialised against other writers via a <ref>.lock file.
func (d *DotGit) SetRef(ref *plumbing.Reference, old *plumbing.Reference) error {
	path := refPath(ref.Name())

	unlock, err := d.lockRefPath(path)
	if err != nil {
		return err
	}
	defer unlock()

	current, err := d.Ref(ref.Name())
	if err != nil && err != plumbing.ErrReferenceNotFound {
		return err
	}
	if !refMatches(current, old) {
		return ErrReferenceHasChanged
	}

	return d.writeRefFile(path, ref)
}

func (d *DotGit) lockRefPath(path string) (func(), error) {
	if err := d.fs.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	return d.lock(path)
}

func (d *DotGit) writeRefFile(path string, ref *plumbing.Reference) error {
	f, err := d.fs.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	_, err = fmt.Fprintln(f, ref.String())
	return err
}

func refMatches(current, expected *plumbing.Reference) bool {
	if expected == nil {
		return current == nil
	}
	if current == nil {
		return false
	}
	return current.Hash() == expected.Hash()
}

// RemoveRef deletes a loose ref file and scrubs the name from
// packed-refs if present there too.
func (d *DotGit) RemoveRef(name plumbing.ReferenceName) error {
	path := refPath(name)

	unlock, err := d.lock(path)
	if err != nil {
		return err
	}
	defer unlock()

	if err := d.fs.Remove(path); err != nil && !os.IsNotExist(err) {
		return err
	}

	return d.removeFromPackedRefs(name)
}

// Refs enumerates every loose ref under refs/ plus every packed ref not
// shadowed by a loose one.
func (d *DotGit) Refs() ([]*plumbing.Reference, error) {
	seen := make(map[plumbing.ReferenceName]bool)
	var out []*plumbing.Reference

	err := d.walkRefDir(refsPath, func(name plumbing.ReferenceName) error {
		ref, err := d.readLooseRef(name)
		if err != nil {
			return err
		}
		seen[name] = true
		out = append(out, ref)
		return nil
	})
	if err != nil {
		return nil, err
	}

	packed, err := d.readPackedRefs()
	if err != nil {
		return nil, err
	}
	for name, ref := range packed {
		if !seen[name] {
			out = append(out, ref)
		}
	}

	if head, err := d.readLooseRef(plumbing.HEAD); err == nil {
		out = append(out, head)
	} else if !os.IsNotExist(err) {
		return nil, err
	}

	return out, nil
}

func (d *DotGit) walkRefDir(dir string, cb func(plumbing.ReferenceName) error) error {
	entries, err := d.fs.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}

	for _, e := range entries {
		full := filepath.Join(dir, e.Name())
		if e.IsDir() {
			if err := d.walkRefDir(full, cb); err != nil {
				return err
			}
			continue
		}
		if strings.HasSuffix(e.Name(), lockSuffix) {
			continue
		}
		name := plumbing.ReferenceName(filepath.ToSlash(full))
		if err := cb(name); err != nil {
			return err
		}
	}
	return nil
}

// CountLooseRefs counts loose ref files under refs/.
func (d *DotGit) CountLooseRefs() (int, error) {
	n := 0
	err := d.walkRefDir(refsPath, func(plumbing.ReferenceName) error {
		n++
		return nil
	})
	return n, err
}

// -- packed-refs -------------------------------------------------------

func (d *DotGit) readPackedRefs() (map[plumbing.ReferenceName]*plumbing.Reference, error) {
	f, err := d.fs.Open(packedRefs)
	if err != nil {
		if os.IsNotExist(err) {
			return map[plumbing.ReferenceName]*plumbing.Reference{}, nil
		}
		return nil, err
	}
	defer f.Close()

	return parsePackedRefs(f)
}

func parsePackedRefs(r io.Reader) (map[plumbing.ReferenceName]*plumbing.Reference, error) {
	refs := make(map[plumbing.ReferenceName]*plumbing.Reference)

	scanner := bufio.NewScanner(r)
	var last *plumbing.Reference
	for scanner.Scan() {
		line := scanner.Text()
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		if strings.HasPrefix(line, "^") {
			if last == nil {
				continue
			}
			id, ok := plumbing.FromHex(strings.TrimPrefix(line, "^"))
			if !ok {
				continue
			}
			last = last.WithPeeled(id)
			refs[last.Name()] = last
			continue
		}

		fields := strings.SplitN(line, " ", 2)
		if len(fields) != 2 {
			continue
		}

		ref := plumbing.NewReferenceFromStrings(fields[1], fields[0])
		refs[ref.Name()] = ref.WithTier(plumbing.PackedTier)
		last = ref
	}

	return refs, scanner.Err()
}

// PackRefs compacts every loose ref under refs/ (except HEAD) into
// packed-refs and removes the loose files, the way git's own
// git-pack-refs does.
func (d *DotGit) PackRefs() error {
	unlock, err := d.lock(packedRefs)
	if err != nil {
		return err
	}
	defer unlock()

	packed, err := d.readPackedRefs()
	if err != nil {
		return err
	}

	err = d.walkRefDir(refsPath, func(name plumbing.ReferenceName) error {
		ref, err := d.readLooseRef(name)
		if err != nil {
			return err
		}
		packed[name] = ref
		return nil
	})
	if err != nil {
		return err
	}

	if err := d.writePackedRefs(packed); err != nil {
		return err
	}

	return d.walkRefDir(refsPath, func(name plumbing.ReferenceName) error {
		return d.fs.Remove(refPath(name))
	})
}

func (d *DotGit) writePackedRefs(refs map[plumbing.ReferenceName]*plumbing.Reference) error {
	f, err := d.fs.Create(packedRefs)
	if err != nil {
		return err
	}
	defer f.Close()

	names := make([]string, 0, len(refs))
	for name := range refs {
		names = append(names, string(name))
	}
	sort.Strings(names)

	fmt.Fprintln(f, "# pack-refs with: peeled fully-peeled sorted")
	for _, name := range names {
		ref := refs[plumbing.ReferenceName(name)]
		fmt.Fprintf(f, "%s %s\n", ref.Hash().String(), ref.Name())
		if ref.IsPeeled() {
			fmt.Fprintf(f, "^%s\n", ref.PeeledHash().String())
		}
	}
	return nil
}

func (d *DotGit) removeFromPackedRefs(name plumbing.ReferenceName) error {
	unlock, err := d.lock(packedRefs)
	if err != nil {
		return err
	}
	defer unlock()

	refs, err := d.readPackedRefs()
	if err != nil {
		return err
	}
	if _, ok := refs[name]; !ok {
		return nil
	}
	delete(refs, name)

	return d.writePackedRefs(refs)
}

// lockMaxElapsedTime and lockInitialInterval bound the retry/backoff
// loop in lock: a concurrent writer holding the sentinel gets this long
// to finish before the caller gives up with plumbing.ErrLockFailure
// (§5 "Lock acquisition uses bounded retry with backoff; timeout
// surfaces as LockFailure").
const (
	lockMaxElapsedTime   = 1 * time.Second
	lockInitialInterval  = 10 * time.Millisecond
)

// lock creates a "<path>.lock" sentinel, returning a func that removes
// it. A lock file that already exists means a concurrent writer is in
// progress; lock retries with exponential backoff before giving up and
// reporting plumbing.ErrLockFailure.
func (d *DotGit) lock(path string) (func(), error) {
	lockPath := path + lockSuffix

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = lockInitialInterval
	bo.MaxElapsedTime = lockMaxElapsedTime

	var f billy.File
	attempt := 0
	operation := func() error {
		attempt++
		var err error
		f, err = d.fs.OpenFile(lockPath, os.O_RDWR|os.O_CREATE|os.O_EXCL, 0o644)
		if err == nil {
			return nil
		}
		if os.IsExist(err) {
			d.logger.WithField("path", lockPath).WithField("attempt", attempt).Debug("git: lock held by another writer, retrying")
			return err
		}
		return backoff.Permanent(err)
	}

	if err := backoff.Retry(operation, bo); err != nil {
		d.logger.WithField("path", lockPath).WithError(err).Warn("git: failed to acquire lock")
		if os.IsExist(err) {
			return nil, fmt.Errorf("%w: %s", plumbing.ErrLockFailure, path)
		}
		return nil, fmt.Errorf("could not lock %s: %w", path, err)
	}
	f.Close()

	return func() {
		d.fs.Remove(lockPath)
	}, nil
}
