package dotgit

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"

	"github.com/haugantoine/git/plumbing"
)

func reflogPath(name plumbing.ReferenceName) string {
	return filepath.Join(logsPath, filepath.FromSlash(name.String()))
}

// AppendReflog appends e as a new line to name's reflog, creating the
// log file (and its parent directories) if this is the first entry.
func (d *DotGit) AppendReflog(name plumbing.ReferenceName, e *plumbing.ReflogEntry) error {
	path := reflogPath(name)

	if err := d.fs.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}

	unlock, err := d.lock(path)
	if err != nil {
		return err
	}
	defer unlock()

	f, err := d.fs.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()

	_, err = fmt.Fprint(f, e.Format())
	return err
}

// ReadReflog returns name's reflog, oldest entry first.
func (d *DotGit) ReadReflog(name plumbing.ReferenceName) ([]*plumbing.ReflogEntry, error) {
	f, err := d.fs.Open(reflogPath(name))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	defer f.Close()

	var entries []*plumbing.ReflogEntry
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := scanner.Text()
		if line == "" {
			continue
		}
		e, err := plumbing.ParseReflogLine(line)
		if err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, scanner.Err()
}

// RemoveReflog deletes name's entire reflog file.
func (d *DotGit) RemoveReflog(name plumbing.ReferenceName) error {
	err := d.fs.Remove(reflogPath(name))
	if err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}
