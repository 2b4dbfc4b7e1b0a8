package object

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"sort"

	"github.com/haugantoine/git/plumbing"
	"github.com/haugantoine/git/plumbing/filemode"
)

// TreeEntry is one (name, mode, child-id) line of a tree object.
type TreeEntry struct {
	Name string
	Mode filemode.FileMode
	Hash plumbing.ObjectID
}

// Tree lists its entries sorted by name, per the data model invariant.
type Tree struct {
	Hash    plumbing.ObjectID
	Entries []TreeEntry
}

// Decode parses a tree object's payload into t.
func (t *Tree) Decode(o plumbing.ObjectLoader) error {
	if o.Type() != plumbing.TreeObject {
		return ErrUnsupportedObject
	}

	t.Hash = o.ID()

	r, err := o.Reader()
	if err != nil {
		return err
	}
	defer r.Close()

	if err := t.decodeFrom(r); err != nil {
		return err
	}

	sort.Slice(t.Entries, func(i, j int) bool {
		return treeEntryLess(t.Entries[i], t.Entries[j])
	})
	return nil
}

func (t *Tree) decodeFrom(r io.Reader) error {
	br := bufio.NewReader(r)
	t.Entries = nil

	for {
		modeAndName, err := br.ReadString(0)
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}
		modeAndName = modeAndName[:len(modeAndName)-1] // strip NUL

		sp := bytes.IndexByte([]byte(modeAndName), ' ')
		if sp < 0 {
			return fmt.Errorf("%w: malformed tree entry", plumbing.ErrCorruptObject)
		}

		mode, err := filemode.New(modeAndName[:sp])
		if err != nil {
			return fmt.Errorf("%w: %s", plumbing.ErrCorruptObject, err)
		}

		var raw [20]byte
		if _, err := io.ReadFull(br, raw[:]); err != nil {
			return fmt.Errorf("%w: truncated tree entry hash", plumbing.ErrCorruptObject)
		}
		id, _ := plumbing.FromBytes(raw[:])

		t.Entries = append(t.Entries, TreeEntry{
			Name: modeAndName[sp+1:],
			Mode: mode,
			Hash: id,
		})
	}
}

// Encode renders t (re-sorting entries by name first) into o.
func (t *Tree) Encode(o plumbing.EncodedObject) error {
	o.SetType(plumbing.TreeObject)
	w, err := o.Writer()
	if err != nil {
		return err
	}
	defer w.Close()

	sort.Slice(t.Entries, func(i, j int) bool {
		return treeEntryLess(t.Entries[i], t.Entries[j])
	})

	b := &bytes.Buffer{}
	for _, e := range t.Entries {
		fmt.Fprintf(b, "%s %s\x00", e.Mode, e.Name)
		b.Write(e.Hash.Bytes())
	}

	o.SetSize(int64(b.Len()))
	_, err = w.Write(b.Bytes())
	return err
}

// treeEntryLess orders entries the way Git compares them: directory
// names sort as if they had a trailing slash, so "foo" sorts after
// "foo.c" but before "foo/bar".
func treeEntryLess(a, b TreeEntry) bool {
	an, bn := a.Name, b.Name
	if a.Mode.IsDir() {
		an += "/"
	}
	if b.Mode.IsDir() {
		bn += "/"
	}
	return an < bn
}

// Entry looks up the direct child entry with the given name.
func (t *Tree) Entry(name string) (TreeEntry, bool) {
	for _, e := range t.Entries {
		if e.Name == name {
			return e, true
		}
	}
	return TreeEntry{}, false
}
