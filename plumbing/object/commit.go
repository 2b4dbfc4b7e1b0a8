package object

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"strings"

	"github.com/haugantoine/git/plumbing"
)

// ErrUnsupportedObject is returned when Decode is called with an
// ObjectLoader of the wrong type.
var ErrUnsupportedObject = fmt.Errorf("unsupported object type")

// Commit references exactly one tree and zero or more parents.
type Commit struct {
	Hash         plumbing.ObjectID
	Tree         plumbing.ObjectID
	Parents      []plumbing.ObjectID
	Author       Signature
	Committer    Signature
	Message      string
	PGPSignature string
}

// Decode parses a commit object's payload into c.
func (c *Commit) Decode(o plumbing.ObjectLoader) error {
	if o.Type() != plumbing.CommitObject {
		return ErrUnsupportedObject
	}

	c.Hash = o.ID()

	r, err := o.Reader()
	if err != nil {
		return err
	}
	defer r.Close()

	return c.decodeFrom(r)
}

func (c *Commit) decodeFrom(r io.Reader) error {
	s := bufio.NewReader(r)

	var inSig bool
	var sig strings.Builder

	for {
		line, err := s.ReadString('\n')
		if err != nil && err != io.EOF {
			return err
		}
		trimmed := strings.TrimSuffix(line, "\n")

		if trimmed == "" {
			break
		}

		if inSig {
			sig.WriteString(strings.TrimPrefix(trimmed, " "))
			sig.WriteByte('\n')
			if strings.Contains(trimmed, "-----END PGP SIGNATURE-----") {
				inSig = false
				c.PGPSignature = sig.String()
			}
			if err == io.EOF {
				break
			}
			continue
		}

		field, value, _ := strings.Cut(trimmed, " ")
		switch field {
		case "tree":
			id, ok := plumbing.FromHex(value)
			if !ok {
				return fmt.Errorf("%w: malformed tree header", plumbing.ErrCorruptObject)
			}
			c.Tree = id
		case "parent":
			id, ok := plumbing.FromHex(value)
			if !ok {
				return fmt.Errorf("%w: malformed parent header", plumbing.ErrCorruptObject)
			}
			c.Parents = append(c.Parents, id)
		case "author":
			c.Author.Decode([]byte(value))
		case "committer":
			c.Committer.Decode([]byte(value))
		case "gpgsig":
			inSig = true
			sig.Reset()
			sig.WriteString(value)
			sig.WriteByte('\n')
		}

		if err == io.EOF {
			break
		}
	}

	msg, err := io.ReadAll(s)
	if err != nil {
		return err
	}
	c.Message = string(msg)
	return nil
}

// Encode renders c into the loose-object payload form and writes it into
// o, setting o's type and size.
func (c *Commit) Encode(o plumbing.EncodedObject) error {
	o.SetType(plumbing.CommitObject)
	w, err := o.Writer()
	if err != nil {
		return err
	}
	defer w.Close()

	b := &bytes.Buffer{}
	fmt.Fprintf(b, "tree %s\n", c.Tree)
	for _, p := range c.Parents {
		fmt.Fprintf(b, "parent %s\n", p)
	}
	fmt.Fprintf(b, "author %s\n", c.Author.Encode())
	fmt.Fprintf(b, "committer %s\n", c.Committer.Encode())
	if c.PGPSignature != "" {
		fmt.Fprintf(b, "gpgsig %s", indentContinuation(c.PGPSignature))
	}
	b.WriteByte('\n')
	b.WriteString(c.Message)

	o.SetSize(int64(b.Len()))
	_, err = w.Write(b.Bytes())
	return err
}

func indentContinuation(s string) string {
	lines := strings.Split(strings.TrimRight(s, "\n"), "\n")
	return strings.Join(lines, "\n ") + "\n"
}

// NumParents returns the number of parent commits.
func (c *Commit) NumParents() int { return len(c.Parents) }
