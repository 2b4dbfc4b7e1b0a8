package object

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"strings"

	"github.com/haugantoine/git/plumbing"
)

// Tag is an annotated tag object; it references exactly one target,
// which may itself be another tag (chained tags are resolved by Peel).
type Tag struct {
	Hash         plumbing.ObjectID
	Object       plumbing.ObjectID
	ObjectType   plumbing.ObjectType
	Name         string
	Tagger       Signature
	Message      string
	PGPSignature string
}

// Decode parses an annotated tag object's payload into t.
func (t *Tag) Decode(o plumbing.ObjectLoader) error {
	if o.Type() != plumbing.TagObject {
		return ErrUnsupportedObject
	}

	t.Hash = o.ID()

	r, err := o.Reader()
	if err != nil {
		return err
	}
	defer r.Close()

	return t.decodeFrom(r)
}

func (t *Tag) decodeFrom(r io.Reader) error {
	s := bufio.NewReader(r)

	for {
		line, err := s.ReadString('\n')
		if err != nil && err != io.EOF {
			return err
		}
		trimmed := strings.TrimSuffix(line, "\n")
		if trimmed == "" {
			break
		}

		field, value, _ := strings.Cut(trimmed, " ")
		switch field {
		case "object":
			id, ok := plumbing.FromHex(value)
			if !ok {
				return fmt.Errorf("%w: malformed object header", plumbing.ErrCorruptObject)
			}
			t.Object = id
		case "type":
			typ, err := plumbing.ParseObjectType(value)
			if err != nil {
				return fmt.Errorf("%w: malformed type header", plumbing.ErrCorruptObject)
			}
			t.ObjectType = typ
		case "tag":
			t.Name = value
		case "tagger":
			t.Tagger.Decode([]byte(value))
		}

		if err == io.EOF {
			break
		}
	}

	rest, err := io.ReadAll(s)
	if err != nil {
		return err
	}

	if idx := strings.Index(string(rest), "-----BEGIN PGP SIGNATURE-----"); idx >= 0 {
		t.Message = string(rest[:idx])
		t.PGPSignature = string(rest[idx:])
	} else {
		t.Message = string(rest)
	}
	return nil
}

// Encode renders t into o.
func (t *Tag) Encode(o plumbing.EncodedObject) error {
	o.SetType(plumbing.TagObject)
	w, err := o.Writer()
	if err != nil {
		return err
	}
	defer w.Close()

	b := &bytes.Buffer{}
	fmt.Fprintf(b, "object %s\n", t.Object)
	fmt.Fprintf(b, "type %s\n", t.ObjectType)
	fmt.Fprintf(b, "tag %s\n", t.Name)
	fmt.Fprintf(b, "tagger %s\n", t.Tagger.Encode())
	b.WriteByte('\n')
	b.WriteString(t.Message)
	if t.PGPSignature != "" {
		b.WriteString(t.PGPSignature)
	}

	o.SetSize(int64(b.Len()))
	_, err = w.Write(b.Bytes())
	return err
}
