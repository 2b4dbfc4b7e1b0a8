package git

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/haugantoine/git/plumbing"
	"github.com/haugantoine/git/plumbing/object"
)

// maxSymbolicRefDepth bounds how many symbolic hops are followed before
// a chain is treated as corrupt, the same bound object.Peel applies to
// annotated tag chains.
const maxSymbolicRefDepth = 5

// --- Lexer ---

type tokenKind int

const (
	tokEOF tokenKind = iota
	tokBase
	tokCaret
	tokTilde
	tokLBrace
	tokRBrace
	tokAt // the two-character "@{"
	tokColon
	tokDash
	tokNumber
	tokWord
	tokPath
)

type token struct {
	kind tokenKind
	text string
	num  int
}

// revisionLexer tokenizes one revision expression in a single forward
// pass (§4.6, §9 design note #1: replaces go-git's char-by-char
// scanner with a lex-then-parse pipeline).
type revisionLexer struct {
	tokens []token
	pos    int
}

func newRevisionLexer(expr string) (*revisionLexer, error) {
	tokens, err := tokenizeRevision(expr)
	if err != nil {
		return nil, err
	}
	return &revisionLexer{tokens: tokens}, nil
}

func (l *revisionLexer) peek() token { return l.tokens[l.pos] }

func (l *revisionLexer) next() token {
	t := l.tokens[l.pos]
	if t.kind != tokEOF {
		l.pos++
	}
	return t
}

func isWordChar(c byte) bool {
	return c == '-' || c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

// tokenizeRevision splits expr into a base token (everything up to the
// first suffix-introducing character) followed by one token per suffix
// character/run. "@" only introduces a suffix when immediately followed
// by "{" — a bare "@" is legal inside a reference name.
func tokenizeRevision(expr string) ([]token, error) {
	boundary := -1
	for i := 0; i < len(expr); i++ {
		switch expr[i] {
		case '^', '~', ':':
			boundary = i
		case '@':
			if i+1 < len(expr) && expr[i+1] == '{' {
				boundary = i
			}
		}
		if boundary >= 0 {
			break
		}
	}

	if boundary < 0 {
		return []token{{kind: tokBase, text: expr}, {kind: tokEOF}}, nil
	}

	tokens := []token{{kind: tokBase, text: expr[:boundary]}}
	rest := expr[boundary:]

	for i := 0; i < len(rest); {
		c := rest[i]
		switch {
		case c == '^':
			tokens = append(tokens, token{kind: tokCaret})
			i++
		case c == '~':
			tokens = append(tokens, token{kind: tokTilde})
			i++
		case c == '{':
			tokens = append(tokens, token{kind: tokLBrace})
			i++
		case c == '}':
			tokens = append(tokens, token{kind: tokRBrace})
			i++
		case c == ':':
			tokens = append(tokens, token{kind: tokColon})
			tokens = append(tokens, token{kind: tokPath, text: rest[i+1:]})
			i = len(rest)
		case c == '@':
			if i+1 >= len(rest) || rest[i+1] != '{' {
				return nil, fmt.Errorf("%w: stray '@' in revision %q", plumbing.ErrRevisionSyntax, expr)
			}
			tokens = append(tokens, token{kind: tokAt})
			i += 2
		case c == '-':
			tokens = append(tokens, token{kind: tokDash})
			i++
		case c >= '0' && c <= '9':
			j := i
			for j < len(rest) && rest[j] >= '0' && rest[j] <= '9' {
				j++
			}
			n, err := strconv.Atoi(rest[i:j])
			if err != nil {
				return nil, fmt.Errorf("%w: malformed number in revision %q", plumbing.ErrRevisionSyntax, expr)
			}
			tokens = append(tokens, token{kind: tokNumber, text: rest[i:j], num: n})
			i = j
		case isWordChar(c):
			j := i
			for j < len(rest) && isWordChar(rest[j]) {
				j++
			}
			tokens = append(tokens, token{kind: tokWord, text: rest[i:j]})
			i = j
		default:
			return nil, fmt.Errorf("%w: unexpected character %q in revision %q", plumbing.ErrRevisionSyntax, string(c), expr)
		}
	}

	tokens = append(tokens, token{kind: tokEOF})
	return tokens, nil
}

// --- Parser ---

type suffixKind int

const (
	sufParent suffixKind = iota
	sufPeelType
	sufAncestor
	sufReflogNum
	sufUpstream
	sufPrevCheckout
	sufPath
)

type suffix struct {
	kind suffixKind
	n    int
	typ  string
	path string
}

// parseRevision runs the grammar in §4.6: expr := base { suffix }.
func parseRevision(expr string) (string, []suffix, error) {
	lex, err := newRevisionLexer(expr)
	if err != nil {
		return "", nil, err
	}

	base := lex.next().text

	var suffixes []suffix
	for lex.peek().kind != tokEOF {
		s, err := parseSuffix(lex)
		if err != nil {
			return "", nil, err
		}
		suffixes = append(suffixes, s)
	}
	return base, suffixes, nil
}

func parseSuffix(lex *revisionLexer) (suffix, error) {
	switch lex.peek().kind {
	case tokCaret:
		lex.next()
		return parseCaretSuffix(lex)
	case tokTilde:
		lex.next()
		n := 1
		if lex.peek().kind == tokNumber {
			n = lex.next().num
		}
		return suffix{kind: sufAncestor, n: n}, nil
	case tokAt:
		lex.next()
		return parseAtSuffix(lex)
	case tokColon:
		lex.next()
		if lex.peek().kind != tokPath {
			return suffix{}, fmt.Errorf("%w: malformed ':path' suffix", plumbing.ErrRevisionSyntax)
		}
		return suffix{kind: sufPath, path: lex.next().text}, nil
	default:
		return suffix{}, fmt.Errorf("%w: unexpected token in revision", plumbing.ErrRevisionSyntax)
	}
}

func parseCaretSuffix(lex *revisionLexer) (suffix, error) {
	if lex.peek().kind == tokLBrace {
		lex.next()
		var typ string
		if lex.peek().kind == tokWord {
			typ = lex.next().text
		} else if lex.peek().kind != tokRBrace {
			return suffix{}, fmt.Errorf("%w: malformed '^{...}' suffix", plumbing.ErrRevisionSyntax)
		}
		if lex.peek().kind != tokRBrace {
			return suffix{}, fmt.Errorf("%w: missing '}' in '^{...}' suffix", plumbing.ErrRevisionSyntax)
		}
		lex.next()
		return suffix{kind: sufPeelType, typ: typ}, nil
	}

	n := 1
	if lex.peek().kind == tokNumber {
		n = lex.next().num
	}
	return suffix{kind: sufParent, n: n}, nil
}

func parseAtSuffix(lex *revisionLexer) (suffix, error) {
	if lex.peek().kind == tokWord && lex.peek().text == "upstream" {
		lex.next()
		if err := expectRBrace(lex); err != nil {
			return suffix{}, err
		}
		return suffix{kind: sufUpstream}, nil
	}

	if lex.peek().kind == tokDash {
		lex.next()
		if lex.peek().kind != tokNumber {
			return suffix{}, fmt.Errorf("%w: malformed '@{-N}' suffix", plumbing.ErrRevisionSyntax)
		}
		n := lex.next().num
		if err := expectRBrace(lex); err != nil {
			return suffix{}, err
		}
		return suffix{kind: sufPrevCheckout, n: n}, nil
	}

	if lex.peek().kind == tokNumber {
		n := lex.next().num
		if err := expectRBrace(lex); err != nil {
			return suffix{}, err
		}
		return suffix{kind: sufReflogNum, n: n}, nil
	}

	return suffix{}, fmt.Errorf("%w: malformed '@{...}' suffix", plumbing.ErrRevisionSyntax)
}

func expectRBrace(lex *revisionLexer) error {
	if lex.peek().kind != tokRBrace {
		return fmt.Errorf("%w: missing '}' in revision suffix", plumbing.ErrRevisionSyntax)
	}
	lex.next()
	return nil
}

// --- Evaluation ---

// resolveRevision parses and evaluates expr against repo, per §4.6.
func resolveRevision(repo *Repository, expr string) (plumbing.ObjectID, error) {
	base, suffixes, err := parseRevision(expr)
	if err != nil {
		return plumbing.ZeroID, err
	}

	id, refName, found, err := resolveBase(repo, base)
	if err != nil {
		return plumbing.ZeroID, err
	}

	for _, s := range suffixes {
		id, refName, found, err = applySuffix(repo, id, refName, found, s)
		if err != nil {
			return plumbing.ZeroID, err
		}
	}

	if !found {
		return plumbing.ZeroID, nil
	}
	return id, nil
}

// resolveBase matches a base expression in the fixed priority order
// §4.6 specifies: literal HEAD/MERGE_HEAD/FETCH_HEAD, full sha-hex, ref
// expansion, abbreviated-id, then the "-g<hex>" describe-suffix form.
// refName is only set when base resolved through a named reference, so
// later @{...} suffixes can use it.
func resolveBase(repo *Repository, base string) (plumbing.ObjectID, plumbing.ReferenceName, bool, error) {
	if base == "" {
		base = string(plumbing.HEAD)
	}

	switch base {
	case string(plumbing.HEAD), string(plumbing.MergeHead), string(plumbing.FetchHead):
		ref, err := repo.refs.ExactRef(plumbing.ReferenceName(base))
		if err != nil {
			if errors.Is(err, plumbing.ErrReferenceNotFound) {
				return plumbing.ZeroID, "", false, nil
			}
			return plumbing.ZeroID, "", false, err
		}
		id, found, err := followSymbolic(repo, ref)
		return id, ref.Name(), found, err
	}

	if id, ok := plumbing.FromHex(base); ok {
		if repo.objects.Has(id) {
			return id, "", true, nil
		}
		return plumbing.ZeroID, "", false, nil
	}

	ref, err := repo.refs.FindRef(base)
	switch {
	case err == nil:
		id, found, err := followSymbolic(repo, ref)
		return id, ref.Name(), found, err
	case !errors.Is(err, plumbing.ErrReferenceNotFound):
		return plumbing.ZeroID, "", false, err
	}

	if abbrev, ok := plumbing.NewAbbreviatedID(base); ok {
		id, err := abbrev.Resolve(repo.objects)
		switch {
		case err == nil:
			return id, "", true, nil
		case !errors.Is(err, plumbing.ErrObjectNotFound):
			return plumbing.ZeroID, "", false, err // Ambiguous, or a backend failure
		}
	}

	if hex, ok := strings.CutPrefix(base, "-g"); ok {
		if abbrev, ok := plumbing.NewAbbreviatedID(hex); ok {
			id, err := abbrev.Resolve(repo.objects)
			switch {
			case err == nil:
				return id, "", true, nil
			case !errors.Is(err, plumbing.ErrObjectNotFound):
				return plumbing.ZeroID, "", false, err
			}
		}
	}

	return plumbing.ZeroID, "", false, nil
}

// followSymbolic walks a chain of symbolic references down to the
// direct object id it ultimately names.
func followSymbolic(repo *Repository, ref *plumbing.Reference) (plumbing.ObjectID, bool, error) {
	depth := 0
	for ref.Type() == plumbing.SymbolicReference {
		depth++
		if depth > maxSymbolicRefDepth {
			return plumbing.ZeroID, false, plumbing.ErrMaxSymbolicRefDepth
		}

		next, err := repo.refs.ExactRef(ref.Target())
		if err != nil {
			if errors.Is(err, plumbing.ErrReferenceNotFound) {
				return plumbing.ZeroID, false, nil
			}
			return plumbing.ZeroID, false, err
		}
		ref = next
	}
	return ref.Hash(), true, nil
}

func applySuffix(repo *Repository, id plumbing.ObjectID, refName plumbing.ReferenceName, found bool, s suffix) (plumbing.ObjectID, plumbing.ReferenceName, bool, error) {
	if !found {
		return plumbing.ZeroID, "", false, nil
	}

	switch s.kind {
	case sufParent:
		return applyParent(repo, id, s.n)
	case sufPeelType:
		return applyPeelType(repo, id, s.typ)
	case sufAncestor:
		return applyAncestor(repo, id, s.n)
	case sufReflogNum:
		return applyReflogNum(repo, refName, s.n)
	case sufUpstream:
		return applyUpstream(repo, refName)
	case sufPrevCheckout:
		return applyPrevCheckout(repo, s.n)
	case sufPath:
		return applyPath(repo, id, s.path)
	default:
		return plumbing.ZeroID, "", false, fmt.Errorf("%w: unknown suffix kind", plumbing.ErrRevisionSyntax)
	}
}

func peelToNonTag(repo *Repository, id plumbing.ObjectID) (plumbing.ObjectID, plumbing.ObjectType, bool, error) {
	loader, err := repo.objects.Get(plumbing.AnyObject, id)
	if err != nil {
		if errors.Is(err, plumbing.ErrObjectNotFound) {
			return plumbing.ZeroID, plumbing.InvalidObject, false, nil
		}
		return plumbing.ZeroID, plumbing.InvalidObject, false, err
	}

	peeledID, peeledType, err := object.Peel(repo.opener(), id, loader.Type())
	if err != nil {
		return plumbing.ZeroID, plumbing.InvalidObject, false, err
	}
	return peeledID, peeledType, true, nil
}

func applyParent(repo *Repository, id plumbing.ObjectID, n int) (plumbing.ObjectID, plumbing.ReferenceName, bool, error) {
	peeledID, peeledType, ok, err := peelToNonTag(repo, id)
	if err != nil || !ok {
		return plumbing.ZeroID, "", false, err
	}

	if n == 0 {
		if peeledType != plumbing.CommitObject {
			return plumbing.ZeroID, "", false, fmt.Errorf("%w: '^0' requires a commit", plumbing.ErrInvalidType)
		}
		return peeledID, "", true, nil
	}
	if peeledType != plumbing.CommitObject {
		return plumbing.ZeroID, "", false, fmt.Errorf("%w: '^%d' requires a commit", plumbing.ErrInvalidType, n)
	}

	c, ok, err := decodeCommit(repo, peeledID)
	if err != nil || !ok {
		return plumbing.ZeroID, "", false, err
	}
	if n > len(c.Parents) {
		return plumbing.ZeroID, "", false, nil
	}
	return c.Parents[n-1], "", true, nil
}

func applyPeelType(repo *Repository, id plumbing.ObjectID, typ string) (plumbing.ObjectID, plumbing.ReferenceName, bool, error) {
	peeledID, peeledType, ok, err := peelToNonTag(repo, id)
	if err != nil || !ok {
		return plumbing.ZeroID, "", false, err
	}

	if typ == "" {
		return peeledID, "", true, nil
	}

	want, err := plumbing.ParseObjectType(typ)
	if err != nil {
		return plumbing.ZeroID, "", false, fmt.Errorf("%w: unknown type %q in '^{...}'", plumbing.ErrInvalidType, typ)
	}
	if want != peeledType {
		return plumbing.ZeroID, "", false, fmt.Errorf("%w: '^{%s}' on a %s", plumbing.ErrInvalidType, typ, peeledType)
	}
	return peeledID, "", true, nil
}

func applyAncestor(repo *Repository, id plumbing.ObjectID, n int) (plumbing.ObjectID, plumbing.ReferenceName, bool, error) {
	peeledID, peeledType, ok, err := peelToNonTag(repo, id)
	if err != nil || !ok {
		return plumbing.ZeroID, "", false, err
	}
	if peeledType != plumbing.CommitObject {
		return plumbing.ZeroID, "", false, fmt.Errorf("%w: '~%d' requires a commit", plumbing.ErrInvalidType, n)
	}

	cur := peeledID
	for i := 0; i < n; i++ {
		c, ok, err := decodeCommit(repo, cur)
		if err != nil || !ok {
			return plumbing.ZeroID, "", false, err
		}
		if len(c.Parents) == 0 {
			return plumbing.ZeroID, "", false, nil
		}
		cur = c.Parents[0]
	}
	return cur, "", true, nil
}

func decodeCommit(repo *Repository, id plumbing.ObjectID) (*object.Commit, bool, error) {
	loader, err := repo.objects.Get(plumbing.CommitObject, id)
	if err != nil {
		if errors.Is(err, plumbing.ErrObjectNotFound) || errors.Is(err, plumbing.ErrIncorrectType) {
			return nil, false, nil
		}
		return nil, false, err
	}
	var c object.Commit
	if err := c.Decode(loader); err != nil {
		return nil, false, err
	}
	return &c, true, nil
}

func applyReflogNum(repo *Repository, refName plumbing.ReferenceName, n int) (plumbing.ObjectID, plumbing.ReferenceName, bool, error) {
	name := refName
	if name == "" {
		name = plumbing.HEAD
	}

	entries, err := repo.refs.ReadReflog(name)
	if err != nil {
		if errors.Is(err, plumbing.ErrReferenceNotFound) {
			return plumbing.ZeroID, "", false, nil
		}
		return plumbing.ZeroID, "", false, err
	}

	idx := len(entries) - 1 - n
	if idx < 0 || idx >= len(entries) {
		return plumbing.ZeroID, "", false, nil
	}
	return entries[idx].New, name, true, nil
}

func applyUpstream(repo *Repository, refName plumbing.ReferenceName) (plumbing.ObjectID, plumbing.ReferenceName, bool, error) {
	name := refName
	if name == "" {
		name = plumbing.HEAD
	}

	branchShort := name.Short()
	if name == plumbing.HEAD {
		short, err := repo.getBranch()
		if err != nil {
			return plumbing.ZeroID, "", false, nil
		}
		branchShort = short
	}

	b, ok := repo.cfg.Branches[branchShort]
	if !ok || b.Remote == "" || b.Merge == "" {
		return plumbing.ZeroID, "", false, nil
	}

	upstreamName := plumbing.ReferenceName("refs/remotes/" + b.Remote + "/" + b.Merge.Short())
	ref, err := repo.refs.ExactRef(upstreamName)
	if err != nil {
		if errors.Is(err, plumbing.ErrReferenceNotFound) {
			return plumbing.ZeroID, "", false, nil
		}
		return plumbing.ZeroID, "", false, err
	}

	id, found, err := followSymbolic(repo, ref)
	return id, upstreamName, found, err
}

func applyPrevCheckout(repo *Repository, n int) (plumbing.ObjectID, plumbing.ReferenceName, bool, error) {
	entries, err := repo.refs.ReadReflog(plumbing.HEAD)
	if err != nil {
		if errors.Is(err, plumbing.ErrReferenceNotFound) {
			return plumbing.ZeroID, "", false, nil
		}
		return plumbing.ZeroID, "", false, err
	}

	count := 0
	for i := len(entries) - 1; i >= 0; i-- {
		co, ok := entries[i].ParseCheckout()
		if !ok {
			continue
		}
		count++
		if count != n {
			continue
		}

		ref, err := repo.refs.FindRef(co.From)
		if err != nil {
			if errors.Is(err, plumbing.ErrReferenceNotFound) {
				return plumbing.ZeroID, "", false, nil
			}
			return plumbing.ZeroID, "", false, err
		}
		id, found, err := followSymbolic(repo, ref)
		return id, ref.Name(), found, err
	}
	return plumbing.ZeroID, "", false, nil
}

func applyPath(repo *Repository, id plumbing.ObjectID, path string) (plumbing.ObjectID, plumbing.ReferenceName, bool, error) {
	peeledID, peeledType, ok, err := peelToNonTag(repo, id)
	if err != nil || !ok {
		return plumbing.ZeroID, "", false, err
	}

	var treeID plumbing.ObjectID
	switch peeledType {
	case plumbing.CommitObject:
		c, ok, err := decodeCommit(repo, peeledID)
		if err != nil || !ok {
			return plumbing.ZeroID, "", false, err
		}
		treeID = c.Tree
	case plumbing.TreeObject:
		treeID = peeledID
	default:
		return plumbing.ZeroID, "", false, fmt.Errorf("%w: ':path' requires a commit or tree", plumbing.ErrInvalidType)
	}

	if path == "" {
		return treeID, "", true, nil
	}

	result, ok, err := walkTreePath(repo, treeID, path)
	if err != nil || !ok {
		return plumbing.ZeroID, "", false, err
	}
	return result, "", true, nil
}

// walkTreePath descends through tree entries by name, one path
// component at a time (§4.6 tie-break: empty path returns the tree id
// itself, handled by the caller before this is reached).
func walkTreePath(repo *Repository, treeID plumbing.ObjectID, path string) (plumbing.ObjectID, bool, error) {
	components := strings.Split(strings.Trim(path, "/"), "/")

	cur := treeID
	for i, comp := range components {
		loader, err := repo.objects.Get(plumbing.TreeObject, cur)
		if err != nil {
			if errors.Is(err, plumbing.ErrObjectNotFound) || errors.Is(err, plumbing.ErrIncorrectType) {
				return plumbing.ZeroID, false, nil
			}
			return plumbing.ZeroID, false, err
		}

		var t object.Tree
		if err := t.Decode(loader); err != nil {
			return plumbing.ZeroID, false, err
		}

		var next plumbing.ObjectID
		matched := false
		for _, e := range t.Entries {
			if e.Name == comp {
				next = e.Hash
				matched = true
				break
			}
		}
		if !matched {
			return plumbing.ZeroID, false, nil
		}

		cur = next
		if i == len(components)-1 {
			return cur, true, nil
		}
	}
	return cur, true, nil
}
