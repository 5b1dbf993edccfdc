package repo

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/odvcencio/twig/pkg/object"
	"github.com/odvcencio/twig/pkg/twigerr"
)

// refSearchOrder lists where a short name is looked for, first match wins.
var refSearchOrder = []string{
	"%s",
	"refs/%s",
	"refs/heads/%s",
	"refs/tags/%s",
	"refs/remotes/%s",
}

// RevParse resolves a revision expression to an object address.
//
// The base of the expression is tried as a full address or an unambiguous
// prefix of at least object.MinPrefixLen hex digits, then as a ref name in
// refSearchOrder. Suffixes are applied left to right:
//
//	^      first parent        ^<n>  n-th parent, ^0 is the commit itself
//	~      first parent        ~<n>  n-th first-parent ancestor
//	^{}    peel tags           ^{<kind>}  peel to an object of that kind
//
// Annotated tags are peeled to their commit before a parent suffix is
// applied.
func (r *Repo) RevParse(expr string) (object.Hash, error) {
	expr = strings.TrimSpace(expr)
	if expr == "" {
		return "", twigerr.Errorf(twigerr.ErrUnresolvedRef, "rev-parse: empty revision")
	}

	cut := strings.IndexAny(expr, "^~")
	base, suffix := expr, ""
	if cut >= 0 {
		base, suffix = expr[:cut], expr[cut:]
	}
	if base == "" || base == "@" {
		base = "HEAD"
	}

	h, err := r.resolveBase(base)
	if err != nil {
		return "", fmt.Errorf("rev-parse %q: %w", expr, err)
	}
	h, err = r.applySuffixes(h, suffix)
	if err != nil {
		return "", fmt.Errorf("rev-parse %q: %w", expr, err)
	}
	return h, nil
}

func (r *Repo) resolveBase(name string) (object.Hash, error) {
	if len(name) >= object.MinPrefixLen && len(name) <= r.Format().HexSize() && object.IsHex(name) {
		h, err := r.Store.ResolvePrefix(name)
		switch {
		case err == nil:
			return h, nil
		case !twigerr.Is(err, twigerr.ErrObjectNotFound):
			return "", err
		}
		// Not an object; it may still be a ref named like one.
	}

	for _, pattern := range refSearchOrder {
		candidate := fmt.Sprintf(pattern, name)
		if validateRefName(candidate) != nil {
			continue
		}
		_, ok, err := r.ReadRef(candidate)
		if err != nil {
			return "", err
		}
		if !ok {
			continue
		}
		resolved, err := r.ResolveRef(candidate)
		if err != nil {
			return "", err
		}
		if resolved.Hash == "" {
			return "", twigerr.Errorf(twigerr.ErrUnresolvedRef, "%s points at unborn branch %s", candidate, resolved.Name)
		}
		return resolved.Hash, nil
	}
	return "", twigerr.Errorf(twigerr.ErrUnresolvedRef, "unknown revision %q", name)
}

func (r *Repo) applySuffixes(h object.Hash, suffix string) (object.Hash, error) {
	for suffix != "" {
		op := suffix[0]
		suffix = suffix[1:]

		if op == '^' && strings.HasPrefix(suffix, "{") {
			end := strings.IndexByte(suffix, '}')
			if end < 0 {
				return "", twigerr.Errorf(twigerr.ErrUnresolvedRef, "unterminated ^{ in revision")
			}
			want := suffix[1:end]
			suffix = suffix[end+1:]
			var err error
			if h, err = r.peelTo(h, want); err != nil {
				return "", err
			}
			continue
		}

		digits := 0
		for digits < len(suffix) && suffix[digits] >= '0' && suffix[digits] <= '9' {
			digits++
		}
		n := 1
		if digits > 0 {
			v, err := strconv.Atoi(suffix[:digits])
			if err != nil {
				return "", twigerr.Errorf(twigerr.ErrUnresolvedRef, "bad count %q", suffix[:digits])
			}
			n = v
		}
		suffix = suffix[digits:]

		commitHash, err := r.PeelToCommit(h)
		if err != nil {
			return "", err
		}
		switch op {
		case '^':
			h, err = r.nthParent(commitHash, n)
		case '~':
			h, err = r.nthAncestor(commitHash, n)
		default:
			err = twigerr.Errorf(twigerr.ErrUnresolvedRef, "unexpected %q in revision", op)
		}
		if err != nil {
			return "", err
		}
	}
	return h, nil
}

func (r *Repo) nthParent(h object.Hash, n int) (object.Hash, error) {
	if n == 0 {
		return h, nil
	}
	c, err := r.Store.ReadCommit(h)
	if err != nil {
		return "", err
	}
	if n > len(c.Parents) {
		return "", twigerr.Errorf(twigerr.ErrUnresolvedRef, "commit %s has no parent %d", h.Short(), n)
	}
	return c.Parents[n-1], nil
}

func (r *Repo) nthAncestor(h object.Hash, n int) (object.Hash, error) {
	for i := 0; i < n; i++ {
		c, err := r.Store.ReadCommit(h)
		if err != nil {
			return "", err
		}
		if len(c.Parents) == 0 {
			return "", twigerr.Errorf(twigerr.ErrUnresolvedRef, "commit %s has no parent", h.Short())
		}
		h = c.Parents[0]
	}
	return h, nil
}

// PeelToCommit follows annotated tags from h until it reaches a commit.
func (r *Repo) PeelToCommit(h object.Hash) (object.Hash, error) {
	return r.peel(h, object.KindCommit, true)
}

// peelTo implements ^{kind}; an empty kind strips tags only.
func (r *Repo) peelTo(h object.Hash, want string) (object.Hash, error) {
	if want == "" {
		for {
			kind, _, err := r.Store.Read(h)
			if err != nil {
				return "", err
			}
			if kind != object.KindTag {
				return h, nil
			}
			tag, err := r.Store.ReadTag(h)
			if err != nil {
				return "", err
			}
			h = tag.Object
		}
	}
	kind, ok := object.ParseKind(want)
	if !ok {
		return "", twigerr.Errorf(twigerr.ErrUnresolvedRef, "unknown object kind %q in ^{}", want)
	}
	return r.peel(h, kind, true)
}

// peel walks from h toward an object of kind want: tags to their target,
// commits to their tree. Without follow, h itself must already have that
// kind.
func (r *Repo) peel(h object.Hash, want object.Kind, follow bool) (object.Hash, error) {
	start := h
	for {
		kind, data, err := r.Store.Read(h)
		if err != nil {
			return "", err
		}
		if kind == want {
			return h, nil
		}
		if !follow {
			return "", twigerr.Errorf(twigerr.ErrUnresolvedRef, "%s is a %s, not a %s", start.Short(), kind, want)
		}
		switch {
		case kind == object.KindTag:
			tag, err := object.UnmarshalTag(r.Format(), data)
			if err != nil {
				return "", fmt.Errorf("peel %s: %w", h.Short(), err)
			}
			h = tag.Object
		case kind == object.KindCommit && want == object.KindTree:
			c, err := object.UnmarshalCommit(r.Format(), data)
			if err != nil {
				return "", fmt.Errorf("peel %s: %w", h.Short(), err)
			}
			h = c.TreeHash
		default:
			return "", twigerr.Errorf(twigerr.ErrUnresolvedRef, "%s peels to a %s, not a %s", start.Short(), kind, want)
		}
	}
}

// FindObject resolves name with RevParse and, when want is not empty,
// peels the result to an object of that kind: tags to their target and
// commits to their tree. With follow false the named object must already
// be of kind want.
func (r *Repo) FindObject(name string, want object.Kind, follow bool) (object.Hash, error) {
	h, err := r.RevParse(name)
	if err != nil {
		return "", err
	}
	if want == "" {
		return h, nil
	}
	h, err = r.peel(h, want, follow)
	if err != nil {
		return "", fmt.Errorf("find object %q: %w", name, err)
	}
	return h, nil
}
