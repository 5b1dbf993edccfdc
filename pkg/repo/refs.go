package repo

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/odvcencio/twig/pkg/object"
	"github.com/odvcencio/twig/pkg/twigerr"
)

// MaxSymbolicDepth bounds how many symbolic refs ResolveRef follows.
const MaxSymbolicDepth = 5

const symrefPrefix = "ref: "

// RefKind distinguishes the two forms a ref file can take.
type RefKind int

const (
	RefDirect   RefKind = iota // file holds an object address
	RefSymbolic                // file holds "ref: <name>"
)

// Ref is the decoded content of one ref file.
type Ref struct {
	Name   string
	Kind   RefKind
	Hash   object.Hash // set for RefDirect
	Target string      // set for RefSymbolic
}

// ResolvedRef is the end of a symbolic chain. Hash is empty when the chain
// ends at a ref that does not exist yet (an unborn branch).
type ResolvedRef struct {
	Name string
	Hash object.Hash
}

// ReadRef reads the ref file for name. The boolean is false when the file
// does not exist.
func (r *Repo) ReadRef(name string) (Ref, bool, error) {
	if err := validateRefName(name); err != nil {
		return Ref{}, false, err
	}
	path := r.metaPath(filepath.FromSlash(name))
	data, err := os.ReadFile(path)
	if err != nil {
		// A directory is not a ref.
		if errors.Is(err, fs.ErrNotExist) || isDir(path) {
			return Ref{}, false, nil
		}
		return Ref{}, false, twigerr.Errorf(twigerr.ErrIO, "read ref %q: %v", name, err)
	}
	return r.parseRef(name, string(data))
}

func isDir(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}

func (r *Repo) parseRef(name, content string) (Ref, bool, error) {
	content = strings.TrimSpace(content)
	if target, ok := strings.CutPrefix(content, symrefPrefix); ok {
		target = strings.TrimSpace(target)
		if err := validateRefName(target); err != nil {
			return Ref{}, false, twigerr.Errorf(twigerr.ErrUnresolvedRef, "ref %q: bad symbolic target: %v", name, err)
		}
		return Ref{Name: name, Kind: RefSymbolic, Target: target}, true, nil
	}
	h, err := r.Format().ParseHash(content)
	if err != nil {
		return Ref{}, false, twigerr.Errorf(twigerr.ErrUnresolvedRef, "ref %q: %v", name, err)
	}
	return Ref{Name: name, Kind: RefDirect, Hash: h}, true, nil
}

// ResolveRef follows name through at most MaxSymbolicDepth symbolic refs.
// The final ref's name is returned with its address, which is empty when
// that ref does not exist; this is how an unborn branch looks, and it is
// not an error. Revisiting a ref or exceeding the hop limit is a
// ReferenceCycle.
func (r *Repo) ResolveRef(name string) (ResolvedRef, error) {
	visited := make(map[string]struct{}, MaxSymbolicDepth+1)
	cur := name
	for hops := 0; ; hops++ {
		if _, seen := visited[cur]; seen {
			return ResolvedRef{}, twigerr.Errorf(twigerr.ErrReferenceCycle, "resolve ref %q: cycle at %q", name, cur)
		}
		if hops > MaxSymbolicDepth {
			return ResolvedRef{}, twigerr.Errorf(twigerr.ErrReferenceCycle, "resolve ref %q: more than %d symbolic hops", name, MaxSymbolicDepth)
		}
		visited[cur] = struct{}{}

		ref, ok, err := r.ReadRef(cur)
		if err != nil {
			return ResolvedRef{}, fmt.Errorf("resolve ref %q: %w", name, err)
		}
		if !ok {
			return ResolvedRef{Name: cur}, nil
		}
		switch ref.Kind {
		case RefDirect:
			return ResolvedRef{Name: cur, Hash: ref.Hash}, nil
		case RefSymbolic:
			cur = ref.Target
		}
	}
}

// Head reads .twig/HEAD. If HEAD is symbolic it returns the ref path (e.g.
// "refs/heads/main"); when detached it returns the commit hash.
func (r *Repo) Head() (string, error) {
	ref, ok, err := r.ReadRef("HEAD")
	if err != nil {
		return "", fmt.Errorf("head: %w", err)
	}
	if !ok {
		return "", twigerr.Errorf(twigerr.ErrNotARepository, "head: %s has no HEAD", r.Dir)
	}
	if ref.Kind == RefSymbolic {
		return ref.Target, nil
	}
	return string(ref.Hash), nil
}

// SetSymbolicRef points name at target, e.g. HEAD at refs/heads/topic.
func (r *Repo) SetSymbolicRef(name, target string) error {
	if err := validateRefName(name); err != nil {
		return fmt.Errorf("set symbolic ref: %w", err)
	}
	if err := validateRefName(target); err != nil {
		return fmt.Errorf("set symbolic ref: %w", err)
	}
	path := r.metaPath(filepath.FromSlash(name))
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return twigerr.Errorf(twigerr.ErrIO, "set symbolic ref %q: mkdir: %v", name, err)
	}
	lockPath := path + ".lock"
	lock, err := acquireRefLock(lockPath)
	if err != nil {
		return fmt.Errorf("set symbolic ref %q: lock: %w", name, err)
	}
	if _, err := lock.WriteString(symrefPrefix + target + "\n"); err != nil {
		lock.Close()
		os.Remove(lockPath)
		return twigerr.Errorf(twigerr.ErrIO, "set symbolic ref %q: write: %v", name, err)
	}
	if err := lock.Close(); err != nil {
		os.Remove(lockPath)
		return twigerr.Errorf(twigerr.ErrIO, "set symbolic ref %q: close: %v", name, err)
	}
	if err := os.Rename(lockPath, path); err != nil {
		os.Remove(lockPath)
		return twigerr.Errorf(twigerr.ErrIO, "set symbolic ref %q: rename: %v", name, err)
	}
	r.log().Debug("symbolic ref updated", "ref", name, "target", target)
	return nil
}

// DeleteRef removes a direct ref. When expectedOld is given the ref must
// still hold it.
func (r *Repo) DeleteRef(name string, expectedOld ...object.Hash) error {
	if err := validateRefName(name); err != nil {
		return fmt.Errorf("delete ref: %w", err)
	}
	path := r.metaPath(filepath.FromSlash(name))
	lockPath := path + ".lock"
	lock, err := acquireRefLock(lockPath)
	if err != nil {
		return fmt.Errorf("delete ref %q: lock: %w", name, err)
	}
	defer func() {
		lock.Close()
		os.Remove(lockPath)
	}()

	old, err := readRefHash(path)
	if err != nil {
		return twigerr.Errorf(twigerr.ErrIO, "delete ref %q: %v", name, err)
	}
	if old == "" {
		return twigerr.Errorf(twigerr.ErrUnresolvedRef, "delete ref: %q does not exist", name)
	}
	if len(expectedOld) == 1 && old != expectedOld[0] {
		return fmt.Errorf("delete ref %q: %w: %w", name, ErrRefCASMismatch,
			twigerr.Errorf(twigerr.ErrReferenceConflict, "expected %q, found %q", expectedOld[0], old))
	}
	if err := os.Remove(path); err != nil {
		return twigerr.Errorf(twigerr.ErrIO, "delete ref %q: %v", name, err)
	}
	if err := r.appendReflog(name, old, "", "delete"); err != nil {
		return &RefUpdateReflogError{Ref: name, OldHash: old, Err: err}
	}
	r.log().Debug("ref deleted", "ref", name, "old", old)
	return nil
}

// ListRefs lists references under .twig/refs, resolving symbolic ones.
// Names are returned relative to refs root, e.g. "heads/main", "tags/v1".
// Refs whose chain ends at a missing ref are omitted.
func (r *Repo) ListRefs(prefix string) (map[string]object.Hash, error) {
	root := r.metaPath("refs")
	dir := root
	if strings.TrimSpace(prefix) != "" {
		dir = filepath.Join(root, filepath.FromSlash(prefix))
	}

	refs := make(map[string]object.Hash)
	err := filepath.WalkDir(dir, func(path string, d os.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if d.IsDir() || strings.HasSuffix(d.Name(), ".lock") {
			return nil
		}

		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		name := filepath.ToSlash(rel)
		resolved, err := r.ResolveRef("refs/" + name)
		if err != nil {
			return err
		}
		if resolved.Hash != "" {
			refs[name] = resolved.Hash
		}
		return nil
	})
	if errors.Is(err, fs.ErrNotExist) {
		return refs, nil
	}
	if err != nil {
		return nil, fmt.Errorf("list refs: %w", err)
	}
	return refs, nil
}

// ShowRefs returns every ref under refs/ by full name, sorted.
func (r *Repo) ShowRefs() ([]ResolvedRef, error) {
	refs, err := r.ListRefs("")
	if err != nil {
		return nil, err
	}
	out := make([]ResolvedRef, 0, len(refs))
	for name, h := range refs {
		out = append(out, ResolvedRef{Name: "refs/" + name, Hash: h})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

// validateRefName accepts HEAD and names under refs/ whose components
// follow git's check-ref-format rules.
func validateRefName(name string) error {
	if name == "HEAD" {
		return nil
	}
	rest, ok := strings.CutPrefix(name, "refs/")
	if !ok {
		return twigerr.Errorf(twigerr.ErrInvalidArgument, "invalid ref name %q: must be HEAD or start with refs/", name)
	}
	if err := validateRefPath(rest); err != nil {
		return twigerr.Errorf(twigerr.ErrInvalidArgument, "invalid ref name %q: %v", name, err)
	}
	return nil
}

// validateRefPath checks a slash-separated branch, tag, or remote name.
func validateRefPath(name string) error {
	if name == "" {
		return fmt.Errorf("empty name")
	}
	if name == "@" || strings.Contains(name, "..") || strings.Contains(name, "@{") {
		return fmt.Errorf("forbidden sequence in %q", name)
	}
	for _, c := range name {
		if c < 0x20 || c == 0x7f || strings.ContainsRune(" ~^:?*[\\", c) {
			return fmt.Errorf("forbidden character %q", c)
		}
	}
	for _, part := range strings.Split(name, "/") {
		switch {
		case part == "":
			return fmt.Errorf("empty path component")
		case strings.HasPrefix(part, "."):
			return fmt.Errorf("component %q starts with a dot", part)
		case strings.HasSuffix(part, ".lock"):
			return fmt.Errorf("component %q ends with .lock", part)
		}
	}
	if strings.HasSuffix(name, ".") {
		return fmt.Errorf("name ends with a dot")
	}
	return nil
}
