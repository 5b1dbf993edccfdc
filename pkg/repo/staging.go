package repo

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strings"

	"gopkg.in/src-d/go-billy.v4"
	"gopkg.in/src-d/go-git.v4/plumbing/filemode"

	"github.com/odvcencio/twig/pkg/index"
	"github.com/odvcencio/twig/pkg/object"
	"github.com/odvcencio/twig/pkg/twigerr"
)

// ReadIndex loads .twig/index. If the file does not exist, an empty index
// is returned (no error).
func (r *Repo) ReadIndex() (*index.Index, error) {
	idx, err := index.Load(r.indexPath(), r.Format())
	if err != nil {
		return nil, fmt.Errorf("read index: %w", err)
	}
	return idx, nil
}

// WriteIndex atomically replaces .twig/index.
func (r *Repo) WriteIndex(idx *index.Index) error {
	if err := index.Save(r.indexPath(), idx); err != nil {
		return fmt.Errorf("write index: %w", err)
	}
	r.log().Debug("index written", "entries", idx.Len())
	return nil
}

// Stage writes data as a blob and records it at path with the stat data of
// info. The index is saved before Stage returns. Staging the same bytes
// twice writes no second object.
//
// info may be nil when the caller has only the bytes: the entry then keeps
// the mode it was staged with before (regular for a new path) and carries
// no stat data, so status always re-hashes it.
func (r *Repo) Stage(relPath string, data []byte, info os.FileInfo) error {
	p, err := cleanRelPath(relPath)
	if err != nil {
		return fmt.Errorf("stage: %w", err)
	}
	if p == "." {
		return twigerr.Errorf(twigerr.ErrInvalidArgument, "stage: %q is not a file path", relPath)
	}
	idx, err := r.ReadIndex()
	if err != nil {
		return fmt.Errorf("stage: %w", err)
	}
	if err := r.stageInto(idx, p, data, info); err != nil {
		return fmt.Errorf("stage: %w", err)
	}
	return r.WriteIndex(idx)
}

// Unstage drops path from the index. A path that is not staged is left
// alone.
func (r *Repo) Unstage(relPath string) error {
	p, err := cleanRelPath(relPath)
	if err != nil {
		return fmt.Errorf("unstage: %w", err)
	}
	idx, err := r.ReadIndex()
	if err != nil {
		return fmt.Errorf("unstage: %w", err)
	}
	if !idx.Remove(p) {
		return nil
	}
	return r.WriteIndex(idx)
}

func (r *Repo) stageInto(idx *index.Index, p string, data []byte, info os.FileInfo) error {
	prev, _ := idx.Entry(p)
	mode := filemode.Regular
	if info != nil {
		m, err := r.worktreeMode(info, prev)
		if err != nil {
			return twigerr.Errorf(twigerr.ErrInvalidArgument, "%s: %v", p, err)
		}
		mode = m
	} else if prev != nil {
		mode = prev.Mode
	}
	if mode != filemode.Regular && mode != filemode.Executable && mode != filemode.Symlink {
		return twigerr.Errorf(twigerr.ErrInvalidArgument, "%s: cannot stage mode %s", p, mode)
	}

	h, err := r.Store.WriteBlob(&object.Blob{Data: data})
	if err != nil {
		return fmt.Errorf("write blob %q: %w", p, err)
	}

	// A path is either a file or a directory in a tree, never both, so
	// whichever side is being replaced leaves the index.
	for dir := path.Dir(p); dir != "."; dir = path.Dir(dir) {
		idx.Remove(dir)
	}
	for _, other := range idx.Paths() {
		if strings.HasPrefix(other, p+"/") {
			idx.Remove(other)
		}
	}

	e := &index.Entry{Path: p, Hash: h, Mode: mode}
	if info != nil {
		e.SetStat(info)
	} else {
		e.Size = uint32(len(data))
	}
	idx.Upsert(e)
	return nil
}

// Add stages the given paths from the worktree. Each path is resolved
// relative to the repo root. Directories are expanded recursively, skipping
// ignored files; tracked files that vanished from disk are dropped from the
// index.
func (r *Repo) Add(paths []string) error {
	idx, err := r.ReadIndex()
	if err != nil {
		return fmt.Errorf("add: %w", err)
	}
	var ic *IgnoreChecker

	for _, raw := range paths {
		p, err := r.repoRelPath(raw)
		if err != nil {
			return fmt.Errorf("add: %w", err)
		}

		info, err := r.Worktree.Lstat(worktreeName(p))
		if errors.Is(err, fs.ErrNotExist) {
			if removeStaged(idx, p) == 0 {
				return twigerr.Errorf(twigerr.ErrInvalidArgument, "add: pathspec %q did not match any files", raw)
			}
			continue
		}
		if err != nil {
			return twigerr.Errorf(twigerr.ErrIO, "add: stat %q: %v", p, err)
		}

		if !info.IsDir() {
			if err := r.addFile(idx, p, info); err != nil {
				return fmt.Errorf("add: %w", err)
			}
			continue
		}

		if ic == nil {
			if ic, err = r.NewIgnoreChecker(r.GlobalIgnoreFile); err != nil {
				return fmt.Errorf("add: %w", err)
			}
		}
		seen := make(map[string]struct{})
		err = r.walkWorktree(p, ic, func(rel string, info os.FileInfo) error {
			seen[rel] = struct{}{}
			return r.addFile(idx, rel, info)
		})
		if err != nil {
			return fmt.Errorf("add: %w", err)
		}
		for _, staged := range idx.Paths() {
			if _, ok := seen[staged]; ok || !underDir(staged, p) {
				continue
			}
			if _, err := r.Worktree.Lstat(staged); errors.Is(err, fs.ErrNotExist) {
				idx.Remove(staged)
			}
		}
	}

	return r.WriteIndex(idx)
}

func (r *Repo) addFile(idx *index.Index, p string, info os.FileInfo) error {
	if prev, ok := idx.Entry(p); ok && prev.StatMatches(info) {
		if m, err := r.worktreeMode(info, prev); err == nil && m == prev.Mode {
			return nil
		}
	}
	data, err := readWorktreeFile(r.Worktree, p, info)
	if err != nil {
		return err
	}
	return r.stageInto(idx, p, data, info)
}

// Remove drops paths from the index; a directory removes everything staged
// beneath it. With deleteFiles the worktree copies are deleted as well.
// Naming a path with nothing staged under it is an InvalidArgument and
// leaves the index untouched.
func (r *Repo) Remove(paths []string, deleteFiles bool) error {
	idx, err := r.ReadIndex()
	if err != nil {
		return fmt.Errorf("rm: %w", err)
	}

	var removed []string
	for _, raw := range paths {
		p, err := r.repoRelPath(raw)
		if err != nil {
			return fmt.Errorf("rm: %w", err)
		}
		var matched []string
		for _, staged := range idx.Paths() {
			if underDir(staged, p) {
				matched = append(matched, staged)
			}
		}
		if len(matched) == 0 {
			return twigerr.Errorf(twigerr.ErrInvalidArgument, "rm: %q is not in the index", raw)
		}
		for _, m := range matched {
			idx.Remove(m)
		}
		removed = append(removed, matched...)
	}

	if deleteFiles {
		for _, p := range removed {
			if err := r.Worktree.Remove(p); err != nil && !errors.Is(err, fs.ErrNotExist) {
				return twigerr.Errorf(twigerr.ErrIO, "rm: delete %q: %v", p, err)
			}
		}
	}
	return r.WriteIndex(idx)
}

// removeStaged drops p, or everything under p, and returns how many entries
// went.
func removeStaged(idx *index.Index, p string) int {
	n := 0
	for _, staged := range idx.Paths() {
		if underDir(staged, p) {
			idx.Remove(staged)
			n++
		}
	}
	return n
}

// underDir reports whether p is dir itself or lies beneath it. The root
// (".") contains everything.
func underDir(p, dir string) bool {
	return dir == "." || p == dir || strings.HasPrefix(p, dir+"/")
}

// walkWorktree calls fn for every non-directory under dir that the ignore
// rules keep. The repository marker directory is never entered.
func (r *Repo) walkWorktree(dir string, ic *IgnoreChecker, fn func(rel string, info os.FileInfo) error) error {
	infos, err := r.Worktree.ReadDir(worktreeName(dir))
	if err != nil {
		return twigerr.Errorf(twigerr.ErrIO, "read dir %q: %v", dir, err)
	}
	for _, info := range infos {
		rel := info.Name()
		if dir != "." {
			rel = dir + "/" + rel
		}
		if isMetaDir(info.Name()) || ic.IsIgnored(rel, info.IsDir()) {
			continue
		}
		if info.IsDir() {
			if err := r.walkWorktree(rel, ic, fn); err != nil {
				return err
			}
			continue
		}
		if err := fn(rel, info); err != nil {
			return err
		}
	}
	return nil
}

// readWorktreeFile returns the blob content for a worktree file: the bytes
// of a regular file, or the target of a symlink.
func readWorktreeFile(wt billy.Filesystem, p string, info os.FileInfo) ([]byte, error) {
	if info.Mode()&os.ModeSymlink != 0 {
		target, err := wt.Readlink(p)
		if err != nil {
			return nil, twigerr.Errorf(twigerr.ErrIO, "readlink %q: %v", p, err)
		}
		return []byte(filepath.ToSlash(target)), nil
	}
	f, err := wt.Open(p)
	if err != nil {
		return nil, twigerr.Errorf(twigerr.ErrIO, "open %q: %v", p, err)
	}
	defer f.Close()
	data, err := io.ReadAll(f)
	if err != nil {
		return nil, twigerr.Errorf(twigerr.ErrIO, "read %q: %v", p, err)
	}
	return data, nil
}

func worktreeName(p string) string {
	if p == "." {
		return ""
	}
	return p
}

// RelPath is repoRelPath for callers outside the package.
func (r *Repo) RelPath(p string) (string, error) {
	return r.repoRelPath(p)
}

// repoRelPath converts a path (absolute, or relative to CWD) into a path
// relative to the repository root. A relative path that does not land
// inside the repo from the CWD is taken as already repo-relative. Paths
// that still escape the worktree or point into .twig are rejected.
func (r *Repo) repoRelPath(p string) (string, error) {
	if strings.TrimSpace(p) == "" {
		return "", twigerr.Errorf(twigerr.ErrInvalidArgument, "empty path")
	}
	if filepath.IsAbs(p) {
		rel, err := filepath.Rel(r.RootDir, p)
		if err != nil {
			return "", twigerr.Errorf(twigerr.ErrInvalidArgument, "cannot make %q relative to %q: %v", p, r.RootDir, err)
		}
		return cleanRelPath(rel)
	}

	if cwd, err := os.Getwd(); err == nil {
		if rel, err := filepath.Rel(r.RootDir, filepath.Join(cwd, p)); err == nil && !escapes(rel) {
			return cleanRelPath(rel)
		}
	}
	return cleanRelPath(p)
}

// cleanRelPath normalizes a repo-relative path to slash form. "." names the
// worktree root.
func cleanRelPath(p string) (string, error) {
	clean := path.Clean(filepath.ToSlash(p))
	if path.IsAbs(clean) || escapes(clean) {
		return "", twigerr.Errorf(twigerr.ErrInvalidArgument, "path %q is outside the worktree", p)
	}
	for _, part := range strings.Split(clean, "/") {
		if isMetaDir(part) {
			return "", twigerr.Errorf(twigerr.ErrInvalidArgument, "path %q is inside the repository directory", p)
		}
	}
	return clean, nil
}

func escapes(rel string) bool {
	rel = filepath.ToSlash(rel)
	return rel == ".." || strings.HasPrefix(rel, "../")
}
