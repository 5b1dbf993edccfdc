package repo

import (
	"errors"
	"fmt"
	"io/fs"
	"sort"

	"gopkg.in/src-d/go-git.v4/plumbing/filemode"

	"github.com/odvcencio/twig/pkg/object"
)

// FileChange is one path whose content or mode differs between two
// snapshots. Before is nil for an added path and After nil for a removed
// one.
type FileChange struct {
	Path       string
	Before     []byte
	After      []byte
	BeforeMode filemode.FileMode
	AfterMode  filemode.FileMode
}

// DiffStaged lists the changes the index holds relative to the HEAD
// commit, sorted by path. On an unborn branch every staged file is added.
func (r *Repo) DiffStaged() ([]FileChange, error) {
	idx, err := r.ReadIndex()
	if err != nil {
		return nil, fmt.Errorf("diff staged: %w", err)
	}
	head, err := r.headTreeEntries()
	if err != nil {
		return nil, fmt.Errorf("diff staged: %w", err)
	}

	var changes []FileChange
	for _, e := range idx.Entries {
		old, inHead := head[e.Path]
		if inHead && old.Hash == e.Hash && old.Mode == e.Mode {
			continue
		}
		c := FileChange{Path: e.Path, AfterMode: e.Mode}
		if c.After, err = r.blobData(e.Hash); err != nil {
			return nil, fmt.Errorf("diff staged: %w", err)
		}
		if inHead {
			c.BeforeMode = old.Mode
			if c.Before, err = r.blobData(old.Hash); err != nil {
				return nil, fmt.Errorf("diff staged: %w", err)
			}
		}
		changes = append(changes, c)
	}
	for p, old := range head {
		if _, staged := idx.Entry(p); staged {
			continue
		}
		data, err := r.blobData(old.Hash)
		if err != nil {
			return nil, fmt.Errorf("diff staged: %w", err)
		}
		changes = append(changes, FileChange{Path: p, Before: data, BeforeMode: old.Mode})
	}

	sort.Slice(changes, func(i, j int) bool { return changes[i].Path < changes[j].Path })
	return changes, nil
}

// DiffWorktree lists tracked files whose working-tree content or mode
// differs from the index, sorted by path. Untracked files are not
// reported.
func (r *Repo) DiffWorktree() ([]FileChange, error) {
	idx, err := r.ReadIndex()
	if err != nil {
		return nil, fmt.Errorf("diff worktree: %w", err)
	}

	var changes []FileChange
	for _, e := range idx.Entries {
		before, err := r.blobData(e.Hash)
		if err != nil {
			return nil, fmt.Errorf("diff worktree: %w", err)
		}
		info, err := r.Worktree.Lstat(e.Path)
		if errors.Is(err, fs.ErrNotExist) || (err == nil && info.IsDir()) {
			changes = append(changes, FileChange{Path: e.Path, Before: before, BeforeMode: e.Mode})
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("diff worktree: stat %q: %w", e.Path, err)
		}
		if statMatchesWorktree(e, info) {
			continue
		}
		mode, err := r.worktreeMode(info, e)
		if err != nil {
			return nil, fmt.Errorf("diff worktree: %q: %w", e.Path, err)
		}
		after, err := readWorktreeFile(r.Worktree, e.Path, info)
		if err != nil {
			return nil, fmt.Errorf("diff worktree: %w", err)
		}
		if mode == e.Mode && r.Format().HashObject(object.KindBlob, after) == e.Hash {
			continue
		}
		if after == nil {
			after = []byte{}
		}
		changes = append(changes, FileChange{
			Path:       e.Path,
			Before:     before,
			After:      after,
			BeforeMode: e.Mode,
			AfterMode:  mode,
		})
	}
	return changes, nil
}

// blobData returns a blob's bytes, never nil, so an empty file still
// reads as present.
func (r *Repo) blobData(h object.Hash) ([]byte, error) {
	b, err := r.Store.ReadBlob(h)
	if err != nil {
		return nil, err
	}
	if b.Data == nil {
		return []byte{}, nil
	}
	return b.Data, nil
}
