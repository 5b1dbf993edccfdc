package repo

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"sort"
	"time"

	"gopkg.in/src-d/go-git.v4/plumbing/filemode"

	"github.com/odvcencio/twig/pkg/index"
	"github.com/odvcencio/twig/pkg/object"
)

// FileStatus represents the state of a file in the working tree or index.
type FileStatus int

const (
	StatusClean     FileStatus = iota // file matches between compared areas
	StatusNew                         // in the index, not in the HEAD tree
	StatusModified                    // content or mode differs
	StatusRenamed                     // same content and mode, path changed
	StatusDeleted                     // in HEAD but not in the index, or staged but gone from disk
	StatusUntracked                   // in the working tree but not in the index
)

// Code is the one-letter column status prints for s.
func (s FileStatus) Code() string {
	switch s {
	case StatusNew:
		return "A"
	case StatusModified:
		return "M"
	case StatusRenamed:
		return "R"
	case StatusDeleted:
		return "D"
	case StatusUntracked:
		return "?"
	}
	return " "
}

// StatusEntry records the status of a single file.
type StatusEntry struct {
	Path        string     // repo-relative path
	RenamedFrom string     // non-empty when IndexStatus or WorkStatus is StatusRenamed
	IndexStatus FileStatus // index vs HEAD comparison
	WorkStatus  FileStatus // working tree vs index comparison
}

type headTreeState struct {
	Hash object.Hash
	Mode filemode.FileMode
}

// statusRacyCleanWindow is how recent an mtime must be before the stat
// fast path stops trusting it: an edit within the same timestamp tick as
// the stage would otherwise go unseen.
const statusRacyCleanWindow = 2 * time.Second

// Status computes the working tree status for the repository.
//
// Algorithm:
//  1. Read the index.
//  2. Walk the working tree (skipping .twig/ and ignored paths).
//  3. Compare working tree files against index entries: stat data first,
//     content hash when stat data disagrees.
//  4. Compare index entries against the HEAD tree (if any).
//  5. Return entries sorted by path.
//
// Entries whose content turned out unchanged get fresh stat data, and the
// index is rewritten so the next run takes the fast path.
func (r *Repo) Status() ([]StatusEntry, error) {
	idx, err := r.ReadIndex()
	if err != nil {
		return nil, fmt.Errorf("status: %w", err)
	}
	ic, err := r.NewIgnoreChecker(r.GlobalIgnoreFile)
	if err != nil {
		return nil, fmt.Errorf("status: %w", err)
	}

	workFiles := make(map[string]os.FileInfo)
	err = r.walkWorktree(".", ic, func(rel string, info os.FileInfo) error {
		workFiles[rel] = info
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("status: walk: %w", err)
	}
	// Tracked files stay tracked even when an ignore rule matches them.
	for _, e := range idx.Entries {
		if _, ok := workFiles[e.Path]; ok {
			continue
		}
		info, err := r.Worktree.Lstat(e.Path)
		if err == nil && !info.IsDir() {
			workFiles[e.Path] = info
		} else if err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("status: stat %q: %w", e.Path, err)
		}
	}

	result := make(map[string]*StatusEntry)
	entryFor := func(path string) *StatusEntry {
		e, ok := result[path]
		if !ok {
			e = &StatusEntry{Path: path}
			result[path] = e
		}
		return e
	}

	workRenamedNewToOld, workRenamedOldToNew, err := r.detectWorktreeRenames(idx, workFiles)
	if err != nil {
		return nil, fmt.Errorf("status: detect worktree renames: %w", err)
	}
	refreshIndex := false

	// --- Working tree vs index ---

	for path, info := range workFiles {
		ie, staged := idx.Entry(path)
		if !staged {
			e := entryFor(path)
			e.IndexStatus = StatusUntracked
			e.WorkStatus = StatusUntracked
			if oldPath, renamed := workRenamedNewToOld[path]; renamed {
				e.WorkStatus = StatusRenamed
				e.RenamedFrom = oldPath
			}
			continue
		}

		workStatus := StatusClean
		if !statMatchesWorktree(ie, info) {
			workMode, err := r.worktreeMode(info, ie)
			if err != nil {
				return nil, fmt.Errorf("status: %q: %w", path, err)
			}
			workHash, err := r.hashWorktreeFile(path, info)
			if err != nil {
				return nil, fmt.Errorf("status: %w", err)
			}
			if workHash != ie.Hash || workMode != ie.Mode {
				workStatus = StatusModified
			} else if !ie.StatMatches(info) {
				ie.SetStat(info)
				refreshIndex = true
			}
		}
		entryFor(path).WorkStatus = workStatus
	}

	for _, ie := range idx.Entries {
		if _, onDisk := workFiles[ie.Path]; onDisk {
			continue
		}
		if _, renamed := workRenamedOldToNew[ie.Path]; renamed {
			continue
		}
		entryFor(ie.Path).WorkStatus = StatusDeleted
	}

	// --- Index vs HEAD ---

	headEntries, err := r.headTreeEntries()
	if err != nil {
		return nil, fmt.Errorf("status: %w", err)
	}
	indexRenamedNewToOld, indexRenamedOldToNew := detectIndexRenames(idx, headEntries)

	for _, ie := range idx.Entries {
		e := entryFor(ie.Path)
		headState, inHead := headEntries[ie.Path]
		switch {
		case !inHead:
			if oldPath, renamed := indexRenamedNewToOld[ie.Path]; renamed {
				e.IndexStatus = StatusRenamed
				e.RenamedFrom = oldPath
			} else {
				e.IndexStatus = StatusNew
			}
		case ie.Hash != headState.Hash || ie.Mode != headState.Mode:
			e.IndexStatus = StatusModified
		default:
			e.IndexStatus = StatusClean
		}
	}

	for path := range headEntries {
		if _, staged := idx.Entry(path); staged {
			continue
		}
		if _, renamed := indexRenamedOldToNew[path]; renamed {
			continue
		}
		entryFor(path).IndexStatus = StatusDeleted
	}

	entries := make([]StatusEntry, 0, len(result))
	for _, e := range result {
		entries = append(entries, *e)
	}
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Path < entries[j].Path
	})

	if refreshIndex {
		if err := r.WriteIndex(idx); err != nil {
			return nil, fmt.Errorf("status: refresh index: %w", err)
		}
	}
	return entries, nil
}

// headTreeEntries flattens the HEAD commit's tree into path -> state. An
// unborn branch has no entries.
func (r *Repo) headTreeEntries() (map[string]headTreeState, error) {
	result := make(map[string]headTreeState)

	head, err := r.ResolveRef("HEAD")
	if err != nil {
		return nil, err
	}
	if head.Hash == "" {
		return result, nil
	}
	commit, err := r.Store.ReadCommit(head.Hash)
	if err != nil {
		return nil, fmt.Errorf("read HEAD commit: %w", err)
	}
	files, err := r.FlattenTree(commit.TreeHash)
	if err != nil {
		return nil, err
	}
	for _, f := range files {
		result[f.Path] = headTreeState{Hash: f.Hash, Mode: f.Mode}
	}
	return result, nil
}

func (r *Repo) hashWorktreeFile(path string, info os.FileInfo) (object.Hash, error) {
	data, err := readWorktreeFile(r.Worktree, path, info)
	if err != nil {
		return "", err
	}
	return r.Format().HashObject(object.KindBlob, data), nil
}

func statMatchesWorktree(ie *index.Entry, info os.FileInfo) bool {
	if ie.AssumeValid {
		return true
	}
	if isRacyCleanModTime(info.ModTime()) {
		return false
	}
	return ie.StatMatches(info)
}

func isRacyCleanModTime(modTime time.Time) bool {
	now := time.Now()
	if modTime.After(now) {
		return true
	}
	return now.Sub(modTime) < statusRacyCleanWindow
}

func detectIndexRenames(idx *index.Index, headEntries map[string]headTreeState) (map[string]string, map[string]string) {
	newByKey := make(map[headTreeState][]string)
	oldByKey := make(map[headTreeState][]string)

	for _, ie := range idx.Entries {
		if _, inHead := headEntries[ie.Path]; inHead {
			continue
		}
		key := headTreeState{Hash: ie.Hash, Mode: ie.Mode}
		newByKey[key] = append(newByKey[key], ie.Path)
	}
	for path, hs := range headEntries {
		if _, staged := idx.Entry(path); staged {
			continue
		}
		oldByKey[hs] = append(oldByKey[hs], path)
	}

	return pairRenameCandidates(newByKey, oldByKey)
}

func (r *Repo) detectWorktreeRenames(idx *index.Index, workFiles map[string]os.FileInfo) (map[string]string, map[string]string, error) {
	oldByKey := make(map[headTreeState][]string)
	newByKey := make(map[headTreeState][]string)

	for _, ie := range idx.Entries {
		if _, onDisk := workFiles[ie.Path]; onDisk {
			continue
		}
		key := headTreeState{Hash: ie.Hash, Mode: ie.Mode}
		oldByKey[key] = append(oldByKey[key], ie.Path)
	}
	if len(oldByKey) == 0 {
		return map[string]string{}, map[string]string{}, nil
	}

	for path, info := range workFiles {
		if _, staged := idx.Entry(path); staged {
			continue
		}
		mode, err := r.worktreeMode(info, nil)
		if err != nil {
			continue
		}
		h, err := r.hashWorktreeFile(path, info)
		if err != nil {
			return nil, nil, err
		}
		key := headTreeState{Hash: h, Mode: mode}
		newByKey[key] = append(newByKey[key], path)
	}

	newToOld, oldToNew := pairRenameCandidates(newByKey, oldByKey)
	return newToOld, oldToNew, nil
}

func pairRenameCandidates(newByKey, oldByKey map[headTreeState][]string) (map[string]string, map[string]string) {
	newToOld := make(map[string]string)
	oldToNew := make(map[string]string)

	for key, newPaths := range newByKey {
		oldPaths := oldByKey[key]
		if len(oldPaths) == 0 {
			continue
		}

		sort.Strings(newPaths)
		sort.Strings(oldPaths)

		n := min(len(newPaths), len(oldPaths))
		for i := 0; i < n; i++ {
			newToOld[newPaths[i]] = oldPaths[i]
			oldToNew[oldPaths[i]] = newPaths[i]
		}
	}

	return newToOld, oldToNew
}
