package repo

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"

	"gopkg.in/src-d/go-billy.v4"
	"gopkg.in/src-d/go-git.v4/plumbing/filemode"

	"github.com/odvcencio/twig/pkg/index"
	"github.com/odvcencio/twig/pkg/object"
	"github.com/odvcencio/twig/pkg/twigerr"
)

// CheckoutTree materializes tree into dst, which must be empty or not yet
// exist. Submodule entries become empty directories.
func (r *Repo) CheckoutTree(tree object.Hash, dst billy.Filesystem) error {
	infos, err := dst.ReadDir("")
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return twigerr.Errorf(twigerr.ErrIO, "checkout tree: read %s: %v", dst.Root(), err)
	}
	if len(infos) > 0 {
		return twigerr.Errorf(twigerr.ErrInvalidArgument, "checkout tree: %s is not empty", dst.Root())
	}
	if err := r.checkoutTreeRec(tree, dst, ""); err != nil {
		return fmt.Errorf("checkout tree: %w", err)
	}
	return nil
}

func (r *Repo) checkoutTreeRec(tree object.Hash, dst billy.Filesystem, prefix string) error {
	treeObj, err := r.Store.ReadTree(tree)
	if err != nil {
		return err
	}
	if err := dst.MkdirAll(dirName(prefix), 0o755); err != nil {
		return twigerr.Errorf(twigerr.ErrIO, "mkdir %q: %v", prefix, err)
	}
	for _, te := range treeObj.Entries {
		p := path.Join(prefix, te.Name)
		switch te.Mode {
		case filemode.Dir:
			if err := r.checkoutTreeRec(te.Hash, dst, p); err != nil {
				return err
			}
		case filemode.Submodule:
			if err := dst.MkdirAll(p, 0o755); err != nil {
				return twigerr.Errorf(twigerr.ErrIO, "mkdir %q: %v", p, err)
			}
		default:
			if err := r.writeWorktreeFile(dst, p, te.Mode, te.Hash); err != nil {
				return err
			}
		}
	}
	return nil
}

func dirName(p string) string {
	if p == "" {
		return "."
	}
	return p
}

// writeWorktreeFile writes blob h at p with the permissions mode implies.
// Symlinks are recreated from the link target the blob stores.
func (r *Repo) writeWorktreeFile(wt billy.Filesystem, p string, mode filemode.FileMode, h object.Hash) error {
	blob, err := r.Store.ReadBlob(h)
	if err != nil {
		return fmt.Errorf("read blob for %q: %w", p, err)
	}
	if dir := path.Dir(p); dir != "." {
		if err := wt.MkdirAll(dir, 0o755); err != nil {
			return twigerr.Errorf(twigerr.ErrIO, "mkdir %q: %v", dir, err)
		}
	}

	switch mode {
	case filemode.Symlink:
		if err := wt.Symlink(string(blob.Data), p); err != nil {
			return twigerr.Errorf(twigerr.ErrIO, "symlink %q: %v", p, err)
		}
		return nil
	case filemode.Regular, filemode.Deprecated, filemode.Executable:
	default:
		return twigerr.Errorf(twigerr.ErrMalformedPayload, "%q has unsupported mode %s", p, mode)
	}

	f, err := wt.OpenFile(p, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, filePermFromMode(mode))
	if err != nil {
		return twigerr.Errorf(twigerr.ErrIO, "write %q: %v", p, err)
	}
	if _, err := f.Write(blob.Data); err != nil {
		f.Close()
		return twigerr.Errorf(twigerr.ErrIO, "write %q: %v", p, err)
	}
	if err := f.Close(); err != nil {
		return twigerr.Errorf(twigerr.ErrIO, "write %q: %v", p, err)
	}
	return nil
}

// Checkout switches the working tree to the state of the target.
// The target can be a branch name or any revision RevParse accepts; the
// latter detaches HEAD.
//
// Algorithm:
//  1. Check for uncommitted changes and refuse if any exist.
//  2. Resolve target: try as branch name first, then as a revision.
//  3. Read the target commit, flatten its tree.
//  4. Refuse if an untracked file is in the way of a target file.
//  5. Remove tracked files the target does not have.
//  6. Write all files from the target tree to the working tree.
//  7. Replace the index with the target tree, carrying fresh stat data.
//  8. Update HEAD (symbolic ref for a branch, raw hash when detached).
func (r *Repo) Checkout(target string) error {
	// 1. Check for uncommitted changes.
	if err := r.ensureClean(); err != nil {
		return fmt.Errorf("checkout: %w", err)
	}

	// 2. Resolve target.
	branchRef := headsPrefix + target
	isBranch := validateBranchName(target) == nil
	var targetHash object.Hash
	if isBranch {
		resolved, err := r.ResolveRef(branchRef)
		if err != nil {
			return fmt.Errorf("checkout: %w", err)
		}
		targetHash = resolved.Hash
		isBranch = targetHash != ""
	}
	if !isBranch {
		h, err := r.RevParse(target)
		if err != nil {
			return fmt.Errorf("checkout: %w", err)
		}
		if targetHash, err = r.PeelToCommit(h); err != nil {
			return fmt.Errorf("checkout: %w", err)
		}
	}

	// 3. Read the target commit and flatten its tree.
	commit, err := r.Store.ReadCommit(targetHash)
	if err != nil {
		return fmt.Errorf("checkout: cannot read commit %s: %w", targetHash, err)
	}
	targetFiles, err := r.FlattenTree(commit.TreeHash)
	if err != nil {
		return fmt.Errorf("checkout: flatten target tree: %w", err)
	}

	idx, err := r.ReadIndex()
	if err != nil {
		return fmt.Errorf("checkout: %w", err)
	}

	// 4. Refuse to clobber untracked files.
	for _, f := range targetFiles {
		if _, tracked := idx.Entry(f.Path); tracked {
			continue
		}
		if _, err := r.Worktree.Lstat(f.Path); err == nil {
			return twigerr.Errorf(twigerr.ErrInvalidArgument, "checkout: untracked file %q would be overwritten", f.Path)
		}
	}

	// 5. Remove tracked files the target lacks, or whose kind changes.
	targetMap := make(map[string]TreeFileEntry, len(targetFiles))
	for _, f := range targetFiles {
		targetMap[f.Path] = f
	}
	for _, ie := range idx.Entries {
		if tf, keep := targetMap[ie.Path]; keep && tf.Mode != filemode.Symlink && ie.Mode != filemode.Symlink {
			continue
		}
		if err := r.Worktree.Remove(ie.Path); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return twigerr.Errorf(twigerr.ErrIO, "checkout: remove %q: %v", ie.Path, err)
		}
		r.removeEmptyParents(path.Dir(ie.Path))
	}

	// 6. Write target files, skipping those already current.
	next := index.New(r.Format())
	for _, f := range targetFiles {
		ie, tracked := idx.Entry(f.Path)
		if !tracked || ie.Hash != f.Hash || ie.Mode != f.Mode {
			if err := r.writeWorktreeFile(r.Worktree, f.Path, f.Mode, f.Hash); err != nil {
				return fmt.Errorf("checkout: %w", err)
			}
		}

		// 7. Stage with fresh stat data.
		info, err := r.Worktree.Lstat(f.Path)
		if err != nil {
			return twigerr.Errorf(twigerr.ErrIO, "checkout: stat %q: %v", f.Path, err)
		}
		e := &index.Entry{Path: f.Path, Hash: f.Hash, Mode: f.Mode}
		e.SetStat(info)
		next.Upsert(e)
	}
	if err := r.WriteIndex(next); err != nil {
		return fmt.Errorf("checkout: %w", err)
	}

	// 8. Update HEAD.
	from := "HEAD"
	if cur, err := r.Head(); err == nil {
		from = cur
	}
	if isBranch {
		if err := r.SetSymbolicRef("HEAD", branchRef); err != nil {
			return fmt.Errorf("checkout: update HEAD: %w", err)
		}
		return nil
	}
	if err := r.updateRefCAS("HEAD", targetHash, "checkout: moving from "+from+" to "+string(targetHash)); err != nil {
		return fmt.Errorf("checkout: update HEAD: %w", err)
	}
	return nil
}

// ensureClean checks that nothing is staged or modified relative to HEAD.
// Untracked files are allowed.
func (r *Repo) ensureClean() error {
	entries, err := r.Status()
	if err != nil {
		return fmt.Errorf("check status: %w", err)
	}
	for _, e := range entries {
		if e.IndexStatus == StatusUntracked {
			continue
		}
		if e.IndexStatus != StatusClean || e.WorkStatus != StatusClean {
			return twigerr.Errorf(twigerr.ErrInvalidArgument, "working tree is not clean (file %q has uncommitted changes)", e.Path)
		}
	}
	return nil
}

// removeEmptyParents removes empty directories up to (but not including)
// the worktree root.
func (r *Repo) removeEmptyParents(dir string) {
	for dir != "." && dir != "/" && dir != "" {
		infos, err := r.Worktree.ReadDir(dir)
		if err != nil || len(infos) > 0 {
			return
		}
		if err := r.Worktree.Remove(dir); err != nil {
			return
		}
		dir = path.Dir(dir)
	}
}
