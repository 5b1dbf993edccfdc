package repo

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/odvcencio/twig/pkg/object"
	"github.com/odvcencio/twig/pkg/twigerr"
)

const headsPrefix = "refs/heads/"

// CreateBranch creates a new branch pointing at the given commit. It
// writes the hash to .twig/refs/heads/<name> and fails AlreadyExists if the
// branch is already there.
func (r *Repo) CreateBranch(name string, target object.Hash) error {
	if err := validateBranchName(name); err != nil {
		return fmt.Errorf("create branch: %w", err)
	}
	if err := r.expectKind(target, object.KindCommit); err != nil {
		return fmt.Errorf("create branch %q: %w", name, err)
	}
	err := r.updateRefCAS(headsPrefix+name, target, "branch: created from "+string(target), "")
	if errors.Is(err, ErrRefCASMismatch) {
		return twigerr.Errorf(twigerr.ErrAlreadyExists, "create branch: branch %q already exists", name)
	}
	if err != nil {
		return fmt.Errorf("create branch %q: %w", name, err)
	}
	return nil
}

// DeleteBranch removes .twig/refs/heads/<name>. The current branch cannot
// be deleted.
func (r *Repo) DeleteBranch(name string) error {
	if err := validateBranchName(name); err != nil {
		return fmt.Errorf("delete branch: %w", err)
	}
	current, err := r.CurrentBranch()
	if err != nil {
		return fmt.Errorf("delete branch: %w", err)
	}
	if current == name {
		return twigerr.Errorf(twigerr.ErrInvalidArgument, "delete branch: cannot delete current branch %q", name)
	}
	if err := r.DeleteRef(headsPrefix + name); err != nil {
		return fmt.Errorf("delete branch %q: %w", name, err)
	}
	return nil
}

// ListBranches returns the branch names under .twig/refs/heads/ sorted
// alphabetically. Nested names such as "feature/x" are included.
func (r *Repo) ListBranches() ([]string, error) {
	refs, err := r.ListRefs("heads")
	if err != nil {
		return nil, fmt.Errorf("list branches: %w", err)
	}
	names := make([]string, 0, len(refs))
	for full := range refs {
		names = append(names, strings.TrimPrefix(full, "heads/"))
	}
	sort.Strings(names)
	return names, nil
}

// CurrentBranch reads HEAD and returns the branch name if HEAD is a symbolic
// ref (e.g. "ref: refs/heads/main" → "main"). If HEAD is detached (contains
// a raw hash), it returns "".
func (r *Repo) CurrentBranch() (string, error) {
	head, err := r.Head()
	if err != nil {
		return "", fmt.Errorf("current branch: %w", err)
	}
	if name, ok := strings.CutPrefix(head, headsPrefix); ok {
		return name, nil
	}
	return "", nil
}

func validateBranchName(name string) error {
	if name == "HEAD" {
		return twigerr.Errorf(twigerr.ErrInvalidArgument, "invalid branch name %q", name)
	}
	if err := validateRefPath(name); err != nil {
		return twigerr.Errorf(twigerr.ErrInvalidArgument, "invalid branch name %q: %v", name, err)
	}
	return nil
}
