package repo

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/src-d/go-billy.v4/osfs"

	"github.com/odvcencio/twig/pkg/object"
	"github.com/odvcencio/twig/pkg/twigerr"
)

var ErrRefCASMismatch = errors.New("ref compare-and-swap mismatch")
var ErrRefUpdatedButReflogAppendFailed = errors.New("ref updated but reflog append failed")

// RefUpdateReflogError indicates the ref file update succeeded, but appending
// the corresponding reflog entry failed.
type RefUpdateReflogError struct {
	Ref     string
	OldHash object.Hash
	NewHash object.Hash
	Err     error
}

func (e *RefUpdateReflogError) Error() string {
	if e == nil {
		return "<nil>"
	}
	return fmt.Sprintf(
		"update ref %q: %s (old=%s new=%s): %v",
		e.Ref,
		ErrRefUpdatedButReflogAppendFailed,
		e.OldHash,
		e.NewHash,
		e.Err,
	)
}

func (e *RefUpdateReflogError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

func (e *RefUpdateReflogError) Is(target error) bool {
	return target == ErrRefUpdatedButReflogAppendFailed
}

const (
	refLockRetryDelay = 5 * time.Millisecond
	refLockWaitLimit  = 2 * time.Second
)

const defaultDescription = "Unnamed repository; edit this file 'description' to name the repository.\n"

// Init creates a new repository at path with DefaultConfig.
func Init(path string) (*Repo, error) {
	return InitWithConfig(path, nil)
}

// InitWithConfig creates a new repository at path. It lays out .twig/ with
// objects/, refs/heads/, refs/tags/, branches/, info/, a HEAD naming the
// unborn main branch, a description, and cfg as TOML. Fails AlreadyExists
// when path already holds a repository.
func InitWithConfig(path string, cfg *Config) (*Repo, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	codec, err := cfg.Codec()
	if err != nil {
		return nil, fmt.Errorf("init: %w", err)
	}

	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, twigerr.Errorf(twigerr.ErrInvalidArgument, "init: abs path: %v", err)
	}
	dir := filepath.Join(abs, DirName)

	if info, err := os.Stat(abs); err == nil && !info.IsDir() {
		return nil, twigerr.Errorf(twigerr.ErrInvalidArgument, "init: %s is not a directory", abs)
	}
	if _, err := os.Stat(dir); err == nil {
		return nil, twigerr.Errorf(twigerr.ErrAlreadyExists, "init: repository already exists at %s", dir)
	}

	dirs := []string{
		filepath.Join(dir, "objects"),
		filepath.Join(dir, "refs", "heads"),
		filepath.Join(dir, "refs", "tags"),
		filepath.Join(dir, "branches"),
		filepath.Join(dir, "info"),
		filepath.Join(dir, "logs", "refs", "heads"),
	}
	for _, d := range dirs {
		if err := os.MkdirAll(d, 0o755); err != nil {
			return nil, twigerr.Errorf(twigerr.ErrIO, "init: mkdir %s: %v", d, err)
		}
	}

	files := []struct {
		name string
		data string
	}{
		{"HEAD", "ref: refs/heads/" + DefaultBranch + "\n"},
		{"description", defaultDescription},
	}
	for _, f := range files {
		if err := os.WriteFile(filepath.Join(dir, f.name), []byte(f.data), 0o644); err != nil {
			return nil, twigerr.Errorf(twigerr.ErrIO, "init: write %s: %v", f.name, err)
		}
	}

	r := newRepo(abs, dir, codec, cfg)
	if err := r.WriteConfig(cfg); err != nil {
		return nil, fmt.Errorf("init: %w", err)
	}
	return r, nil
}

func newRepo(root, dir string, codec object.Codec, cfg *Config) *Repo {
	return &Repo{
		RootDir:  root,
		Dir:      dir,
		Store:    object.NewStoreWithCodec(dir, codec),
		Worktree: osfs.New(root),
		Config:   cfg,
	}
}

// Find searches upward from path for a .twig/ directory and returns the
// worktree root that holds it.
func Find(path string) (string, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", twigerr.Errorf(twigerr.ErrInvalidArgument, "find: abs path: %v", err)
	}

	cur := abs
	for {
		info, err := os.Stat(filepath.Join(cur, DirName))
		if err == nil && info.IsDir() {
			return cur, nil
		}

		parent := filepath.Dir(cur)
		if parent == cur {
			// Reached filesystem root without finding .twig/.
			return "", twigerr.Errorf(twigerr.ErrNotARepository, "not a twig repository (or any parent up to %s): %s", cur, abs)
		}
		cur = parent
	}
}

// Open locates the repository containing path and loads its config.
// Repositories written by a newer format version are refused.
func Open(path string) (*Repo, error) {
	root, err := Find(path)
	if err != nil {
		return nil, fmt.Errorf("open: %w", err)
	}
	dir := filepath.Join(root, DirName)

	cfg, err := ReadConfig(filepath.Join(dir, "config"))
	if err != nil {
		return nil, fmt.Errorf("open: %w", err)
	}
	if v := cfg.Core.RepositoryFormatVersion; v != SupportedFormatVersion {
		return nil, twigerr.Errorf(twigerr.ErrNotARepository, "open: unsupported repositoryformatversion %d", v)
	}
	codec, err := cfg.Codec()
	if err != nil {
		return nil, fmt.Errorf("open: %w", err)
	}
	return newRepo(root, dir, codec, cfg), nil
}

// UpdateRef writes a hash to the named ref file under .twig/. Parent
// directories are created as needed.
func (r *Repo) UpdateRef(name string, h object.Hash) error {
	return r.UpdateRefCAS(name, h)
}

// UpdateRefCAS writes a hash to the named ref file under .twig/ using
// lockfile + rename atomic semantics. If expectedOld is provided, the
// update only succeeds when the current ref hash matches it; an empty
// expectedOld requires the ref to be absent. A mismatch is a
// ReferenceConflict wrapping ErrRefCASMismatch.
//
// Reflog append happens after the ref rename; if reflog append fails, the ref
// update remains committed and a RefUpdateReflogError is returned.
func (r *Repo) UpdateRefCAS(name string, h object.Hash, expectedOld ...object.Hash) error {
	return r.updateRefCAS(name, h, "update", expectedOld...)
}

func (r *Repo) updateRefCAS(name string, h object.Hash, reason string, expectedOld ...object.Hash) error {
	if len(expectedOld) > 1 {
		return twigerr.Errorf(twigerr.ErrInvalidArgument, "update ref %q: expected at most one old hash", name)
	}
	if err := validateRefName(name); err != nil {
		return fmt.Errorf("update ref: %w", err)
	}
	if _, err := r.Format().ParseHash(string(h)); err != nil {
		return twigerr.Errorf(twigerr.ErrInvalidArgument, "update ref %q: %v", name, err)
	}
	hasExpectedOld := len(expectedOld) == 1
	wantOldHash := object.Hash("")
	if hasExpectedOld {
		wantOldHash = expectedOld[0]
	}

	refPath := r.metaPath(filepath.FromSlash(name))

	dir := filepath.Dir(refPath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return twigerr.Errorf(twigerr.ErrIO, "update ref %q: mkdir: %v", name, err)
	}

	lockPath := refPath + ".lock"
	lockFile, err := acquireRefLock(lockPath)
	if err != nil {
		return fmt.Errorf("update ref %q: lock: %w", name, err)
	}
	cleanupLock := true
	defer func() {
		if lockFile != nil {
			_ = lockFile.Close()
		}
		if cleanupLock {
			_ = os.Remove(lockPath)
		}
	}()

	oldHash, err := readRefHash(refPath)
	if err != nil {
		return twigerr.Errorf(twigerr.ErrIO, "update ref %q: read old hash: %v", name, err)
	}
	if hasExpectedOld && oldHash != wantOldHash {
		r.log().Debug("ref compare-and-swap mismatch", "ref", name, "expected", wantOldHash, "found", oldHash)
		return fmt.Errorf(
			"update ref %q: %w: %w",
			name,
			ErrRefCASMismatch,
			twigerr.Errorf(twigerr.ErrReferenceConflict, "expected %q, found %q", wantOldHash, oldHash),
		)
	}

	if _, err := lockFile.WriteString(string(h) + "\n"); err != nil {
		return twigerr.Errorf(twigerr.ErrIO, "update ref %q: write: %v", name, err)
	}
	if err := lockFile.Sync(); err != nil {
		return twigerr.Errorf(twigerr.ErrIO, "update ref %q: sync: %v", name, err)
	}
	if err := lockFile.Close(); err != nil {
		lockFile = nil
		return twigerr.Errorf(twigerr.ErrIO, "update ref %q: close: %v", name, err)
	}
	lockFile = nil

	if err := os.Rename(lockPath, refPath); err != nil {
		return twigerr.Errorf(twigerr.ErrIO, "update ref %q: rename: %v", name, err)
	}
	cleanupLock = false
	r.log().Debug("ref updated", "ref", name, "old", oldHash, "new", h, "reason", reason)

	if err := r.appendReflog(name, oldHash, h, reason); err != nil {
		return &RefUpdateReflogError{
			Ref:     name,
			OldHash: oldHash,
			NewHash: h,
			Err:     err,
		}
	}

	return nil
}

func acquireRefLock(lockPath string) (*os.File, error) {
	deadline := time.Now().Add(refLockWaitLimit)
	for {
		f, err := os.OpenFile(lockPath, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
		if err == nil {
			return f, nil
		}
		if os.IsExist(err) {
			if time.Now().After(deadline) {
				return nil, twigerr.Errorf(twigerr.ErrReferenceConflict, "timeout waiting for lock %q", lockPath)
			}
			time.Sleep(refLockRetryDelay)
			continue
		}
		return nil, twigerr.Errorf(twigerr.ErrIO, "%v", err)
	}
}

func readRefHash(refPath string) (object.Hash, error) {
	data, err := os.ReadFile(refPath)
	if err != nil {
		if os.IsNotExist(err) {
			return "", nil
		}
		return "", err
	}
	content := strings.TrimSpace(string(data))
	// A symbolic ref holds no address of its own.
	if strings.HasPrefix(content, symrefPrefix) {
		return "", nil
	}
	return object.Hash(content), nil
}
