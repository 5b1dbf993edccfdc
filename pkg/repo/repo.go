package repo

import (
	"io"
	"log/slog"
	"path/filepath"
	"time"

	"gopkg.in/src-d/go-billy.v4"

	"github.com/odvcencio/twig/pkg/object"
)

// DirName is the marker directory holding a repository's metadata.
const DirName = ".twig"

// DefaultBranch is the branch HEAD names in a fresh repository.
const DefaultBranch = "main"

// Repo represents an opened twig repository.
type Repo struct {
	RootDir  string           // working directory root
	Dir      string           // .twig/ directory
	Store    *object.Store    // content-addressed object store
	Worktree billy.Filesystem // working tree rooted at RootDir
	Config   *Config

	// GlobalIgnoreFile is consulted after .twig/info/exclude when expanding
	// directories and listing untracked files. Empty means none.
	GlobalIgnoreFile string

	// Logger receives debug traces of ref updates and index rewrites. A nil
	// Logger discards them.
	Logger *slog.Logger

	// now stamps reflog entries; tests pin it.
	now func() time.Time
}

var discardLogger = slog.New(slog.NewTextHandler(io.Discard, nil))

func (r *Repo) log() *slog.Logger {
	if r.Logger == nil {
		return discardLogger
	}
	return r.Logger
}

func (r *Repo) clock() time.Time {
	if r.now != nil {
		return r.now()
	}
	return time.Now()
}

// Format is the digest algorithm the repository addresses objects with.
func (r *Repo) Format() object.Format {
	return r.Store.Format()
}

func (r *Repo) metaPath(elem ...string) string {
	return filepath.Join(append([]string{r.Dir}, elem...)...)
}

func (r *Repo) indexPath() string {
	return r.metaPath("index")
}
