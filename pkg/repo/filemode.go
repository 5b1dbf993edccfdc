package repo

import (
	"os"

	"gopkg.in/src-d/go-git.v4/plumbing/filemode"

	"github.com/odvcencio/twig/pkg/index"
)

// worktreeMode picks the index mode for a file on disk. With core.filemode
// off the executable bit on disk is not trusted, so a tracked file keeps the
// mode it was staged with.
func (r *Repo) worktreeMode(info os.FileInfo, prev *index.Entry) (filemode.FileMode, error) {
	m, err := index.ModeOf(info)
	if err != nil {
		return filemode.Empty, err
	}
	if r.Config != nil && !r.Config.Core.FileMode && m != filemode.Symlink {
		if prev != nil && prev.Mode == filemode.Executable {
			return filemode.Executable, nil
		}
		return filemode.Regular, nil
	}
	return m, nil
}

func filePermFromMode(m filemode.FileMode) os.FileMode {
	if m == filemode.Executable {
		return 0o755
	}
	return 0o644
}
