package index

import (
	"os"
	"time"

	"gopkg.in/src-d/go-git.v4/plumbing/filemode"
)

// sysStat is the platform metadata an os.FileInfo may carry.
type sysStat struct {
	ctime    time.Time
	dev, ino uint32
	uid, gid uint32
}

// ModeOf returns the index mode for a worktree file.
func ModeOf(info os.FileInfo) (filemode.FileMode, error) {
	m, err := filemode.NewFromOSFileMode(info.Mode())
	if err != nil {
		return filemode.Empty, err
	}
	if m == filemode.Deprecated {
		m = filemode.Regular
	}
	return m, nil
}

// SetStat copies the stat data of info into e. Fields the platform or
// filesystem does not report are zeroed.
func (e *Entry) SetStat(info os.FileInfo) {
	e.MTime = info.ModTime()
	e.Size = uint32(info.Size())
	e.CTime, e.Dev, e.Ino, e.UID, e.GID = time.Time{}, 0, 0, 0, 0
	if st, ok := statFromSys(info.Sys()); ok {
		e.CTime = st.ctime
		e.Dev, e.Ino = st.dev, st.ino
		e.UID, e.GID = st.uid, st.gid
	}
}

// StatMatches reports whether info still describes the file e was staged
// from, so its contents need not be re-hashed. Times compare at the
// precision the index stores.
func (e *Entry) StatMatches(info os.FileInfo) bool {
	if e.AssumeValid {
		return true
	}
	if uint32(info.Size()) != e.Size {
		return false
	}
	if m, err := ModeOf(info); err != nil || m != e.Mode {
		return false
	}
	if !sameTime(info.ModTime(), e.MTime) {
		return false
	}
	if st, ok := statFromSys(info.Sys()); ok && e.Ino != 0 {
		if st.ino != e.Ino || !sameTime(st.ctime, e.CTime) {
			return false
		}
	}
	return true
}

func sameTime(a, b time.Time) bool {
	return uint32(a.Unix()) == uint32(b.Unix()) && a.Nanosecond() == b.Nanosecond()
}
