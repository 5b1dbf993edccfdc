//go:build darwin || freebsd || netbsd

package index

import (
	"syscall"
	"time"
)

func statFromSys(sys interface{}) (sysStat, bool) {
	st, ok := sys.(*syscall.Stat_t)
	if !ok || st == nil {
		return sysStat{}, false
	}
	return sysStat{
		ctime: time.Unix(int64(st.Ctimespec.Sec), int64(st.Ctimespec.Nsec)),
		dev:   uint32(st.Dev),
		ino:   uint32(st.Ino),
		uid:   st.Uid,
		gid:   st.Gid,
	}, true
}
