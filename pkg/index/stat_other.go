//go:build !linux && !openbsd && !dragonfly && !solaris && !darwin && !freebsd && !netbsd

package index

func statFromSys(sys interface{}) (sysStat, bool) {
	return sysStat{}, false
}
