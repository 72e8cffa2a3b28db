//go:build !unix && !windows

package netutil

func isBrokenPipeErrno(err error) bool {
	return false
}
