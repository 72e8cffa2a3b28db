//go:build unix

package netutil

import (
	"errors"

	"golang.org/x/sys/unix"
)

func isBrokenPipeErrno(err error) bool {
	return errors.Is(err, unix.EPIPE) || errors.Is(err, unix.ECONNRESET)
}
