//go:build windows

package netutil

import (
	"errors"

	"golang.org/x/sys/windows"
)

func isBrokenPipeErrno(err error) bool {
	return errors.Is(err, windows.ERROR_BROKEN_PIPE) ||
		errors.Is(err, windows.WSAECONNRESET) ||
		errors.Is(err, windows.WSAECONNABORTED)
}
