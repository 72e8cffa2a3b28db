package netutil

import (
	"errors"
	"io"
	"net"
	"strings"
)

// IsBrokenPipe reports whether err means the peer stopped reading from the socket:
// a write hit EPIPE or the connection was reset. Such a peer may still have
// written a complete response before hanging up.
func IsBrokenPipe(err error) bool {
	if err == nil {
		return false
	}
	if isBrokenPipeErrno(err) {
		return true
	}
	return ContainsAny(err.Error(), "broken pipe", "connection reset by peer")
}

// IsNetworkError checks if an error indicates a common network failure
// that should be handled gracefully (not logged as severe errors).
func IsNetworkError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) || errors.Is(err, net.ErrClosed) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}
	return IsBrokenPipe(err) ||
		ContainsAny(err.Error(), "EOF", "connection refused", "use of closed network connection")
}

// ContainsAny checks if a string contains any of the given substrings.
func ContainsAny(s string, substrings ...string) bool {
	for _, substr := range substrings {
		if strings.Contains(s, substr) {
			return true
		}
	}
	return false
}
