package keepalive

import (
	"fmt"

	"github.com/cockroachdb/errors"
)

var (
	// ErrNoHost is returned by Dispatch for a request without a host.
	ErrNoHost = errors.New("keepalive: request has no host")

	// ErrHandlerClosed is returned by Dispatch once the handler is closed.
	ErrHandlerClosed = errors.New("keepalive: handler is closed")

	// ErrInvalidHeader marks a request header that cannot be put on the wire.
	ErrInvalidHeader = errors.New("keepalive: invalid header field")

	errLineTooLong = errors.New("keepalive: protocol line too long")
)

// BadStatusLineError reports a response whose first line is not a valid
// HTTP/1.x status line. Legacy is set when the line does not start with
// "HTTP/" at all, which is what an HTTP/0.9 style reply looks like.
type BadStatusLineError struct {
	Line   string
	Legacy bool
}

func (e *BadStatusLineError) Error() string {
	if e.Legacy {
		return fmt.Sprintf("keepalive: response has no status line: %q", e.Line)
	}
	return fmt.Sprintf("keepalive: malformed status line: %q", e.Line)
}

// TransportError wraps a socket level failure.
type TransportError struct {
	Op   string
	Host string
	Err  error
}

func (e *TransportError) Error() string {
	if e.Host == "" {
		return fmt.Sprintf("keepalive: %s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("keepalive: %s %s: %v", e.Op, e.Host, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// IncompleteReadError reports a body that ended before its framing said it
// would. Partial holds the bytes the failing read produced. Expected is the
// number of bytes still owed, or -1 when unknown.
type IncompleteReadError struct {
	Partial  []byte
	Expected int64
}

func (e *IncompleteReadError) Error() string {
	if e.Expected < 0 {
		return fmt.Sprintf("keepalive: incomplete read (%d bytes read)", len(e.Partial))
	}
	return fmt.Sprintf("keepalive: incomplete read (%d bytes read, %d more expected)", len(e.Partial), e.Expected)
}

// ChunkFramingError reports an unparseable chunk size line or a chunk not
// followed by CRLF. The connection it came from is discarded. It unwraps to
// an *IncompleteReadError carrying the same partial bytes.
type ChunkFramingError struct {
	Line    string
	Partial []byte
}

func (e *ChunkFramingError) Error() string {
	return fmt.Sprintf("keepalive: invalid chunk framing %q (%d bytes read)", e.Line, len(e.Partial))
}

func (e *ChunkFramingError) Unwrap() error {
	return &IncompleteReadError{Partial: e.Partial, Expected: -1}
}

// ContentLengthMismatchError reports a request body whose size differs from
// its declared Content-Length.
type ContentLengthMismatchError struct {
	Expected int64
	Actual   int64
}

func (e *ContentLengthMismatchError) Error() string {
	return fmt.Sprintf("keepalive: content length mismatch: declared %d, body has %d", e.Expected, e.Actual)
}
