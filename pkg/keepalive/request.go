package keepalive

import (
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"

	"github.com/cockroachdb/errors"

	"keepalive/internal/shared/constants"
	"keepalive/internal/shared/pool"
)

// Request describes one HTTP/1.1 exchange. Host is the pool key, normally
// "host:port"; it is used verbatim and a missing port dials port 80.
type Request struct {
	Method string
	Host   string
	Path   string
	Header http.Header
	Body   Body
}

// NewRequest builds a Request from an absolute http or https URL.
func NewRequest(method, rawURL string, body Body) (*Request, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to parse URL %q", rawURL)
	}
	if u.Host == "" {
		return nil, ErrNoHost
	}

	defaultPort := constants.DefaultHTTPPort
	switch u.Scheme {
	case "http", "":
	case "https":
		defaultPort = "443"
	default:
		return nil, errors.Newf("unsupported URL scheme %q", u.Scheme)
	}
	port := u.Port()
	if port == "" {
		port = defaultPort
	}

	return &Request{
		Method: method,
		Host:   net.JoinHostPort(u.Hostname(), port),
		Path:   u.RequestURI(),
		Header: make(http.Header),
		Body:   body,
	}, nil
}

func (r *Request) method() string {
	if r.Method == "" {
		return http.MethodGet
	}
	return r.Method
}

func (r *Request) path() string {
	if r.Path == "" {
		return "/"
	}
	return r.Path
}

// hostHeader is the Host header value, with defaultPort elided.
func (r *Request) hostHeader(defaultPort string) string {
	return strings.TrimSuffix(r.Host, ":"+defaultPort)
}

// Body is a request body of known length: either a FixedBody or a StreamBody.
type Body interface {
	Len() int64
	writeTo(w io.Writer) error
}

// FixedBody is an in-memory request body.
type FixedBody struct {
	data []byte
}

func NewFixedBody(data []byte) FixedBody {
	return FixedBody{data: data}
}

func (b FixedBody) Len() int64 { return int64(len(b.data)) }

func (b FixedBody) Bytes() []byte { return b.data }

func (b FixedBody) writeTo(w io.Writer) error {
	_, err := w.Write(b.data)
	return err
}

// StreamBody is a request body read from r, which must yield exactly length
// bytes. When r is an io.Seeker it is rewound before every send, so the
// same request can be retried on another connection.
type StreamBody struct {
	r      io.Reader
	length int64
}

// NewStreamBody checks the declared length against the source when the
// source is seekable.
func NewStreamBody(r io.Reader, length int64) (StreamBody, error) {
	if r == nil {
		return StreamBody{}, errors.New("keepalive: nil stream body")
	}
	if length < 0 {
		return StreamBody{}, errors.Newf("keepalive: negative stream body length %d", length)
	}
	if s, ok := r.(io.Seeker); ok {
		size, err := s.Seek(0, io.SeekEnd)
		if err != nil {
			return StreamBody{}, errors.Wrap(err, "failed to size stream body")
		}
		if _, err := s.Seek(0, io.SeekStart); err != nil {
			return StreamBody{}, errors.Wrap(err, "failed to rewind stream body")
		}
		if size != length {
			return StreamBody{}, &ContentLengthMismatchError{Expected: length, Actual: size}
		}
	}
	return StreamBody{r: r, length: length}, nil
}

func (b StreamBody) Len() int64 { return b.length }

// bodySourceError marks a failure reading the body source rather than
// writing the socket.
type bodySourceError struct{ err error }

func (e *bodySourceError) Error() string { return "keepalive: failed to read request body: " + e.err.Error() }
func (e *bodySourceError) Unwrap() error { return e.err }

func (b StreamBody) writeTo(w io.Writer) error {
	if s, ok := b.r.(io.Seeker); ok {
		if _, err := s.Seek(0, io.SeekStart); err != nil {
			return &bodySourceError{err: err}
		}
	}

	buf := pool.GetBuffer(constants.StreamBlockSize)
	defer pool.PutBuffer(buf)
	block := (*buf)[:constants.StreamBlockSize]

	var written int64
	for written < b.length {
		n, rerr := b.r.Read(block[:min(int64(len(block)), b.length-written)])
		if n > 0 {
			if _, werr := w.Write(block[:n]); werr != nil {
				return werr
			}
			written += int64(n)
		}
		if rerr == io.EOF {
			break
		}
		if rerr != nil {
			return &bodySourceError{err: rerr}
		}
	}
	if written != b.length {
		return &ContentLengthMismatchError{Expected: b.length, Actual: written}
	}

	// A source longer than declared is also a mismatch.
	var probe [1]byte
	if n, _ := b.r.Read(probe[:]); n > 0 {
		return &ContentLengthMismatchError{Expected: b.length, Actual: written + int64(n)}
	}
	return nil
}
