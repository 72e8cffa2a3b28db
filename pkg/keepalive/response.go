package keepalive

import (
	"fmt"
	"net/http"
	"sync/atomic"

	"keepalive/internal/shared/constants"
)

// Response is the status, headers and body of one HTTP/1.x response read
// from a pooled connection.
type Response struct {
	StatusCode int
	Reason     string
	Proto      string
	Version    int // 10 or 11
	Header     http.Header

	// ContentLength is the declared body length, or -1 when the body is
	// chunked or delimited by connection close.
	ContentLength int64
	Chunked       bool

	// WillClose is set when the server will not keep the connection open
	// after this response.
	WillClose bool

	body *bodyReader

	// recovered marks a response read back after a broken pipe.
	recovered bool
}

// Status returns the status code and reason, e.g. "200 OK".
func (r *Response) Status() string {
	return fmt.Sprintf("%d %s", r.StatusCode, r.Reason)
}

// Recovered reports whether the response was read after the request failed
// to send with a broken pipe.
func (r *Response) Recovered() bool { return r.recovered }

func (r *Response) Read(p []byte) (int, error) { return r.body.Read(p) }

// ReadLine returns the next body line including its terminator.
func (r *Response) ReadLine() ([]byte, error) { return r.body.ReadLine() }

func (r *Response) ReadLines(hint int) ([][]byte, error) { return r.body.ReadLines(hint) }

// PooledResponse is a Response whose connection goes back to its Handler
// when the body has been read to the end or the response is closed.
// Callers must close every PooledResponse; an unclosed one keeps its
// connection checked out.
type PooledResponse struct {
	*Response

	handler *Handler
	conn    *Conn
	host    string
	url     string

	released atomic.Bool
}

func newPooledResponse(h *Handler, conn *Conn, req *Request, resp *Response) *PooledResponse {
	pr := &PooledResponse{
		Response: resp,
		handler:  h,
		conn:     conn,
		host:     req.Host,
		url:      h.scheme + "://" + req.hostHeader(h.defaultPort) + req.path(),
	}
	resp.body.onEOF = func() { pr.release(false) }
	resp.body.onFail = func(err error) {
		h.logger.Warn("Discarding connection after body error",
			h.connFields(conn, err)...,
		)
		pr.release(true)
	}
	return pr
}

// URL is the URL the response was fetched from.
func (r *PooledResponse) URL() string { return r.url }

// Close releases the connection. Unread body bytes are drained so the
// connection can be reused; a body too large to drain, a connection the
// server is closing, or one that broke during the request is discarded.
func (r *PooledResponse) Close() error {
	if r.released.Load() {
		return nil
	}
	if r.WillClose || r.recovered || !r.body.drain(constants.MaxDrainBytes) {
		r.release(true)
		return nil
	}
	r.release(false)
	return nil
}

// CloseConnection closes the underlying socket instead of returning it to
// the pool. It does nothing once the connection has been released.
func (r *PooledResponse) CloseConnection() error {
	r.release(true)
	return nil
}

func (r *PooledResponse) release(discard bool) {
	if !r.released.CompareAndSwap(false, true) {
		return
	}
	r.handler.release(r.conn, discard || r.WillClose || r.recovered)
}
