package keepalive

import (
	"bufio"
	"context"
	"io"
	"net"
	"net/http"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cockroachdb/errors"
	"go.uber.org/zap"
	"golang.org/x/net/http/httpguts"

	"keepalive/internal/shared/constants"
	"keepalive/internal/shared/netutil"
	"keepalive/internal/shared/pool"
)

var aLongTimeAgo = time.Unix(1, 0)

type connOptions struct {
	readTimeout  time.Duration
	writeTimeout time.Duration
	defaultPort  string
	logger       *zap.Logger
}

// Conn is one persistent connection to a host. A Conn is used by one
// caller at a time; the Registry decides who that is.
type Conn struct {
	id     uint64
	host   string
	dc     *deadlineConn
	br     *bufio.Reader
	opts   connOptions
	logger *zap.Logger

	method string

	// recovered holds a response read back after a broken pipe until
	// Receive hands it out. spent is set once it has been handed out.
	recovered *Response
	spent     bool

	closeOnce sync.Once
	closeErr  error
}

func newConn(id uint64, host string, nc net.Conn, opts connOptions) *Conn {
	dc := &deadlineConn{
		Conn:         nc,
		readTimeout:  opts.readTimeout,
		writeTimeout: opts.writeTimeout,
	}
	logger := opts.logger
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.defaultPort == "" {
		opts.defaultPort = constants.DefaultHTTPPort
	}
	return &Conn{
		id:     id,
		host:   host,
		dc:     dc,
		br:     bufio.NewReaderSize(dc, constants.ConnReadBufferSize),
		opts:   opts,
		logger: logger,
	}
}

func (c *Conn) ID() uint64 { return c.id }

func (c *Conn) Host() string { return c.host }

// Send writes req with defaults merged under its headers.
//
// If the write fails with a broken pipe, the server may already have
// answered and closed its side. Send then reads one response, keeps it for
// Receive and returns nil. The recovered response is not matched against
// req. Once a recovery has happened the Conn only hands out that response,
// and further Sends fail with net.ErrClosed.
func (c *Conn) Send(ctx context.Context, req *Request, defaults http.Header) (err error) {
	if c.recovered != nil || c.spent {
		return &TransportError{Op: "write", Host: c.host, Err: net.ErrClosed}
	}
	c.method = req.method()

	buf := pool.GetBuffer(pool.SizeSmall)
	defer pool.PutBuffer(buf)
	head, err := buildRequestHead((*buf)[:0], req, defaults, c.opts.defaultPort)
	if err != nil {
		return err
	}

	stop := c.watch(ctx)
	defer func() {
		if serr := stop(); serr != nil && err == nil {
			err = c.transportErr(ctx, "write", serr)
		}
	}()

	sockErr, err := c.write(head, req.Body)
	if sockErr != nil {
		if netutil.IsBrokenPipe(sockErr) {
			resp, rerr := c.readResponse(ctx)
			if rerr == nil {
				resp.recovered = true
				c.recovered = resp
				c.logger.Info("Recovered response after broken pipe",
					zap.String("host", c.host),
					zap.Uint64("conn_id", c.id),
					zap.String("event", constants.EventBrokenPipe),
					zap.Int("status", resp.StatusCode),
					zap.Error(sockErr),
				)
				return nil
			}
			c.logger.Debug("No response after broken pipe",
				zap.String("host", c.host),
				zap.Uint64("conn_id", c.id),
				zap.Error(rerr),
			)
		}
		return c.transportErr(ctx, "write", sockErr)
	}
	return err
}

// write sends the head and body through a pooled bufio.Writer. Socket
// failures are returned as sockErr, anything else as err.
func (c *Conn) write(head []byte, body Body) (sockErr, err error) {
	tw := &trackingWriter{w: c.dc}
	bw := pool.GetWriter(tw)
	defer pool.PutWriter(bw)

	_, err = bw.Write(head)
	if err == nil && body != nil {
		err = body.writeTo(bw)
	}
	if err == nil {
		err = bw.Flush()
	}
	return tw.err, err
}

// Receive returns the response to the last Send, or the response recovered
// after a broken pipe.
func (c *Conn) Receive(ctx context.Context) (resp *Response, err error) {
	if c.recovered != nil {
		resp, c.recovered, c.spent = c.recovered, nil, true
		return resp, nil
	}
	if c.spent {
		return nil, &TransportError{Op: "read", Host: c.host, Err: net.ErrClosed}
	}

	stop := c.watch(ctx)
	defer func() {
		if serr := stop(); serr != nil && err == nil {
			err = c.transportErr(ctx, "read", serr)
		}
	}()
	return c.readResponse(ctx)
}

func (c *Conn) readResponse(ctx context.Context) (*Response, error) {
	st, header, err := readResponseHead(c.br)
	if err != nil {
		var bad *BadStatusLineError
		if errors.As(err, &bad) {
			return nil, err
		}
		return nil, c.transportErr(ctx, "read", err)
	}

	resp := &Response{
		StatusCode:    st.statusCode,
		Reason:        st.reason,
		Proto:         st.proto,
		Version:       11,
		Header:        header,
		ContentLength: -1,
		WillClose:     shouldClose(st.major, st.minor, header),
	}
	// The socket no longer speaks HTTP after a protocol switch.
	if st.statusCode == http.StatusSwitchingProtocols {
		resp.WillClose = true
	}
	if st.minor == 0 {
		resp.Version = 10
	}

	switch {
	case !bodyAllowed(c.method, st.statusCode):
		resp.ContentLength = 0
		resp.body = emptyBody()
	case httpguts.HeaderValuesContainsToken(header["Transfer-Encoding"], "chunked"):
		resp.Chunked = true
		resp.body = newBodyReader(newChunkedReader(c.br))
	default:
		n := contentLength(header)
		switch {
		case n == 0:
			resp.ContentLength = 0
			resp.body = emptyBody()
		case n > 0:
			resp.ContentLength = n
			resp.body = newBodyReader(&lengthReader{br: c.br, left: n})
		default:
			resp.WillClose = true
			resp.body = newBodyReader(closeReader{br: c.br})
		}
	}
	return resp, nil
}

// watch applies ctx to socket operations until the returned stop is
// called. stop reports ctx's error if ctx ended while watched.
func (c *Conn) watch(ctx context.Context) (stop func() error) {
	if deadline, ok := ctx.Deadline(); ok {
		c.dc.until = deadline
	}
	stopInterrupt := context.AfterFunc(ctx, func() {
		c.dc.interrupted.Store(true)
		_ = c.dc.Conn.SetDeadline(aLongTimeAgo)
	})
	return func() error {
		c.dc.until = time.Time{}
		if !stopInterrupt() {
			return ctx.Err()
		}
		return nil
	}
}

func (c *Conn) transportErr(ctx context.Context, op string, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return errors.Wrapf(ctxErr, "keepalive: %s %s", op, c.host)
	}
	// The socket deadline can fire a moment before the context notices.
	if deadline, ok := ctx.Deadline(); ok && errors.Is(err, os.ErrDeadlineExceeded) && !time.Now().Before(deadline) {
		return errors.Wrapf(context.DeadlineExceeded, "keepalive: %s %s", op, c.host)
	}
	return &TransportError{Op: op, Host: c.host, Err: err}
}

// Close closes the socket. It is safe to call more than once.
func (c *Conn) Close() error {
	c.closeOnce.Do(func() {
		c.closeErr = c.dc.Conn.Close()
	})
	return c.closeErr
}

// trackingWriter remembers the first error from the socket so a failed
// request can be told apart from a failed body source.
type trackingWriter struct {
	w   io.Writer
	err error
}

func (t *trackingWriter) Write(p []byte) (int, error) {
	n, err := t.w.Write(p)
	if err != nil && t.err == nil {
		t.err = err
	}
	return n, err
}

// deadlineConn sets a fresh deadline before every read and write. The
// deadline is the configured timeout, capped by until when it is set.
type deadlineConn struct {
	net.Conn
	readTimeout  time.Duration
	writeTimeout time.Duration
	until        time.Time
	interrupted  atomic.Bool
}

func (c *deadlineConn) deadline(timeout time.Duration) time.Time {
	var d time.Time
	if timeout > 0 {
		d = time.Now().Add(timeout)
	}
	if !c.until.IsZero() && (d.IsZero() || c.until.Before(d)) {
		d = c.until
	}
	return d
}

func (c *deadlineConn) Read(p []byte) (int, error) {
	if err := c.Conn.SetReadDeadline(c.deadline(c.readTimeout)); err != nil {
		return 0, err
	}
	if c.interrupted.Load() {
		return 0, os.ErrDeadlineExceeded
	}
	return c.Conn.Read(p)
}

func (c *deadlineConn) Write(p []byte) (int, error) {
	if err := c.Conn.SetWriteDeadline(c.deadline(c.writeTimeout)); err != nil {
		return 0, err
	}
	if c.interrupted.Load() {
		return 0, os.ErrDeadlineExceeded
	}
	return c.Conn.Write(p)
}
