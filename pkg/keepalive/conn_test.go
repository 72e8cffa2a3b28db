package keepalive

import (
	"bytes"
	"context"
	"io"
	"net"
	"os"
	"sync"
	"syscall"
	"testing"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/require"

	"keepalive/internal/shared/httputil"
)

// scriptedConn replays a canned server byte stream and records what the
// client wrote. writeErr, when set, fails every write.
type scriptedConn struct {
	mu       sync.Mutex
	in       *bytes.Reader
	out      bytes.Buffer
	writeErr error
	closed   bool
}

func newScriptedConn(serverBytes []byte) *scriptedConn {
	return &scriptedConn{in: bytes.NewReader(serverBytes)}
}

func (c *scriptedConn) Read(p []byte) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return 0, net.ErrClosed
	}
	return c.in.Read(p)
}

func (c *scriptedConn) Write(p []byte) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return 0, net.ErrClosed
	}
	if c.writeErr != nil {
		return 0, c.writeErr
	}
	return c.out.Write(p)
}

func (c *scriptedConn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	return nil
}

func (c *scriptedConn) isClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

func (c *scriptedConn) written() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.out.String()
}

func (c *scriptedConn) LocalAddr() net.Addr                { return &net.TCPAddr{} }
func (c *scriptedConn) RemoteAddr() net.Addr               { return &net.TCPAddr{} }
func (c *scriptedConn) SetDeadline(t time.Time) error      { return nil }
func (c *scriptedConn) SetReadDeadline(t time.Time) error  { return nil }
func (c *scriptedConn) SetWriteDeadline(t time.Time) error { return nil }

func brokenPipe() error {
	return &net.OpError{Op: "write", Net: "tcp", Err: os.NewSyscallError("write", syscall.EPIPE)}
}

func okResponse(body string, header ...string) []byte {
	h := make(map[string][]string)
	for i := 0; i+1 < len(header); i += 2 {
		h[header[i]] = append(h[header[i]], header[i+1])
	}
	return httputil.RawResponse{StatusCode: 200, Header: h, Body: []byte(body)}.Bytes()
}

func TestConnSendReceive(t *testing.T) {
	sc := newScriptedConn(okResponse("hello"))
	c := newConn(1, "example.com:80", sc, connOptions{})

	req := &Request{Method: "GET", Host: "example.com:80", Path: "/greet"}
	require.NoError(t, c.Send(context.Background(), req, nil))
	require.Equal(t, "GET /greet HTTP/1.1\r\nAccept-Encoding: identity\r\nHost: example.com\r\n\r\n", sc.written())

	resp, err := c.Receive(context.Background())
	require.NoError(t, err)
	require.Equal(t, 200, resp.StatusCode)
	require.Equal(t, "OK", resp.Reason)
	require.Equal(t, 11, resp.Version)
	require.Equal(t, int64(5), resp.ContentLength)
	require.False(t, resp.WillClose)
	require.False(t, resp.Recovered())

	body, err := io.ReadAll(resp)
	require.NoError(t, err)
	require.Equal(t, "hello", string(body))
}

func TestConnEarlyHintsDoNotDesyncPipeline(t *testing.T) {
	raw := "HTTP/1.1 103 Early Hints\r\nLink: </a.css>; rel=preload\r\n\r\n" +
		"HTTP/1.1 200 OK\r\nContent-Length: 5\r\n\r\nfirst" +
		"HTTP/1.1 200 OK\r\nContent-Length: 6\r\n\r\nsecond"
	sc := newScriptedConn([]byte(raw))
	c := newConn(1, "example.com:80", sc, connOptions{})

	for _, want := range []string{"first", "second"} {
		require.NoError(t, c.Send(context.Background(), &Request{Host: "example.com:80"}, nil))
		resp, err := c.Receive(context.Background())
		require.NoError(t, err)
		require.Equal(t, 200, resp.StatusCode)
		body, err := io.ReadAll(resp)
		require.NoError(t, err)
		require.Equal(t, want, string(body))
	}
}

func TestConnSwitchingProtocolsWillClose(t *testing.T) {
	raw := "HTTP/1.1 101 Switching Protocols\r\nConnection: Upgrade\r\nUpgrade: websocket\r\n\r\n"
	c := newConn(1, "example.com:80", newScriptedConn([]byte(raw)), connOptions{})

	require.NoError(t, c.Send(context.Background(), &Request{Host: "example.com:80"}, nil))
	resp, err := c.Receive(context.Background())
	require.NoError(t, err)
	require.Equal(t, 101, resp.StatusCode)
	require.True(t, resp.WillClose)
}

func TestConnBrokenPipeRecovery(t *testing.T) {
	sc := newScriptedConn(okResponse("rejected early"))
	sc.writeErr = brokenPipe()
	c := newConn(1, "example.com:80", sc, connOptions{})

	req := &Request{Method: "POST", Host: "example.com:80", Body: NewFixedBody([]byte("data"))}
	require.NoError(t, c.Send(context.Background(), req, nil))
	require.ErrorIs(t, c.Send(context.Background(), req, nil), net.ErrClosed)

	resp, err := c.Receive(context.Background())
	require.NoError(t, err)
	require.True(t, resp.Recovered())
	require.Equal(t, 200, resp.StatusCode)

	body, err := io.ReadAll(resp)
	require.NoError(t, err)
	require.Equal(t, "rejected early", string(body))
}

func TestConnUnusableAfterRecoveredResponse(t *testing.T) {
	sc := newScriptedConn(okResponse("rejected early"))
	sc.writeErr = brokenPipe()
	c := newConn(1, "example.com:80", sc, connOptions{})

	req := &Request{Host: "example.com:80"}
	require.NoError(t, c.Send(context.Background(), req, nil))
	_, err := c.Receive(context.Background())
	require.NoError(t, err)

	err = c.Send(context.Background(), req, nil)
	var transport *TransportError
	require.True(t, errors.As(err, &transport), "got %v", err)
	require.Equal(t, "write", transport.Op)
	require.ErrorIs(t, err, net.ErrClosed)

	_, err = c.Receive(context.Background())
	require.True(t, errors.As(err, &transport), "got %v", err)
	require.Equal(t, "read", transport.Op)
	require.ErrorIs(t, err, net.ErrClosed)
}

func TestConnBrokenPipeWithoutResponse(t *testing.T) {
	sc := newScriptedConn(nil)
	sc.writeErr = brokenPipe()
	c := newConn(1, "example.com:80", sc, connOptions{})

	err := c.Send(context.Background(), &Request{Host: "example.com:80"}, nil)
	var transport *TransportError
	require.True(t, errors.As(err, &transport), "got %v", err)
	require.Equal(t, "write", transport.Op)
	require.ErrorIs(t, err, syscall.EPIPE)
}

func TestConnOtherWriteErrorIsNotRecovered(t *testing.T) {
	sc := newScriptedConn(okResponse("never read"))
	sc.writeErr = errors.New("some other failure")
	c := newConn(1, "example.com:80", sc, connOptions{})

	err := c.Send(context.Background(), &Request{Host: "example.com:80"}, nil)
	var transport *TransportError
	require.True(t, errors.As(err, &transport))
	require.Nil(t, c.recovered)
}

func TestConnSendMismatchWritesNothing(t *testing.T) {
	sc := newScriptedConn(nil)
	c := newConn(1, "example.com:80", sc, connOptions{})

	req := &Request{
		Host:   "example.com:80",
		Header: map[string][]string{"Content-Length": {"3"}},
		Body:   NewFixedBody([]byte("four")),
	}
	err := c.Send(context.Background(), req, nil)
	var mismatch *ContentLengthMismatchError
	require.True(t, errors.As(err, &mismatch))
	require.Empty(t, sc.written())
}

func TestConnReceiveFraming(t *testing.T) {
	tests := []struct {
		name          string
		method        string
		raw           []byte
		wantBody      string
		wantLength    int64
		wantChunked   bool
		wantWillClose bool
	}{
		{
			name:       "content length",
			method:     "GET",
			raw:        okResponse("abc"),
			wantBody:   "abc",
			wantLength: 3,
		},
		{
			name:        "chunked",
			method:      "GET",
			raw:         httputil.RawResponse{StatusCode: 200, Body: []byte("chunky body"), Chunked: true, ChunkSizes: []int{3}}.Bytes(),
			wantBody:    "chunky body",
			wantLength:  -1,
			wantChunked: true,
		},
		{
			name:          "read to close",
			method:        "GET",
			raw:           httputil.RawResponse{StatusCode: 200, Body: []byte("until eof"), NoLength: true}.Bytes(),
			wantBody:      "until eof",
			wantLength:    -1,
			wantWillClose: true,
		},
		{
			name:       "head has no body",
			method:     "HEAD",
			raw:        []byte("HTTP/1.1 200 OK\r\nContent-Length: 100\r\n\r\n"),
			wantLength: 0,
		},
		{
			name:       "no content",
			method:     "GET",
			raw:        []byte("HTTP/1.1 204 No Content\r\n\r\n"),
			wantLength: 0,
		},
		{
			name:          "http/1.0 closes",
			method:        "GET",
			raw:           httputil.RawResponse{Proto: "HTTP/1.0", StatusCode: 200, Body: []byte("old")}.Bytes(),
			wantBody:      "old",
			wantLength:    3,
			wantWillClose: true,
		},
		{
			name:          "connection close",
			method:        "GET",
			raw:           okResponse("bye", "Connection", "close"),
			wantBody:      "bye",
			wantLength:    3,
			wantWillClose: true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newConn(1, "h:80", newScriptedConn(tt.raw), connOptions{})
			require.NoError(t, c.Send(context.Background(), &Request{Method: tt.method, Host: "h:80"}, nil))

			resp, err := c.Receive(context.Background())
			require.NoError(t, err)
			require.Equal(t, tt.wantLength, resp.ContentLength)
			require.Equal(t, tt.wantChunked, resp.Chunked)
			require.Equal(t, tt.wantWillClose, resp.WillClose)

			body, err := io.ReadAll(resp)
			require.NoError(t, err)
			require.Equal(t, tt.wantBody, string(body))
		})
	}
}

func TestConnReceiveErrors(t *testing.T) {
	c := newConn(1, "h:80", newScriptedConn([]byte("garbage\r\n")), connOptions{})
	require.NoError(t, c.Send(context.Background(), &Request{Host: "h:80"}, nil))
	_, err := c.Receive(context.Background())
	var bad *BadStatusLineError
	require.True(t, errors.As(err, &bad))
	require.True(t, bad.Legacy)

	c = newConn(2, "h:80", newScriptedConn(nil), connOptions{})
	require.NoError(t, c.Send(context.Background(), &Request{Host: "h:80"}, nil))
	_, err = c.Receive(context.Background())
	var transport *TransportError
	require.True(t, errors.As(err, &transport))
	require.Equal(t, "read", transport.Op)
	require.ErrorIs(t, err, io.EOF)
}

func TestConnReceiveCancelled(t *testing.T) {
	client, server := net.Pipe()
	defer server.Close()
	c := newConn(1, "h:80", client, connOptions{})
	defer c.Close()

	go io.Copy(io.Discard, server)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	require.NoError(t, c.Send(ctx, &Request{Host: "h:80"}, nil))

	_, err := c.Receive(ctx)
	require.ErrorIs(t, err, context.DeadlineExceeded)
	require.Equal(t, attemptFatal, classifyAttempt(err, true))
}

func TestDeadlineConnCapsTimeout(t *testing.T) {
	dc := &deadlineConn{readTimeout: time.Hour}
	require.WithinDuration(t, time.Now().Add(time.Hour), dc.deadline(dc.readTimeout), time.Minute)

	until := time.Now().Add(time.Second)
	dc.until = until
	require.Equal(t, until, dc.deadline(dc.readTimeout))

	dc.readTimeout = 0
	require.Equal(t, until, dc.deadline(dc.readTimeout))

	dc.until = time.Time{}
	require.True(t, dc.deadline(dc.readTimeout).IsZero())
}
