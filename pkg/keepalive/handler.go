package keepalive

import (
	"context"
	"net"
	"net/http"
	"slices"
	"strings"
	"sync/atomic"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/samber/lo"
	"go.uber.org/zap"

	"keepalive/internal/shared/constants"
	"keepalive/internal/shared/metrics"
	"keepalive/internal/shared/netutil"
	"keepalive/internal/shared/qos"
	"keepalive/internal/shared/stats"
)

// Stats is a point-in-time copy of a Handler's pool counters.
type Stats = stats.Snapshot

// HostConns is the number of open connections to one host.
type HostConns struct {
	Host  string `json:"host"`
	Count int    `json:"count"`
}

// Handler dispatches requests over pooled keep-alive connections. It is
// safe for concurrent use.
type Handler struct {
	registry *Registry
	dialer   Dialer
	logger   *zap.Logger
	stats    *stats.PoolStats
	limiter  *qos.Limiter

	scheme      string
	defaultPort string

	defaultHeader http.Header
	hostHeaders   map[string]http.Header

	dialTimeout  time.Duration
	readTimeout  time.Duration
	writeTimeout time.Duration

	metricsReg  prometheus.Registerer
	metricsPool string
	collector   *metrics.PoolCollector

	nextID atomic.Uint64
	closed atomic.Bool

	// ctx bounds bandwidth waits on pooled sockets; Close cancels it.
	ctx    context.Context
	cancel context.CancelFunc
}

func NewHandler(opts ...Option) *Handler {
	h := &Handler{
		registry:    NewRegistry(),
		dialer:      NewTCPDialer(nil),
		logger:      zap.NewNop(),
		stats:       stats.NewPoolStats(),
		scheme:      "http",
		defaultPort: constants.DefaultHTTPPort,
		hostHeaders: make(map[string]http.Header),
		dialTimeout: constants.DefaultDialTimeout,
	}
	for _, opt := range opts {
		opt(h)
	}
	h.ctx, h.cancel = context.WithCancel(context.Background())

	if h.metricsReg != nil {
		h.collector = metrics.NewPoolCollector(h, h.metricsPool)
		if err := h.metricsReg.Register(h.collector); err != nil {
			h.logger.Warn("Failed to register pool metrics",
				zap.String("pool", h.metricsPool),
				zap.Error(err),
			)
			h.collector = nil
		}
	}
	return h
}

// Dispatch sends req and returns its response. Idle connections to the host
// are tried first; each one that fails in a way a stale connection would is
// discarded and the next is tried. When none is left one fresh connection
// is dialed, and its failure is returned. The caller must Close the response.
func (h *Handler) Dispatch(ctx context.Context, req *Request) (*PooledResponse, error) {
	if h.closed.Load() {
		return nil, ErrHandlerClosed
	}
	if req == nil || req.Host == "" {
		return nil, ErrNoHost
	}

	h.stats.RequestStarted()
	start := time.Now()

	resp, conn, err := h.dispatch(ctx, req)
	if h.collector != nil {
		status := 0
		if resp != nil {
			status = resp.StatusCode
		}
		h.collector.ObserveDispatch(req.method(), status, time.Since(start))
	}
	if err != nil {
		h.stats.RequestDone()
		return nil, err
	}

	if resp.recovered {
		h.stats.BrokenPipe()
	}
	if resp.WillClose || resp.recovered {
		h.registry.Remove(conn)
	}
	return newPooledResponse(h, conn, req, resp), nil
}

func (h *Handler) dispatch(ctx context.Context, req *Request) (*Response, *Conn, error) {
	defaults := h.headersFor(req.Host)

	for {
		conn := h.registry.ReadyConn(req.Host)
		if conn == nil {
			break
		}
		h.logger.Debug("Reusing connection",
			zap.String("host", req.Host),
			zap.Uint64("conn_id", conn.ID()),
		)

		resp, err := h.attempt(ctx, conn, req, defaults)
		switch classifyAttempt(err, true) {
		case attemptSuccess:
			h.stats.ConnReused()
			return resp, conn, nil
		case attemptRetryable:
			h.logger.Debug("Failed to reuse connection",
				append(h.connFields(conn, err), zap.String("event", constants.EventReuseFail))...,
			)
			h.stats.ReuseFailed()
			h.discard(conn)
		default:
			h.discard(conn)
			return nil, nil, err
		}
	}

	h.logger.Debug("Creating new connection", zap.String("host", req.Host))
	conn, err := h.dial(ctx, req.Host)
	if err != nil {
		return nil, nil, err
	}
	h.registry.Add(req.Host, conn, false)

	resp, err := h.attempt(ctx, conn, req, defaults)
	if classifyAttempt(err, false) != attemptSuccess {
		h.discard(conn)
		return nil, nil, err
	}
	return resp, conn, nil
}

func (h *Handler) attempt(ctx context.Context, conn *Conn, req *Request, defaults http.Header) (*Response, error) {
	if err := conn.Send(ctx, req, defaults); err != nil {
		return nil, err
	}
	return conn.Receive(ctx)
}

type attemptResult int

const (
	attemptSuccess attemptResult = iota
	attemptRetryable
	attemptFatal
)

// classifyAttempt decides what the reuse loop does with the outcome of one
// send and receive. Only reused connections are ever retried, and only for
// failures a connection the server has dropped would produce.
func classifyAttempt(err error, reused bool) attemptResult {
	if err == nil {
		return attemptSuccess
	}
	if !reused {
		return attemptFatal
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return attemptFatal
	}

	var badStatus *BadStatusLineError
	var transport *TransportError
	var mismatch *ContentLengthMismatchError
	switch {
	case errors.As(err, &mismatch):
		return attemptFatal
	case errors.As(err, &badStatus), errors.As(err, &transport):
		return attemptRetryable
	case netutil.IsNetworkError(err):
		return attemptRetryable
	}
	return attemptFatal
}

func (h *Handler) dial(ctx context.Context, host string) (*Conn, error) {
	addr := host
	if _, _, err := net.SplitHostPort(host); err != nil {
		addr = net.JoinHostPort(strings.Trim(host, "[]"), h.defaultPort)
	}

	dialCtx := ctx
	if h.dialTimeout > 0 {
		var cancel context.CancelFunc
		dialCtx, cancel = context.WithTimeout(ctx, h.dialTimeout)
		defer cancel()
	}

	nc, err := h.dialer.DialContext(dialCtx, "tcp", addr)
	if err != nil {
		if ctx.Err() != nil {
			return nil, errors.Wrapf(ctx.Err(), "keepalive: dial %s", host)
		}
		return nil, &TransportError{Op: "dial", Host: host, Err: err}
	}

	nc = netutil.NewCountingConn(nc, h.stats)
	nc = qos.WrapConn(h.ctx, nc, h.limiter)

	h.stats.ConnOpened()
	conn := newConn(h.nextID.Add(1), host, nc, connOptions{
		readTimeout:  h.readTimeout,
		writeTimeout: h.writeTimeout,
		defaultPort:  h.defaultPort,
		logger:       h.logger,
	})
	h.logger.Debug("Connection opened",
		zap.String("host", host),
		zap.Uint64("conn_id", conn.ID()),
		zap.String("event", constants.EventOpened),
	)
	return conn, nil
}

// release is called once per response, when its body ends or it is closed.
func (h *Handler) release(conn *Conn, discard bool) {
	defer h.stats.RequestDone()

	if discard {
		h.discard(conn)
		return
	}
	if _, known := h.registry.Ready(conn); !known {
		// Removed by CloseConnection or CloseAll while checked out.
		_ = conn.Close()
		return
	}
	h.registry.SetReady(conn, true)
	h.logger.Debug("Connection returned to pool",
		zap.String("host", conn.Host()),
		zap.Uint64("conn_id", conn.ID()),
	)
}

func (h *Handler) discard(conn *Conn) {
	h.registry.Remove(conn)
	_ = conn.Close()
	h.stats.ConnDiscarded()
	h.logger.Debug("Connection discarded",
		zap.String("host", conn.Host()),
		zap.Uint64("conn_id", conn.ID()),
		zap.String("event", constants.EventDiscarded),
	)
}

func (h *Handler) connFields(conn *Conn, err error) []zap.Field {
	return []zap.Field{
		zap.String("host", conn.Host()),
		zap.Uint64("conn_id", conn.ID()),
		zap.Error(err),
	}
}

// headersFor returns the handler-wide default headers with host's own
// defaults layered on top.
func (h *Handler) headersFor(host string) http.Header {
	hostHeader, ok := h.hostHeaders[host]
	if !ok {
		return h.defaultHeader
	}
	return lo.Assign(h.defaultHeader, hostHeader)
}

// CloseConnection closes every connection to host. It must not race with
// traffic to host: a connection claimed just before the close fails its
// request.
func (h *Handler) CloseConnection(host string) {
	for _, conn := range h.registry.Conns(host) {
		h.registry.Remove(conn)
		_ = conn.Close()
	}
}

// CloseAll closes every pooled connection. The same caveat as
// CloseConnection applies.
func (h *Handler) CloseAll() {
	for host := range h.registry.All() {
		h.CloseConnection(host)
	}
}

// Close closes all connections and makes further Dispatch calls fail.
func (h *Handler) Close() error {
	if !h.closed.CompareAndSwap(false, true) {
		return nil
	}
	h.cancel()
	h.CloseAll()
	if h.collector != nil {
		h.metricsReg.Unregister(h.collector)
	}
	return nil
}

// OpenConnections lists the open connection count per host, sorted by host.
func (h *Handler) OpenConnections() []HostConns {
	open := lo.MapToSlice(h.registry.All(), func(host string, conns []*Conn) HostConns {
		return HostConns{Host: host, Count: len(conns)}
	})
	slices.SortFunc(open, func(a, b HostConns) int { return strings.Compare(a.Host, b.Host) })
	return open
}

// ConnCounts maps each host to its open connection count.
func (h *Handler) ConnCounts() map[string]int {
	return lo.MapValues(h.registry.All(), func(conns []*Conn, _ string) int { return len(conns) })
}

func (h *Handler) Stats() Stats {
	return h.stats.Snapshot()
}

// Registry exposes the handler's connection registry for inspection.
func (h *Handler) Registry() *Registry {
	return h.registry
}
