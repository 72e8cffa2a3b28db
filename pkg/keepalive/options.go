package keepalive

import (
	"crypto/tls"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"keepalive/internal/shared/qos"
)

// Option configures a Handler.
type Option func(*Handler)

// WithLogger sets the logger. The default discards everything.
func WithLogger(logger *zap.Logger) Option {
	return func(h *Handler) {
		if logger != nil {
			h.logger = logger
		}
	}
}

// WithDialer replaces the dialer used for new connections.
func WithDialer(d Dialer) Option {
	return func(h *Handler) {
		if d != nil {
			h.dialer = d
		}
	}
}

// WithTLS dials every connection over TLS and reports https URLs. A nil
// dialer selects one with a default TLS configuration.
func WithTLS(d *TCPDialer) Option {
	return func(h *Handler) {
		if d == nil {
			d = NewTCPDialer(&tls.Config{MinVersion: tls.VersionTLS12})
		}
		h.dialer = d
		h.scheme = "https"
		h.defaultPort = "443"
	}
}

// WithDefaultHeaders sets headers sent with every request unless the
// request overrides them.
func WithDefaultHeaders(header http.Header) Option {
	return func(h *Handler) {
		h.defaultHeader = canonicalHeader(header)
	}
}

// WithHostHeaders sets headers sent with every request to host. They
// override the handler-wide defaults and are overridden by the request.
func WithHostHeaders(host string, header http.Header) Option {
	return func(h *Handler) {
		h.hostHeaders[host] = canonicalHeader(header)
	}
}

// WithBandwidth caps the combined throughput of all pooled connections in
// bytes per second. A burst of 0 allows twice the bandwidth.
func WithBandwidth(bytesPerSecond int64, burst int) Option {
	return func(h *Handler) {
		h.limiter = qos.NewLimiter(bytesPerSecond, burst)
	}
}

func WithDialTimeout(d time.Duration) Option {
	return func(h *Handler) { h.dialTimeout = d }
}

// WithReadTimeout bounds every socket read, including body reads.
func WithReadTimeout(d time.Duration) Option {
	return func(h *Handler) { h.readTimeout = d }
}

func WithWriteTimeout(d time.Duration) Option {
	return func(h *Handler) { h.writeTimeout = d }
}

// WithMetrics registers the handler's pool metrics with reg under the
// given pool label.
func WithMetrics(reg prometheus.Registerer, pool string) Option {
	return func(h *Handler) {
		h.metricsReg = reg
		h.metricsPool = pool
	}
}

func canonicalHeader(header http.Header) http.Header {
	out := make(http.Header, len(header))
	for k, vv := range header {
		out[http.CanonicalHeaderKey(k)] = append([]string(nil), vv...)
	}
	return out
}
