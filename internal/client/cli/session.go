package cli

import (
	"context"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"

	"keepalive/internal/shared/metrics"
	"keepalive/internal/shared/utils"
	"keepalive/pkg/config"
	"keepalive/pkg/keepalive"
)

// session owns the handlers one command sends its requests through: one
// pooled handler per scheme, built from the client config.
type session struct {
	cfg      *config.ClientConfig
	logger   *zap.Logger
	registry *prometheus.Registry
	metrics  *http.Server

	handlers map[string]*keepalive.Handler
	// extra options appended to every handler, used by tests to swap the dialer.
	extra []keepalive.Option
}

func newSession(cfg *config.ClientConfig, logger *zap.Logger) *session {
	return &session{
		cfg:      cfg,
		logger:   logger,
		handlers: make(map[string]*keepalive.Handler),
	}
}

// openSession loads the config, applies global flags, sets up logging and
// starts the metrics endpoint when one is configured.
func openSession() (*session, error) {
	cfg, err := config.LoadClientConfig(configPath)
	if err != nil {
		return nil, err
	}
	if insecure {
		cfg.InsecureSkipVerify = true
	}
	if metricsAddr != "" {
		cfg.MetricsAddr = metricsAddr
	}

	if err := utils.InitLogger(verbose || cfg.Debug); err != nil {
		return nil, errors.Wrap(err, "failed to initialize logger")
	}

	s := newSession(cfg, utils.GetLogger())
	if cfg.MetricsAddr != "" {
		if err := s.serveMetrics(cfg.MetricsAddr); err != nil {
			return nil, err
		}
	}
	return s, nil
}

func (s *session) serveMetrics(addr string) error {
	s.registry = prometheus.NewRegistry()
	s.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return errors.Wrapf(err, "failed to listen for metrics on %s", addr)
	}
	s.metrics = metrics.NewServer(addr, s.registry)
	go func() {
		if err := s.metrics.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("Metrics server failed", zap.Error(err))
		}
	}()
	s.logger.Info("Serving metrics", zap.String("address", ln.Addr().String()))
	return nil
}

// handler returns the pooled handler for scheme, creating it on first use.
func (s *session) handler(scheme string) *keepalive.Handler {
	if h, ok := s.handlers[scheme]; ok {
		return h
	}
	h := s.newHandler(scheme, scheme)
	s.handlers[scheme] = h
	return h
}

// newHandler builds a handler that the session does not track. pool names
// it in logs and metrics.
func (s *session) newHandler(scheme, pool string) *keepalive.Handler {
	opts := handlerOptions(s.cfg, scheme)
	opts = append(opts, keepalive.WithLogger(s.logger.Named(pool)))
	if s.registry != nil {
		opts = append(opts, keepalive.WithMetrics(s.registry, pool))
	}
	opts = append(opts, s.extra...)
	return keepalive.NewHandler(opts...)
}

// handlerOptions translates the client config into handler options.
func handlerOptions(cfg *config.ClientConfig, scheme string) []keepalive.Option {
	opts := []keepalive.Option{
		keepalive.WithDefaultHeaders(toHeader(cfg.DefaultHeaders)),
		keepalive.WithReadTimeout(cfg.ReadTimeout),
		keepalive.WithWriteTimeout(cfg.WriteTimeout),
	}
	if cfg.DialTimeout > 0 {
		opts = append(opts, keepalive.WithDialTimeout(cfg.DialTimeout))
	}
	for host, headers := range cfg.HostHeaders {
		opts = append(opts, keepalive.WithHostHeaders(host, toHeader(headers)))
	}
	// Validate has already rejected a malformed bandwidth.
	if bw, _ := config.ParseBandwidth(cfg.Bandwidth); bw > 0 {
		opts = append(opts, keepalive.WithBandwidth(bw, 0))
	}
	if scheme == "https" {
		opts = append(opts, keepalive.WithTLS(keepalive.NewTCPDialer(config.ClientTLSConfig(cfg.InsecureSkipVerify))))
	}
	return opts
}

func toHeader(m map[string]string) http.Header {
	h := make(http.Header, len(m))
	for k, v := range m {
		h.Set(k, v)
	}
	return h
}

// fetch sends one request through the pool for rawURL's scheme.
func (s *session) fetch(ctx context.Context, method, rawURL string, header http.Header, body keepalive.Body) (*keepalive.PooledResponse, error) {
	req, err := keepalive.NewRequest(method, rawURL, body)
	if err != nil {
		return nil, err
	}
	req.Header = header
	return s.handler(schemeOf(rawURL)).Dispatch(ctx, req)
}

func schemeOf(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "http"
	}
	return strings.ToLower(u.Scheme)
}

// schemes lists the schemes with a handler, http first.
func (s *session) schemes() []string {
	var out []string
	for _, scheme := range []string{"http", "https"} {
		if _, ok := s.handlers[scheme]; ok {
			out = append(out, scheme)
		}
	}
	return out
}

func (s *session) Close() error {
	for _, h := range s.handlers {
		_ = h.Close()
	}
	if s.metrics != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.metrics.Shutdown(ctx); err != nil {
			s.logger.Warn("Failed to stop metrics server", zap.Error(err))
		}
	}
	utils.Sync()
	return nil
}
