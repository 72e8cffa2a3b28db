package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"keepalive/internal/shared/stats"
)

// Source is what a PoolCollector reads on every scrape.
type Source interface {
	Stats() stats.Snapshot
	ConnCounts() map[string]int
}

// PoolCollector exports one connection pool. The pool label separates
// several pools registered with the same registry.
type PoolCollector struct {
	src Source

	opened      *prometheus.Desc
	reused      *prometheus.Desc
	reuseFailed *prometheus.Desc
	discarded   *prometheus.Desc
	brokenPipes *prometheus.Desc
	requests    *prometheus.Desc
	inFlight    *prometheus.Desc
	bytesIn     *prometheus.Desc
	bytesOut    *prometheus.Desc
	openConns   *prometheus.Desc

	duration *prometheus.HistogramVec
}

func NewPoolCollector(src Source, pool string) *PoolCollector {
	labels := prometheus.Labels{"pool": pool}
	desc := func(name, help string, variable ...string) *prometheus.Desc {
		return prometheus.NewDesc("keepalive_"+name, help, variable, labels)
	}

	return &PoolCollector{
		src:         src,
		opened:      desc("connections_opened_total", "Connections dialed by the pool"),
		reused:      desc("connections_reused_total", "Requests served on an already open connection"),
		reuseFailed: desc("reuse_failures_total", "Reuse attempts that failed and fell through to another connection"),
		discarded:   desc("connections_discarded_total", "Connections closed and removed from the pool"),
		brokenPipes: desc("broken_pipe_recoveries_total", "Responses recovered after the server closed the write side"),
		requests:    desc("requests_total", "Requests dispatched"),
		inFlight:    desc("requests_in_flight", "Requests dispatched whose response is not yet closed"),
		bytesIn:     desc("bytes_received_total", "Bytes read from pooled sockets"),
		bytesOut:    desc("bytes_sent_total", "Bytes written to pooled sockets"),
		openConns:   desc("open_connections", "Open connections per host", "host"),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:        "keepalive_dispatch_duration_seconds",
			Help:        "Time from dispatch to response head",
			Buckets:     prometheus.DefBuckets,
			ConstLabels: labels,
		}, []string{"method", "status"}),
	}
}

// ObserveDispatch records the time taken to obtain a response head. A
// status of 0 marks a failed dispatch.
func (c *PoolCollector) ObserveDispatch(method string, status int, d time.Duration) {
	c.duration.WithLabelValues(method, strconv.Itoa(status)).Observe(d.Seconds())
}

func (c *PoolCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.opened
	ch <- c.reused
	ch <- c.reuseFailed
	ch <- c.discarded
	ch <- c.brokenPipes
	ch <- c.requests
	ch <- c.inFlight
	ch <- c.bytesIn
	ch <- c.bytesOut
	ch <- c.openConns
	c.duration.Describe(ch)
}

func (c *PoolCollector) Collect(ch chan<- prometheus.Metric) {
	snap := c.src.Stats()

	counter := func(d *prometheus.Desc, v int64) {
		ch <- prometheus.MustNewConstMetric(d, prometheus.CounterValue, float64(v))
	}
	counter(c.opened, snap.Opened)
	counter(c.reused, snap.Reused)
	counter(c.reuseFailed, snap.ReuseFailed)
	counter(c.discarded, snap.Discarded)
	counter(c.brokenPipes, snap.BrokenPipes)
	counter(c.requests, snap.Requests)
	counter(c.bytesIn, snap.BytesIn)
	counter(c.bytesOut, snap.BytesOut)
	ch <- prometheus.MustNewConstMetric(c.inFlight, prometheus.GaugeValue, float64(snap.InFlight))

	for host, n := range c.src.ConnCounts() {
		ch <- prometheus.MustNewConstMetric(c.openConns, prometheus.GaugeValue, float64(n), host)
	}

	c.duration.Collect(ch)
}

// NewServer returns an HTTP server exposing reg on /metrics.
func NewServer(addr string, reg *prometheus.Registry) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}))
	return &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}
}
