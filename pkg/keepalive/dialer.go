package keepalive

import (
	"context"
	"crypto/tls"
	"net"
	"time"

	"github.com/cockroachdb/errors"
)

// Dialer opens connections for a Handler. *net.Dialer and *tls.Dialer
// satisfy it.
type Dialer interface {
	DialContext(ctx context.Context, network, addr string) (net.Conn, error)
}

// TCPDialer dials plain TCP, or TLS when TLSConfig is set, and tunes the
// socket for request/response traffic.
type TCPDialer struct {
	TLSConfig *tls.Config
	KeepAlive time.Duration
}

func NewTCPDialer(tlsConfig *tls.Config) *TCPDialer {
	return &TCPDialer{
		TLSConfig: tlsConfig,
		KeepAlive: 30 * time.Second,
	}
}

func (d *TCPDialer) DialContext(ctx context.Context, network, addr string) (net.Conn, error) {
	nd := &net.Dialer{KeepAlive: d.KeepAlive}

	conn, err := nd.DialContext(ctx, network, addr)
	if err != nil {
		return nil, err
	}
	if tcpConn, ok := conn.(*net.TCPConn); ok {
		_ = tcpConn.SetNoDelay(true)
	}
	if d.TLSConfig == nil {
		return conn, nil
	}

	cfg := d.TLSConfig.Clone()
	if cfg.ServerName == "" {
		host, _, err := net.SplitHostPort(addr)
		if err != nil {
			host = addr
		}
		cfg.ServerName = host
	}
	tlsConn := tls.Client(conn, cfg)
	if err := tlsConn.HandshakeContext(ctx); err != nil {
		_ = conn.Close()
		return nil, errors.Wrap(err, "TLS handshake failed")
	}
	return tlsConn, nil
}
