package config

import (
	"crypto/tls"
	"strconv"
	"strings"

	"github.com/cockroachdb/errors"
)

// ClientTLSConfig returns the TLS config used for https connections.
func ClientTLSConfig(insecure bool) *tls.Config {
	return &tls.Config{
		MinVersion:         tls.VersionTLS12,
		ClientSessionCache: tls.NewLRUClientSessionCache(0),
		InsecureSkipVerify: insecure,
	}
}

// ParseBandwidth parses a byte rate such as 500K, 10M or 1GB into bytes per
// second. Suffixes are binary and case-insensitive; an empty string or 0
// means unlimited.
func ParseBandwidth(s string) (int64, error) {
	s = strings.ToUpper(strings.TrimSpace(s))
	if s == "" {
		return 0, nil
	}

	multiplier := int64(1)
	s = strings.TrimSuffix(s, "B")
	switch {
	case strings.HasSuffix(s, "K"):
		multiplier = 1 << 10
	case strings.HasSuffix(s, "M"):
		multiplier = 1 << 20
	case strings.HasSuffix(s, "G"):
		multiplier = 1 << 30
	}
	if multiplier > 1 {
		s = s[:len(s)-1]
	}

	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, errors.Newf("invalid bandwidth %q: expected a whole number with optional K, M or G suffix", s)
	}
	if n < 0 {
		return 0, errors.Newf("invalid bandwidth %d: must not be negative", n)
	}
	if n > (1<<63-1)/multiplier {
		return 0, errors.Newf("bandwidth %q overflows", s)
	}
	return n * multiplier, nil
}
