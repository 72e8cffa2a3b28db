package config

import (
	"net"
	"os"
	"path/filepath"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/cockroachdb/errors"
	"golang.org/x/net/http/httpguts"
	"gopkg.in/yaml.v3"

	"keepalive/internal/shared/constants"
)

// EnvPrefix prefixes every environment override, e.g. KEEPALIVE_READ_TIMEOUT.
const EnvPrefix = "KEEPALIVE_"

// ClientConfig represents the client configuration
type ClientConfig struct {
	// Headers sent with every request unless the request sets them.
	DefaultHeaders map[string]string `yaml:"default_headers,omitempty" env:"DEFAULT_HEADERS" json:"default_headers,omitempty"`
	// Per-host headers layered over DefaultHeaders, keyed by host:port.
	HostHeaders map[string]map[string]string `yaml:"host_headers,omitempty" json:"host_headers,omitempty"`

	DialTimeout  time.Duration `yaml:"dial_timeout,omitempty" env:"DIAL_TIMEOUT" json:"dial_timeout,omitempty"`
	ReadTimeout  time.Duration `yaml:"read_timeout,omitempty" env:"READ_TIMEOUT" json:"read_timeout,omitempty"`
	WriteTimeout time.Duration `yaml:"write_timeout,omitempty" env:"WRITE_TIMEOUT" json:"write_timeout,omitempty"`

	Bandwidth   string `yaml:"bandwidth,omitempty" env:"BANDWIDTH" json:"bandwidth,omitempty"` // e.g. 10M, 500K
	MetricsAddr string `yaml:"metrics_addr,omitempty" env:"METRICS_ADDR" json:"metrics_addr,omitempty"`

	InsecureSkipVerify bool `yaml:"insecure_skip_verify,omitempty" env:"INSECURE_SKIP_VERIFY" json:"insecure_skip_verify,omitempty"`
	Debug              bool `yaml:"debug" env:"DEBUG" json:"debug,omitempty"`
}

// DefaultClientConfig returns the configuration used when no file exists.
func DefaultClientConfig() *ClientConfig {
	return &ClientConfig{
		DefaultHeaders: map[string]string{"User-Agent": constants.DefaultUserAgent},
		DialTimeout:    constants.DefaultDialTimeout,
	}
}

// DefaultClientConfigPath returns the default configuration path
func DefaultClientConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".keepalive/config.yaml"
	}
	return filepath.Join(home, ".keepalive", "config.yaml")
}

// LoadClientConfig reads the YAML file at path over the defaults and then
// applies KEEPALIVE_* environment overrides. A missing file is not an
// error; the defaults and environment are used alone.
func LoadClientConfig(path string) (*ClientConfig, error) {
	return loadClientConfig(path, nil)
}

// loadClientConfig takes the environment as a map so tests need not touch
// the process environment. A nil environ reads os.Environ.
func loadClientConfig(path string, environ map[string]string) (*ClientConfig, error) {
	if path == "" {
		path = DefaultClientConfigPath()
	}

	config := DefaultClientConfig()
	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, config); err != nil {
			return nil, errors.Wrapf(err, "failed to parse config file %s", path)
		}
	case os.IsNotExist(err):
	default:
		return nil, errors.Wrap(err, "failed to read config file")
	}

	opts := env.Options{Prefix: EnvPrefix}
	if environ != nil {
		opts.Environment = environ
	}
	if err := env.ParseWithOptions(config, opts); err != nil {
		return nil, errors.Wrap(err, "failed to parse environment")
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}

// Validate checks if the client configuration is valid
func (c *ClientConfig) Validate() error {
	for name, d := range map[string]time.Duration{
		"dial_timeout":  c.DialTimeout,
		"read_timeout":  c.ReadTimeout,
		"write_timeout": c.WriteTimeout,
	} {
		if d < 0 {
			return errors.Newf("invalid %s %s: must not be negative", name, d)
		}
	}

	if _, err := ParseBandwidth(c.Bandwidth); err != nil {
		return errors.Wrap(err, "invalid bandwidth")
	}

	if c.MetricsAddr != "" {
		if _, _, err := net.SplitHostPort(c.MetricsAddr); err != nil {
			return errors.Wrapf(err, "invalid metrics_addr %q", c.MetricsAddr)
		}
	}

	if err := validateHeaders(c.DefaultHeaders); err != nil {
		return errors.Wrap(err, "default_headers")
	}
	for host, headers := range c.HostHeaders {
		if h, port, err := net.SplitHostPort(host); err != nil || h == "" || port == "" {
			return errors.Newf("host_headers: key %q must be host:port", host)
		}
		if err := validateHeaders(headers); err != nil {
			return errors.Wrapf(err, "host_headers[%s]", host)
		}
	}
	return nil
}

func validateHeaders(headers map[string]string) error {
	for name, value := range headers {
		if !httpguts.ValidHeaderFieldName(name) {
			return errors.Newf("invalid header name %q", name)
		}
		if !httpguts.ValidHeaderFieldValue(value) {
			return errors.Newf("invalid value for header %s", name)
		}
	}
	return nil
}

// SaveClientConfig saves configuration to file
func SaveClientConfig(config *ClientConfig, path string) error {
	if path == "" {
		path = DefaultClientConfigPath()
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return errors.Wrap(err, "failed to create config directory")
	}

	data, err := yaml.Marshal(config)
	if err != nil {
		return errors.Wrap(err, "failed to marshal config")
	}

	if err := os.WriteFile(path, data, 0600); err != nil {
		return errors.Wrap(err, "failed to write config file")
	}

	return nil
}

// ConfigExists checks if config file exists
func ConfigExists(path string) bool {
	if path == "" {
		path = DefaultClientConfigPath()
	}
	_, err := os.Stat(path)
	return err == nil
}
