package ui

import (
	"fmt"
	"sort"
	"strings"
	"time"
)

// ConfigView is what config show displays.
type ConfigView struct {
	Path           string
	Exists         bool
	DefaultHeaders map[string]string
	HostHeaders    map[string]map[string]string
	DialTimeout    time.Duration
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
	Bandwidth      string
	MetricsAddr    string
	Insecure       bool
	Debug          bool
}

// RenderConfigShow renders the config display
func RenderConfigShow(v *ConfigView) string {
	lines := []string{
		KeyValue("Dial", durationOrUnset(v.DialTimeout)),
		KeyValue("Read", durationOrUnset(v.ReadTimeout)),
		KeyValue("Write", durationOrUnset(v.WriteTimeout)),
		KeyValue("Bandwidth", valueOr(v.Bandwidth, "unlimited")),
		KeyValue("Metrics", valueOr(v.MetricsAddr, "off")),
		KeyValue("TLS verify", enabledDisabled(!v.Insecure)),
		KeyValue("Debug", enabledDisabled(v.Debug)),
	}

	if len(v.DefaultHeaders) > 0 {
		lines = append(lines, "", Muted("Default headers:"))
		lines = append(lines, renderHeaders(v.DefaultHeaders)...)
	}

	hosts := make([]string, 0, len(v.HostHeaders))
	for host := range v.HostHeaders {
		hosts = append(hosts, host)
	}
	sort.Strings(hosts)
	for _, host := range hosts {
		lines = append(lines, "", Muted("Headers for ")+Cyan(host)+Muted(":"))
		lines = append(lines, renderHeaders(v.HostHeaders[host])...)
	}

	path := v.Path
	if !v.Exists {
		path += " (not created, showing defaults)"
	}
	lines = append(lines, "", KeyValue("Config", Muted(path)))

	return Info("Current Configuration", lines...)
}

// RenderConfigSaved renders config saved message
func RenderConfigSaved(configPath string) string {
	return SuccessBox(
		"Configuration Saved",
		Muted("Config saved to: ")+configPath,
		"",
		Muted("Edit it to set default headers, timeouts and bandwidth"),
	)
}

// RenderConfigDeleted renders config deleted message
func RenderConfigDeleted() string {
	return SuccessBox("Configuration Deleted", Muted("Configuration file has been removed"))
}

// RenderConfigValid renders a successful validation
func RenderConfigValid(configPath string) string {
	return SuccessBox("Configuration Valid",
		Success("Configuration loaded and validated"),
		"",
		Muted("Config: ")+configPath,
	)
}

func renderHeaders(headers map[string]string) []string {
	names := make([]string, 0, len(headers))
	for name := range headers {
		names = append(names, name)
	}
	sort.Strings(names)

	lines := make([]string, 0, len(names))
	for _, name := range names {
		lines = append(lines, fmt.Sprintf("  %s %s", Muted(name+":"), headers[name]))
	}
	return lines
}

func durationOrUnset(d time.Duration) string {
	if d == 0 {
		return Muted("none")
	}
	return d.String()
}

func valueOr(v, fallback string) string {
	if strings.TrimSpace(v) == "" {
		return Muted(fallback)
	}
	return v
}

func enabledDisabled(value bool) string {
	if value {
		return "enabled"
	}
	return "disabled"
}
