package ui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
)

const (
	poolCardWidth    = 76
	statsColumnWidth = 32
)

var (
	latencyFastColor   = lipgloss.Color("#22c55e") // green
	latencyYellowColor = lipgloss.Color("#eab308") // yellow
	latencyOrangeColor = lipgloss.Color("#f97316") // orange
	latencyRedColor    = lipgloss.Color("#ef4444") // red
)

// PoolStatus is what the pool card shows.
type PoolStatus struct {
	Scheme      string // "http" or "https"
	Opened      int64
	Reused      int64
	ReuseFailed int64
	Discarded   int64
	BrokenPipes int64
	Requests    int64
	BytesIn     int64
	BytesOut    int64
	ReuseRatio  float64
}

// RenderPoolStats renders connection pool counters in a card
func RenderPoolStats(status *PoolStatus) string {
	accent := schemeColor(status.Scheme)

	header := lipgloss.JoinHorizontal(
		lipgloss.Left,
		lipgloss.NewStyle().Foreground(accent).Render("◉"),
		lipgloss.NewStyle().Bold(true).MarginLeft(1).Render(strings.ToUpper(status.Scheme)+" Connection Pool"),
	)

	row1 := lipgloss.JoinHorizontal(
		lipgloss.Top,
		statColumn("Requests", highlightStyle.Render(fmt.Sprintf("%d", status.Requests)), statsColumnWidth),
		statColumn("Reuse", Cyan(fmt.Sprintf("%.0f%%", status.ReuseRatio*100)), statsColumnWidth),
	)

	row2 := lipgloss.JoinHorizontal(
		lipgloss.Top,
		statColumn("Opened", fmt.Sprintf("%d", status.Opened), statsColumnWidth),
		statColumn("Reused", fmt.Sprintf("%d", status.Reused), statsColumnWidth),
	)

	row3 := lipgloss.JoinHorizontal(
		lipgloss.Top,
		statColumn("Stale", warningStyle.Render(fmt.Sprintf("%d", status.ReuseFailed)), statsColumnWidth),
		statColumn("Broken pipes", warningStyle.Render(fmt.Sprintf("%d", status.BrokenPipes)), statsColumnWidth),
	)

	traffic := fmt.Sprintf("↓ %s  ↑ %s", formatBytes(status.BytesIn), formatBytes(status.BytesOut))
	row4 := lipgloss.JoinHorizontal(
		lipgloss.Top,
		statColumn("Discarded", fmt.Sprintf("%d", status.Discarded), statsColumnWidth),
		statColumn("Traffic", Cyan(traffic), statsColumnWidth),
	)

	card := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(accent).
		Padding(1, 2).
		Width(poolCardWidth)

	body := lipgloss.JoinVertical(
		lipgloss.Left,
		header,
		"",
		row1,
		row2,
		row3,
		row4,
	)

	return "\n" + card.Render(body) + "\n"
}

// RenderResponseLine renders one fetched URL with its status and timing
func RenderResponseLine(status int, url string, size int64, elapsed time.Duration) string {
	statusStr := fmt.Sprintf("%d", status)
	switch {
	case status >= 500:
		statusStr = errorStyle.Render(statusStr)
	case status >= 400:
		statusStr = warningStyle.Render(statusStr)
	default:
		statusStr = successStyle.Render(statusStr)
	}
	return fmt.Sprintf("%s %s %s %s", statusStr, URL(url), Muted(formatBytes(size)), formatLatency(elapsed))
}

// RenderFetchFailed renders a failed fetch
func RenderFetchFailed(url string, err error) string {
	return Error(fmt.Sprintf("%s: %v", url, err))
}

// BenchResult is what the bench box shows.
type BenchResult struct {
	URL        string
	Count      int
	Pooled     time.Duration
	Unpooled   time.Duration
	Improve    float64
	Consistent bool
	Lengths    []int64
}

// RenderBenchResult renders a pooled versus unpooled comparison
func RenderBenchResult(r *BenchResult) string {
	lines := []string{
		KeyValue("URL", r.URL),
		KeyValue("Fetches", fmt.Sprintf("%d per mode", r.Count)),
		KeyValue("Pooled", r.Pooled.Round(time.Microsecond).String()),
		KeyValue("Unpooled", r.Unpooled.Round(time.Microsecond).String()),
		KeyValue("Speedup", Highlight(fmt.Sprintf("%.2fx", r.Improve))),
		"",
	}
	if r.Consistent {
		lines = append(lines, Success("Every body had the same length"))
		return SuccessBox("Benchmark Complete", lines...)
	}
	lines = append(lines, Warning(fmt.Sprintf("Body lengths differ: %v", r.Lengths)))
	return WarningBox("Benchmark Complete", lines...)
}

// CheckResult is one comparison made by the check command.
type CheckResult struct {
	Name   string `json:"name"`
	OK     bool   `json:"ok"`
	Detail string `json:"detail"`
}

// RenderCheckResults renders the outcome of the check command
func RenderCheckResults(url string, results []CheckResult) string {
	lines := []string{KeyValue("URL", url), ""}
	allOK := true
	for _, r := range results {
		if r.OK {
			lines = append(lines, Success(r.Name)+" "+Muted(r.Detail))
		} else {
			allOK = false
			lines = append(lines, Error(r.Name)+" "+Muted(r.Detail))
		}
	}
	if allOK {
		return SuccessBox("Checks Passed", lines...)
	}
	return ErrorBox("Checks Failed", lines...)
}

// formatLatency formats latency with color
func formatLatency(d time.Duration) string {
	ms := d.Milliseconds()
	var style lipgloss.Style

	switch {
	case ms < 50:
		style = lipgloss.NewStyle().Foreground(latencyFastColor)
	case ms < 150:
		style = lipgloss.NewStyle().Foreground(latencyYellowColor)
	case ms < 300:
		style = lipgloss.NewStyle().Foreground(latencyOrangeColor)
	default:
		style = lipgloss.NewStyle().Foreground(latencyRedColor)
	}

	return style.Render(fmt.Sprintf("%dms", ms))
}

// formatBytes formats bytes to human readable format
func formatBytes(bytes int64) string {
	const unit = 1024
	if bytes < unit {
		return fmt.Sprintf("%d B", bytes)
	}
	div, exp := int64(unit), 0
	for n := bytes / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB", float64(bytes)/float64(div), "KMGTPE"[exp])
}

func statColumn(label, value string, width int) string {
	labelView := lipgloss.NewStyle().
		Foreground(mutedColor).
		Render(strings.ToUpper(label))

	block := lipgloss.JoinHorizontal(
		lipgloss.Left,
		labelView,
		lipgloss.NewStyle().MarginLeft(1).Render(value),
	)

	if width <= 0 {
		return block
	}

	return lipgloss.NewStyle().
		Width(width).
		Render(block)
}

func schemeColor(scheme string) lipgloss.Color {
	if scheme == "https" {
		return lipgloss.Color("#2D8CFF")
	}
	return lipgloss.Color("#0070F3")
}
