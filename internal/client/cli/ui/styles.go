package ui

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
)

var (
	successColor   = lipgloss.Color("#0070F3")
	warningColor   = lipgloss.Color("#F5A623")
	errorColor     = lipgloss.Color("#E00")
	mutedColor     = lipgloss.Color("#888")
	highlightColor = lipgloss.Color("#0070F3")
	cyanColor      = lipgloss.Color("#50E3C2")

	boxStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("#333")).
			Padding(1, 2).
			MarginTop(1).
			MarginBottom(1)

	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FFF"))

	successStyle = lipgloss.NewStyle().
			Foreground(successColor).
			Bold(true)

	errorStyle = lipgloss.NewStyle().
			Foreground(errorColor).
			Bold(true)

	warningStyle = lipgloss.NewStyle().
			Foreground(warningColor).
			Bold(true)

	mutedStyle = lipgloss.NewStyle().
			Foreground(mutedColor)

	highlightStyle = lipgloss.NewStyle().
			Foreground(highlightColor).
			Bold(true)

	cyanStyle = lipgloss.NewStyle().
			Foreground(cyanColor)

	urlStyle = lipgloss.NewStyle().
			Foreground(highlightColor).
			Underline(true)

	labelStyle = lipgloss.NewStyle().
			Foreground(mutedColor).
			Width(12)

	valueStyle = lipgloss.NewStyle().
			Bold(true)

	successBoxStyle = boxStyle.BorderForeground(successColor)
	warningBoxStyle = boxStyle.BorderForeground(warningColor)
	errorBoxStyle   = boxStyle.BorderForeground(errorColor)

	// Column gaps come from the table joiner, so cells carry no padding.
	tableHeaderStyle = lipgloss.NewStyle().
				Foreground(mutedColor).
				Bold(true)

	tableCellStyle = lipgloss.NewStyle()
)

func Success(text string) string {
	return successStyle.Render("✓ " + text)
}

func Warning(text string) string {
	return warningStyle.Render("⚠ " + text)
}

// Error renders a failure line.
func Error(text string) string {
	return errorStyle.Render("✗ " + text)
}

func Muted(text string) string {
	return mutedStyle.Render(text)
}

func Highlight(text string) string {
	return highlightStyle.Render(text)
}

// Cyan renders a host or connection key.
func Cyan(text string) string {
	return cyanStyle.Render(text)
}

// URL renders a request target.
func URL(text string) string {
	return urlStyle.Render(text)
}

// KeyValue renders one aligned "label: value" line of a card.
func KeyValue(key, value string) string {
	return labelStyle.Render(key+":") + " " + valueStyle.Render(value)
}

// Info renders a titled card around the given lines.
func Info(title string, lines ...string) string {
	return card(boxStyle, titleStyle.Render(title), lines)
}

// SuccessBox, WarningBox and ErrorBox render result cards whose border and
// title mark the outcome.
func SuccessBox(title string, lines ...string) string {
	return card(successBoxStyle, Success(title), lines)
}

func WarningBox(title string, lines ...string) string {
	return card(warningBoxStyle, Warning(title), lines)
}

func ErrorBox(title string, lines ...string) string {
	return card(errorBoxStyle, Error(title), lines)
}

func card(style lipgloss.Style, heading string, lines []string) string {
	if len(lines) > 0 {
		heading += "\n\n" + strings.Join(lines, "\n")
	}
	return style.Render(heading)
}
