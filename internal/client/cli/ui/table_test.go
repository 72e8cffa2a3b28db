package ui

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTableKeepsWidestCellOnOneLine(t *testing.T) {
	out := NewTable([]string{"HOST", "OPEN"}).
		WithTitle("Open http Connections").
		AddRow([]string{"127.0.0.1:41215", "2"}).
		AddRow([]string{"example.com:80", "10"}).
		Render()

	assert.Contains(t, out, "127.0.0.1:41215")
	assert.Contains(t, out, "example.com:80")

	var rows []string
	for _, line := range strings.Split(out, "\n") {
		if strings.Contains(line, ":") && !strings.Contains(line, "Connections") {
			rows = append(rows, line)
		}
	}
	require.Len(t, rows, 2)
	assert.True(t, strings.HasPrefix(rows[0], "127.0.0.1:41215"))
	assert.True(t, strings.HasSuffix(rows[1], "10"))
}

func TestTableEmpty(t *testing.T) {
	assert.Empty(t, NewTable([]string{"HOST"}).Render())
}

func TestTableShortRow(t *testing.T) {
	out := NewTable([]string{"HOST", "OPEN"}).AddRow([]string{"h:80"}).Render()
	assert.Contains(t, out, "h:80")
}
