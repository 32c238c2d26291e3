package main

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func render(t *testing.T, c *capture, opts *displayOptions) string {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, cmdStats(&buf, c, opts, nopLogger))
	return buf.String()
}

// tableLines returns the rendered rows below the header.
func tableLines(out string) []string {
	lines := strings.Split(strings.TrimRight(out, "\n"), "\n")
	for i, l := range lines {
		if l == "" {
			return lines[i+2:]
		}
	}
	return nil
}

func TestRowFilter(t *testing.T) {
	f := newRowFilter("Upload  render")
	assert.True(t, f.include("texture_upload"))
	assert.True(t, f.include("RENDER"))
	assert.False(t, f.include("physics"))
	assert.True(t, newRowFilter("").include("anything"))
	assert.True(t, newRowFilter("   ").include("anything"))

	d := scopeDetails{name: "draw", file: "gfx/render.go", line: 10}
	assert.True(t, f.includeRow(statsKey{thread: "main"}, d))
	assert.True(t, newRowFilter("worker").includeRow(statsKey{thread: "worker-1"}, d))
	assert.False(t, newRowFilter("audio").includeRow(statsKey{thread: "main"}, d))
}

func TestRenderSummaryAndHeader(t *testing.T) {
	out := render(t, scenarioCapture(), defaultDisplayOptions())
	assert.Contains(t, out, "2 unique scopes, using a total of 0.1 kB, covering 0.0 ms over 1 thread(s)")
	assert.Contains(t, out, "Total self time ▼")
	assert.NotContains(t, out, "Thread")
}

func TestRenderFlatRowsSortedBySelfTime(t *testing.T) {
	opts := defaultDisplayOptions()
	opts.setColumns([]statsColumn{columnScopeName, columnCount})
	rows := tableLines(render(t, scenarioCapture(), opts))
	require.Len(t, rows, 2)
	assert.True(t, strings.HasPrefix(rows[0], "A"), rows[0])
	assert.True(t, strings.HasPrefix(rows[1], "B"), rows[1])
}

func TestRenderTreeGlyphsAndCollapse(t *testing.T) {
	opts := defaultDisplayOptions()
	opts.TreeView = true
	opts.setColumns([]statsColumn{columnScopeName, columnCount})

	rows := tableLines(render(t, scenarioCapture(), opts))
	require.Len(t, rows, 2)
	assert.True(t, strings.HasPrefix(rows[0], "- A"), rows[0])
	assert.True(t, strings.HasPrefix(rows[1], " └╴B"), rows[1])

	opts.toggle(statsKey{id: 1, thread: "main"})
	rows = tableLines(render(t, scenarioCapture(), opts))
	require.Len(t, rows, 1)
	assert.True(t, strings.HasPrefix(rows[0], "+ A"), rows[0])
}

func TestRenderSkipsUnregisteredScopes(t *testing.T) {
	reg := testRegistry(map[uint64]string{1: "A"})
	c := &capture{scopes: reg, frames: []*frameData{
		frameOf(0, map[string][]byte{"main": streamOf(scopeNode(1, 0, 10), scopeNode(42, 10, 30))}),
	}}
	opts := defaultDisplayOptions()
	opts.SortBy = columnLocation
	opts.setColumns([]statsColumn{columnID, columnLocation})

	out := render(t, c, opts)
	rows := tableLines(out)
	require.Len(t, rows, 1)
	assert.True(t, strings.HasPrefix(rows[0], "1"), rows[0])
	// Still counted in the totals.
	assert.Contains(t, out, "covering 0.0 ms")
	assert.Contains(t, out, "2 unique scopes")
}

func TestRenderFilterHidesRowButKeepsChildren(t *testing.T) {
	opts := defaultDisplayOptions()
	opts.TreeView = true
	opts.Filter = "B"
	opts.setColumns([]statsColumn{columnScopeName})

	rows := tableLines(render(t, scenarioCapture(), opts))
	require.Len(t, rows, 1)
	assert.Contains(t, rows[0], "B")
	assert.NotContains(t, rows[0], "A")
}

func TestRenderWherePredicate(t *testing.T) {
	opts := defaultDisplayOptions()
	opts.Where = "count > 1"
	opts.setColumns([]statsColumn{columnScopeName, columnCount})
	rows := tableLines(render(t, scenarioCapture(), opts))
	require.Len(t, rows, 1)
	assert.True(t, strings.HasPrefix(rows[0], "B"), rows[0])
}

func TestRenderWhereErrors(t *testing.T) {
	_, err := compileWhere("count >")
	assert.Error(t, err)

	p, err := compileWhere("count + name")
	require.NoError(t, err)
	_, err = p.match(statsRow(1, "t", scopeStats{count: 1}), scopeDetails{name: "x"}, 0)
	assert.Error(t, err)

	p, err = compileWhere("")
	require.NoError(t, err)
	ok, err := p.match(nil, scopeDetails{}, 0)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestRenderNoColumns(t *testing.T) {
	opts := defaultDisplayOptions()
	for i := range opts.Columns {
		opts.Columns[i].Enabled = false
	}
	var buf bytes.Buffer
	assert.Error(t, cmdStats(&buf, scenarioCapture(), opts, nopLogger))
}

func TestRenderWarnsAboutAnomalies(t *testing.T) {
	reg := testRegistry(map[uint64]string{1: "A", 2: "B"})
	c := &capture{scopes: reg, frames: []*frameData{
		frameOf(0, map[string][]byte{
			"main": streamOf(scopeNode(1, 0, 10, scopeNode(2, 0, 25))),
			"bad":  {'!'},
		}),
	}}
	out := render(t, c, defaultDisplayOptions())
	assert.Contains(t, out, "1 scope(s) shorter than their children")
	assert.Contains(t, out, "1 thread stream(s) were malformed")
}

func TestFormatCell(t *testing.T) {
	d := scopeDetails{name: "draw", file: "gfx.go", line: 7}
	k := statsKey{id: 3, thread: "main"}
	s := scopeStats{count: 2, bytes: 1500, totalSelfNs: 3000, totalNs: 5000, maxNs: 2000}

	assert.Equal(t, "main", formatCell(columnThread, k, d, s))
	assert.Equal(t, "gfx.go:7", formatCell(columnLocation, k, d, s))
	assert.Equal(t, "3", formatCell(columnID, k, d, s))
	assert.Equal(t, "    2", formatCell(columnCount, k, d, s))
	assert.Equal(t, "   1.5 kB", formatCell(columnSize, k, d, s))
	assert.Equal(t, "     3.0 µs", formatCell(columnTotalSelfTime, k, d, s))
	assert.Equal(t, "     1.5 µs", formatCell(columnMeanSelfTime, k, d, s))
	assert.Equal(t, "-", formatCell(columnMeanTime, k, d, scopeStats{}))
}
