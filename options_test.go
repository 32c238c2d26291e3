package main

import (
	"bytes"
	"os"
	"path/filepath"
	"slices"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultDisplayOptions(t *testing.T) {
	o := defaultDisplayOptions()
	assert.Equal(t, columnTotalSelfTime, o.SortBy)
	assert.False(t, o.SortAsc)
	assert.False(t, o.TreeView)
	assert.Equal(t, []statsColumn{
		columnID, columnLocation, columnScopeName, columnCount, columnTotalSelfTime,
		columnMeanSelfTime, columnMaxSelfTime, columnTotalTime, columnMeanTime, columnSize,
	}, o.enabledColumns())
	assert.Len(t, o.Columns, len(allColumns))
}

func TestSetColumnsKeepsEveryColumn(t *testing.T) {
	o := defaultDisplayOptions()
	o.setColumns([]statsColumn{columnCount, columnThread, columnCount})
	assert.Equal(t, []statsColumn{columnCount, columnThread}, o.enabledColumns())
	require.Len(t, o.Columns, len(allColumns))

	var ids []statsColumn
	for _, c := range o.Columns {
		ids = append(ids, c.ID)
	}
	for _, c := range allColumns {
		assert.True(t, slices.Contains(ids, c), "column %v lost", c)
	}
}

func TestToggleExpandState(t *testing.T) {
	o := defaultDisplayOptions()
	k := statsKey{id: 7, thread: "main"}
	assert.True(t, o.expanded(k))
	o.toggle(k)
	assert.False(t, o.expanded(k))
	assert.True(t, o.expanded(statsKey{id: 7, thread: "other"}))
	o.toggle(k)
	assert.True(t, o.expanded(k))
}

func TestParseNodeRef(t *testing.T) {
	k, err := parseNodeRef("render:thread:42")
	require.NoError(t, err)
	assert.Equal(t, statsKey{id: 42, thread: "render:thread"}, k)

	for _, bad := range []string{"42", ":42", "main:x", "main:"} {
		_, err := parseNodeRef(bad)
		assert.Error(t, err, bad)
	}
}

func TestDisplayOptionsPersistence(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "options.yaml")

	o, err := loadDisplayOptions(path)
	require.NoError(t, err)
	assert.Equal(t, defaultDisplayOptions(), o)

	o.SortBy = columnMeanTime
	o.SortAsc = true
	o.TreeView = true
	o.Filter = "upload"
	o.Where = "count > 3"
	o.setColumns([]statsColumn{columnThread, columnScopeName})
	o.toggle(statsKey{id: 3, thread: "main"})
	require.NoError(t, saveDisplayOptions(path, o))

	loaded, err := loadDisplayOptions(path)
	require.NoError(t, err)
	assert.Equal(t, o, loaded)
	assert.False(t, loaded.expanded(statsKey{id: 3, thread: "main"}))
}

func TestLoadDisplayOptionsPartialFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "options.yaml")
	require.NoError(t, os.WriteFile(path, []byte("sort_by: count\n"), 0o644))

	o, err := loadDisplayOptions(path)
	require.NoError(t, err)
	assert.Equal(t, columnCount, o.SortBy)
	assert.Equal(t, defaultDisplayOptions().Columns, o.Columns)
}

func TestLoadDisplayOptionsErrors(t *testing.T) {
	path := filepath.Join(t.TempDir(), "options.yaml")
	require.NoError(t, os.WriteFile(path, []byte("sort_by: nonsense\n"), 0o644))
	_, err := loadDisplayOptions(path)
	assert.Error(t, err)
}

func TestOptionsPathFromEnv(t *testing.T) {
	t.Setenv("SCOPE_QUERY_CONFIG", "/tmp/x.yaml")
	p, err := optionsPath()
	require.NoError(t, err)
	assert.Equal(t, "/tmp/x.yaml", p)
}

func TestStatsSaveAndToggleFlags(t *testing.T) {
	path := writeTestCapture(t, scenarioCapture())
	cfg := filepath.Join(t.TempDir(), "options.yaml")
	t.Setenv("SCOPE_QUERY_CONFIG", cfg)

	run := func(args ...string) string {
		root := newRootCmd()
		var out bytes.Buffer
		root.SetOut(&out)
		root.SetArgs(args)
		require.NoError(t, root.Execute())
		return out.String()
	}

	run("stats", path, "--sort", "count", "--asc", "--tree", "--save")
	o, err := loadDisplayOptions(cfg)
	require.NoError(t, err)
	assert.Equal(t, columnCount, o.SortBy)
	assert.True(t, o.SortAsc)
	assert.True(t, o.TreeView)

	out := run("stats", path, "--toggle", "main:1", "--columns", "name")
	assert.Contains(t, out, "+ A")
	o, err = loadDisplayOptions(cfg)
	require.NoError(t, err)
	assert.False(t, o.expanded(statsKey{id: 1, thread: "main"}))
	// --toggle saves the effective options, --columns included.
	assert.Equal(t, []statsColumn{columnScopeName}, o.enabledColumns())
}
