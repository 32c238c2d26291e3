package main

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/zeebo/xxh3"
	"gopkg.in/yaml.v3"
)

type columnSetting struct {
	ID      statsColumn `yaml:"id"`
	Enabled bool        `yaml:"enabled"`
}

// displayOptions are the user's table preferences. They persist across runs;
// the statistics themselves never do.
type displayOptions struct {
	Filter   string          `yaml:"filter"`
	Where    string          `yaml:"where,omitempty"`
	SortBy   statsColumn     `yaml:"sort_by"`
	SortAsc  bool            `yaml:"sort_asc"`
	Columns  []columnSetting `yaml:"columns"`
	TreeView bool            `yaml:"tree_view"`
	// Expand state per node, keyed by nodeStateKey. Nodes are expanded unless
	// recorded otherwise.
	TreeViewState map[uint64]bool `yaml:"tree_view_state,omitempty"`
}

func defaultDisplayOptions() *displayOptions {
	return &displayOptions{
		SortBy: columnTotalSelfTime,
		Columns: []columnSetting{
			{columnID, true},
			{columnThread, false},
			{columnLocation, true},
			{columnScopeName, true},
			{columnCount, true},
			{columnTotalSelfTime, true},
			{columnMeanSelfTime, true},
			{columnMaxSelfTime, true},
			{columnTotalTime, true},
			{columnMeanTime, true},
			{columnSize, true},
		},
		TreeViewState: make(map[uint64]bool),
	}
}

func (o *displayOptions) enabledColumns() []statsColumn {
	var out []statsColumn
	for _, c := range o.Columns {
		if c.Enabled {
			out = append(out, c.ID)
		}
	}
	return out
}

// setColumns enables exactly the given columns, in that order. Columns not
// listed keep their relative order after them, disabled.
func (o *displayOptions) setColumns(cols []statsColumn) {
	listed := make(map[statsColumn]bool, len(cols))
	out := make([]columnSetting, 0, len(allColumns))
	for _, c := range cols {
		if !listed[c] {
			listed[c] = true
			out = append(out, columnSetting{c, true})
		}
	}
	for _, c := range o.Columns {
		if !listed[c.ID] {
			listed[c.ID] = true
			out = append(out, columnSetting{c.ID, false})
		}
	}
	o.Columns = out
}

func (o *displayOptions) comparator(reg scopeRegistry) func(a, b *groupedStats) int {
	return statsComparator(reg, o.SortBy, o.SortAsc)
}

func nodeStateKey(k statsKey) uint64 {
	return xxh3.HashString(strconv.FormatUint(k.id, 10) + "\x00" + k.thread)
}

func (o *displayOptions) expanded(k statsKey) bool {
	if v, ok := o.TreeViewState[nodeStateKey(k)]; ok {
		return v
	}
	return true
}

func (o *displayOptions) toggle(k statsKey) {
	if o.TreeViewState == nil {
		o.TreeViewState = make(map[uint64]bool)
	}
	o.TreeViewState[nodeStateKey(k)] = !o.expanded(k)
}

// parseNodeRef parses "thread:id" as used by --toggle. The thread name may
// itself contain colons; the id is after the last one.
func parseNodeRef(s string) (statsKey, error) {
	i := strings.LastIndexByte(s, ':')
	if i <= 0 {
		return statsKey{}, fmt.Errorf("invalid node %q (want THREAD:ID)", s)
	}
	id, err := strconv.ParseUint(s[i+1:], 10, 64)
	if err != nil {
		return statsKey{}, fmt.Errorf("invalid node id in %q: %w", s, err)
	}
	return statsKey{id: id, thread: s[:i]}, nil
}

// optionsPath returns the location of the persisted display options:
//
//	$SCOPE_QUERY_CONFIG, or <user config dir>/scope-query/options.yaml
func optionsPath() (string, error) {
	if p := os.Getenv("SCOPE_QUERY_CONFIG"); p != "" {
		return p, nil
	}
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "scope-query", "options.yaml"), nil
}

// loadDisplayOptions reads persisted options. A missing file yields the
// defaults; fields absent from the file keep their default value.
func loadDisplayOptions(path string) (*displayOptions, error) {
	o := defaultDisplayOptions()
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return o, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read options: %w", err)
	}
	if err := yaml.Unmarshal(data, o); err != nil {
		return nil, fmt.Errorf("failed to parse options %s: %w", path, err)
	}
	if o.TreeViewState == nil {
		o.TreeViewState = make(map[uint64]bool)
	}
	return o, nil
}

func saveDisplayOptions(path string, o *displayOptions) error {
	data, err := yaml.Marshal(o)
	if err != nil {
		return fmt.Errorf("failed to encode options: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write options: %w", err)
	}
	return nil
}
