package main

import (
	"cmp"
	"fmt"
	"math"
	"slices"
	"strings"

	"github.com/spf13/pflag"
)

type statsColumn int

const (
	columnThread statsColumn = iota
	columnLocation
	columnScopeName
	columnID
	columnCount
	columnSize
	columnTotalSelfTime
	columnMeanSelfTime
	columnMaxSelfTime
	columnTotalTime
	columnMeanTime
)

var allColumns = []statsColumn{
	columnThread, columnLocation, columnScopeName, columnID, columnCount, columnSize,
	columnTotalSelfTime, columnMeanSelfTime, columnMaxSelfTime, columnTotalTime, columnMeanTime,
}

var columnNames = map[statsColumn]string{
	columnThread:        "thread",
	columnLocation:      "location",
	columnScopeName:     "name",
	columnID:            "id",
	columnCount:         "count",
	columnSize:          "size",
	columnTotalSelfTime: "self",
	columnMeanSelfTime:  "mean-self",
	columnMaxSelfTime:   "max-self",
	columnTotalTime:     "total",
	columnMeanTime:      "mean-total",
}

func (c statsColumn) title() string {
	switch c {
	case columnThread:
		return "Thread"
	case columnLocation:
		return "Location"
	case columnScopeName:
		return "Scope name"
	case columnID:
		return "ID"
	case columnCount:
		return "Count"
	case columnSize:
		return "Size"
	case columnTotalSelfTime:
		return "Total self time"
	case columnMeanSelfTime:
		return "Mean self time"
	case columnMaxSelfTime:
		return "Max self time"
	case columnTotalTime:
		return "Total time"
	case columnMeanTime:
		return "Mean time"
	}
	return "?"
}

func (c statsColumn) String() string {
	if n, ok := columnNames[c]; ok {
		return n
	}
	return fmt.Sprintf("column(%d)", int(c))
}

func parseColumn(s string) (statsColumn, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	for _, c := range allColumns {
		if columnNames[c] == s {
			return c, nil
		}
	}
	names := make([]string, len(allColumns))
	for i, c := range allColumns {
		names[i] = columnNames[c]
	}
	return 0, fmt.Errorf("unknown column %q (valid: %s)", s, strings.Join(names, ", "))
}

func (c statsColumn) MarshalText() ([]byte, error) { return []byte(c.String()), nil }

func (c *statsColumn) UnmarshalText(text []byte) error {
	v, err := parseColumn(string(text))
	if err != nil {
		return err
	}
	*c = v
	return nil
}

var _ pflag.Value = (*statsColumn)(nil)

// Set and Type make *statsColumn a pflag.Value.
func (c *statsColumn) Set(s string) error { return c.UnmarshalText([]byte(s)) }
func (c *statsColumn) Type() string       { return "column" }

// compare orders a and b by column. Rows whose scope is missing from the
// registry, and means that are not finite, compare equal.
func (c statsColumn) compare(reg scopeRegistry, a, b *groupedStats) int {
	switch c {
	case columnThread:
		return strings.Compare(a.key.thread, b.key.thread)
	case columnLocation, columnScopeName:
		ad, aok := reg.resolve(a.key.id)
		bd, bok := reg.resolve(b.key.id)
		if !aok || !bok {
			return 0
		}
		if c == columnLocation {
			return strings.Compare(ad.location(), bd.location())
		}
		return strings.Compare(ad.name, bd.name)
	case columnID:
		return cmp.Compare(a.key.id, b.key.id)
	case columnCount:
		return cmp.Compare(a.stats.count, b.stats.count)
	case columnSize:
		return cmp.Compare(a.stats.bytes, b.stats.bytes)
	case columnTotalSelfTime:
		return cmp.Compare(a.stats.totalSelfNs, b.stats.totalSelfNs)
	case columnMeanSelfTime:
		return compareFinite(a.stats.meanSelfNs(), b.stats.meanSelfNs())
	case columnMaxSelfTime:
		return cmp.Compare(a.stats.maxNs, b.stats.maxNs)
	case columnTotalTime:
		return cmp.Compare(a.stats.totalNs, b.stats.totalNs)
	case columnMeanTime:
		return compareFinite(a.stats.meanNs(), b.stats.meanNs())
	}
	return 0
}

func compareFinite(a, b float64) int {
	if math.IsNaN(a) || math.IsNaN(b) || math.IsInf(a, 0) || math.IsInf(b, 0) {
		return 0
	}
	return cmp.Compare(a, b)
}

// statsComparator builds the row ordering for a column and direction. The
// direction flips the whole comparison, not individual fields.
func statsComparator(reg scopeRegistry, by statsColumn, asc bool) func(a, b *groupedStats) int {
	return func(a, b *groupedStats) int {
		c := by.compare(reg, a, b)
		if asc {
			return c
		}
		return -c
	}
}

// sortGroupedStats stably sorts nodes and, recursively, every children list.
func sortGroupedStats(nodes []*groupedStats, compare func(a, b *groupedStats) int) {
	slices.SortStableFunc(nodes, compare)
	for _, g := range nodes {
		g.children.index = nil
		sortGroupedStats(g.children.nodes, compare)
	}
}
