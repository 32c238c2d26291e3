package main

import (
	"fmt"
	"io"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/charmbracelet/lipgloss"
)

var headerStyle = lipgloss.NewStyle().Bold(true)

type statsView struct {
	reg    scopeRegistry
	opts   *displayOptions
	filter rowFilter
	where  *wherePredicate
	cols   []statsColumn
	rows   [][]string
}

func summaryLine(t statsTotals) string {
	return fmt.Sprintf("%d unique scopes, using a total of %.1f kB, covering %.1f ms over %d thread(s)",
		t.scopes, float64(t.bytes)*1e-3, float64(t.ns)*1e-6, t.numThreads)
}

// renderStats prints the summary and the statistics table. Rows whose scope
// is not in the registry are skipped together with their subtree. Rows
// rejected by the filter are hidden, but their children are still shown.
func renderStats(w io.Writer, reg scopeRegistry, roots []*groupedStats, totals statsTotals, opts *displayOptions, where *wherePredicate) error {
	fmt.Fprintln(w, summaryLine(totals))
	if totals.clampedScopes > 0 {
		fmt.Fprintf(w, "warning: %d scope(s) shorter than their children; self time clamped to 0\n", totals.clampedScopes)
	}
	if totals.brokenStreams > 0 {
		fmt.Fprintf(w, "warning: %d thread stream(s) were malformed and only partly read\n", totals.brokenStreams)
	}
	fmt.Fprintln(w)

	v := &statsView{
		reg:    reg,
		opts:   opts,
		filter: newRowFilter(opts.Filter),
		where:  where,
		cols:   opts.enabledColumns(),
	}
	if len(v.cols) == 0 {
		return fmt.Errorf("no columns enabled")
	}
	header := make([]string, len(v.cols))
	for i, c := range v.cols {
		header[i] = c.title()
		if c == opts.SortBy {
			if opts.SortAsc {
				header[i] += " ▲"
			} else {
				header[i] += " ▼"
			}
		}
	}
	if err := v.addRows(0, "", roots); err != nil {
		return err
	}
	v.print(w, header)
	return nil
}

func (v *statsView) addRows(level int, tree string, nodes []*groupedStats) error {
	for i, g := range nodes {
		isLast := i == len(nodes)-1
		d, ok := v.reg.resolve(g.key.id)
		if !ok {
			continue
		}

		include := v.filter.includeRow(g.key, d)
		if include {
			m, err := v.where.match(g, d, level)
			if err != nil {
				return err
			}
			include = m
		}

		drawChildren := true
		if include {
			glyph := ""
			switch {
			case level == 0:
			case isLast:
				glyph = " └╴"
			default:
				glyph = " ├╴"
			}
			prefix := tree + glyph
			if len(g.children.nodes) > 0 {
				drawChildren = v.opts.expanded(g.key)
				if drawChildren {
					prefix += "- "
				} else {
					prefix += "+ "
				}
			}
			row := make([]string, len(v.cols))
			for j, c := range v.cols {
				row[j] = formatCell(c, g.key, d, g.stats)
			}
			row[0] = prefix + row[0]
			v.rows = append(v.rows, row)
		}

		if drawChildren {
			next := ""
			switch {
			case level == 0:
			case isLast:
				next = "   "
			default:
				next = " | "
			}
			if err := v.addRows(level+1, tree+next, g.children.nodes); err != nil {
				return err
			}
		}
	}
	return nil
}

func (v *statsView) print(w io.Writer, header []string) {
	widths := make([]int, len(header))
	for i, h := range header {
		widths[i] = utf8.RuneCountInString(h)
	}
	for _, r := range v.rows {
		for i, c := range r {
			widths[i] = max(widths[i], utf8.RuneCountInString(c))
		}
	}

	cells := make([]string, len(header))
	for i, h := range header {
		cells[i] = headerStyle.Render(pad(h, widths[i], false))
	}
	fmt.Fprintln(w, strings.TrimRight(strings.Join(cells, "  "), " "))
	for _, r := range v.rows {
		for i, c := range r {
			cells[i] = pad(c, widths[i], isNumericColumn(v.cols[i]) && i > 0)
		}
		fmt.Fprintln(w, strings.TrimRight(strings.Join(cells, "  "), " "))
	}
}

func pad(s string, width int, right bool) string {
	n := width - utf8.RuneCountInString(s)
	if n <= 0 {
		return s
	}
	if right {
		return strings.Repeat(" ", n) + s
	}
	return s + strings.Repeat(" ", n)
}

func isNumericColumn(c statsColumn) bool {
	switch c {
	case columnThread, columnLocation, columnScopeName:
		return false
	}
	return true
}

func formatMicros(ns float64) string {
	return fmt.Sprintf("%8.1f µs", ns*1e-3)
}

func formatCell(c statsColumn, key statsKey, d scopeDetails, s scopeStats) string {
	switch c {
	case columnThread:
		return key.thread
	case columnLocation:
		return d.location()
	case columnScopeName:
		return d.name
	case columnID:
		return strconv.FormatUint(key.id, 10)
	case columnCount:
		return fmt.Sprintf("%5d", s.count)
	case columnSize:
		return fmt.Sprintf("%6.1f kB", float64(s.bytes)*1e-3)
	case columnTotalSelfTime:
		return formatMicros(float64(s.totalSelfNs))
	case columnMeanSelfTime:
		if s.count == 0 {
			return "-"
		}
		return formatMicros(s.meanSelfNs())
	case columnMaxSelfTime:
		return formatMicros(float64(s.maxNs))
	case columnTotalTime:
		return formatMicros(float64(s.totalNs))
	case columnMeanTime:
		if s.count == 0 {
			return "-"
		}
		return formatMicros(s.meanNs())
	}
	return ""
}
