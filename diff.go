package main

import (
	"cmp"
	"fmt"
	"io"
	"math"
	"slices"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

type diffKey struct {
	name   string
	thread string
}

func (k diffKey) String() string { return k.name + " [" + k.thread + "]" }

// selfPcts returns each scope's share of total self time, keyed by name and
// thread so that captures with different id assignments compare.
func selfPcts(c *capture, logger zerolog.Logger) map[diffKey]float64 {
	roots, totals := processScopes(c.scopes, c.frames, defaultDisplayOptions(), logger)
	pcts := make(map[diffKey]float64)
	if totals.ns == 0 {
		return pcts
	}
	for _, g := range roots {
		d, ok := c.scopes.resolve(g.key.id)
		if !ok {
			continue
		}
		pcts[diffKey{d.name, g.key.thread}] += pct(g.stats.totalSelfNs, totals.ns)
	}
	return pcts
}

type diffEntry struct {
	key    diffKey
	before float64
	after  float64
	delta  float64
}

type diffResult struct {
	regressions, improvements, added, gone []diffEntry
}

func computeDiff(beforePct, afterPct map[diffKey]float64, minDelta float64, top int) diffResult {
	var r diffResult
	for k, b := range beforePct {
		a, inAfter := afterPct[k]
		switch {
		case !inAfter:
			if b >= minDelta {
				r.gone = append(r.gone, diffEntry{k, b, 0, -b})
			}
		case math.Abs(a-b) < minDelta:
		case a > b:
			r.regressions = append(r.regressions, diffEntry{k, b, a, a - b})
		default:
			r.improvements = append(r.improvements, diffEntry{k, b, a, a - b})
		}
	}
	for k, a := range afterPct {
		if _, inBefore := beforePct[k]; !inBefore && a >= minDelta {
			r.added = append(r.added, diffEntry{k, 0, a, a})
		}
	}

	// Ties fall back to the key so output does not depend on map order.
	byKey := func(a, b diffEntry) int {
		if c := cmp.Compare(a.key.name, b.key.name); c != 0 {
			return c
		}
		return cmp.Compare(a.key.thread, b.key.thread)
	}
	sortBy := func(s []diffEntry, f func(a, b diffEntry) int) []diffEntry {
		slices.SortFunc(s, func(a, b diffEntry) int {
			if c := f(a, b); c != 0 {
				return c
			}
			return byKey(a, b)
		})
		return s[:truncate(len(s), top)]
	}
	r.regressions = sortBy(r.regressions, func(a, b diffEntry) int { return cmp.Compare(b.delta, a.delta) })
	r.improvements = sortBy(r.improvements, func(a, b diffEntry) int { return cmp.Compare(a.delta, b.delta) })
	r.added = sortBy(r.added, func(a, b diffEntry) int { return cmp.Compare(b.after, a.after) })
	r.gone = sortBy(r.gone, func(a, b diffEntry) int { return cmp.Compare(b.before, a.before) })
	return r
}

func cmdDiff(w io.Writer, before, after *capture, minDelta float64, top int, logger zerolog.Logger) {
	r := computeDiff(selfPcts(before, logger), selfPcts(after, logger), minDelta, top)

	anyOutput := false
	if len(r.regressions) > 0 {
		fmt.Fprintln(w, "REGRESSION")
		for _, e := range r.regressions {
			fmt.Fprintf(w, "  %-50s %5.1f%% -> %5.1f%%  (+%.1f%%)\n", e.key, e.before, e.after, e.delta)
		}
		anyOutput = true
	}
	if len(r.improvements) > 0 {
		fmt.Fprintln(w, "IMPROVEMENT")
		for _, e := range r.improvements {
			fmt.Fprintf(w, "  %-50s %5.1f%% -> %5.1f%%  (%.1f%%)\n", e.key, e.before, e.after, e.delta)
		}
		anyOutput = true
	}
	if len(r.added) > 0 {
		fmt.Fprintln(w, "NEW")
		for _, e := range r.added {
			fmt.Fprintf(w, "  %-50s %.1f%%\n", e.key, e.after)
		}
		anyOutput = true
	}
	if len(r.gone) > 0 {
		fmt.Fprintln(w, "GONE")
		for _, e := range r.gone {
			fmt.Fprintf(w, "  %-50s %.1f%%\n", e.key, e.before)
		}
		anyOutput = true
	}
	if !anyOutput {
		fmt.Fprintln(w, "no significant changes")
	}
}

func newDiffCmd(ro *rootOptions) *cobra.Command {
	var (
		minDelta float64
		top      int
	)
	cmd := &cobra.Command{
		Use:   "diff BEFORE AFTER",
		Short: "Compare self-time share per scope between two inputs",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			before, err := ro.load(args[0])
			if err != nil {
				return err
			}
			after, err := ro.load(args[1])
			if err != nil {
				return err
			}
			cmdDiff(cmd.OutOrStdout(), before, after, minDelta, top, ro.logger)
			return nil
		},
	}
	cmd.Flags().Float64Var(&minDelta, "min-delta", 0.5, "hide entries below this change in percentage points")
	cmd.Flags().IntVar(&top, "top", 0, "limit rows per section (0 = all)")
	return cmd
}
