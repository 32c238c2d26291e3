package main

import (
	"cmp"
	"fmt"
	"io"
	"slices"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

type hotEntry struct {
	key     statsKey
	name    string
	count   int
	selfNs  int64
	totalNs int64
}

// computeHot ranks scopes by total self time, merged across call positions.
// Scopes missing from the registry are left out of the ranking but still
// count towards the total. Total time comes from the outermost occurrences
// only, so a recursive scope never covers more than its thread.
func computeHot(c *capture, logger zerolog.Logger) ([]hotEntry, statsTotals) {
	opts := defaultDisplayOptions()
	roots, totals := processScopes(c.scopes, c.frames, opts, logger)

	opts.TreeView = true
	// Same input, so anomalies were already logged by the flat pass.
	tree, _ := processScopes(c.scopes, c.frames, opts, zerolog.Nop())
	outer := outermostTotals(tree)

	var ranked []hotEntry
	for _, g := range roots {
		d, ok := c.scopes.resolve(g.key.id)
		if !ok {
			continue
		}
		ranked = append(ranked, hotEntry{
			key:     g.key,
			name:    d.name,
			count:   g.stats.count,
			selfNs:  g.stats.totalSelfNs,
			totalNs: outer[g.key],
		})
	}
	return ranked, totals
}

// outermostTotals sums total time per key, skipping nodes nested under an
// ancestor with the same key.
func outermostTotals(roots []*groupedStats) map[statsKey]int64 {
	out := make(map[statsKey]int64)
	open := make(map[statsKey]bool)
	var visit func(nodes []*groupedStats)
	visit = func(nodes []*groupedStats) {
		for _, g := range nodes {
			nested := open[g.key]
			if !nested {
				out[g.key] += g.stats.totalNs
				open[g.key] = true
			}
			visit(g.children.nodes)
			if !nested {
				delete(open, g.key)
			}
		}
	}
	visit(roots)
	return out
}

func pct(part, whole int64) float64 {
	if whole == 0 {
		return 0
	}
	return 100.0 * float64(part) / float64(whole)
}

func printHotTables(w io.Writer, ranked []hotEntry, top int, totalNs int64, showTopN bool) {
	selfRanked := ranked[:truncate(len(ranked), top)]

	if showTopN {
		fmt.Fprintf(w, "=== RANK BY SELF TIME (top %d) ===\n", len(selfRanked))
	} else {
		fmt.Fprintln(w, "=== RANK BY SELF TIME ===")
	}
	fmt.Fprintf(w, "%-40s %-16s %7s %7s %8s %11s\n", "SCOPE", "THREAD", "SELF%", "TOTAL%", "COUNT", "SELF(ms)")
	for _, e := range selfRanked {
		fmt.Fprintf(w, "%-40s %-16s %6.1f%% %6.1f%% %8d %11.3f\n",
			e.name, e.key.thread, pct(e.selfNs, totalNs), pct(e.totalNs, totalNs), e.count, float64(e.selfNs)*1e-6)
	}

	totalRanked := slices.Clone(ranked)
	slices.SortStableFunc(totalRanked, func(a, b hotEntry) int { return cmp.Compare(b.totalNs, a.totalNs) })
	totalRanked = totalRanked[:truncate(len(totalRanked), top)]

	fmt.Fprintln(w)
	if showTopN {
		fmt.Fprintf(w, "=== RANK BY TOTAL TIME (top %d) ===\n", len(totalRanked))
	} else {
		fmt.Fprintln(w, "=== RANK BY TOTAL TIME ===")
	}
	fmt.Fprintf(w, "%-40s %-16s %7s %7s %8s %11s\n", "SCOPE", "THREAD", "SELF%", "TOTAL%", "COUNT", "TOTAL(ms)")
	for _, e := range totalRanked {
		fmt.Fprintf(w, "%-40s %-16s %6.1f%% %6.1f%% %8d %11.3f\n",
			e.name, e.key.thread, pct(e.selfNs, totalNs), pct(e.totalNs, totalNs), e.count, float64(e.totalNs)*1e-6)
	}
}

func cmdHot(w io.Writer, c *capture, top int, assertBelow float64, logger zerolog.Logger) error {
	ranked, totals := computeHot(c, logger)
	if len(ranked) == 0 {
		return nil
	}

	printHotTables(w, ranked, top, totals.ns, false)

	// assert-below stays on self-time section only
	if assertBelow > 0 {
		selfPct := pct(ranked[0].selfNs, totals.ns)
		if selfPct >= assertBelow {
			return fmt.Errorf("ASSERT FAILED: %s [%s] self=%.1f%% >= threshold %.1f%%", ranked[0].name, ranked[0].key.thread, selfPct, assertBelow)
		}
	}
	return nil
}

func newHotCmd(ro *rootOptions) *cobra.Command {
	var (
		top         int
		assertBelow float64
	)
	cmd := &cobra.Command{
		Use:   "hot FILE",
		Short: "Rank scopes by self time",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := ro.load(args[0])
			if err != nil {
				return err
			}
			return cmdHot(cmd.OutOrStdout(), c, top, assertBelow, ro.logger)
		},
	}
	cmd.Flags().IntVar(&top, "top", 10, "limit output rows")
	cmd.Flags().Float64Var(&assertBelow, "assert-below", 0, "exit 1 if the top scope's self% >= this (for CI gates)")
	return cmd
}
