package main

import (
	"fmt"
	"io"
	"slices"
	"strings"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

// traceStarts returns the nodes to trace from: the roots, or the outermost
// nodes whose scope matches pattern.
func traceStarts(reg scopeRegistry, roots []*groupedStats, pattern string) []*groupedStats {
	if pattern == "" {
		return roots
	}
	var out []*groupedStats
	var visit func(nodes []*groupedStats)
	visit = func(nodes []*groupedStats) {
		for _, g := range nodes {
			if d, ok := reg.resolve(g.key.id); ok && matchesScope(d, pattern) {
				out = append(out, g)
				continue
			}
			visit(g.children.nodes)
		}
	}
	visit(roots)
	return out
}

func cmdTrace(w io.Writer, c *capture, pattern string, minPct float64, logger zerolog.Logger) {
	opts := defaultDisplayOptions()
	opts.TreeView = true
	opts.SortBy = columnTotalTime
	roots, totals := processScopes(c.scopes, c.frames, opts, logger)
	if totals.ns == 0 {
		fmt.Fprintln(w, "no scopes recorded")
		return
	}

	starts := traceStarts(c.scopes, roots, pattern)
	if len(starts) == 0 {
		fmt.Fprintf(w, "no scopes matching '%s'\n", pattern)
		return
	}
	if pattern != "" {
		names := make(map[string]bool)
		for _, g := range starts {
			d, _ := c.scopes.resolve(g.key.id)
			names[d.name] = true
		}
		if len(names) > 1 {
			sorted := make([]string, 0, len(names))
			for n := range names {
				sorted = append(sorted, n)
			}
			slices.Sort(sorted)
			fmt.Fprintf(w, "# matched %d scopes: %s\n", len(names), strings.Join(sorted, ", "))
		}
	}

	for _, g := range starts {
		if _, ok := c.scopes.resolve(g.key.id); !ok {
			continue
		}
		traceHottestPath(w, c.scopes, g, totals.ns, minPct)
	}
}

// childrenAboveMinPct returns the resolvable children of g whose total time
// reaches minPct, hottest first.
func childrenAboveMinPct(reg scopeRegistry, g *groupedStats, totalNs int64, minPct float64) []*groupedStats {
	var out []*groupedStats
	for _, ch := range g.children.nodes {
		if _, ok := reg.resolve(ch.key.id); !ok {
			continue
		}
		if pct(ch.stats.totalNs, totalNs) >= minPct {
			out = append(out, ch)
		}
	}
	return out
}

// traceHottestPath walks from g following the hottest child at each level.
func traceHottestPath(w io.Writer, reg scopeRegistry, g *groupedStats, totalNs int64, minPct float64) {
	indent := 0
	// Computed when a child is picked and printed on that child's line.
	siblingAnnotation := ""

	for {
		p := pct(g.stats.totalNs, totalNs)
		if p < minPct {
			break
		}
		d, _ := reg.resolve(g.key.id)
		line := fmt.Sprintf("%s[%.1f%%] %s [%s]%s", strings.Repeat("  ", indent), p, d.name, g.key.thread, siblingAnnotation)

		children := childrenAboveMinPct(reg, g, totalNs, minPct)
		if len(children) == 0 {
			selfPct := pct(g.stats.totalSelfNs, totalNs)
			if selfPct >= minPct {
				line += fmt.Sprintf("  ← self=%.1f%%", selfPct)
			}
			fmt.Fprintln(w, line)
			fmt.Fprintf(w, "Hottest leaf: %s (self=%.1f%%)\n", d.name, selfPct)
			break
		}
		fmt.Fprintln(w, line)

		siblingAnnotation = ""
		if len(children) > 1 {
			next := children[1]
			nd, _ := reg.resolve(next.key.id)
			n := len(children) - 1
			word := "siblings"
			if n == 1 {
				word = "sibling"
			}
			siblingAnnotation = fmt.Sprintf("  (+%d %s, next: %.1f%% %s)", n, word, pct(next.stats.totalNs, totalNs), nd.name)
		}
		g = children[0]
		indent++
	}
}

func newTraceCmd(ro *rootOptions) *cobra.Command {
	var (
		scope  string
		minPct float64
	)
	cmd := &cobra.Command{
		Use:   "trace FILE",
		Short: "Hottest path through the scope hierarchy",
		Long: `Follow the child with the largest total time from each root scope, or from
the scopes matching -m, and report the leaf where the path ends.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := ro.load(args[0])
			if err != nil {
				return err
			}
			cmdTrace(cmd.OutOrStdout(), c, scope, minPct, ro.logger)
			return nil
		},
	}
	cmd.Flags().StringVarP(&scope, "scope", "m", "", "start from scopes whose name contains this substring")
	cmd.Flags().Float64Var(&minPct, "min-pct", 1.0, "stop below this share of total time")
	return cmd
}
