package main

import (
	"cmp"
	"fmt"
	"io"
	"slices"
	"strings"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

// callerTree folds the call paths leading to every outermost scope matching
// pattern into a tree rooted at the matched scopes, with callers as children.
// Node weights are total time in ns.
func callerTree(reg scopeRegistry, roots []*groupedStats, pattern string) (*pathTree, []string) {
	pt := &pathTree{}
	matched := make(map[string]bool)
	var visit func(nodes []*groupedStats, path []string)
	visit = func(nodes []*groupedStats, path []string) {
		for _, g := range nodes {
			d, ok := reg.resolve(g.key.id)
			if !ok {
				continue
			}
			p := append(path[:len(path):len(path)], d.name)
			if matchesScope(d, pattern) {
				matched[d.name] = true
				reversed := slices.Clone(p)
				slices.Reverse(reversed)
				pt.add(reversed, int(g.stats.totalNs))
				continue
			}
			visit(g.children.nodes, p)
		}
	}
	visit(roots, nil)

	names := make([]string, 0, len(matched))
	for n := range matched {
		names = append(names, n)
	}
	slices.Sort(names)
	return pt, names
}

func cmdCallers(w io.Writer, c *capture, pattern string, maxDepth int, minPct float64, logger zerolog.Logger) {
	opts := defaultDisplayOptions()
	opts.TreeView = true
	roots, totals := processScopes(c.scopes, c.frames, opts, logger)
	if totals.ns == 0 {
		fmt.Fprintln(w, "no scopes recorded")
		return
	}

	pt, names := callerTree(c.scopes, roots, pattern)
	if len(names) == 0 {
		fmt.Fprintf(w, "no scopes matching '%s'\n", pattern)
		return
	}
	if len(names) > 1 {
		fmt.Fprintf(w, "# matched %d scopes: %s\n", len(names), strings.Join(names, ", "))
	}

	var printCallers func(node *pathTree, depth int)
	printCallers = func(node *pathTree, depth int) {
		p := pct(int64(node.samples), totals.ns)
		if p < minPct {
			return
		}
		fmt.Fprintf(w, "%s[%.1f%%] %s\n", strings.Repeat("  ", depth-1), p, node.frame)
		if depth >= maxDepth {
			return
		}
		for _, ch := range byWeight(node.children) {
			printCallers(ch, depth+1)
		}
	}
	for _, root := range byWeight(pt.children) {
		printCallers(root, 1)
	}
}

// byWeight orders sibling nodes heaviest first, then by name.
func byWeight(nodes []*pathTree) []*pathTree {
	out := slices.Clone(nodes)
	slices.SortFunc(out, func(a, b *pathTree) int {
		if c := cmp.Compare(b.samples, a.samples); c != 0 {
			return c
		}
		return cmp.Compare(a.frame, b.frame)
	})
	return out
}

func newCallersCmd(ro *rootOptions) *cobra.Command {
	var (
		scope  string
		depth  int
		minPct float64
	)
	cmd := &cobra.Command{
		Use:   "callers FILE",
		Short: "Call paths leading to a scope, ascending to the roots",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := ro.load(args[0])
			if err != nil {
				return err
			}
			cmdCallers(cmd.OutOrStdout(), c, scope, depth, minPct, ro.logger)
			return nil
		},
	}
	cmd.Flags().StringVarP(&scope, "scope", "m", "", "scope name substring (required)")
	cmd.Flags().IntVar(&depth, "depth", 4, "max depth")
	cmd.Flags().Float64Var(&minPct, "min-pct", 1.0, "hide nodes below this share of total time")
	_ = cmd.MarkFlagRequired("scope")
	return cmd
}
