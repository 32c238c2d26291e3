package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

// scopeLabel names a scope for exported stacks. Unregistered scopes keep
// their id so the stack shape survives.
func scopeLabel(reg scopeRegistry, id uint64) string {
	if d, ok := reg.resolve(id); ok {
		return d.name
	}
	return fmt.Sprintf("scope#%d", id)
}

// collapsedStack is one call path of the aggregated tree with its self time.
type collapsedStack struct {
	thread string
	ids    []uint64 // root → leaf
	selfNs int64
}

// collapseTree flattens a tree aggregation into call paths, one per node with
// self time.
func collapseTree(roots []*groupedStats) []collapsedStack {
	var out []collapsedStack
	var visit func(nodes []*groupedStats, path []uint64)
	visit = func(nodes []*groupedStats, path []uint64) {
		for _, g := range nodes {
			p := append(path[:len(path):len(path)], g.key.id)
			if g.stats.totalSelfNs > 0 {
				out = append(out, collapsedStack{thread: g.key.thread, ids: p, selfNs: g.stats.totalSelfNs})
			}
			visit(g.children.nodes, p)
		}
	}
	visit(roots, nil)
	return out
}

// keepThrough cuts st down to the paths passing through a scope matching
// pattern. Without includeCallers the stack starts at the outermost match.
func keepThrough(reg scopeRegistry, st collapsedStack, pattern string, includeCallers bool) (collapsedStack, bool) {
	for i, id := range st.ids {
		d, ok := reg.resolve(id)
		if !ok || !matchesScope(d, pattern) {
			continue
		}
		if !includeCallers {
			st.ids = st.ids[i:]
		}
		return st, true
	}
	return st, false
}

func cmdCollapse(w io.Writer, c *capture, pattern string, includeCallers bool, logger zerolog.Logger) {
	opts := defaultDisplayOptions()
	opts.TreeView = true
	roots, _ := processScopes(c.scopes, c.frames, opts, logger)
	for _, st := range collapseTree(roots) {
		if pattern != "" {
			var ok bool
			if st, ok = keepThrough(c.scopes, st, pattern, includeCallers); !ok {
				continue
			}
		}
		names := make([]string, len(st.ids))
		for i, id := range st.ids {
			names[i] = scopeLabel(c.scopes, id)
		}
		fmt.Fprintf(w, "[%s];%s %d\n", st.thread, strings.Join(names, ";"), st.selfNs)
	}
}

func newCollapseCmd(ro *rootOptions) *cobra.Command {
	var (
		scope          string
		includeCallers bool
	)
	cmd := &cobra.Command{
		Use:   "collapse FILE",
		Short: "Emit collapsed stacks weighted by self time in ns",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := ro.load(args[0])
			if err != nil {
				return err
			}
			cmdCollapse(cmd.OutOrStdout(), c, scope, includeCallers, ro.logger)
			return nil
		},
	}
	cmd.Flags().StringVarP(&scope, "scope", "m", "", "only stacks passing through scopes whose name contains this substring")
	cmd.Flags().BoolVar(&includeCallers, "include-callers", false, "keep the frames above the matched scope")
	return cmd
}
