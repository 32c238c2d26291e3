package main

import (
	"cmp"
	"fmt"
	"io"
	"slices"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

type threadEntry struct {
	name   string
	selfNs int64
	scopes int
}

// computeThreads sums self time per thread over a flat aggregation.
func computeThreads(c *capture, logger zerolog.Logger) ([]threadEntry, statsTotals) {
	opts := defaultDisplayOptions()
	roots, totals := processScopes(c.scopes, c.frames, opts, logger)

	byThread := make(map[string]*threadEntry)
	var ranked []threadEntry
	for _, g := range roots {
		e, ok := byThread[g.key.thread]
		if !ok {
			e = &threadEntry{name: g.key.thread}
			byThread[g.key.thread] = e
		}
		e.selfNs += g.stats.totalSelfNs
		e.scopes++
	}
	for _, e := range byThread {
		ranked = append(ranked, *e)
	}
	slices.SortFunc(ranked, func(a, b threadEntry) int {
		if c := cmp.Compare(b.selfNs, a.selfNs); c != 0 {
			return c
		}
		return cmp.Compare(a.name, b.name)
	})
	return ranked, totals
}

func printThreads(w io.Writer, ranked []threadEntry, totalNs int64) {
	fmt.Fprintf(w, "%-30s %8s %11s %7s\n", "THREAD", "SCOPES", "SELF(ms)", "PCT")
	for _, e := range ranked {
		fmt.Fprintf(w, "%-30s %8d %11.3f %6.1f%%\n", e.name, e.scopes, float64(e.selfNs)*1e-6, pct(e.selfNs, totalNs))
	}
}

func cmdThreads(w io.Writer, c *capture, top int, logger zerolog.Logger) {
	ranked, totals := computeThreads(c, logger)
	if len(ranked) == 0 {
		fmt.Fprintln(w, "no scopes recorded")
		return
	}
	printThreads(w, ranked[:truncate(len(ranked), top)], totals.ns)
}

func newThreadsCmd(ro *rootOptions) *cobra.Command {
	var top int
	cmd := &cobra.Command{
		Use:   "threads FILE",
		Short: "Self time per thread",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := ro.load(args[0])
			if err != nil {
				return err
			}
			cmdThreads(cmd.OutOrStdout(), c, top, ro.logger)
			return nil
		},
	}
	cmd.Flags().IntVar(&top, "top", 0, "limit output rows (0 = all)")
	return cmd
}
