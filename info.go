package main

import (
	"cmp"
	"fmt"
	"io"
	"slices"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

type eventCount struct {
	name    string
	samples int
}

func rankEvents(counts map[string]int) []eventCount {
	var evs []eventCount
	for n, c := range counts {
		evs = append(evs, eventCount{n, c})
	}
	slices.SortFunc(evs, func(a, b eventCount) int {
		if c := cmp.Compare(b.samples, a.samples); c != 0 {
			return c
		}
		return cmp.Compare(a.name, b.name)
	})
	return evs
}

func cmdInfo(w io.Writer, path string, c *capture, topThreads, topScopes int, logger zerolog.Logger) {
	// === EVENTS === (JFR only)
	if isJFRPath(path) {
		counts, err := discoverEvents(path)
		if err != nil {
			logger.Warn().Err(err).Str("path", path).Msg("Could not read events")
		} else if len(counts) > 0 {
			fmt.Fprintln(w, "=== EVENTS ===")
			for _, e := range rankEvents(counts) {
				fmt.Fprintf(w, "%-10s %9d\n", e.name, e.samples)
			}
			fmt.Fprintln(w)
		}
	}

	// === THREADS ===
	ranked, totals := computeThreads(c, logger)
	if len(ranked) > 0 {
		shown := ranked[:truncate(len(ranked), topThreads)]
		fmt.Fprintf(w, "=== THREADS (top %d) ===\n", len(shown))
		printThreads(w, shown, totals.ns)
		fmt.Fprintln(w)
	}

	// === HOT SCOPES ===
	hot, _ := computeHot(c, logger)
	if len(hot) > 0 {
		printHotTables(w, hot, topScopes, totals.ns, true)
		fmt.Fprintln(w)
	}

	fmt.Fprintf(w, "Frames: %d, registered scopes: %d\n", len(c.frames), c.scopes.len())
	fmt.Fprintln(w, summaryLine(totals))
}

func newInfoCmd(ro *rootOptions) *cobra.Command {
	var topThreads, topScopes int
	cmd := &cobra.Command{
		Use:   "info FILE",
		Short: "One-shot triage: events, threads, hottest scopes, totals",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := ro.load(args[0])
			if err != nil {
				return err
			}
			cmdInfo(cmd.OutOrStdout(), args[0], c, topThreads, topScopes, ro.logger)
			return nil
		},
	}
	cmd.Flags().IntVar(&topThreads, "top-threads", 10, "threads to show")
	cmd.Flags().IntVar(&topScopes, "top-scopes", 20, "scopes to show")
	return cmd
}
