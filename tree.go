package main

import (
	"io"
	"strings"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

// cmdStats aggregates the capture and prints the statistics table.
func cmdStats(w io.Writer, c *capture, opts *displayOptions, logger zerolog.Logger) error {
	where, err := compileWhere(opts.Where)
	if err != nil {
		return err
	}
	roots, totals := processScopes(c.scopes, c.frames, opts, logger)
	return renderStats(w, c.scopes, roots, totals, opts, where)
}

type statsFlags struct {
	sortBy  statsColumn
	asc     bool
	tree    bool
	filter  string
	where   string
	columns string
	save    bool
	toggle  []string
}

func (sf *statsFlags) register(cmd *cobra.Command, withTree bool) {
	sf.sortBy = columnTotalSelfTime
	fl := cmd.Flags()
	fl.Var(&sf.sortBy, "sort", "sort column: thread, location, name, id, count, size, self, mean-self, max-self, total, mean-total")
	fl.BoolVar(&sf.asc, "asc", false, "sort ascending")
	if withTree {
		fl.BoolVar(&sf.tree, "tree", false, "group scopes by call hierarchy")
	}
	fl.StringVar(&sf.filter, "filter", "", "show rows whose thread, location or name contains any of these words")
	fl.StringVar(&sf.where, "where", "", "Starlark row predicate, e.g. 'count > 10 and mean_self_ns > 1e5'")
	fl.StringVar(&sf.columns, "columns", "", "comma-separated columns to show, in order")
	fl.BoolVar(&sf.save, "save", false, "persist these display options")
	fl.StringArrayVar(&sf.toggle, "toggle", nil, "flip expand/collapse of tree node THREAD:ID and persist it")
}

// apply overlays the flags the user set on the persisted options.
func (sf *statsFlags) apply(cmd *cobra.Command, o *displayOptions) error {
	fl := cmd.Flags()
	if fl.Changed("sort") {
		o.SortBy = sf.sortBy
		if !fl.Changed("asc") {
			o.SortAsc = false
		}
	}
	if fl.Changed("asc") {
		o.SortAsc = sf.asc
	}
	if fl.Changed("tree") {
		o.TreeView = sf.tree
	}
	if fl.Changed("filter") {
		o.Filter = sf.filter
	}
	if fl.Changed("where") {
		o.Where = sf.where
	}
	if sf.columns != "" {
		var cols []statsColumn
		for _, name := range strings.Split(sf.columns, ",") {
			c, err := parseColumn(name)
			if err != nil {
				return err
			}
			cols = append(cols, c)
		}
		o.setColumns(cols)
	}
	for _, ref := range sf.toggle {
		k, err := parseNodeRef(ref)
		if err != nil {
			return err
		}
		o.toggle(k)
	}
	return nil
}

func runStats(cmd *cobra.Command, ro *rootOptions, sf *statsFlags, path string, forceTree bool) error {
	optsPath, err := optionsPath()
	if err != nil {
		return err
	}
	opts, err := loadDisplayOptions(optsPath)
	if err != nil {
		return err
	}
	if err := sf.apply(cmd, opts); err != nil {
		return err
	}
	if sf.save || len(sf.toggle) > 0 {
		if err := saveDisplayOptions(optsPath, opts); err != nil {
			return err
		}
		ro.logger.Info().Str("path", optsPath).Msg("Saved display options")
	}
	if forceTree {
		opts.TreeView = true
	}

	c, err := ro.load(path)
	if err != nil {
		return err
	}
	return cmdStats(cmd.OutOrStdout(), c, opts, ro.logger)
}

func newStatsCmd(ro *rootOptions) *cobra.Command {
	var sf statsFlags
	cmd := &cobra.Command{
		Use:   "stats FILE",
		Short: "Per-scope statistics table",
		Long: `Aggregate every scope of every frame by (scope, thread) and print count,
size, self time and total time per row.

Self time is the scope's duration minus the time covered by its child scopes.
With --tree rows are grouped by call hierarchy instead of merged across it.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStats(cmd, ro, &sf, args[0], false)
		},
	}
	sf.register(cmd, true)
	return cmd
}

func newTreeCmd(ro *rootOptions) *cobra.Command {
	var sf statsFlags
	cmd := &cobra.Command{
		Use:   "tree FILE",
		Short: "Per-scope statistics grouped by call hierarchy",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStats(cmd, ro, &sf, args[0], true)
		},
	}
	sf.register(cmd, false)
	return cmd
}
