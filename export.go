package main

import (
	"fmt"
	"io"
	"os"

	"github.com/google/pprof/profile"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

// buildProfile converts the tree aggregation into a pprof profile with one
// sample per call path. Each sample carries its self time and its count, and
// a "thread" label.
func buildProfile(c *capture, logger zerolog.Logger) *profile.Profile {
	opts := defaultDisplayOptions()
	opts.TreeView = true
	roots, _ := processScopes(c.scopes, c.frames, opts, logger)

	prof := &profile.Profile{
		SampleType: []*profile.ValueType{
			{Type: "self", Unit: "nanoseconds"},
			{Type: "count", Unit: "count"},
		},
		PeriodType: &profile.ValueType{Type: "scope", Unit: "count"},
		Period:     1,
	}
	locs := make(map[uint64]*profile.Location)
	location := func(id uint64) *profile.Location {
		if loc, ok := locs[id]; ok {
			return loc
		}
		d, _ := c.scopes.resolve(id)
		fn := &profile.Function{
			ID:         uint64(len(prof.Function) + 1),
			Name:       scopeLabel(c.scopes, id),
			SystemName: scopeLabel(c.scopes, id),
			Filename:   d.file,
			StartLine:  int64(d.line),
		}
		prof.Function = append(prof.Function, fn)
		loc := &profile.Location{
			ID:   uint64(len(prof.Location) + 1),
			Line: []profile.Line{{Function: fn, Line: int64(d.line)}},
		}
		prof.Location = append(prof.Location, loc)
		locs[id] = loc
		return loc
	}

	// pprof stacks are leaf first.
	var visit func(nodes []*groupedStats, stack []*profile.Location)
	visit = func(nodes []*groupedStats, stack []*profile.Location) {
		for _, g := range nodes {
			s := append([]*profile.Location{location(g.key.id)}, stack...)
			prof.Sample = append(prof.Sample, &profile.Sample{
				Location: s,
				Value:    []int64{g.stats.totalSelfNs, int64(g.stats.count)},
				Label:    map[string][]string{"thread": {g.key.thread}},
			})
			visit(g.children.nodes, s)
		}
	}
	visit(roots, nil)
	return prof
}

func cmdExport(w io.Writer, c *capture, logger zerolog.Logger) error {
	prof := buildProfile(c, logger)
	if err := prof.CheckValid(); err != nil {
		return fmt.Errorf("invalid profile: %w", err)
	}
	return prof.Write(w)
}

func newExportCmd(ro *rootOptions) *cobra.Command {
	var output string
	cmd := &cobra.Command{
		Use:   "export FILE",
		Short: "Write the scope hierarchy as a gzipped pprof profile",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := ro.load(args[0])
			if err != nil {
				return err
			}
			if output == "" || output == "-" {
				return cmdExport(cmd.OutOrStdout(), c, ro.logger)
			}
			f, err := os.Create(output)
			if err != nil {
				return err
			}
			if err := cmdExport(f, c, ro.logger); err != nil {
				f.Close()
				return err
			}
			return f.Close()
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "", "output file (default stdout)")
	return cmd
}
