package main

import (
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"
)

func cmdEvents(w io.Writer, path string) error {
	counts, err := discoverEvents(path)
	if err != nil {
		return err
	}
	if len(counts) == 0 {
		fmt.Fprintln(w, "no supported events found")
		return nil
	}
	fmt.Fprintf(w, "%-10s %9s\n", "EVENT", "SAMPLES")
	for _, e := range rankEvents(counts) {
		fmt.Fprintf(w, "%-10s %9d\n", e.name, e.samples)
	}
	return nil
}

func newEventsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "events FILE",
		Short: "List the sample events of a JFR recording",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if !isJFRPath(args[0]) {
				return errors.New("events command requires a JFR file")
			}
			return cmdEvents(cmd.OutOrStdout(), args[0])
		},
	}
}
