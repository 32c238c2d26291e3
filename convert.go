package main

import (
	"compress/gzip"
	"errors"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
)

// createCapture writes c to path, gzipped when path ends in .gz.
func createCapture(path string, c *capture) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	var w io.Writer = f
	var gz *gzip.Writer
	if strings.HasSuffix(path, ".gz") {
		gz = gzip.NewWriter(f)
		w = gz
	}
	err = writeCapture(w, c)
	if gz != nil {
		err = errors.Join(err, gz.Close())
	}
	return errors.Join(err, f.Close())
}

func newConvertCmd(ro *rootOptions) *cobra.Command {
	var output string
	cmd := &cobra.Command{
		Use:   "convert FILE",
		Short: "Write any input as a scope capture",
		Long: `Convert a JFR recording, collapsed stacks or another capture into a scope
capture (.scq, or .scq.gz for gzip). The --thread and --last selection is
applied before writing.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := ro.load(args[0])
			if err != nil {
				return err
			}
			if output == "" || output == "-" {
				return writeCapture(cmd.OutOrStdout(), c)
			}
			if err := createCapture(output, c); err != nil {
				return err
			}
			ro.logger.Info().
				Str("output", output).
				Int("frames", len(c.frames)).
				Int("scopes", c.scopes.len()).
				Msg("Wrote capture")
			return nil
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "", "output file (default stdout)")
	return cmd
}
