// scope-query: aggregate instrumentation scope captures into per-scope
// statistics.
//
// Usage:
//
//	scope-query <command> [flags] <file>
//
// Input: .scq/.scq.gz files are scope captures. .jfr/.jfr.gz recordings and
// collapsed-stack text (any other file, or stdin as -) are imported as one
// frame of nested scopes, each sample lasting --interval.
package main

import (
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

type rootOptions struct {
	eventType string
	interval  time.Duration
	thread    string
	last      int
	logLevel  string
	logPretty bool

	logger zerolog.Logger
}

// load opens an input and applies the global frame and thread selection.
func (ro *rootOptions) load(path string) (*capture, error) {
	c, err := openInput(path, inputOptions{eventType: ro.eventType, interval: ro.interval})
	if err != nil {
		return nil, err
	}
	ro.logger.Debug().
		Str("path", path).
		Int("frames", len(c.frames)).
		Int("scopes", c.scopes.len()).
		Msg("Loaded input")
	return c.lastFrames(ro.last).filterByThread(ro.thread), nil
}

func newRootCmd() *cobra.Command {
	ro := &rootOptions{}
	root := &cobra.Command{
		Use:   "scope-query",
		Short: "Aggregate instrumentation scope captures into per-scope statistics",
		Long: `scope-query: aggregate instrumentation scope captures into per-scope statistics

Input auto-detection:
  .scq / .scq.gz   →  scope capture (see convert)
  .jfr / .jfr.gz   →  JFR recording (supports --event selection)
  everything else  →  collapsed-stack text (one "frames count" per line)
  -                →  collapsed text from stdin

Examples:
  scope-query stats capture.scq --sort mean-self
  scope-query tree capture.scq -t render --filter upload
  scope-query stats capture.scq --where 'count > 100 and mean_self_ns > 5e4'
  scope-query hot profile.jfr --event wall --top 20
  scope-query convert profile.jfr -o profile.scq
  scope-query diff before.scq after.scq --min-delta 0.5
  echo "[main];A;B;C 10" | scope-query stats -`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			switch ro.eventType {
			case "cpu", "wall", "alloc", "lock":
			default:
				return fmt.Errorf("unknown event type %q (valid: cpu, wall, alloc, lock)", ro.eventType)
			}
			if ro.interval <= 0 {
				return fmt.Errorf("--interval must be positive, got %s", ro.interval)
			}
			ro.logger = newLogger(logConfig{Level: ro.logLevel, Pretty: ro.logPretty})
			return nil
		},
	}

	pf := root.PersistentFlags()
	pf.StringVarP(&ro.eventType, "event", "e", "cpu", "JFR event type: cpu, wall, alloc, lock")
	pf.DurationVar(&ro.interval, "interval", 10*time.Millisecond, "time represented by one sample of imported stacks")
	pf.StringVarP(&ro.thread, "thread", "t", "", "only threads whose name contains this substring")
	pf.IntVar(&ro.last, "last", 0, "only the N most recent frames (0 = all)")
	pf.StringVar(&ro.logLevel, "log-level", "warn", "log level: debug, info, warn, error")
	pf.BoolVar(&ro.logPretty, "log-pretty", false, "human-readable logs")

	root.AddCommand(
		newInfoCmd(ro),
		newStatsCmd(ro),
		newTreeCmd(ro),
		newHotCmd(ro),
		newThreadsCmd(ro),
		newTraceCmd(ro),
		newCallersCmd(ro),
		newCollapseCmd(ro),
		newDiffCmd(ro),
		newExportCmd(ro),
		newConvertCmd(ro),
		newServeCmd(ro),
		newEventsCmd(),
	)
	return root
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}
