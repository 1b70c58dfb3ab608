package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"coursepull/internal/logging"
	"coursepull/internal/logs"
)

func newLogsCommand(ctx *commandContext) *cobra.Command {
	var lines int
	var follow bool
	var raw bool
	var level string

	cmd := &cobra.Command{
		Use:   "logs [log-file]",
		Short: "Show the newest run log",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			var path string
			if len(args) == 1 {
				path = args[0]
			} else if path, err = logs.Latest(cfg.Paths.LogDir, logging.RunLogPattern); err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			emit := func(line string) {
				if raw {
					fmt.Fprintln(out, line)
					return
				}
				rec, ok := logs.Parse(line)
				if !ok {
					fmt.Fprintln(out, line)
					return
				}
				if rec.AtLeast(level) {
					fmt.Fprintln(out, rec.String())
				}
			}

			tail, offset, err := logs.Last(path, lines)
			if err != nil {
				return err
			}
			for _, line := range tail {
				emit(line)
			}
			if !follow {
				return nil
			}

			followCtx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			err = logs.Follow(followCtx, path, offset, 500*time.Millisecond, emit)
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		},
	}

	cmd.Flags().IntVarP(&lines, "lines", "n", 50, "Number of trailing lines to show")
	cmd.Flags().BoolVarP(&follow, "follow", "f", false, "Keep printing lines as the run writes them")
	cmd.Flags().BoolVar(&raw, "raw", false, "Print JSON records unformatted")
	cmd.Flags().StringVar(&level, "level", "debug", "Hide records below this level (debug, info, warn, error)")
	return cmd
}
