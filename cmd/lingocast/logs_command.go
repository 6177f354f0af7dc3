package main

import (
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"lingocast/internal/logs"
)

func newLogsCommand(ctx *commandContext) *cobra.Command {
	var follow bool
	var lines int
	var filter logs.Filter

	cmd := &cobra.Command{
		Use:   "logs <job-id>",
		Short: "Show the log of a job",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			path := logs.JobLogPath(cfg.Paths.LogDir, args[0])

			streamCtx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			out := cmd.OutOrStdout()
			raw := ctx.jsonOutput()
			printed, err := logs.Stream(streamCtx, path, logs.StreamOptions{
				Lines:  lines,
				Follow: follow,
				Filter: filter,
			}, func(e logs.Entry) {
				if raw {
					fmt.Fprintln(out, e.Raw)
					return
				}
				fmt.Fprintln(out, e.Format())
			})
			if err != nil {
				return fmt.Errorf("read job log: %w", err)
			}
			if !printed && !follow && !raw {
				fmt.Fprintf(out, "No log entries for job %s\n", args[0])
			}
			return nil
		},
	}

	cmd.Flags().BoolVarP(&follow, "follow", "f", false, "Follow log output")
	cmd.Flags().IntVarP(&lines, "lines", "n", 50, "Number of lines to show (0 for all)")
	cmd.Flags().StringVar(&filter.MinLevel, "level", "", "Minimum level (debug, info, warn, error)")
	cmd.Flags().StringVar(&filter.Stage, "stage", "", "Only entries for this stage")
	cmd.Flags().StringVar(&filter.EventType, "event", "", "Only entries with this event type")
	cmd.Flags().StringVar(&filter.Search, "search", "", "Case-insensitive substring match")
	return cmd
}
