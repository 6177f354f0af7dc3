package main

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"lingocast/internal/history"
)

func newHistoryCommand(ctx *commandContext) *cobra.Command {
	var limit int
	var jobID string
	var pruneDays int

	cmd := &cobra.Command{
		Use:   "history [run-id]",
		Short: "Show recent runs, or the stage attempts of one run",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withHistory(func(store *history.Store) error {
				if pruneDays > 0 {
					return pruneHistory(cmd, store, pruneDays)
				}
				if len(args) == 1 {
					runID, err := strconv.ParseInt(strings.TrimSpace(args[0]), 10, 64)
					if err != nil {
						return fmt.Errorf("invalid run id %q", args[0])
					}
					return showRun(cmd, ctx, store, runID)
				}
				var runs []history.Run
				var err error
				if strings.TrimSpace(jobID) != "" {
					runs, err = store.ForJob(cmd.Context(), strings.TrimSpace(jobID))
				} else {
					runs, err = store.Recent(cmd.Context(), limit)
				}
				if err != nil {
					return err
				}
				if ctx.jsonOutput() {
					return writeJSON(cmd, runs)
				}
				printRuns(cmd, runs)
				return nil
			})
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Number of runs to show")
	cmd.Flags().StringVar(&jobID, "job", "", "Show every run of one job")
	cmd.Flags().IntVar(&pruneDays, "prune-days", 0, "Delete finished runs older than this many days")
	return cmd
}

func printRuns(cmd *cobra.Command, runs []history.Run) {
	out := cmd.OutOrStdout()
	if len(runs) == 0 {
		fmt.Fprintln(out, "No runs recorded")
		return
	}
	rows := make([][]string, 0, len(runs))
	for _, r := range runs {
		status := string(r.Status)
		if r.FailedStage != "" {
			status += " @ " + r.FailedStage
		}
		if r.ErrorCode != "" {
			status += " (" + r.ErrorCode + ")"
		}
		duration := ""
		if d := r.Duration(); d > 0 {
			duration = d.Round(time.Second).String()
		}
		title := r.Title
		if title == "" {
			title = r.Source
		}
		rows = append(rows, []string{
			strconv.FormatInt(r.ID, 10),
			r.JobID,
			title,
			r.TargetLanguage,
			status,
			humanize.Time(r.StartedAt),
			duration,
		})
	}
	fmt.Fprintln(out, renderTable(
		[]string{"Run", "Job", "Title", "Target", "Status", "Started", "Took"},
		rows, 0, 6,
	))
}

func showRun(cmd *cobra.Command, ctx *commandContext, store *history.Store, runID int64) error {
	run, err := store.GetRun(cmd.Context(), runID)
	if err != nil {
		return err
	}
	if run == nil {
		return fmt.Errorf("run %d not found", runID)
	}
	attempts, err := store.Attempts(cmd.Context(), runID)
	if err != nil {
		return err
	}
	if ctx.jsonOutput() {
		return writeJSON(cmd, map[string]any{"run": run, "attempts": attempts})
	}
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Run %d (job %s)\n", run.ID, run.JobID)
	fmt.Fprintf(out, "Source:  %s\n", run.Source)
	if run.Title != "" {
		fmt.Fprintf(out, "Title:   %s\n", run.Title)
	}
	fmt.Fprintf(out, "Status:  %s\n", run.Status)
	fmt.Fprintf(out, "Resumed: %s\n", yesNo(run.Resumed))
	if run.OutputPath != "" {
		fmt.Fprintf(out, "Output:  %s\n", run.OutputPath)
	}
	if run.ErrorMessage != "" {
		fmt.Fprintf(out, "Error:   %s\n", run.ErrorMessage)
	}
	if len(attempts) == 0 {
		return nil
	}
	rows := make([][]string, 0, len(attempts))
	for _, a := range attempts {
		attempt := ""
		if a.Attempt > 0 {
			attempt = strconv.Itoa(a.Attempt)
		}
		detail := a.ErrorCode
		if a.Message != "" {
			if detail != "" {
				detail += ": "
			}
			detail += a.Message
		}
		rows = append(rows, []string{
			a.Stage,
			attempt,
			a.Option,
			string(a.Outcome),
			a.FinishedAt.Sub(a.StartedAt).Round(time.Millisecond).String(),
			detail,
		})
	}
	fmt.Fprintln(out, renderTable(
		[]string{"Stage", "Attempt", "Option", "Outcome", "Took", "Detail"},
		rows, 1, 4,
	))
	return nil
}

func pruneHistory(cmd *cobra.Command, store *history.Store, days int) error {
	cutoff := time.Now().Add(-time.Duration(days) * 24 * time.Hour)
	n, err := store.Prune(cmd.Context(), cutoff)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Deleted %d run(s) started before %s\n", n, cutoff.Format(time.DateOnly))
	return nil
}
