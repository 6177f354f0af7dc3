package main

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"lingocast/internal/checkpoint"
)

func newCheckpointsCommand(ctx *commandContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "checkpoints",
		Aliases: []string{"checkpoint", "cp"},
		Short:   "Inspect and manage resume checkpoints",
	}
	cmd.AddCommand(newCheckpointsListCommand(ctx))
	cmd.AddCommand(newCheckpointsShowCommand(ctx))
	cmd.AddCommand(newCheckpointsDeleteCommand(ctx))
	cmd.AddCommand(newCheckpointsPruneCommand(ctx))
	return cmd
}

type checkpointView struct {
	JobID     string            `json:"job_id"`
	Valid     bool              `json:"valid"`
	Reason    string            `json:"reason,omitempty"`
	Completed string            `json:"completed_stage,omitempty"`
	Next      string            `json:"next_stage,omitempty"`
	Source    string            `json:"source,omitempty"`
	Target    string            `json:"target_language,omitempty"`
	Title     string            `json:"title,omitempty"`
	Saved     time.Time         `json:"saved_at"`
	Artifacts map[string]string `json:"artifacts,omitempty"`
}

func viewFromEntry(entry checkpoint.Entry) checkpointView {
	view := checkpointView{JobID: entry.JobID, Valid: entry.Valid, Reason: entry.Reason, Saved: entry.ModTime}
	cp := entry.Checkpoint
	if cp == nil {
		return view
	}
	view.Completed = cp.LastCompletedStage.String()
	if next, more := cp.NextStage(); more {
		view.Next = next.String()
	} else {
		view.Next = "finalize"
	}
	view.Source = cp.Job.Source
	view.Target = cp.Job.TargetLanguage
	view.Title = cp.Metadata["title"]
	view.Saved = cp.Timestamp
	view.Artifacts = cp.Artifacts
	return view
}

func newCheckpointsListCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List stored checkpoints",
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := ctx.checkpointStore()
			if err != nil {
				return err
			}
			entries, err := store.Inspect()
			if err != nil {
				return err
			}
			views := make([]checkpointView, 0, len(entries))
			for _, entry := range entries {
				views = append(views, viewFromEntry(entry))
			}
			if ctx.jsonOutput() {
				return writeJSON(cmd, views)
			}
			out := cmd.OutOrStdout()
			if len(views) == 0 {
				fmt.Fprintln(out, "No checkpoints")
				return nil
			}
			rows := make([][]string, 0, len(views))
			for _, v := range views {
				status := "resumable"
				if !v.Valid {
					status = v.Reason
				}
				rows = append(rows, []string{v.JobID, v.Title, v.Completed, v.Next, humanize.Time(v.Saved), status})
			}
			fmt.Fprintln(out, renderTable([]string{"Job", "Title", "Completed", "Next", "Saved", "Status"}, rows))
			return nil
		},
	}
}

func newCheckpointsShowCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "show <job-id>",
		Short: "Show one checkpoint and its artifacts",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := ctx.checkpointStore()
			if err != nil {
				return err
			}
			entries, err := store.Inspect()
			if err != nil {
				return err
			}
			jobID := strings.TrimSpace(args[0])
			for _, entry := range entries {
				if entry.JobID != jobID {
					continue
				}
				view := viewFromEntry(entry)
				if ctx.jsonOutput() {
					return writeJSON(cmd, view)
				}
				printCheckpoint(cmd, view)
				return nil
			}
			return fmt.Errorf("no checkpoint for job %s", jobID)
		},
	}
}

func printCheckpoint(cmd *cobra.Command, v checkpointView) {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Job:        %s\n", v.JobID)
	if v.Title != "" {
		fmt.Fprintf(out, "Title:      %s\n", v.Title)
	}
	fmt.Fprintf(out, "Source:     %s\n", v.Source)
	fmt.Fprintf(out, "Target:     %s\n", v.Target)
	fmt.Fprintf(out, "Completed:  %s\n", v.Completed)
	fmt.Fprintf(out, "Next stage: %s\n", v.Next)
	fmt.Fprintf(out, "Saved:      %s (%s)\n", v.Saved.Local().Format(time.DateTime), humanize.Time(v.Saved))
	fmt.Fprintf(out, "Resumable:  %s\n", yesNo(v.Valid))
	if !v.Valid && v.Reason != "" {
		fmt.Fprintf(out, "Reason:     %s\n", v.Reason)
	}
	if len(v.Artifacts) == 0 {
		return
	}
	keys := make([]string, 0, len(v.Artifacts))
	for key := range v.Artifacts {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	rows := make([][]string, 0, len(keys))
	for _, key := range keys {
		rows = append(rows, []string{key, v.Artifacts[key]})
	}
	fmt.Fprintln(out, renderTable([]string{"Artifact", "Path"}, rows))
}

func newCheckpointsDeleteCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <job-id>...",
		Short: "Delete checkpoints so their jobs start fresh",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := ctx.checkpointStore()
			if err != nil {
				return err
			}
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			running := make(map[string]struct{})
			for _, id := range runningJobs(cfg) {
				running[id] = struct{}{}
			}
			out := cmd.OutOrStdout()
			for _, arg := range args {
				jobID := strings.TrimSpace(arg)
				if _, ok := running[jobID]; ok {
					return fmt.Errorf("%w: %s", errJobRunning, jobID)
				}
				if err := store.Delete(jobID); err != nil {
					return err
				}
				fmt.Fprintf(out, "Deleted checkpoint %s\n", jobID)
			}
			return nil
		},
	}
}

func newCheckpointsPruneCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "prune",
		Short: "Delete expired, corrupt, and incomplete checkpoints",
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := ctx.checkpointStore()
			if err != nil {
				return err
			}
			removed, err := store.Prune()
			if err != nil {
				return err
			}
			if ctx.jsonOutput() {
				return writeJSON(cmd, map[string]any{"removed": removed})
			}
			out := cmd.OutOrStdout()
			if len(removed) == 0 {
				fmt.Fprintln(out, "Nothing to prune")
				return nil
			}
			for _, id := range removed {
				fmt.Fprintf(out, "Removed %s\n", id)
			}
			fmt.Fprintf(out, "Pruned %d checkpoint(s)\n", len(removed))
			return nil
		},
	}
}
