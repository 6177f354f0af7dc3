package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"lingocast/internal/failure"
	"lingocast/internal/logging"
	"lingocast/internal/preflight"
	"lingocast/internal/staging"
)

func newPreflightCommand(ctx *commandContext) *cobra.Command {
	var flags jobFlags
	cmd := &cobra.Command{
		Use:   "preflight <url>",
		Short: "Probe a video and report the plan without running any stage",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			j, err := flags.build(cfg, args[0])
			if err != nil {
				return err
			}
			logger := ctx.loggerValue()
			collab := newCollaborators(cfg, logger)
			checker := preflight.NewChecker(cfg, collab.Prober, staging.NewTracker(), newMapper(cfg),
				logging.NewComponentLogger(logger, "preflight"))

			plan, pe := checker.Check(cmd.Context(), preflight.Request{Job: j})
			if ctx.jsonOutput() {
				payload := map[string]any{"plan": plan}
				if pe != nil {
					payload["error"] = map[string]string{
						"code":       string(pe.Code),
						"message":    pe.Message,
						"suggestion": pe.Suggestion,
					}
				}
				if err := writeJSON(cmd, payload); err != nil {
					return err
				}
			} else {
				printPlan(cmd, plan, pe)
			}
			if pe != nil {
				return &runFailure{code: exitRunFailed, msg: fmt.Sprintf("preflight blocked: %s", pe.Code)}
			}
			return nil
		},
	}
	flags.register(cmd)
	return cmd
}

func printPlan(cmd *cobra.Command, plan preflight.Plan, pe *failure.PipelineError) {
	out := cmd.OutOrStdout()
	printer := newEventPrinter(out, false)
	if plan.Video.Title != "" || plan.Video.Duration > 0 {
		for _, line := range plan.Summary() {
			fmt.Fprintln(out, line)
		}
	}
	for _, n := range plan.Notices {
		if n.Level == preflight.NoticeWarning {
			printer.warn.Fprintf(out, "warning: %s\n", n.Message)
			continue
		}
		fmt.Fprintf(out, "note: %s\n", n.Message)
	}
	if pe != nil {
		printer.bad.Fprintf(out, "Blocked: %s\n", strings.TrimSpace(pe.Error()))
		if pe.Suggestion != "" {
			printer.warn.Fprintf(out, "  Hint: %s\n", pe.Suggestion)
		}
		return
	}
	printer.ok.Fprintln(out, "Preflight passed")
}
