package main

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"lingocast/internal/deps"
	"lingocast/internal/preflight"
	"lingocast/internal/stage"
	"lingocast/internal/staging"
)

func newDepsCommand(ctx *commandContext) *cobra.Command {
	var checkHealth bool
	cmd := &cobra.Command{
		Use:   "deps",
		Short: "Check that the external tools are installed",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			statuses := preflight.CheckSystemDeps(cfg)
			var health map[string]stage.Health
			if checkHealth {
				store, err := ctx.checkpointStore()
				if err != nil {
					return err
				}
				health = newOrchestrator(cfg, store, staging.NewTracker(), ctx.loggerValue()).StageHealth(cmd.Context())
			}

			if ctx.jsonOutput() {
				if err := writeJSON(cmd, map[string]any{"binaries": statuses, "health": health}); err != nil {
					return err
				}
			} else {
				printDeps(cmd, statuses, health)
			}
			if missing := deps.Missing(statuses); len(missing) > 0 {
				return fmt.Errorf("%d required tool(s) missing", len(missing))
			}
			for _, h := range health {
				if !h.Ready {
					return fmt.Errorf("stage %s is not ready", h.Name)
				}
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&checkHealth, "health", false, "Also run each stage's health check (contacts the translation provider)")
	return cmd
}

func printDeps(cmd *cobra.Command, statuses []deps.Status, health map[string]stage.Health) {
	out := cmd.OutOrStdout()
	printer := newEventPrinter(out, false)
	rows := make([][]string, 0, len(statuses))
	for _, s := range statuses {
		state := printer.ok.Sprint("ok")
		detail := s.Path
		if !s.Available {
			state = printer.bad.Sprint("missing")
			if s.Optional {
				state = printer.warn.Sprint("missing (optional)")
			}
			detail = s.Detail
		}
		rows = append(rows, []string{s.Name, state, detail, s.Description})
	}
	fmt.Fprintln(out, renderTable([]string{"Tool", "Status", "Path", "Used for"}, rows))

	if len(health) == 0 {
		return
	}
	names := make([]string, 0, len(health))
	for name := range health {
		names = append(names, name)
	}
	sort.Strings(names)
	rows = rows[:0]
	for _, name := range names {
		h := health[name]
		state := printer.ok.Sprint("ready")
		if !h.Ready {
			state = printer.bad.Sprint("not ready")
		}
		rows = append(rows, []string{name, state, h.Detail})
	}
	fmt.Fprintln(out, renderTable([]string{"Stage", "Health", "Detail"}, rows))
}
