package main

import (
	"github.com/spf13/cobra"
)

const (
	groupPipeline = "pipeline"
	groupInspect  = "inspect"
	groupSetup    = "setup"
)

func newRootCommand() *cobra.Command {
	var (
		configFlag string
		envFlag    string
		jsonFlag   bool
	)
	ctx := newCommandContext(&configFlag, &envFlag, &jsonFlag)

	root := &cobra.Command{
		Use:           "lingocast",
		Short:         "Download, transcribe, translate, and subtitle online videos",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if shouldSkipConfig(cmd) {
				return nil
			}
			_, err := ctx.ensureConfig()
			return err
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			return cmd.Help()
		},
	}

	flags := root.PersistentFlags()
	flags.StringVarP(&configFlag, "config", "c", "", "Configuration file path")
	flags.StringVar(&envFlag, "env-file", "", "Load environment variables from this file (default ./.env when present)")
	flags.BoolVar(&jsonFlag, "json", false, "Emit machine readable JSON where supported")

	root.AddGroup(
		&cobra.Group{ID: groupPipeline, Title: "Pipeline:"},
		&cobra.Group{ID: groupInspect, Title: "Inspection:"},
		&cobra.Group{ID: groupSetup, Title: "Setup:"},
	)
	addGrouped(root, groupPipeline, newRunCommand(ctx), newResumeCommand(ctx))
	addGrouped(root, groupInspect,
		newCheckpointsCommand(ctx),
		newHistoryCommand(ctx),
		newLogsCommand(ctx),
	)
	addGrouped(root, groupSetup,
		newPreflightCommand(ctx),
		newDepsCommand(ctx),
		newConfigCommand(ctx),
		newTestNotifyCommand(ctx),
	)
	return root
}

func addGrouped(root *cobra.Command, group string, cmds ...*cobra.Command) {
	for _, cmd := range cmds {
		cmd.GroupID = group
		root.AddCommand(cmd)
	}
}
