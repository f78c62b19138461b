package main

import (
	"github.com/spf13/cobra"
)

func newRootCommand() *cobra.Command {
	var (
		configFlag string
		jsonFlag   bool
	)
	ctx := newCommandContext(&configFlag, &jsonFlag)

	root := &cobra.Command{
		Use:           "voxdub",
		Short:         "Dub videos into other languages with cloned or stock voices",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if configOptional(cmd) {
				return nil
			}
			_, err := ctx.ensureConfig()
			return err
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			return cmd.Help()
		},
	}
	root.PersistentFlags().StringVarP(&configFlag, "config", "c", "", "Configuration file path")
	root.PersistentFlags().BoolVar(&jsonFlag, "json", false, "Emit machine-readable JSON")

	root.AddGroup(
		&cobra.Group{ID: "dub", Title: "Dubbing:"},
		&cobra.Group{ID: "daemon", Title: "Daemon:"},
	)
	for _, sub := range []*cobra.Command{
		newDubCommand(ctx),
		newProvidersCommand(ctx),
		newVoicesCommand(ctx),
		newLanguagesCommand(ctx),
	} {
		sub.GroupID = "dub"
		root.AddCommand(sub)
	}
	for _, sub := range []*cobra.Command{
		newServeCommand(ctx),
		newStatusCommand(ctx),
		newLogsCommand(ctx),
		newCleanupCommand(ctx),
		newTestNotifyCommand(ctx),
	} {
		sub.GroupID = "daemon"
		root.AddCommand(sub)
	}
	root.AddCommand(newConfigCommand(ctx))
	return root
}
