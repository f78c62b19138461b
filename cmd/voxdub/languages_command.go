package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"voxdub/internal/api"
)

func newLanguagesCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:         "languages",
		Short:       "List dubbing target languages",
		Annotations: map[string]string{"skipConfigLoad": "true"},
		RunE: func(cmd *cobra.Command, args []string) error {
			langs := api.Languages()
			if ctx.JSONMode() {
				return writeJSON(cmd, api.LanguagesResponse{Languages: langs})
			}
			rows := make([][]string, 0, len(langs))
			for _, l := range langs {
				rows = append(rows, []string{l.Code, l.Name, l.Native})
			}
			fmt.Fprint(cmd.OutOrStdout(), renderTable([]string{"Code", "Language", "Native"}, rows, nil))
			return nil
		},
	}
}
