package main

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"voxdub/internal/api"
	"voxdub/internal/daemonrun"
	"voxdub/internal/logging"
	"voxdub/internal/voices"
)

func newVoicesCommand(ctx *commandContext) *cobra.Command {
	voicesCmd := &cobra.Command{
		Use:   "voices",
		Short: "Manage reference voices for voice cloning",
	}
	voicesCmd.AddCommand(newVoicesListCommand(ctx))
	voicesCmd.AddCommand(newVoicesAddCommand(ctx))
	voicesCmd.AddCommand(newVoicesRemoveCommand(ctx))
	return voicesCmd
}

// withVoices opens the local voice catalog for the duration of fn.
func withVoices(ctx *commandContext, fn func(*voices.Manager) error) error {
	cfg, err := ctx.ensureConfig()
	if err != nil {
		return err
	}
	store, err := voices.Open(cfg.VoicesDBPath())
	if err != nil {
		return fmt.Errorf("open voice catalog: %w", err)
	}
	defer store.Close()
	return fn(daemonrun.VoiceManager(cfg, store, logging.NewNop()))
}

func newVoicesListCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List stored reference voices",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withVoices(ctx, func(m *voices.Manager) error {
				list, err := m.List(cmd.Context())
				if err != nil {
					return err
				}
				if ctx.JSONMode() {
					return writeJSON(cmd, api.VoicesResponse{Voices: api.FromVoices(list)})
				}
				out := cmd.OutOrStdout()
				if len(list) == 0 {
					fmt.Fprintln(out, "No reference voices stored")
					return nil
				}
				rows := make([][]string, 0, len(list))
				for _, v := range list {
					rows = append(rows, []string{
						v.ID,
						v.Name,
						v.Language,
						logging.FormatBytes(v.SizeBytes),
						yesNo(v.Registered),
						formatDuration(time.Since(v.CreatedAt)),
					})
				}
				fmt.Fprint(out, renderTable(
					[]string{"ID", "Name", "Language", "Size", "Registered", "Age"},
					rows,
					[]columnAlignment{alignLeft, alignLeft, alignLeft, alignRight, alignLeft, alignRight},
				))
				return nil
			})
		},
	}
}

func newVoicesAddCommand(ctx *commandContext) *cobra.Command {
	var req voices.AddRequest

	cmd := &cobra.Command{
		Use:   "add <audio-file>",
		Short: "Store a reference recording",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			file, err := os.Open(args[0])
			if err != nil {
				return fmt.Errorf("open audio: %w", err)
			}
			defer file.Close()
			req.Audio = file
			req.Filename = filepath.Base(args[0])

			return withVoices(ctx, func(m *voices.Manager) error {
				voice, err := m.Add(cmd.Context(), req)
				if err != nil {
					return err
				}
				if ctx.JSONMode() {
					return writeJSON(cmd, api.FromVoice(voice))
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Added voice %s (%s)\n", voice.ID, logging.FormatBytes(voice.SizeBytes))
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&req.ID, "id", "", "Voice id (letters, digits, '-' and '_'; random when empty)")
	cmd.Flags().StringVar(&req.Name, "name", "", "Display name")
	cmd.Flags().StringVar(&req.Transcript, "transcript", "", "What is said in the recording")
	cmd.Flags().StringVar(&req.Language, "language", "", "Language of the recording")
	return cmd
}

func newVoicesRemoveCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:     "remove <id>",
		Aliases: []string{"rm"},
		Short:   "Delete a reference voice",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withVoices(ctx, func(m *voices.Manager) error {
				if err := m.Remove(cmd.Context(), args[0]); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Removed voice %s\n", args[0])
				return nil
			})
		},
	}
}
