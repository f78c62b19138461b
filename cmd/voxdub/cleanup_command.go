package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"voxdub/internal/api"
	"voxdub/internal/apiclient"
	"voxdub/internal/staging"
)

func newCleanupCommand(ctx *commandContext) *cobra.Command {
	var jobAgeHours float64

	cmd := &cobra.Command{
		Use:   "cleanup",
		Short: "Expire old jobs and remove stale temp, upload, and output files",
		Long: `Expire old jobs and remove stale temp, upload, and output files.

With a running daemon the sweep happens there, so files owned by active jobs
are kept and finished jobs older than --job-age are forgotten. Without a
daemon only the files are swept, using the configured cleanup ages.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := ctx.apiClient()
			if err != nil {
				return err
			}
			resp, err := client.Cleanup(cmd.Context(), jobAgeHours)
			if err == nil {
				if ctx.JSONMode() {
					return writeJSON(cmd, resp)
				}
				printCleanupResponse(cmd, resp)
				return nil
			}
			if !apiclient.IsUnavailable(err) {
				return err
			}

			cfg := ctx.configValue()
			logger, err := ctx.cliLogger("")
			if err != nil {
				return err
			}
			result := staging.SweepData(cmd.Context(), cfg, nil, logger)
			if ctx.JSONMode() {
				return writeJSON(cmd, localCleanupResponse(result))
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Daemon not running; sweeping files locally")
			printSweep(cmd, result)
			return nil
		},
	}

	cmd.Flags().Float64Var(&jobAgeHours, "job-age", 0, "Expire finished jobs older than this many hours (default cleanup.job_max_age_hours)")
	return cmd
}

func printCleanupResponse(cmd *cobra.Command, resp api.CleanupResponse) {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Expired %d jobs\n", len(resp.Expired))
	if len(resp.Removed) == 0 && len(resp.Errors) == 0 {
		fmt.Fprintln(out, "No stale files to clean")
		return
	}
	fmt.Fprintf(out, "Removed %d stale entries\n", len(resp.Removed))
	for _, e := range resp.Errors {
		fmt.Fprintf(out, "  Error: %s\n", e)
	}
}

func printSweep(cmd *cobra.Command, sweep staging.Sweep) {
	out := cmd.OutOrStdout()
	switch {
	case sweep.Clean():
		fmt.Fprintln(out, "No stale files to clean")
	case len(sweep.Failures) > 0:
		fmt.Fprintf(out, "Removed %d stale entries, %d errors\n", len(sweep.Removed), len(sweep.Failures))
		for _, msg := range sweep.FailureMessages() {
			fmt.Fprintf(out, "  Error: %s\n", msg)
		}
	default:
		fmt.Fprintf(out, "Removed %d stale entries\n", len(sweep.Removed))
	}
}

func localCleanupResponse(sweep staging.Sweep) api.CleanupResponse {
	resp := api.CleanupResponse{Expired: []string{}, Removed: sweep.Removed}
	if resp.Removed == nil {
		resp.Removed = []string{}
	}
	if len(sweep.Failures) > 0 {
		resp.Errors = sweep.FailureMessages()
	}
	return resp
}
