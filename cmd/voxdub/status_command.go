package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"voxdub/internal/api"
	"voxdub/internal/apiclient"
	"voxdub/internal/deps"
	"voxdub/internal/preflight"
)

// statusReport is the --json shape of `voxdub status`.
type statusReport struct {
	Checks       []preflight.Result  `json:"checks"`
	Dependencies []deps.Status       `json:"dependencies"`
	Daemon       *api.HealthResponse `json:"daemon,omitempty"`
	DaemonError  string              `json:"daemonError,omitempty"`
}

func newStatusCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show system, dependency, and daemon status",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}

			report := statusReport{
				Checks:       append(preflight.RunAll(cmd.Context(), cfg), preflight.CheckFishAudio(cfg)),
				Dependencies: preflight.CheckSystemDeps(cfg),
			}
			client, err := ctx.apiClient()
			if err != nil {
				return err
			}
			health, err := client.Health(cmd.Context())
			switch {
			case err == nil:
				report.Daemon = &health
			case apiclient.IsUnavailable(err):
				report.DaemonError = "not running"
			default:
				report.DaemonError = err.Error()
			}

			if ctx.JSONMode() {
				return writeJSON(cmd, report)
			}
			printStatusReport(cmd, report)
			return nil
		},
	}
}

func printStatusReport(cmd *cobra.Command, report statusReport) {
	stdout := cmd.OutOrStdout()
	colorize := shouldColorize(stdout)

	for _, line := range renderSectionHeader("System Status", colorize) {
		fmt.Fprintln(stdout, line)
	}
	for _, check := range report.Checks {
		kind := statusOK
		if !check.Passed {
			kind = statusError
		}
		fmt.Fprintln(stdout, renderStatusLine(check.Name, kind, check.Detail, colorize))
	}
	fmt.Fprintln(stdout)

	for _, line := range renderSectionHeader("Dependencies", colorize) {
		fmt.Fprintln(stdout, line)
	}
	for _, line := range dependencyLines(report.Dependencies, colorize) {
		fmt.Fprintln(stdout, line)
	}
	fmt.Fprintln(stdout)

	for _, line := range renderSectionHeader("Daemon", colorize) {
		fmt.Fprintln(stdout, line)
	}
	if report.Daemon == nil {
		fmt.Fprintln(stdout, renderStatusLine("VoxDub", statusInfo, report.DaemonError, colorize))
		return
	}
	health := report.Daemon
	kind := statusOK
	if health.Status != "ok" {
		kind = statusWarn
	}
	fmt.Fprintln(stdout, renderStatusLine("VoxDub", kind, "Running ("+health.Status+")", colorize))
	if health.ProviderErr != "" {
		fmt.Fprintln(stdout, renderStatusLine("Provider", statusWarn, health.ProviderErr, colorize))
	} else if health.Provider != "" {
		fmt.Fprintln(stdout, renderStatusLine("Provider", statusOK, health.Provider, colorize))
	}

	rows := make([][]string, 0, len(health.Jobs))
	for _, key := range []string{"queued", "processing", "completed", "failed", "total"} {
		if count, ok := health.Jobs[key]; ok {
			rows = append(rows, []string{key, strconv.Itoa(count)})
		}
	}
	if len(rows) > 0 {
		fmt.Fprintln(stdout)
		fmt.Fprint(stdout, renderTable([]string{"Jobs", "Count"}, rows, []columnAlignment{alignLeft, alignRight}))
	}
}
