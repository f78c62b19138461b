package main

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"voxdub/internal/api"
	"voxdub/internal/apiclient"
)

type logsOptions struct {
	follow    bool
	lines     int
	jobID     string
	component string
	level     string
}

func newLogsCommand(ctx *commandContext) *cobra.Command {
	var opts logsOptions

	cmd := &cobra.Command{
		Use:   "logs",
		Short: "Display daemon logs",
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := ctx.apiClient()
			if err != nil {
				return err
			}
			err = streamLogs(cmd, client, opts)
			if apiclient.IsUnavailable(err) {
				cfg := ctx.configValue()
				return fmt.Errorf("daemon not reachable at %s; start it with `voxdub serve`", cfg.Paths.APIBind)
			}
			return err
		},
	}

	cmd.Flags().BoolVarP(&opts.follow, "follow", "f", false, "Follow log output")
	cmd.Flags().IntVarP(&opts.lines, "lines", "n", 20, "Number of recent events to show")
	cmd.Flags().StringVar(&opts.jobID, "job", "", "Only show events for this job id")
	cmd.Flags().StringVar(&opts.component, "component", "", "Only show events from this component")
	cmd.Flags().StringVar(&opts.level, "level", "", "Minimum level (debug, info, warn, error)")
	return cmd
}

func streamLogs(cmd *cobra.Command, client *apiclient.Client, opts logsOptions) error {
	ctx := cmd.Context()
	query := apiclient.LogQuery{
		Limit:     opts.lines,
		Tail:      true,
		JobID:     strings.TrimSpace(opts.jobID),
		Component: strings.TrimSpace(opts.component),
		Level:     strings.TrimSpace(opts.level),
	}
	if query.Limit <= 0 {
		query.Limit = 200
	}

	printed := false
	for {
		resp, err := client.Logs(ctx, query)
		if err != nil {
			if opts.follow && errors.Is(ctx.Err(), context.Canceled) {
				return nil
			}
			return err
		}
		for _, evt := range resp.Events {
			fmt.Fprintln(cmd.OutOrStdout(), formatLogEvent(evt))
			printed = true
		}
		if !opts.follow {
			if !printed {
				fmt.Fprintln(cmd.OutOrStdout(), "No log entries available")
			}
			return nil
		}
		query.Since = resp.Next
		query.Limit = 200
		query.Tail = false
		query.Follow = true
	}
}

func formatLogEvent(evt api.LogEvent) string {
	ts := evt.Timestamp
	if parsed, err := time.Parse("2006-01-02T15:04:05.000Z07:00", evt.Timestamp); err == nil {
		ts = parsed.Local().Format("2006-01-02 15:04:05")
	}
	level := strings.ToUpper(strings.TrimSpace(evt.Level))
	if level == "" {
		level = "INFO"
	}
	parts := []string{ts, level}
	if component := strings.TrimSpace(evt.Component); component != "" {
		parts = append(parts, fmt.Sprintf("[%s]", component))
	}
	line := strings.Join(parts, " ")
	if subject := composeSubject(evt.JobID, evt.Stage); subject != "" {
		line += " " + subject
	}
	if message := strings.TrimSpace(evt.Message); message != "" {
		line += " - " + message
	}
	if len(evt.Details) == 0 {
		return line
	}
	var b strings.Builder
	b.WriteString(line)
	for _, detail := range evt.Details {
		if strings.TrimSpace(detail.Label) == "" || strings.TrimSpace(detail.Value) == "" {
			continue
		}
		b.WriteString("\n    - ")
		b.WriteString(detail.Label)
		b.WriteString(": ")
		b.WriteString(detail.Value)
	}
	return b.String()
}

func composeSubject(jobID, stage string) string {
	jobID = strings.TrimSpace(jobID)
	stage = strings.TrimSpace(stage)
	if len(jobID) > 8 {
		jobID = jobID[:8]
	}
	switch {
	case jobID != "" && stage != "":
		return fmt.Sprintf("Job %s (%s)", jobID, stage)
	case jobID != "":
		return "Job " + jobID
	default:
		return stage
	}
}
