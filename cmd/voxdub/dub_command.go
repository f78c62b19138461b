package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"voxdub/internal/api"
	"voxdub/internal/daemonrun"
	"voxdub/internal/fileutil"
	"voxdub/internal/job"
)

const dubPollInterval = 500 * time.Millisecond

type dubOptions struct {
	language string
	provider string
	voiceID  string
	emotion  string
	speed    float64
	output   string
	logLevel string
}

func newDubCommand(ctx *commandContext) *cobra.Command {
	var opts dubOptions

	cmd := &cobra.Command{
		Use:   "dub <video>",
		Short: "Dub a local video without a running daemon",
		Long: `Run one dubbing job in this process and wait for it to finish.

The job goes through the same extract, transcribe, translate, synthesize and
lip sync stages the daemon runs. Interrupting the command cancels the job.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			logger, err := ctx.cliLogger(opts.logLevel)
			if err != nil {
				return err
			}
			videoPath, err := filepath.Abs(args[0])
			if err != nil {
				return fmt.Errorf("resolve video path: %w", err)
			}

			rt, err := daemonrun.Build(cfg, logger)
			if err != nil {
				return err
			}
			defer rt.Close()

			runCtx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			submitted, err := rt.Service.Submit(runCtx, api.SubmitRequest{
				VideoPath:      videoPath,
				TargetLanguage: opts.language,
				Provider:       opts.provider,
				VoiceID:        opts.voiceID,
				Emotion:        opts.emotion,
				Speed:          opts.speed,
			})
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			quiet := ctx.JSONMode()
			if !quiet {
				fmt.Fprintf(out, "Job %s queued (%s -> %s)\n", submitted.ID, submitted.OriginalFilename, submitted.TargetLanguage)
			}
			final, err := waitForJob(runCtx, rt.Jobs, submitted.ID, dubPollInterval, func(j job.Job) {
				if !quiet {
					printJobProgress(out, j)
				}
			})
			if err != nil {
				if errors.Is(err, context.Canceled) {
					fmt.Fprintln(cmd.ErrOrStderr(), "Interrupted; cancelling job")
				}
				return err
			}
			if final.Status == job.StatusFailed {
				if quiet {
					_ = writeJSON(cmd, api.FromJob(final, time.Now()))
				}
				return fmt.Errorf("job %s failed: %s", final.ID, final.Error)
			}

			result := final.OutputArtifact
			if target := strings.TrimSpace(opts.output); target != "" {
				if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
					return fmt.Errorf("create output directory: %w", err)
				}
				if err := fileutil.CopyFileVerified(final.OutputArtifact, target); err != nil {
					return fmt.Errorf("copy result: %w", err)
				}
				result = target
			}

			if quiet {
				view := api.FromJob(final, time.Now())
				return writeJSON(cmd, map[string]any{"job": view, "output": result})
			}
			if final.TranslationFallback {
				fmt.Fprintln(out, "Warning: translation was unavailable; the source text was spoken as-is")
			}
			fmt.Fprintf(out, "Dubbed video written to %s\n", result)
			return nil
		},
	}

	cmd.Flags().StringVarP(&opts.language, "lang", "l", "", "Target language code (see `voxdub languages`)")
	cmd.Flags().StringVarP(&opts.provider, "provider", "p", "", "TTS provider (auto, fish_audio, fish_speech, offline)")
	cmd.Flags().StringVar(&opts.voiceID, "voice", "", "Reference voice id")
	cmd.Flags().StringVar(&opts.emotion, "emotion", "", "Emotion hint for providers that support it")
	cmd.Flags().Float64Var(&opts.speed, "speed", 0, "Speech speed multiplier (0.5 to 2.0)")
	cmd.Flags().StringVarP(&opts.output, "output", "o", "", "Copy the dubbed video to this path")
	cmd.Flags().StringVar(&opts.logLevel, "log-level", "", "Log level for progress on stderr (default warn)")
	_ = cmd.MarkFlagRequired("lang")
	return cmd
}

type jobGetter interface {
	Get(id string) (job.Job, error)
}

// waitForJob polls until the job is terminal, calling onChange whenever the
// status, step or percentage moves.
func waitForJob(ctx context.Context, jobs jobGetter, id string, interval time.Duration, onChange func(job.Job)) (job.Job, error) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	var last job.Job
	for {
		current, err := jobs.Get(id)
		if err != nil {
			return job.Job{}, err
		}
		if onChange != nil && (current.Status != last.Status || current.CurrentStep != last.CurrentStep || current.Progress != last.Progress) {
			onChange(current)
		}
		last = current
		if current.Status.IsTerminal() {
			return current, nil
		}
		select {
		case <-ctx.Done():
			return current, ctx.Err()
		case <-ticker.C:
		}
	}
}

func printJobProgress(out io.Writer, j job.Job) {
	step := j.CurrentStep
	if step == "" {
		step = string(j.Status)
	}
	fmt.Fprintf(out, "[%3d%%] %s\n", j.Progress, step)
}
