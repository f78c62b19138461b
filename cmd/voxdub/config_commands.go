package main

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"voxdub/internal/config"
)

// skipConfigLoad lets a command run before a config file exists or with one
// that fails validation.
var skipConfigLoad = map[string]string{"skipConfigLoad": "true"}

func newConfigCommand(ctx *commandContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect or create the configuration file",
	}
	cmd.AddCommand(
		newConfigInitCommand(),
		newConfigValidateCommand(ctx),
		newConfigShowCommand(ctx),
	)
	return cmd
}

func newConfigInitCommand() *cobra.Command {
	var (
		path      string
		overwrite bool
	)
	cmd := &cobra.Command{
		Use:         "init",
		Short:       "Write a commented sample configuration",
		Annotations: skipConfigLoad,
		RunE: func(cmd *cobra.Command, _ []string) error {
			target, err := initTarget(path)
			if err != nil {
				return err
			}
			if !overwrite {
				_, statErr := os.Stat(target)
				switch {
				case statErr == nil:
					return fmt.Errorf("config file already exists at %s (use --overwrite to replace it)", target)
				case !errors.Is(statErr, fs.ErrNotExist):
					return fmt.Errorf("check config path: %w", statErr)
				}
			}
			if err := config.CreateSample(target); err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Wrote sample configuration to %s\n", target)
			fmt.Fprintln(out, "Cloud voices need providers.fish_audio.api_key (or FISH_AUDIO_API_KEY).")
			fmt.Fprintln(out, "Translation needs translation.api_key (or OPENROUTER_API_KEY); without it transcripts are dubbed untranslated.")
			return nil
		},
	}
	cmd.Flags().StringVarP(&path, "path", "p", "", "Destination for the configuration file (default ~/.config/voxdub/config.toml)")
	cmd.Flags().BoolVar(&overwrite, "overwrite", false, "Replace an existing file")
	return cmd
}

func initTarget(flag string) (string, error) {
	if flag = strings.TrimSpace(flag); flag != "" {
		path, err := config.ExpandPath(flag)
		if err != nil {
			return "", fmt.Errorf("resolve config path: %w", err)
		}
		return path, nil
	}
	path, err := config.DefaultConfigPath()
	if err != nil {
		return "", fmt.Errorf("determine default config path: %w", err)
	}
	return path, nil
}

func newConfigValidateCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:         "validate",
		Short:       "Load the configuration, create its directories, and report problems",
		Annotations: skipConfigLoad,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, path, exists, err := config.Load(ctx.configPath())
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			if err := cfg.EnsureDirectories(); err != nil {
				return fmt.Errorf("ensure directories: %w", err)
			}

			out := cmd.OutOrStdout()
			source := path
			if !exists {
				source += " (not found, using defaults)"
			}
			fmt.Fprintf(out, "Config path: %s\n", source)
			fmt.Fprintf(out, "Data directory: %s\n", cfg.Paths.DataDir)
			fmt.Fprintf(out, "API bind: %s\n", cfg.Paths.APIBind)
			fmt.Fprintf(out, "API token required: %s\n", yesNo(strings.TrimSpace(cfg.Paths.APIToken) != ""))
			fmt.Fprintf(out, "Default provider: %s\n", cfg.TTS.DefaultProvider)
			fmt.Fprintf(out, "Lip sync mode: %s\n", cfg.LipSync.Mode)
			fmt.Fprintln(out, "Configuration valid")
			return nil
		},
	}
}

func newConfigShowCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Print the effective configuration with credentials masked",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg := ctx.configValue()
			if cfg == nil {
				return errors.New("configuration not loaded")
			}
			redacted := cfg.Redacted()
			if ctx.JSONMode() {
				return writeJSON(cmd, redacted)
			}
			body, err := redacted.TOML()
			if err != nil {
				return fmt.Errorf("render config: %w", err)
			}
			_, err = cmd.OutOrStdout().Write(body)
			return err
		},
	}
}
