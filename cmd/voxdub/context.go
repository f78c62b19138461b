package main

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/spf13/cobra"

	"voxdub/internal/apiclient"
	"voxdub/internal/config"
	"voxdub/internal/logging"
)

// commandContext carries the persistent flags and the lazily loaded config
// shared by every subcommand of one invocation.
type commandContext struct {
	configFlag *string
	jsonFlag   *bool
	load       func() (*config.Config, error)
}

func newCommandContext(configFlag *string, jsonFlag *bool) *commandContext {
	c := &commandContext{configFlag: configFlag, jsonFlag: jsonFlag}
	c.load = sync.OnceValues(func() (*config.Config, error) {
		cfg, _, _, err := config.Load(c.configPath())
		if err != nil {
			return nil, err
		}
		if err := cfg.EnsureDirectories(); err != nil {
			return nil, err
		}
		return cfg, nil
	})
	return c
}

func (c *commandContext) configPath() string {
	if c.configFlag == nil {
		return ""
	}
	return strings.TrimSpace(*c.configFlag)
}

// ensureConfig loads the configuration once per invocation.
func (c *commandContext) ensureConfig() (*config.Config, error) { return c.load() }

// configValue is ensureConfig for callers that already passed the
// PersistentPreRunE load.
func (c *commandContext) configValue() *config.Config {
	cfg, _ := c.load()
	return cfg
}

// JSONMode reports whether --json was passed.
func (c *commandContext) JSONMode() bool {
	return c.jsonFlag != nil && *c.jsonFlag
}

// apiClient returns a client for the daemon at paths.api_bind.
func (c *commandContext) apiClient() (*apiclient.Client, error) {
	cfg, err := c.load()
	if err != nil {
		return nil, err
	}
	client, err := apiclient.New(cfg.Paths.APIBind, cfg.Paths.APIToken)
	if err != nil {
		return nil, fmt.Errorf("parse paths.api_bind: %w", err)
	}
	return client, nil
}

// cliLogger logs in-process work to stderr, keeping stdout for results.
// An empty level means warn.
func (c *commandContext) cliLogger(level string) (*slog.Logger, error) {
	cfg, err := c.load()
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(level) == "" {
		level = "warn"
	}
	return logging.New(logging.Options{
		Level:            level,
		Format:           cfg.Logging.Format,
		OutputPaths:      []string{"stderr"},
		ErrorOutputPaths: []string{"stderr"},
	})
}

// configOptional reports whether cmd or an ancestor carries the
// skipConfigLoad annotation.
func configOptional(cmd *cobra.Command) bool {
	for ; cmd != nil; cmd = cmd.Parent() {
		if cmd.Annotations["skipConfigLoad"] == "true" {
			return true
		}
	}
	return false
}

func writeJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func yesNo(value bool) string {
	if value {
		return "yes"
	}
	return "no"
}
