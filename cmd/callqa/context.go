package main

import (
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"sync"

	"github.com/spf13/cobra"

	"callqa/internal/config"
	"callqa/internal/logging"
	"callqa/internal/records"
	"callqa/internal/sop"
)

type commandContext struct {
	configFlag *string

	configOnce sync.Once
	config     *config.Config
	configPath string
	configErr  error
}

func newCommandContext(configFlag *string) *commandContext {
	return &commandContext{configFlag: configFlag}
}

func (c *commandContext) ensureConfig() (*config.Config, error) {
	c.configOnce.Do(func() {
		var path string
		if c.configFlag != nil {
			path = strings.TrimSpace(*c.configFlag)
		}
		cfg, resolved, _, err := config.Load(path)
		if err != nil {
			c.configErr = err
			return
		}
		if err := cfg.EnsureDirectories(); err != nil {
			c.configErr = err
			return
		}
		c.config = cfg
		c.configPath = resolved
	})
	return c.config, c.configErr
}

// fileLogger writes JSON logs to log_dir only, keeping terminal output for
// command results.
func (c *commandContext) fileLogger(cfg *config.Config) (*slog.Logger, error) {
	logger, err := logging.New(logging.Options{
		Level:       cfg.Logging.Level,
		Format:      "json",
		OutputPaths: []string{filepath.Join(cfg.Paths.LogDir, logging.LogFileName)},
	})
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}
	return logger, nil
}

func (c *commandContext) withStore(fn func(*config.Config, *records.Store) error) error {
	cfg, err := c.ensureConfig()
	if err != nil {
		return err
	}
	store, err := records.Open(cfg)
	if err != nil {
		return fmt.Errorf("open call records: %w", err)
	}
	defer store.Close()
	return fn(cfg, store)
}

// loadRules reads the configured rules, or override when set.
func loadRules(cfg *config.Config, override string) (sop.Rules, error) {
	path := cfg.Paths.RulesPath
	if override = strings.TrimSpace(override); override != "" {
		expanded, err := config.ExpandPath(override)
		if err != nil {
			return sop.Rules{}, err
		}
		path = expanded
	}
	return sop.Load(path)
}

func shouldSkipConfig(cmd *cobra.Command) bool {
	for c := cmd; c != nil; c = c.Parent() {
		if c.Annotations != nil && c.Annotations["skipConfigLoad"] == "true" {
			return true
		}
	}
	return false
}
