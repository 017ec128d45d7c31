package config

import (
	"errors"
	"fmt"
	"net"
	"net/url"
	"strings"
)

// Validate ensures the configuration is usable. A missing LLM key is not an
// error: the judge degrades to all-FAIL verdicts and status reports it.
func (c *Config) Validate() error {
	if err := c.validatePaths(); err != nil {
		return err
	}
	if err := c.validateLLM(); err != nil {
		return err
	}
	if err := c.validateTranscription(); err != nil {
		return err
	}
	if err := c.validateCompaction(); err != nil {
		return err
	}
	if c.Workflow.MaxConcurrentCalls > 64 {
		return errors.New("workflow.max_concurrent_calls must be at most 64")
	}
	if topic := c.Notifications.NtfyTopic; topic != "" {
		parsed, err := url.Parse(topic)
		if err != nil || parsed.Scheme == "" || parsed.Host == "" {
			return fmt.Errorf("notifications.ntfy_topic %q must be an absolute URL", topic)
		}
	}
	return c.validateLogging()
}

func (c *Config) validatePaths() error {
	if strings.TrimSpace(c.Paths.RulesPath) == "" {
		defaultPath, err := DefaultConfigPath()
		if err != nil {
			defaultPath = defaultConfigPath
		}
		return fmt.Errorf("paths.rules_path is required. Edit %s (create with 'callqa config init')", defaultPath)
	}
	if _, _, err := net.SplitHostPort(c.Paths.APIBind); err != nil {
		return fmt.Errorf("paths.api_bind %q: %w", c.Paths.APIBind, err)
	}
	return nil
}

func (c *Config) validateLLM() error {
	parsed, err := url.Parse(c.LLM.BaseURL)
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		return fmt.Errorf("llm.base_url %q must be an absolute URL", c.LLM.BaseURL)
	}
	return nil
}

func (c *Config) validateTranscription() error {
	switch c.Transcription.Task {
	case "transcribe", "translate":
	default:
		return fmt.Errorf("transcription.task must be transcribe or translate, got %q", c.Transcription.Task)
	}
	switch c.Transcription.VADMethod {
	case "silero", "pyannote":
	default:
		return fmt.Errorf("transcription.vad_method must be silero or pyannote, got %q", c.Transcription.VADMethod)
	}
	return nil
}

func (c *Config) validateCompaction() error {
	if c.Compaction.TopDB > 120 {
		return errors.New("compaction.top_db must be at most 120")
	}
	if c.Compaction.MinDurationSeconds < 0 {
		return errors.New("compaction.min_duration_seconds must be >= 0")
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Level {
	case "debug", "info", "warn", "warning", "error":
		return nil
	default:
		return fmt.Errorf("logging.level %q is not recognized", c.Logging.Level)
	}
}
