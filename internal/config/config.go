package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains directory, rule file, and bind address configuration.
type Paths struct {
	DataDir     string `toml:"data_dir"`
	LogDir      string `toml:"log_dir"`
	UploadDir   string `toml:"upload_dir"`
	RulesPath   string `toml:"rules_path"`
	PoliciesDir string `toml:"policies_dir"`
	APIBind     string `toml:"api_bind"`
	APIToken    string `toml:"api_token"`
}

// LLM contains the chat-completions connection used by the judge, the
// sentiment classifier, and speaker role identification.
type LLM struct {
	APIKey         string `toml:"api_key"`
	BaseURL        string `toml:"base_url"`
	Model          string `toml:"model"`
	Referer        string `toml:"referer"`
	Title          string `toml:"title"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
}

// Transcription contains WhisperX settings.
type Transcription struct {
	WhisperXModel string `toml:"whisperx_model"`
	CUDAEnabled   bool   `toml:"cuda_enabled"`
	VADMethod     string `toml:"vad_method"`
	HFToken       string `toml:"hf_token"`
	Diarize       bool   `toml:"diarize"`
	// Task is "transcribe" or "translate" (non-English audio into English text).
	Task string `toml:"task"`
}

// Compaction contains silence compaction settings for long calls.
type Compaction struct {
	Enabled           bool    `toml:"enabled"`
	TopDB             float64 `toml:"top_db"`
	KeepBeforeSeconds float64 `toml:"keep_before_seconds"`
	KeepAfterSeconds  float64 `toml:"keep_after_seconds"`
	// MinDurationSeconds marks a call as long once its decoded audio exceeds it.
	MinDurationSeconds float64 `toml:"min_duration_seconds"`
}

// Sentiment toggles the per-segment sentiment trajectory.
type Sentiment struct {
	Enabled bool `toml:"enabled"`
}

// Workflow contains evaluator concurrency settings.
type Workflow struct {
	MaxConcurrentCalls int `toml:"max_concurrent_calls"`
	StageTimeoutSecs   int `toml:"stage_timeout_seconds"`
}

// Notifications contains ntfy settings for supervisor alerts.
type Notifications struct {
	NtfyTopic          string `toml:"ntfy_topic"`
	RequestTimeoutSecs int    `toml:"request_timeout_seconds"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format        string `toml:"format"`
	Level         string `toml:"level"`
	RetentionDays int    `toml:"retention_days"`
}

// Config encapsulates all configuration values for callqa.
//
// Configuration sections by subsystem:
//   - Paths: data, log, and upload directories, rule files, API bind address
//   - LLM: chat-completions endpoint for judging and classification
//   - Transcription: WhisperX model, device, and diarization
//   - Compaction: silence trimming for long calls
//   - Sentiment: sentiment trajectory toggle
//   - Workflow: batch concurrency and stage timeouts
//   - Notifications: ntfy topic for supervisor alerts
//   - Logging: log format, level, and retention
type Config struct {
	Paths         Paths         `toml:"paths"`
	LLM           LLM           `toml:"llm"`
	Transcription Transcription `toml:"transcription"`
	Compaction    Compaction    `toml:"compaction"`
	Sentiment     Sentiment     `toml:"sentiment"`
	Workflow      Workflow      `toml:"workflow"`
	Notifications Notifications `toml:"notifications"`
	Logging       Logging       `toml:"logging"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath(defaultConfigPath)
}

// Load locates, parses, and validates a configuration file. The returned config has all
// path fields expanded and normalized.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := expandPath(defaultConfigPath)
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("callqa.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// EnsureDirectories creates the data, log, and upload directories.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.DataDir, c.Paths.LogDir, c.Paths.UploadDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return nil
}

// DatabasePath returns the location of the call record database.
func (c *Config) DatabasePath() string {
	return filepath.Join(c.Paths.DataDir, "calls.db")
}

// LockPath returns the single-instance lock file used by the API server.
func (c *Config) LockPath() string {
	return filepath.Join(c.Paths.DataDir, "callqa.lock")
}

// FFmpegBinary returns the ffmpeg executable name used for audio decoding.
func (c *Config) FFmpegBinary() string {
	return "ffmpeg"
}

// FFprobeBinary returns the ffprobe executable used to measure call length.
func (c *Config) FFprobeBinary() string {
	return "ffprobe"
}

// UVXBinary returns the uvx executable used to launch WhisperX.
func (c *Config) UVXBinary() string {
	return "uvx"
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}
	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}
