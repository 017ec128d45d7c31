package preflight

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"strings"
	"time"

	"golang.org/x/sys/unix"

	"callqa/internal/config"
	"callqa/internal/deps"
	"callqa/internal/services/llm"
	"callqa/internal/sop"
)

// CheckLLM verifies that the LLM API is reachable and the key is valid.
// It uses a 30-second timeout and a single attempt (no retries).
func CheckLLM(ctx context.Context, name string, cfg config.LLM) Result {
	if cfg.APIKey == "" {
		return Result{Name: name, Detail: "API key missing"}
	}

	checkCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	client := llm.NewClient(LLMConfig(cfg), llm.WithRetryMaxAttempts(1))
	if err := client.HealthCheck(checkCtx); err != nil {
		return Result{Name: name, Detail: summarizeLLMError(err)}
	}
	return Result{Name: name, Passed: true, Detail: "API reachable"}
}

// LLMConfig maps the [llm] config section onto client settings.
func LLMConfig(cfg config.LLM) llm.Config {
	return llm.Config{
		APIKey:         cfg.APIKey,
		BaseURL:        cfg.BaseURL,
		Model:          cfg.Model,
		Referer:        cfg.Referer,
		Title:          cfg.Title,
		TimeoutSeconds: cfg.TimeoutSeconds,
	}
}

// CheckDirectoryAccess verifies that the directory exists and is readable/writable.
func CheckDirectoryAccess(name, path string) Result {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Result{Name: name, Detail: fmt.Sprintf("%s (error: does not exist)", path)}
		}
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: stat: %v)", path, err)}
	}
	if !info.IsDir() {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: is not a directory)", path)}
	}
	if err := unix.Access(path, unix.R_OK|unix.W_OK|unix.X_OK); err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: insufficient permissions: %v)", path, err)}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s (read/write ok)", path)}
}

// CheckOptionalDirectory passes when path is missing and otherwise applies
// CheckDirectoryAccess.
func CheckOptionalDirectory(name, path string) Result {
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s (not present)", path)}
	}
	return CheckDirectoryAccess(name, path)
}

// CheckRules loads the SOP rules file and reports its shape.
func CheckRules(path string) Result {
	const name = "SOP rules"
	rules, err := sop.Load(path)
	if err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: %v)", path, err)}
	}
	if len(rules.Checklist) == 0 {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: no sections)", path)}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s (%d sections, %d steps, %d risk keywords)",
		path, len(rules.Checklist), rules.Checklist.StepCount(), len(rules.RiskKeywords))}
}

// CheckDiarization reports whether speaker diarization can run.
func CheckDiarization(cfg *config.Config) Result {
	const name = "Diarization"
	switch {
	case !cfg.Transcription.Diarize:
		return Result{Name: name, Passed: true, Detail: "Disabled"}
	case strings.TrimSpace(cfg.Transcription.HFToken) == "":
		return Result{Name: name, Detail: "hf_token missing (speakers will be Unknown)"}
	default:
		return Result{Name: name, Passed: true, Detail: "Enabled"}
	}
}

// CheckSystemDeps evaluates the external binaries the pipeline runs. Both
// "callqa serve" and "callqa status" use this list.
func CheckSystemDeps(_ context.Context, cfg *config.Config) []deps.Status {
	results := []deps.Status{deps.CheckFFmpeg(cfg.FFmpegBinary())}
	results = append(results, deps.CheckBinaries([]deps.Requirement{
		{
			Name:        "uvx",
			Command:     cfg.UVXBinary(),
			Description: "Launches WhisperX for transcription",
		},
		{
			Name:        "ffprobe",
			Command:     cfg.FFprobeBinary(),
			Description: "Measures call length without decoding the audio",
			Optional:    true,
		},
	})...)
	return results
}

// summarizeLLMError produces a human-readable summary for LLM health check failures.
func summarizeLLMError(err error) string {
	if errors.Is(err, context.DeadlineExceeded) {
		return "health check timed out (LLM API unresponsive)"
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return "health check timed out (LLM API unreachable)"
	}
	return err.Error()
}
