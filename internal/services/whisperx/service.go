package whisperx

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"callqa/internal/logging"
	"callqa/internal/services"
	"callqa/internal/transcript"
)

// CommandRunner executes an external command.
type CommandRunner func(ctx context.Context, name string, args ...string) error

// Service provides WhisperX transcription capabilities.
type Service struct {
	cfg           Config
	ffmpegBinary  string
	uvxBinary     string
	workDir       string
	commandRunner CommandRunner
	logger        *slog.Logger
}

// NewService creates a WhisperX service. workDir holds per-call scratch
// directories; empty uses the system temp dir.
func NewService(cfg Config, ffmpegBinary, uvxBinary, workDir string, logger *slog.Logger) *Service {
	if ffmpegBinary == "" {
		ffmpegBinary = FFmpegCommand
	}
	if uvxBinary == "" {
		uvxBinary = UVXCommand
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Service{
		cfg:          cfg,
		ffmpegBinary: ffmpegBinary,
		uvxBinary:    uvxBinary,
		workDir:      workDir,
		logger:       logging.NewComponentLogger(logger, "whisperx"),
	}
}

// WithCommandRunner sets a custom command runner (for testing).
func (s *Service) WithCommandRunner(runner CommandRunner) {
	s.commandRunner = runner
}

// Model returns the configured model name for logging.
func (s *Service) Model() string {
	if s.cfg.Model != "" {
		return s.cfg.Model
	}
	return DefaultModel
}

// CUDAEnabled returns whether CUDA is enabled.
func (s *Service) CUDAEnabled() bool {
	return s.cfg.CUDAEnabled
}

// DiarizationAvailable reports whether speaker labels can be produced.
func (s *Service) DiarizationAvailable() bool {
	return strings.TrimSpace(s.cfg.HFToken) != ""
}

// Transcribe converts source to WAV, runs WhisperX, and returns segments
// with speaker turns when diarization is enabled and available.
func (s *Service) Transcribe(ctx context.Context, source string) (transcript.Transcription, error) {
	return s.transcribe(ctx, source, s.cfg.Diarize && s.DiarizationAvailable())
}

// Diarize returns speaker turns for source. Without a Hugging Face token it
// returns no turns and no error.
func (s *Service) Diarize(ctx context.Context, source string) ([]transcript.SpeakerTurn, error) {
	if !s.DiarizationAvailable() {
		s.logger.Debug("diarization skipped; hf_token not configured")
		return nil, nil
	}
	result, err := s.transcribe(ctx, source, true)
	if err != nil {
		return nil, err
	}
	return result.Turns, nil
}

func (s *Service) transcribe(ctx context.Context, source string, diarize bool) (transcript.Transcription, error) {
	var empty transcript.Transcription
	if strings.TrimSpace(source) == "" {
		return empty, services.Wrap(services.ErrValidation, "transcription", "whisperx", "source path required", nil)
	}
	if _, err := os.Stat(source); err != nil {
		return empty, services.Wrap(services.ErrValidation, "transcription", "whisperx", "source audio unavailable", err)
	}

	scratch, err := os.MkdirTemp(s.workDir, "whisperx-")
	if err != nil {
		return empty, services.Wrap(services.ErrConfiguration, "transcription", "whisperx", "create scratch dir", err)
	}
	defer os.RemoveAll(scratch)

	wav := filepath.Join(scratch, "call.wav")
	if err := s.run(ctx, s.ffmpegBinary, buildPrepareArgs(source, wav)...); err != nil {
		return empty, services.Wrap(services.ErrExternalTool, "transcription", "ffmpeg", "convert audio", err)
	}

	started := time.Now()
	if err := s.run(ctx, s.uvxBinary, s.buildArgs(wav, scratch, diarize)...); err != nil {
		return empty, services.Wrap(services.ErrExternalTool, "transcription", "whisperx", "run model", err)
	}

	result, err := LoadTranscription(filepath.Join(scratch, "call.json"))
	if err != nil {
		return empty, services.Wrap(services.ErrExternalTool, "transcription", "whisperx", "read output", err)
	}
	s.logger.Info("transcription complete",
		logging.String("model", s.Model()),
		logging.Int("segments", len(result.Segments)),
		logging.Int("turns", len(result.Turns)),
		logging.String("language", result.Language),
		logging.Duration("elapsed", time.Since(started)),
	)
	return result, nil
}

// run executes a command, using the custom runner if set.
func (s *Service) run(ctx context.Context, name string, args ...string) error {
	if s.commandRunner != nil {
		return s.commandRunner(ctx, name, args...)
	}
	cmd := exec.CommandContext(ctx, name, args...) //nolint:gosec

	// Torch 2.6 defaults torch.load to weights_only=true, which breaks the
	// pyannote checkpoints WhisperX loads.
	if os.Getenv("TORCH_FORCE_NO_WEIGHTS_ONLY_LOAD") == "" {
		cmd.Env = append(os.Environ(), "TORCH_FORCE_NO_WEIGHTS_ONLY_LOAD=1")
	}

	if output, err := cmd.CombinedOutput(); err != nil {
		return fmt.Errorf("%s: %w: %s", name, err, strings.TrimSpace(string(output)))
	}
	return nil
}

// buildArgs constructs the uvx command arguments for WhisperX.
func (s *Service) buildArgs(source, outputDir string, diarize bool) []string {
	args := make([]string, 0, 40)
	if s.cfg.CUDAEnabled {
		args = append(args, "--index-url", CUDAIndexURL, "--extra-index-url", PypiIndexURL)
	} else {
		args = append(args, "--index-url", PypiIndexURL)
	}

	task := strings.ToLower(strings.TrimSpace(s.cfg.Task))
	if task != TaskTranslate {
		task = TaskTranscribe
	}
	args = append(args,
		"whisperx",
		source,
		"--model", s.Model(),
		"--task", task,
		"--batch_size", BatchSize,
		"--output_dir", outputDir,
		"--output_format", OutputFormat,
		"--segment_resolution", SegmentResolution,
		"--chunk_size", ChunkSize,
		"--beam_size", BeamSize,
		"--temperature", Temperature,
	)

	vadMethod := s.cfg.VADMethod
	if vadMethod == "" {
		vadMethod = VADMethodSilero
	}
	args = append(args, "--vad_method", vadMethod)
	token := strings.TrimSpace(s.cfg.HFToken)
	if diarize && token != "" {
		args = append(args, "--diarize")
	}
	if token != "" && (diarize || vadMethod == VADMethodPyannote) {
		args = append(args, "--hf_token", token)
	}

	if s.cfg.CUDAEnabled {
		args = append(args, "--device", CUDADevice)
	} else {
		args = append(args, "--device", CPUDevice, "--compute_type", CPUComputeType)
	}
	return args
}
