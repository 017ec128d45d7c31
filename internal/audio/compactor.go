package audio

import (
	"bytes"
	"context"
	"encoding/binary"
	"fmt"
	"io"
	"log/slog"
	"math"
	"os/exec"
	"strconv"
	"strings"

	"callqa/internal/logging"
	"callqa/internal/services"
)

// SampleRate is the rate audio is decoded at for compaction and transcription.
const SampleRate = 16000

// CommandRunner executes name with args, feeding stdin when non-nil, and
// returns stdout.
type CommandRunner func(ctx context.Context, stdin io.Reader, name string, args ...string) ([]byte, error)

// Compactor decodes audio files with ffmpeg, compacts them, and writes the
// result as 16-bit mono WAV.
type Compactor struct {
	ffmpeg  string
	ffprobe string
	opts    CompactOptions
	run     CommandRunner
	logger  *slog.Logger
}

// FileResult reports a file compaction.
type FileResult struct {
	OK               bool
	OriginalDuration float64
	NewDuration      float64
	Segments         int
}

// TrimmedDuration is the number of seconds removed.
func (r FileResult) TrimmedDuration() float64 {
	return r.OriginalDuration - r.NewDuration
}

// NewCompactor builds a Compactor. An empty ffmpeg binary defaults to "ffmpeg".
func NewCompactor(ffmpeg string, opts CompactOptions, logger *slog.Logger) *Compactor {
	if strings.TrimSpace(ffmpeg) == "" {
		ffmpeg = "ffmpeg"
	}
	return &Compactor{
		ffmpeg:  ffmpeg,
		ffprobe: ffprobeFor(ffmpeg),
		opts:    opts.withDefaults(),
		run:     execRunner,
		logger:  logging.NewComponentLogger(logger, "compactor"),
	}
}

// WithCommandRunner replaces the process runner (for testing).
func (c *Compactor) WithCommandRunner(run CommandRunner) {
	if run != nil {
		c.run = run
	}
}

// Decode returns src as mono float32 samples at SampleRate.
func (c *Compactor) Decode(ctx context.Context, src string) ([]float32, error) {
	args := []string{
		"-hide_banner",
		"-loglevel", "error",
		"-i", src,
		"-vn",
		"-ac", "1",
		"-ar", strconv.Itoa(SampleRate),
		"-f", "f32le",
		"-",
	}
	raw, err := c.run(ctx, nil, c.ffmpeg, args...)
	if err != nil {
		return nil, services.Wrap(services.ErrExternalTool, "compaction", "decode", src, err)
	}
	return decodeF32LE(raw), nil
}

// Encode writes samples to dest as 16-bit mono WAV.
func (c *Compactor) Encode(ctx context.Context, samples []float32, dest string) error {
	args := []string{
		"-y",
		"-hide_banner",
		"-loglevel", "error",
		"-f", "f32le",
		"-ar", strconv.Itoa(SampleRate),
		"-ac", "1",
		"-i", "-",
		"-c:a", "pcm_s16le",
		dest,
	}
	if _, err := c.run(ctx, bytes.NewReader(encodeF32LE(samples)), c.ffmpeg, args...); err != nil {
		return services.Wrap(services.ErrExternalTool, "compaction", "encode", dest, err)
	}
	return nil
}

// CompactFile trims silence from src into dest. When no sound is detected
// dest is not written and the result reports OK=false.
func (c *Compactor) CompactFile(ctx context.Context, src, dest string) (FileResult, error) {
	samples, err := c.Decode(ctx, src)
	if err != nil {
		return FileResult{}, err
	}
	compacted := Compact(samples, SampleRate, c.opts)
	result := FileResult{
		OK:               compacted.OK,
		OriginalDuration: compacted.OriginalDuration,
		NewDuration:      compacted.NewDuration,
		Segments:         len(compacted.Segments),
	}
	if !compacted.OK {
		logging.WarnWithContext(c.logger, "no sound detected; keeping original audio", "compaction_skipped",
			logging.String("source", src),
			logging.String(logging.FieldImpact, "call is evaluated without silence trimming"),
		)
		return result, nil
	}
	if err := c.Encode(ctx, compacted.Samples, dest); err != nil {
		return FileResult{}, err
	}
	c.logger.Info("silence trimmed",
		logging.Seconds("original_seconds", result.OriginalDuration),
		logging.Seconds("new_seconds", result.NewDuration),
		logging.Seconds("trimmed_seconds", result.TrimmedDuration()),
		logging.Int("segments", result.Segments),
	)
	return result, nil
}

// Duration returns the length of src in seconds. ffprobe is asked first;
// when it is missing or reports nothing the file is decoded and measured.
func (c *Compactor) Duration(ctx context.Context, src string) (float64, error) {
	probe, err := c.Probe(ctx, src)
	if err == nil {
		if d := probe.DurationSeconds(); d > 0 {
			return d, nil
		}
	} else {
		c.logger.Debug("ffprobe unavailable, decoding to measure duration", logging.Error(err))
	}
	samples, err := c.Decode(ctx, src)
	if err != nil {
		return 0, err
	}
	return float64(len(samples)) / SampleRate, nil
}

func execRunner(ctx context.Context, stdin io.Reader, name string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, name, args...) //nolint:gosec
	var stdout, stderr bytes.Buffer
	cmd.Stdin = stdin
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("%s: %w: %s", name, err, strings.TrimSpace(stderr.String()))
	}
	return stdout.Bytes(), nil
}

func decodeF32LE(raw []byte) []float32 {
	out := make([]float32, len(raw)/4)
	for i := range out {
		out[i] = math.Float32frombits(binary.LittleEndian.Uint32(raw[i*4:]))
	}
	return out
}

func encodeF32LE(samples []float32) []byte {
	out := make([]byte, len(samples)*4)
	for i, s := range samples {
		binary.LittleEndian.PutUint32(out[i*4:], math.Float32bits(s))
	}
	return out
}
