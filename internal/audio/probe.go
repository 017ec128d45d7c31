package audio

import (
	"context"
	"encoding/json"
	"fmt"
	"path/filepath"
	"strconv"
	"strings"

	"callqa/internal/services"
)

// ProbeResult is the subset of ffprobe JSON output used to size a call.
type ProbeResult struct {
	Streams []ProbeStream `json:"streams"`
	Format  ProbeFormat   `json:"format"`
}

// ProbeStream describes a single stream in the container.
type ProbeStream struct {
	Index      int    `json:"index"`
	CodecName  string `json:"codec_name"`
	CodecType  string `json:"codec_type"`
	Duration   string `json:"duration"`
	SampleRate string `json:"sample_rate"`
	Channels   int    `json:"channels"`
}

// ProbeFormat captures container-level metadata.
type ProbeFormat struct {
	Filename   string `json:"filename"`
	Duration   string `json:"duration"`
	FormatName string `json:"format_name"`
}

// AudioStreamCount returns the number of audio streams discovered.
func (r ProbeResult) AudioStreamCount() int {
	count := 0
	for _, stream := range r.Streams {
		if strings.EqualFold(stream.CodecType, "audio") {
			count++
		}
	}
	return count
}

// DurationSeconds returns the container duration, falling back to the longest
// audio stream. It is 0 when neither is reported.
func (r ProbeResult) DurationSeconds() float64 {
	if d := parseSeconds(r.Format.Duration); d > 0 {
		return d
	}
	longest := 0.0
	for _, stream := range r.Streams {
		if strings.EqualFold(stream.CodecType, "audio") {
			longest = max(longest, parseSeconds(stream.Duration))
		}
	}
	return longest
}

func parseSeconds(value string) float64 {
	parsed, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
	if err != nil || parsed < 0 {
		return 0
	}
	return parsed
}

// ffprobeFor returns the ffprobe binary installed alongside ffmpeg.
func ffprobeFor(ffmpeg string) string {
	dir, base := filepath.Split(ffmpeg)
	probe := strings.Replace(base, "ffmpeg", "ffprobe", 1)
	if probe == base {
		probe = "ffprobe"
	}
	return dir + probe
}

// Probe inspects src with ffprobe.
func (c *Compactor) Probe(ctx context.Context, src string) (ProbeResult, error) {
	args := []string{"-v", "error", "-hide_banner", "-show_format", "-show_streams", "-of", "json", "--", src}
	raw, err := c.run(ctx, nil, c.ffprobe, args...)
	if err != nil {
		return ProbeResult{}, services.Wrap(services.ErrExternalTool, "compaction", "probe", src, err)
	}
	var result ProbeResult
	if err := json.Unmarshal(raw, &result); err != nil {
		return ProbeResult{}, fmt.Errorf("ffprobe parse: %w", err)
	}
	return result, nil
}
