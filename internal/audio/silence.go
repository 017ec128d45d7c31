package audio

import (
	"math"

	"gonum.org/v1/gonum/floats"
)

const (
	DefaultTopDB       = 30.0
	DefaultKeepBefore  = 1.0
	DefaultKeepAfter   = 3.0
	DefaultFrameLength = 2048
	DefaultHopLength   = 512
	// amin floors frame power before the dB conversion.
	amin = 1e-10
)

// Interval is a half-open sample range [Start, End).
type Interval struct {
	Start int `json:"start"`
	End   int `json:"end"`
}

// Len returns the number of samples in the interval.
func (iv Interval) Len() int { return iv.End - iv.Start }

// CompactOptions tunes silence detection and padding. Zero values select
// the defaults.
type CompactOptions struct {
	TopDB      float64
	KeepBefore float64
	KeepAfter  float64
}

func (o CompactOptions) withDefaults() CompactOptions {
	if o.TopDB <= 0 {
		o.TopDB = DefaultTopDB
	}
	if o.KeepBefore < 0 {
		o.KeepBefore = 0
	}
	if o.KeepAfter < 0 {
		o.KeepAfter = 0
	}
	return o
}

// DefaultCompactOptions returns 30 dB, 1 s before, 3 s after.
func DefaultCompactOptions() CompactOptions {
	return CompactOptions{TopDB: DefaultTopDB, KeepBefore: DefaultKeepBefore, KeepAfter: DefaultKeepAfter}
}

// CompactResult describes one compaction. When OK is false Samples is the
// untouched input and callers should keep using the original audio.
type CompactResult struct {
	Samples          []float32
	OK               bool
	OriginalDuration float64
	NewDuration      float64
	Segments         []Interval
}

// Compact removes silence from a mono waveform.
func Compact(samples []float32, sampleRate int, opts CompactOptions) CompactResult {
	opts = opts.withDefaults()
	result := CompactResult{Samples: samples}
	if sampleRate <= 0 || len(samples) == 0 {
		return result
	}
	total := len(samples)
	result.OriginalDuration = float64(total) / float64(sampleRate)
	result.NewDuration = result.OriginalDuration

	sound := DetectSound(samples, opts.TopDB, DefaultFrameLength, DefaultHopLength)
	if len(sound) == 0 {
		return result
	}

	before := int(math.Round(opts.KeepBefore * float64(sampleRate)))
	after := int(math.Round(opts.KeepAfter * float64(sampleRate)))
	spans := MergePadded(sound, before, after, total)

	size := 0
	for _, span := range spans {
		size += span.Len()
	}
	out := make([]float32, 0, size)
	for _, span := range spans {
		out = append(out, samples[span.Start:span.End]...)
	}

	result.Samples = out
	result.OK = true
	result.Segments = spans
	result.NewDuration = float64(len(out)) / float64(sampleRate)
	return result
}

// MergePadded widens each interval by before/after samples, clamps to
// [0, total], and merges neighbours whose padded start is at or before the
// running end. Input must be ascending and disjoint.
func MergePadded(intervals []Interval, before, after, total int) []Interval {
	if len(intervals) == 0 {
		return nil
	}
	pad := func(iv Interval) Interval {
		return Interval{Start: max(0, iv.Start-before), End: min(total, iv.End+after)}
	}
	merged := make([]Interval, 0, len(intervals))
	cur := pad(intervals[0])
	for _, iv := range intervals[1:] {
		next := pad(iv)
		if next.Start <= cur.End {
			cur.End = max(cur.End, next.End)
			continue
		}
		merged = append(merged, cur)
		cur = next
	}
	return append(merged, cur)
}

// DetectSound returns the non-silent sample intervals of samples. Frames are
// centred on multiples of hopLength; a frame is sound when its power is
// within topDB of the loudest frame. A waveform with no energy has no sound.
func DetectSound(samples []float32, topDB float64, frameLength, hopLength int) []Interval {
	if len(samples) == 0 || frameLength <= 0 || hopLength <= 0 {
		return nil
	}
	power := framePower(samples, frameLength, hopLength)
	peak := floats.Max(power)
	if peak <= 0 {
		return nil
	}
	ref := 10 * math.Log10(math.Max(amin, peak))
	threshold := -topDB

	var out []Interval
	start := -1
	for k, p := range power {
		db := 10*math.Log10(math.Max(amin, p)) - ref
		loud := db > threshold
		switch {
		case loud && start < 0:
			start = k
		case !loud && start >= 0:
			out = appendInterval(out, framesToSamples(start, k, hopLength, len(samples)))
			start = -1
		}
	}
	if start >= 0 {
		out = appendInterval(out, framesToSamples(start, len(power), hopLength, len(samples)))
	}
	return out
}

func appendInterval(dst []Interval, iv Interval) []Interval {
	if iv.End <= iv.Start {
		return dst
	}
	return append(dst, iv)
}

func framesToSamples(startFrame, endFrame, hop, total int) Interval {
	return Interval{Start: min(startFrame*hop, total), End: min(endFrame*hop, total)}
}

// framePower computes the mean square of each centred, zero-padded frame.
func framePower(samples []float32, frameLength, hopLength int) []float64 {
	n := len(samples)
	frames := 1 + n/hopLength
	half := frameLength / 2
	power := make([]float64, frames)
	for k := range frames {
		center := k * hopLength
		lo := max(0, center-half)
		hi := min(n, center-half+frameLength)
		var sum float64
		for _, s := range samples[lo:hi] {
			v := float64(s)
			sum += v * v
		}
		power[k] = sum / float64(frameLength)
	}
	return power
}
