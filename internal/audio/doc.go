// Package audio shortens long calls by dropping silence.
//
// DetectSound finds non-silent sample intervals from frame RMS energy
// relative to the loudest frame. Compact pads each interval asymmetrically,
// merges padded intervals that touch or overlap, and concatenates the merged
// spans in their original order. Compactor wraps the same algorithm around
// ffmpeg so files on disk can be decoded, compacted, and re-encoded as WAV.
package audio
