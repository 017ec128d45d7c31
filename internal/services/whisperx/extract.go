package whisperx

import "strconv"

// SampleRate is the rate WhisperX models are trained on.
const SampleRate = 16000

// buildPrepareArgs converts any ffmpeg-readable input into mono 16 kHz PCM WAV.
func buildPrepareArgs(source, dest string) []string {
	return []string{
		"-y",
		"-hide_banner",
		"-loglevel", "error",
		"-i", source,
		"-vn",
		"-sn",
		"-dn",
		"-ac", "1",
		"-ar", strconv.Itoa(SampleRate),
		"-c:a", "pcm_s16le",
		dest,
	}
}
