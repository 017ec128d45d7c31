// Package whisperx runs WhisperX through uvx to transcribe call recordings.
//
// Uploaded audio is first normalized to mono 16 kHz WAV with ffmpeg, then
// WhisperX writes a JSON transcript into a scratch directory. With diarize
// enabled and a Hugging Face token configured, WhisperX labels each segment
// with a speaker and the service collapses those labels into speaker turns.
//
// The transcriber owns no retry or fallback policy; callers decide what a
// failed transcription means.
package whisperx
