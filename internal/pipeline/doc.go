// Package pipeline evaluates one call end to end.
//
// Run takes an audio file through optional silence compaction, speech to
// text, speaker alignment and role mapping, filler cleaning, phase
// segmentation, the sentiment trajectory, SOP scoring, and the final grade,
// then appends the CallRecord to the store. EvaluateTranscript starts from an
// existing transcription and skips the audio stages.
//
// Only a transcription failure aborts a call. Compaction, diarization, role
// mapping, sentiment, policy lookup, and the judge all degrade to defaults
// and log a WARN with event_type and impact fields.
package pipeline
