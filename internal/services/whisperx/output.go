package whisperx

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"callqa/internal/language"
	"callqa/internal/transcript"
)

type outputSegment struct {
	Text    string  `json:"text"`
	Start   float64 `json:"start"`
	End     float64 `json:"end"`
	Speaker string  `json:"speaker"`
}

type outputPayload struct {
	Segments            []outputSegment `json:"segments"`
	Language            string          `json:"language"`
	LanguageProbability *float64        `json:"language_probability"`
}

// LoadTranscription parses a WhisperX JSON file. Speaker labels, when
// present, become turns and every segment is reset to the unknown speaker so
// alignment assigns labels from the turns.
func LoadTranscription(jsonPath string) (transcript.Transcription, error) {
	data, err := os.ReadFile(jsonPath)
	if err != nil {
		return transcript.Transcription{}, err
	}
	var payload outputPayload
	if err := json.Unmarshal(data, &payload); err != nil {
		return transcript.Transcription{}, fmt.Errorf("parse whisperx json: %w", err)
	}

	segments := make([]transcript.Segment, 0, len(payload.Segments))
	for _, seg := range payload.Segments {
		text := strings.TrimSpace(seg.Text)
		if text == "" {
			continue
		}
		segments = append(segments, transcript.Segment{
			Start:   seg.Start,
			End:     seg.End,
			Text:    text,
			Speaker: strings.TrimSpace(seg.Speaker),
		})
	}
	segments = transcript.Normalize(segments)
	turns := transcript.TurnsFromLabels(segments)
	for i := range segments {
		segments[i].Speaker = transcript.UnknownSpeaker
	}

	result := transcript.Transcription{
		Segments: segments,
		Turns:    turns,
		Language: strings.TrimSpace(payload.Language),
	}
	if code := language.Normalize(result.Language); code != "" {
		result.Language = code
	}
	if payload.LanguageProbability != nil {
		result.LanguageProbability = *payload.LanguageProbability
	} else if result.Language != "" {
		result.LanguageProbability = 1
	}
	if n := len(segments); n > 0 {
		result.Duration = segments[n-1].End
	}
	return result, nil
}
