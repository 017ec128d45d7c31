package transcript

import (
	"sort"
	"strings"
)

// UnknownSpeaker labels segments no diarization turn covers.
const UnknownSpeaker = "Unknown"

// Segment is one timed utterance. Segments are ordered by Start and Start <= End.
type Segment struct {
	Start   float64 `json:"start"`
	End     float64 `json:"end"`
	Text    string  `json:"text"`
	Speaker string  `json:"speaker"`
}

// SpeakerTurn is a diarization interval attributed to one speaker.
type SpeakerTurn struct {
	Start   float64 `json:"start"`
	End     float64 `json:"end"`
	Speaker string  `json:"speaker"`
}

// Transcription is the transcriber's output for one call.
type Transcription struct {
	Segments            []Segment     `json:"segments"`
	Turns               []SpeakerTurn `json:"turns,omitempty"`
	Language            string        `json:"language"`
	LanguageProbability float64       `json:"language_probability"`
	Duration            float64       `json:"duration"`
}

// Normalize fills blank speakers with UnknownSpeaker, swaps inverted bounds,
// trims text, and sorts by start time.
func Normalize(segments []Segment) []Segment {
	for i := range segments {
		seg := &segments[i]
		if seg.End < seg.Start {
			seg.Start, seg.End = seg.End, seg.Start
		}
		seg.Text = strings.TrimSpace(seg.Text)
		if strings.TrimSpace(seg.Speaker) == "" {
			seg.Speaker = UnknownSpeaker
		}
	}
	sort.SliceStable(segments, func(i, j int) bool { return segments[i].Start < segments[j].Start })
	return segments
}

// TurnsFromLabels collapses consecutive segments that share a speaker label
// into turns. Unlabelled segments are skipped.
func TurnsFromLabels(segments []Segment) []SpeakerTurn {
	var turns []SpeakerTurn
	for _, seg := range segments {
		speaker := strings.TrimSpace(seg.Speaker)
		if speaker == "" || speaker == UnknownSpeaker {
			continue
		}
		if n := len(turns); n > 0 && turns[n-1].Speaker == speaker {
			if seg.End > turns[n-1].End {
				turns[n-1].End = seg.End
			}
			continue
		}
		turns = append(turns, SpeakerTurn{Start: seg.Start, End: seg.End, Speaker: speaker})
	}
	return turns
}

// Speakers returns the distinct speaker labels in first-seen order.
func Speakers(segments []Segment) []string {
	seen := make(map[string]struct{})
	var out []string
	for _, seg := range segments {
		if _, ok := seen[seg.Speaker]; ok {
			continue
		}
		seen[seg.Speaker] = struct{}{}
		out = append(out, seg.Speaker)
	}
	return out
}

// JoinedText concatenates segment text separated by single spaces.
func JoinedText(segments []Segment) string {
	parts := make([]string, 0, len(segments))
	for _, seg := range segments {
		parts = append(parts, seg.Text)
	}
	return strings.Join(parts, " ")
}
