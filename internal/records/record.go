package records

import (
	"time"

	"github.com/google/uuid"

	"callqa/internal/scoring"
	"callqa/internal/services"
	"callqa/internal/sop"
	"callqa/internal/transcript"
)

// ErrNotFound is returned by Get for unknown call IDs.
var ErrNotFound = services.ErrNotFound

// Metadata describes the recording and where it came from.
type Metadata struct {
	Language            string  `json:"language"`
	LanguageProbability float64 `json:"language_probability"`
	Duration            float64 `json:"duration"`
	Region              string  `json:"region"`
	OriginalDuration    float64 `json:"original_duration,omitempty"`
	TrimmedDuration     float64 `json:"trimmed_duration,omitempty"`
	LongCall            bool    `json:"is_long_call"`
	SOPID               string  `json:"sop_id,omitempty"`
	SourceFile          string  `json:"source_file,omitempty"`
}

// Evaluation is the scored outcome of a call.
type Evaluation struct {
	SOPAdherence  sop.Results     `json:"sop_adherence"`
	Resolution    sop.Resolution  `json:"resolution"`
	RisksDetected []sop.Risk      `json:"risks_detected"`
	Scoring       scoring.Summary `json:"scoring"`
}

// CallRecord is the stable per-call output of the pipeline.
type CallRecord struct {
	CallID           string               `json:"call_id"`
	Timestamp        string               `json:"timestamp"`
	Metadata         Metadata             `json:"metadata"`
	Transcript       []transcript.Segment `json:"transcript"`
	SegmentSummary   map[string]int       `json:"segmented_transcript_summary"`
	Evaluation       Evaluation           `json:"evaluation"`
	CoachingInsights []string             `json:"coaching_insights"`
	SupervisorAlerts []string             `json:"supervisor_alerts"`
	UserID           string               `json:"user_id,omitempty"`
	Email            string               `json:"email,omitempty"`
	Name             string               `json:"name,omitempty"`
	SpeakerMapping   map[string]string    `json:"speaker_mapping"`
}

// NewCallID returns a fresh random call identifier.
func NewCallID() string {
	return uuid.NewString()
}

// Timestamp formats t the way records store it.
func Timestamp(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}

// FinalScore is the percent score of the call.
func (r CallRecord) FinalScore() float64 {
	return r.Evaluation.Scoring.FinalScore
}

// Filter narrows List. Empty fields match everything.
type Filter struct {
	Region string
	UserID string
}
