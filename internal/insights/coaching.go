package insights

import (
	"fmt"
	"slices"
	"strings"

	"callqa/internal/records"
)

// Coaching need tags.
const (
	TagCriticalRisk = "Critical Risk"
	TagPerformance  = "Performance"
	TagSOPViolation = "SOP Violation"
)

// LowPerformanceThreshold is the percent score below which a call needs coaching.
const LowPerformanceThreshold = 75.0

// CoachingNeed is one call flagged for supervisor follow-up.
type CoachingNeed struct {
	CallID       string   `json:"call_id"`
	Date         string   `json:"date"`
	ProblemTitle string   `json:"problem_title"`
	Score        float64  `json:"score"`
	Region       string   `json:"region"`
	Duration     float64  `json:"duration"`
	Tags         []string `json:"tags"`
}

// CoachingNeeds flags calls by the first applicable issue: a detected risk,
// a score below LowPerformanceThreshold, or any failed step. Calls with no
// issue are left out. The result is newest first; records without a
// timestamp sort last.
func CoachingNeeds(recs []records.CallRecord) []CoachingNeed {
	needs := []CoachingNeed{}
	for _, rec := range recs {
		title, tag := problem(rec)
		if title == "" {
			continue
		}
		region := rec.Metadata.Region
		if region == "" {
			region = "Unknown"
		}
		needs = append(needs, CoachingNeed{
			CallID:       rec.CallID,
			Date:         rec.Timestamp,
			ProblemTitle: title,
			Score:        rec.FinalScore(),
			Region:       region,
			Duration:     rec.Metadata.Duration,
			Tags:         []string{tag},
		})
	}
	slices.SortStableFunc(needs, func(a, b CoachingNeed) int {
		return strings.Compare(b.Date, a.Date)
	})
	return needs
}

func problem(rec records.CallRecord) (string, string) {
	score := rec.FinalScore()
	if risks := rec.Evaluation.RisksDetected; len(risks) > 0 {
		return "Risk Detected: " + risks[0].Risk, TagCriticalRisk
	}
	if score < LowPerformanceThreshold {
		return fmt.Sprintf("Low Performance (%d%%)", int(score)), TagPerformance
	}
	failures := failedSteps(rec.Evaluation.SOPAdherence)
	if len(failures) == 0 {
		return "", ""
	}
	title := "SOP Violation: " + failures[0]
	if len(failures) > 1 {
		title += fmt.Sprintf(" (+%d more)", len(failures)-1)
	}
	return title, TagSOPViolation
}
