package scoring

import (
	"fmt"
	"strings"

	"callqa/internal/sop"
)

// PositiveNote is the single note for calls without failed steps.
const PositiveNote = "Great job! No major SOP violations detected."

// FrustrationThreshold is the average sentiment below which supervisors are alerted.
const FrustrationThreshold = -0.5

// CoachingNotes lists, per section with FAIL steps, what the agent missed.
func CoachingNotes(results sop.Results) []string {
	var notes []string
	for _, section := range results {
		var missing []string
		for _, step := range section.Steps {
			if step.Status == sop.StatusFail {
				missing = append(missing, step.Step)
			}
		}
		if len(missing) > 0 {
			notes = append(notes, fmt.Sprintf("Focus on %s: Missing %s", section.Name, strings.Join(missing, ", ")))
		}
	}
	if len(notes) == 0 {
		return []string{PositiveNote}
	}
	return notes
}

// Alerts returns supervisor alerts in fixed order: risks, frustration, low
// adherence. The frustration check uses the summary's rounded average.
func Alerts(results sop.Results, risks []sop.Risk, summary Summary) []string {
	alerts := []string{}
	if len(risks) > 0 {
		alerts = append(alerts, "Critical risks detected: "+strings.Join(sop.RiskLabels(risks), ", "))
	}
	if summary.AvgSentiment < FrustrationThreshold {
		alerts = append(alerts, "High customer frustration detected.")
	}
	var low []string
	for _, section := range results {
		if section.Score < section.MaxScore*0.5 {
			low = append(low, section.Name)
		}
	}
	if len(low) > 0 {
		alerts = append(alerts, "Low SOP adherence in: "+strings.Join(low, ", "))
	}
	return alerts
}
