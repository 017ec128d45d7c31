package sop

import "callqa/internal/textutil"

var resolutionKeywords = []string{"resolution", "closure", "closing", "solution", "outcome", "end", "fix"}

// Resolution is derived from section results, never scored on its own.
type Resolution struct {
	Status  Status `json:"status"`
	Reason  string `json:"reason"`
	Section string `json:"section,omitempty"`
}

const (
	resolutionConfirmed = "Resolution confirmed via SOP adherence"
	resolutionMissing   = "No resolution or closure section found in the SOP checklist."
	resolutionUnmet     = "Resolution section lacks confirmation or clear actionable steps in the SOP sections."
)

// ValidateResolution looks at the first section, in checklist order, whose
// name mentions a resolution keyword and passes when any of its steps did.
func ValidateResolution(results Results) Resolution {
	for _, s := range results {
		if !isResolutionSection(s.Name) {
			continue
		}
		if pass, _, _ := s.Counts(); pass > 0 {
			return Resolution{Status: StatusPass, Reason: resolutionConfirmed, Section: s.Name}
		}
		return Resolution{Status: StatusFail, Reason: resolutionUnmet, Section: s.Name}
	}
	return Resolution{Status: StatusFail, Reason: resolutionMissing}
}

func isResolutionSection(name string) bool {
	return textutil.ContainsAnyFold(name, resolutionKeywords...)
}
