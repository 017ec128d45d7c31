package sop

import (
	"callqa/internal/textutil"
	"callqa/internal/transcript"
)

// Risk is a configured risk phrase found in a transcript.
type Risk struct {
	Type            string `json:"type"`
	Risk            string `json:"risk"`
	DetectionMethod string `json:"detection_method"`
}

// DetectRisks reports each keyword found anywhere in the joined transcript,
// once, in keyword order. Matching and deduplication are case-insensitive;
// the first spelling of a keyword is reported.
func DetectRisks(segments []transcript.Segment, keywords []string) []Risk {
	text := transcript.JoinedText(segments)
	if text == "" {
		return []Risk{}
	}
	risks := []Risk{}
	seen := make(map[string]struct{}, len(keywords))
	for _, kw := range keywords {
		key := textutil.Fold(kw)
		if _, dup := seen[key]; dup || kw == "" {
			continue
		}
		if textutil.ContainsFold(text, kw) {
			seen[key] = struct{}{}
			risks = append(risks, Risk{Type: "keyword", Risk: kw, DetectionMethod: "exact_match"})
		}
	}
	return risks
}

// RiskLabels returns the risk phrases in detection order.
func RiskLabels(risks []Risk) []string {
	out := make([]string, 0, len(risks))
	for _, r := range risks {
		out = append(out, r.Risk)
	}
	return out
}
