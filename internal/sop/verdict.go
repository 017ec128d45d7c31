package sop

import (
	"fmt"
	"slices"
	"strconv"
	"strings"

	"callqa/internal/textutil"
)

// Status is a judge outcome for one step.
type Status string

const (
	StatusPass    Status = "PASS"
	StatusPartial Status = "PARTIAL"
	StatusFail    Status = "FAIL"
)

// ParseStatus normalizes judge status strings. Anything other than a
// recognised pass or partial is FAIL.
func ParseStatus(raw string) Status {
	switch strings.ToUpper(strings.TrimSpace(raw)) {
	case "PASS", "PASSED":
		return StatusPass
	case "PARTIAL", "PARTIALLY":
		return StatusPartial
	default:
		return StatusFail
	}
}

// UnmarshalText lets decoders normalize status while reading.
func (s *Status) UnmarshalText(text []byte) error {
	*s = ParseStatus(string(text))
	return nil
}

// NoEvaluationReason is the reason recorded for steps the judge skipped.
const NoEvaluationReason = "No evaluation returned from AI."

// Verdict is the judge's ruling on a single step.
type Verdict struct {
	Status     Status  `json:"status"`
	Reason     string  `json:"reason"`
	Confidence float64 `json:"confidence"`
}

// Verdicts are keyed by whatever the judge chose, ideally StepKey.
type Verdicts map[string]Verdict

// StepKey is the key a well-behaved judge uses for a step.
func StepKey(section string, index int) string {
	return fmt.Sprintf("%s::%d", section, index)
}

// ResolveVerdict finds the verdict for step index of section. Lookups run
// exact key, then normalized key, then bare index (raw, then normalized).
// When several judge keys normalize to the same value the lexicographically
// smallest wins so results do not depend on map order.
func ResolveVerdict(verdicts Verdicts, section string, index int) (Verdict, bool) {
	if len(verdicts) == 0 {
		return Verdict{}, false
	}
	expected := StepKey(section, index)
	if v, ok := verdicts[expected]; ok {
		return v, true
	}
	if v, ok := matchNormalized(verdicts, textutil.NormalizeKey(expected)); ok {
		return v, true
	}
	bare := strconv.Itoa(index)
	if v, ok := verdicts[bare]; ok {
		return v, true
	}
	return matchNormalized(verdicts, bare)
}

func matchNormalized(verdicts Verdicts, want string) (Verdict, bool) {
	if want == "" {
		return Verdict{}, false
	}
	var candidates []string
	for key := range verdicts {
		if textutil.NormalizeKey(key) == want {
			candidates = append(candidates, key)
		}
	}
	if len(candidates) == 0 {
		return Verdict{}, false
	}
	return verdicts[slices.Min(candidates)], true
}
