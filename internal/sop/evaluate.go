package sop

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strings"
)

// PartialCredit is the fraction of a pass a PARTIAL verdict earns.
const PartialCredit = 0.5

// StepResult is a scored step. Suggestion is nil for passing steps and for
// failing steps without a declared suggestion.
type StepResult struct {
	Step       string  `json:"step"`
	Status     Status  `json:"status"`
	Confidence float64 `json:"confidence"`
	Reason     string  `json:"reason"`
	Suggestion *string `json:"suggestion"`
}

// SectionResult is the scored form of a checklist section.
type SectionResult struct {
	Name     string       `json:"-"`
	Score    float64      `json:"score"`
	MaxScore float64      `json:"max_score"`
	Steps    []StepResult `json:"steps"`
}

// Counts returns the number of PASS, PARTIAL and FAIL steps.
func (r SectionResult) Counts() (pass, partial, fail int) {
	for _, s := range r.Steps {
		switch s.Status {
		case StatusPass:
			pass++
		case StatusPartial:
			partial++
		default:
			fail++
		}
	}
	return pass, partial, fail
}

// LegacySection names the single section of flat step lists.
const LegacySection = "SOP"

// Results hold section results in checklist order.
type Results []SectionResult

// Section returns the named result.
func (r Results) Section(name string) (SectionResult, bool) {
	for _, s := range r {
		if s.Name == name {
			return s, true
		}
	}
	return SectionResult{}, false
}

// NoFailures reports whether no step in any section is FAIL. PARTIAL steps
// do not count as failures.
func (r Results) NoFailures() bool {
	for _, s := range r {
		for _, step := range s.Steps {
			if step.Status == StatusFail {
				return false
			}
		}
	}
	return true
}

// FailedSteps lists FAIL step texts in checklist order.
func (r Results) FailedSteps() []string {
	var out []string
	for _, s := range r {
		for _, step := range s.Steps {
			if step.Status == StatusFail {
				out = append(out, step.Step)
			}
		}
	}
	return out
}

// MarshalJSON renders the results as an object keyed by section name.
func (r Results) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, s := range r {
		if s.Steps == nil {
			s.Steps = []StepResult{}
		}
		if err := writeMember(&buf, i == 0, s.Name, s); err != nil {
			return nil, err
		}
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON reads an object keyed by section name, keeping key order.
func (r *Results) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	switch {
	case string(trimmed) == "null":
		*r = nil
		return nil
	case len(trimmed) > 0 && trimmed[0] == '[':
		// Older records stored a flat step list without sections.
		var steps []StepResult
		if err := json.Unmarshal(trimmed, &steps); err != nil {
			return err
		}
		*r = Results{{Name: LegacySection, Steps: steps}}
		return nil
	}
	var out Results
	err := eachMember(data, func(key string, raw json.RawMessage) error {
		var s SectionResult
		if err := json.Unmarshal(raw, &s); err != nil {
			return fmt.Errorf("section %q: %w", key, err)
		}
		s.Name = key
		out = append(out, s)
		return nil
	})
	if err != nil {
		return err
	}
	*r = out
	return nil
}

// Evaluate scores every section of checklist against the judge verdicts.
// Steps without a resolvable verdict score as FAIL with NoEvaluationReason.
func Evaluate(checklist Checklist, verdicts Verdicts) Results {
	results := make(Results, 0, len(checklist))
	for _, section := range checklist {
		steps := make([]StepResult, 0, len(section.Steps))
		for i, step := range section.Steps {
			v, ok := ResolveVerdict(verdicts, section.Name, i)
			if !ok {
				v = Verdict{Status: StatusFail, Reason: NoEvaluationReason}
			}
			steps = append(steps, stepResult(step, v))
		}
		res := SectionResult{Name: section.Name, MaxScore: section.Weight, Steps: steps}
		res.Score = sectionScore(res, section.Weight)
		results = append(results, res)
	}
	return results
}

// EmptyResults scores every section 0 with no steps. It stands in for
// Evaluate when there is no transcript to judge.
func EmptyResults(checklist Checklist) Results {
	results := make(Results, 0, len(checklist))
	for _, section := range checklist {
		results = append(results, SectionResult{Name: section.Name, MaxScore: section.Weight, Steps: []StepResult{}})
	}
	return results
}

func stepResult(step Step, v Verdict) StepResult {
	status := ParseStatus(string(v.Status))
	reason := strings.TrimSpace(v.Reason)
	if reason == "" {
		reason = NoEvaluationReason
	}
	out := StepResult{
		Step:       step.Text,
		Status:     status,
		Confidence: clamp(v.Confidence, 0, 1),
		Reason:     reason,
	}
	if status != StatusPass && strings.TrimSpace(step.Suggestion) != "" {
		suggestion := step.Suggestion
		out.Suggestion = &suggestion
	}
	return out
}

func sectionScore(res SectionResult, weight float64) float64 {
	total := len(res.Steps)
	if total == 0 || weight <= 0 {
		return 0
	}
	pass, partial, _ := res.Counts()
	earned := float64(pass) + PartialCredit*float64(partial)
	return clamp(Round2(earned/float64(total)*weight), 0, weight)
}

// Round2 rounds half away from zero to two decimals.
func Round2(v float64) float64 {
	return math.Round(v*100) / 100
}

func clamp(v, lo, hi float64) float64 {
	if math.IsNaN(v) {
		return lo
	}
	return math.Max(lo, math.Min(hi, v))
}
