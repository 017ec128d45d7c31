package sop

import (
	"encoding/json"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func greetingChecklist() Checklist {
	return Checklist{
		{Name: "Greeting", Weight: 10, Steps: []Step{
			{Text: "Agent greets", Suggestion: "Open with a greeting"},
			{Text: "Agent states name"},
		}},
		{Name: "Resolution", Weight: 20, Steps: []Step{
			{Text: "Agent confirms fix", Suggestion: "Confirm the fix"},
		}},
		{Name: "Empty", Weight: 5},
	}
}

func TestEvaluateScoresSections(t *testing.T) {
	verdicts := Verdicts{
		"Greeting::0":   {Status: StatusPass, Confidence: 0.9, Reason: "said hello"},
		"greeting_1":    {Status: StatusPartial, Confidence: 0.4, Reason: "half"},
		"RESOLUTION::0": {Status: "bogus", Confidence: 3},
	}
	got := Evaluate(greetingChecklist(), verdicts)

	if len(got) != 3 {
		t.Fatalf("expected 3 sections, got %d", len(got))
	}
	greeting := got[0]
	if greeting.Name != "Greeting" || greeting.Score != 7.5 || greeting.MaxScore != 10 {
		t.Fatalf("unexpected greeting result %+v", greeting)
	}
	if greeting.Steps[0].Suggestion != nil {
		t.Fatalf("passing step should not carry a suggestion")
	}
	if greeting.Steps[1].Suggestion != nil {
		t.Fatalf("step without declared suggestion should be nil")
	}

	resolution := got[1]
	if resolution.Score != 0 {
		t.Fatalf("expected resolution score 0, got %v", resolution.Score)
	}
	step := resolution.Steps[0]
	if step.Status != StatusFail || step.Confidence != 1 || step.Reason != NoEvaluationReason {
		t.Fatalf("unexpected normalized step %+v", step)
	}
	if step.Suggestion == nil || *step.Suggestion != "Confirm the fix" {
		t.Fatalf("expected declared suggestion on failing step")
	}

	if got[2].Score != 0 || got[2].MaxScore != 5 || len(got[2].Steps) != 0 {
		t.Fatalf("unexpected empty section %+v", got[2])
	}
}

func TestEvaluateUnmatchedStepsFail(t *testing.T) {
	got := Evaluate(greetingChecklist(), nil)
	for _, section := range got {
		for _, step := range section.Steps {
			if step.Status != StatusFail || step.Confidence != 0 || step.Reason != NoEvaluationReason {
				t.Fatalf("expected default FAIL, got %+v", step)
			}
		}
		if section.Score != 0 {
			t.Fatalf("expected zero score for %s", section.Name)
		}
	}
}

func TestEvaluateStepOrderIgnoresJudgeOrder(t *testing.T) {
	checklist := Checklist{{Name: "Steps", Weight: 3, Steps: []Step{{Text: "a"}, {Text: "b"}, {Text: "c"}}}}
	verdicts := Verdicts{
		"Steps::2": {Status: StatusPass},
		"Steps::0": {Status: StatusFail},
		"Steps::1": {Status: StatusPartial},
	}
	got := Evaluate(checklist, verdicts)
	var order []string
	var statuses []Status
	for _, s := range got[0].Steps {
		order = append(order, s.Step)
		statuses = append(statuses, s.Status)
	}
	if diff := cmp.Diff([]string{"a", "b", "c"}, order); diff != "" {
		t.Fatalf("step order mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]Status{StatusFail, StatusPartial, StatusPass}, statuses); diff != "" {
		t.Fatalf("status mismatch (-want +got):\n%s", diff)
	}
	if got[0].Score != 1.5 {
		t.Fatalf("expected score 1.5, got %v", got[0].Score)
	}
}

func TestSectionScoreBounds(t *testing.T) {
	statuses := []Status{StatusPass, StatusPartial, StatusFail}
	steps := []Step{{Text: "one"}, {Text: "two"}, {Text: "three"}}
	checklist := Checklist{{Name: "S", Weight: 7, Steps: steps}}
	for _, a := range statuses {
		for _, b := range statuses {
			for _, c := range statuses {
				verdicts := Verdicts{"S::0": {Status: a}, "S::1": {Status: b}, "S::2": {Status: c}}
				res := Evaluate(checklist, verdicts)[0]
				if res.Score < 0 || res.Score > res.MaxScore {
					t.Fatalf("score %v out of [0,%v] for %s/%s/%s", res.Score, res.MaxScore, a, b, c)
				}
			}
		}
	}
}

func TestEmptyResults(t *testing.T) {
	got := EmptyResults(greetingChecklist())
	for i, section := range got {
		if section.Score != 0 || section.Steps == nil || len(section.Steps) != 0 {
			t.Fatalf("unexpected empty result %+v", section)
		}
		if section.MaxScore != greetingChecklist()[i].Weight {
			t.Fatalf("max score should equal weight")
		}
	}
}

func TestResultsJSONKeepsSectionOrder(t *testing.T) {
	results := Evaluate(greetingChecklist(), Verdicts{"Greeting::0": {Status: StatusPass, Reason: "ok"}})
	data, err := json.Marshal(results)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var decoded Results
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if diff := cmp.Diff(results, decoded); diff != "" {
		t.Fatalf("results changed (-want +got):\n%s", diff)
	}

	var generic map[string]map[string]any
	if err := json.Unmarshal(data, &generic); err != nil {
		t.Fatalf("generic decode: %v", err)
	}
	if _, ok := generic["Greeting"]["max_score"]; !ok {
		t.Fatalf("expected max_score key in %s", data)
	}
}

func TestResultsHelpers(t *testing.T) {
	results := Evaluate(greetingChecklist(), Verdicts{
		"Greeting::0":   {Status: StatusPass},
		"Greeting::1":   {Status: StatusPass},
		"Resolution::0": {Status: StatusPartial},
	})
	if !results.NoFailures() {
		t.Fatal("partial step is not a failure")
	}
	if len(results.FailedSteps()) != 0 {
		t.Fatalf("expected no FAIL steps, got %v", results.FailedSteps())
	}
	if Evaluate(greetingChecklist(), nil).NoFailures() {
		t.Fatal("unmatched steps are failures")
	}
	if !EmptyResults(greetingChecklist()).NoFailures() {
		t.Fatal("no steps means nothing failed")
	}
}

func TestResultsDecodeLegacyList(t *testing.T) {
	var got Results
	if err := json.Unmarshal([]byte(`[{"step": "greet", "status": "FAIL"}, {"step": "close", "status": "pass"}]`), &got); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if len(got) != 1 || got[0].Name != LegacySection || len(got[0].Steps) != 2 {
		t.Fatalf("unexpected legacy results %+v", got)
	}
	if got[0].Steps[1].Status != StatusPass {
		t.Fatalf("status should normalize on decode, got %s", got[0].Steps[1].Status)
	}
	if diff := cmp.Diff([]string{"greet"}, got.FailedSteps()); diff != "" {
		t.Fatalf("failed steps (-want +got):\n%s", diff)
	}
}
