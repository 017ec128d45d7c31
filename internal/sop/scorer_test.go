package sop

import (
	"context"
	"errors"
	"testing"

	"callqa/internal/transcript"
)

type fakeJudge struct {
	verdicts Verdicts
	err      error
	calls    int
	rendered string
	policy   string
}

func (f *fakeJudge) Evaluate(_ context.Context, rendered string, _ Checklist, policy string) (Verdicts, error) {
	f.calls++
	f.rendered = rendered
	f.policy = policy
	return f.verdicts, f.err
}

func testRules() Rules {
	return Rules{
		Checklist: Checklist{
			{Name: "Greeting", Weight: 10, Steps: []Step{{Text: "Agent greets"}}},
			{Name: "Closure", Weight: 5, Steps: []Step{{Text: "Agent says goodbye"}}},
		},
		RiskKeywords: []string{"refund"},
	}
}

func TestScorerSkipsJudgeForEmptyTranscript(t *testing.T) {
	judge := &fakeJudge{}
	got := NewScorer(judge, nil).Assess(context.Background(), testRules(), nil, "")
	if judge.calls != 0 {
		t.Fatalf("judge should not be called, got %d calls", judge.calls)
	}
	for _, s := range got.Results {
		if s.Score != 0 || len(s.Steps) != 0 {
			t.Fatalf("expected empty section result, got %+v", s)
		}
	}
	if len(got.Risks) != 0 || got.Judged {
		t.Fatalf("unexpected assessment %+v", got)
	}
}

func TestScorerJudgesBlankSegments(t *testing.T) {
	judge := &fakeJudge{}
	segments := []transcript.Segment{{Speaker: "Agent", Text: ""}, {Speaker: "Customer", Text: ""}}
	got := NewScorer(judge, nil).Assess(context.Background(), testRules(), segments, "")
	if judge.calls != 1 || !got.Judged {
		t.Fatalf("blank segments must still be judged, calls=%d judged=%v", judge.calls, got.Judged)
	}
	for _, s := range got.Results {
		if len(s.Steps) != 1 || s.Steps[0].Status != StatusFail {
			t.Fatalf("expected one FAIL step per section, got %+v", s)
		}
	}
}

func TestScorerUsesVerdicts(t *testing.T) {
	judge := &fakeJudge{verdicts: Verdicts{"Greeting::0": {Status: StatusPass, Confidence: 0.9}, "closure_0": {Status: StatusPass}}}
	segments := []transcript.Segment{{Start: 0, End: 1, Speaker: "Agent", Text: "Hello"}, {Start: 1, End: 2, Speaker: "Customer", Text: "refund please"}}
	got := NewScorer(judge, nil).Assess(context.Background(), testRules(), segments, "be polite")
	if judge.calls != 1 || judge.policy != "be polite" {
		t.Fatalf("unexpected judge usage %+v", judge)
	}
	if judge.rendered != "[Agent][0.0s] Hello\n[Customer][1.0s] refund please" {
		t.Fatalf("unexpected rendered transcript %q", judge.rendered)
	}
	if got.Results[0].Score != 10 || got.Results[1].Score != 5 {
		t.Fatalf("unexpected scores %+v", got.Results)
	}
	if got.Resolution.Status != StatusPass || len(got.Risks) != 1 || !got.Judged {
		t.Fatalf("unexpected assessment %+v", got)
	}
}

func TestScorerDegradesOnJudgeError(t *testing.T) {
	judge := &fakeJudge{err: errors.New("boom"), verdicts: Verdicts{"Greeting::0": {Status: StatusPass}}}
	got := NewScorer(judge, nil).Assess(context.Background(), testRules(), []transcript.Segment{{Text: "hello"}}, "")
	for _, s := range got.Results {
		for _, step := range s.Steps {
			if step.Status != StatusFail {
				t.Fatalf("expected FAIL after judge error, got %+v", step)
			}
		}
	}
	if got.Judged {
		t.Fatal("judge failure should be reported")
	}
}
