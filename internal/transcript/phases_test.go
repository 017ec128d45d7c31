package transcript

import (
	"fmt"
	"testing"
)

func TestSplitPhasesEmpty(t *testing.T) {
	got := SplitPhases(nil)
	if len(got) != 0 {
		t.Fatalf("expected empty mapping, got %v", got)
	}
	if len(got.Summary()) != 0 {
		t.Fatalf("expected empty summary")
	}
}

func TestSplitPhasesPrecedence(t *testing.T) {
	texts := []string{
		"Hello, welcome to support",  // 0: greeting keyword, i<3
		"My phone is not charging",   // 1: problem keyword
		"Let me check the account",   // 2: fallback p=0.2 -> problem
		"Can you restart the device", // 3: resolution keyword
		"Checking the settings now",  // 4: fallback p=0.4 -> problem
		"Please hold on",             // 5: fallback p=0.5 -> diagnosis
		"That issue seems resolved",  // 6: problem keyword wins over resolution
		"Running one more test",      // 7: p=0.7 -> resolution (i>n-4 but no closure word)
		"Thank you for calling",      // 8: closure keyword, i>n-4
		"Goodbye then",               // 9: "bye" inside goodbye, i>n-4
	}
	segments := make([]Segment, len(texts))
	for i, text := range texts {
		segments[i] = Segment{Start: float64(i), End: float64(i) + 1, Text: text}
	}

	got := SplitPhases(segments)
	if len(got) != len(Phases) {
		t.Fatalf("expected %d phases, got %d", len(Phases), len(got))
	}
	for i, group := range got {
		if group.Phase != Phases[i] {
			t.Fatalf("phase order mismatch at %d: %s", i, group.Phase)
		}
	}

	want := map[string]Phase{
		texts[0]: PhaseGreeting,
		texts[1]: PhaseProblem,
		texts[2]: PhaseProblem,
		texts[3]: PhaseResolution,
		texts[4]: PhaseProblem,
		texts[5]: PhaseDiagnosis,
		texts[6]: PhaseProblem,
		texts[7]: PhaseResolution,
		texts[8]: PhaseClosure,
		texts[9]: PhaseClosure,
	}
	assigned := 0
	for _, group := range got {
		for _, seg := range group.Segments {
			assigned++
			if want[seg.Text] != group.Phase {
				t.Errorf("%q assigned to %s, want %s", seg.Text, group.Phase, want[seg.Text])
			}
		}
	}
	if assigned != len(segments) {
		t.Fatalf("expected every segment assigned exactly once, got %d", assigned)
	}
}

func TestSplitPhasesGreetingKeywordOnlyEarly(t *testing.T) {
	segments := make([]Segment, 20)
	for i := range segments {
		segments[i] = Segment{Text: fmt.Sprintf("filler %d", i)}
	}
	segments[10].Text = "hello again"
	got := SplitPhases(segments)
	for _, seg := range got.Get(PhaseGreeting) {
		if seg.Text == "hello again" {
			t.Fatal("greeting keyword beyond index 2 must not force Greeting")
		}
	}
	summary := got.Summary()
	total := 0
	for _, count := range summary {
		total += count
	}
	if total != len(segments) {
		t.Fatalf("summary total = %d, want %d", total, len(segments))
	}
}
