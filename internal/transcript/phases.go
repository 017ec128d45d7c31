package transcript

import "strings"

// Phase names a conversational stage.
type Phase string

const (
	PhaseGreeting   Phase = "Greeting"
	PhaseProblem    Phase = "Problem Identification"
	PhaseDiagnosis  Phase = "Diagnosis / Action"
	PhaseResolution Phase = "Resolution"
	PhaseClosure    Phase = "Closure"
)

// Phases lists every phase in conversational order.
var Phases = []Phase{PhaseGreeting, PhaseProblem, PhaseDiagnosis, PhaseResolution, PhaseClosure}

var (
	greetingWords   = []string{"welcome", "hello", "hi", "smart"}
	closureWords    = []string{"thank you", "bye", "great day", "help"}
	problemWords    = []string{"problem", "issue", "not working", "not charging"}
	resolutionWords = []string{"fixed", "resolved", "done", "restart", "hours"}
)

// PhaseGroup holds the segments assigned to one phase.
type PhaseGroup struct {
	Phase    Phase     `json:"phase"`
	Segments []Segment `json:"segments"`
}

// Segmented is a transcript partitioned into phases. It is either empty or
// holds all five phases in order, some possibly without segments.
type Segmented []PhaseGroup

// Get returns the segments assigned to phase.
func (s Segmented) Get(phase Phase) []Segment {
	for _, group := range s {
		if group.Phase == phase {
			return group.Segments
		}
	}
	return nil
}

// Summary returns the segment count per phase.
func (s Segmented) Summary() map[string]int {
	out := make(map[string]int, len(s))
	for _, group := range s {
		out[string(group.Phase)] = len(group.Segments)
	}
	return out
}

// SplitPhases partitions segments into phases. The keyword sets match raw
// substrings, so "hi" also matches "this"; the fallback uses the segment's
// relative position.
func SplitPhases(segments []Segment) Segmented {
	n := len(segments)
	if n == 0 {
		return Segmented{}
	}
	out := make(Segmented, len(Phases))
	index := make(map[Phase]int, len(Phases))
	for i, phase := range Phases {
		out[i] = PhaseGroup{Phase: phase, Segments: []Segment{}}
		index[phase] = i
	}
	for i, seg := range segments {
		phase := classify(i, n, strings.ToLower(seg.Text))
		slot := index[phase]
		out[slot].Segments = append(out[slot].Segments, seg)
	}
	return out
}

func classify(i, n int, text string) Phase {
	switch {
	case i < 3 && containsAny(text, greetingWords):
		return PhaseGreeting
	case i > n-4 && containsAny(text, closureWords):
		return PhaseClosure
	case containsAny(text, problemWords):
		return PhaseProblem
	case containsAny(text, resolutionWords):
		return PhaseResolution
	}
	pos, total := float64(i), float64(n)
	switch {
	case pos < total*0.2:
		return PhaseGreeting
	case pos < total*0.5:
		return PhaseProblem
	case pos < total*0.7:
		return PhaseDiagnosis
	case pos < total*0.9:
		return PhaseResolution
	default:
		return PhaseClosure
	}
}

func containsAny(text string, words []string) bool {
	for _, w := range words {
		if strings.Contains(text, w) {
			return true
		}
	}
	return false
}
