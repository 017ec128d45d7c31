package sop

import (
	"testing"

	"github.com/google/go-cmp/cmp"

	"callqa/internal/transcript"
)

func TestDetectRisks(t *testing.T) {
	segments := []transcript.Segment{
		{Text: "I want a REFUND right now"},
		{Text: "or I will call my lawyer"},
		{Text: "refund, refund, refund"},
	}
	got := DetectRisks(segments, []string{"lawyer", "refund", "cancel", "lawyer", "my lawyer"})
	want := []string{"lawyer", "refund", "my lawyer"}
	if diff := cmp.Diff(want, RiskLabels(got)); diff != "" {
		t.Fatalf("risks mismatch (-want +got):\n%s", diff)
	}
	for _, r := range got {
		if r.Type != "keyword" || r.DetectionMethod != "exact_match" {
			t.Fatalf("unexpected risk shape %+v", r)
		}
	}
}

func TestDetectRisksDedupesCaseInsensitively(t *testing.T) {
	segments := []transcript.Segment{{Text: "I will file a LAWSUIT"}}
	got := DetectRisks(segments, []string{"Lawsuit", "lawsuit", "LAWSUIT"})
	if diff := cmp.Diff([]string{"Lawsuit"}, RiskLabels(got)); diff != "" {
		t.Fatalf("risks mismatch (-want +got):\n%s", diff)
	}
}

func TestDetectRisksSpansSegments(t *testing.T) {
	segments := []transcript.Segment{{Text: "speak to"}, {Text: "a manager"}}
	got := DetectRisks(segments, []string{"to a manager"})
	if len(got) != 1 {
		t.Fatalf("expected match across segment boundary, got %v", got)
	}
}

func TestDetectRisksEmptyTranscript(t *testing.T) {
	got := DetectRisks(nil, []string{"refund"})
	if got == nil || len(got) != 0 {
		t.Fatalf("expected empty non-nil slice, got %#v", got)
	}
}
