package textutil

import "testing"

func TestNormalizeKey(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"Greeting::0", "greeting0"},
		{"GREETING::0", "greeting0"},
		{"greeting_0", "greeting0"},
		{"Problem Identification::2", "problemidentification2"},
		{"::", ""},
		{"", ""},
	}
	for _, tt := range tests {
		if got := NormalizeKey(tt.in); got != tt.want {
			t.Errorf("NormalizeKey(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestContainsAnyFold(t *testing.T) {
	if !ContainsAnyFold("I want to CANCEL my plan", "refund", "cancel") {
		t.Fatal("expected case-insensitive match")
	}
	if ContainsAnyFold("all good here", "cancel", "lawsuit") {
		t.Fatal("unexpected match")
	}
	if ContainsAnyFold("anything") {
		t.Fatal("no needles should never match")
	}
}

func TestContainsFold(t *testing.T) {
	if !ContainsFold("Thank You for calling", "thank you") {
		t.Fatal("expected match")
	}
}
