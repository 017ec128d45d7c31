package sop

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"

	"callqa/internal/services"
)

const sampleYAML = `
sop_rules:
  Greeting:
    weight: 10
    steps:
      - text: Agent greets the customer
        internal_intent: Greeting delivered
        suggestion: Start with a greeting
      - Agent states their name
  Problem Identification:
    weight: 20
    steps:
      - text: Agent asks for the issue
  Closure:
    weight: 5
    steps: []
sentiments:
  risk_keywords:
    - refund
    - " lawyer "
    - ""
`

func sectionNames(c Checklist) []string {
	out := make([]string, 0, len(c))
	for _, s := range c {
		out = append(out, s.Name)
	}
	return out
}

func TestParseYAMLKeepsOrder(t *testing.T) {
	rules, err := Parse([]byte(sampleYAML))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if diff := cmp.Diff([]string{"Greeting", "Problem Identification", "Closure"}, sectionNames(rules.Checklist)); diff != "" {
		t.Fatalf("section order (-want +got):\n%s", diff)
	}
	greeting := rules.Checklist[0]
	if greeting.Weight != 10 || len(greeting.Steps) != 2 {
		t.Fatalf("unexpected greeting %+v", greeting)
	}
	if greeting.Steps[1].Text != "Agent states their name" {
		t.Fatalf("bare string step not decoded: %+v", greeting.Steps[1])
	}
	if greeting.Steps[0].InternalIntent != "Greeting delivered" {
		t.Fatalf("intent not decoded: %+v", greeting.Steps[0])
	}
	if diff := cmp.Diff([]string{"refund", "lawyer"}, rules.RiskKeywords); diff != "" {
		t.Fatalf("risk keywords (-want +got):\n%s", diff)
	}
	if rules.Checklist.StepCount() != 3 {
		t.Fatalf("expected 3 steps, got %d", rules.Checklist.StepCount())
	}
}

func TestParseJSONKeepsOrder(t *testing.T) {
	doc := `{"sop_rules": {"Zeta": {"weight": 1, "steps": [{"text": "z"}]}, "Alpha": {"weight": 2, "steps": ["a"]}}}`
	rules, err := Parse([]byte(doc))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if diff := cmp.Diff([]string{"Zeta", "Alpha"}, sectionNames(rules.Checklist)); diff != "" {
		t.Fatalf("section order (-want +got):\n%s", diff)
	}
	if rules.Checklist[1].Steps[0].Text != "a" {
		t.Fatalf("bare JSON step not decoded")
	}
}

func TestParseChecklistBare(t *testing.T) {
	checklist, err := ParseChecklist([]byte(`{"B": {"weight": 3, "steps": []}, "A": {"weight": 4}}`))
	if err != nil {
		t.Fatalf("ParseChecklist: %v", err)
	}
	if diff := cmp.Diff([]string{"B", "A"}, sectionNames(checklist)); diff != "" {
		t.Fatalf("section order (-want +got):\n%s", diff)
	}
}

func TestParseRejectsInvalid(t *testing.T) {
	tests := map[string]string{
		"empty":           "   ",
		"negative weight": "sop_rules:\n  A:\n    weight: -1\n",
		"blank step":      `{"A": {"weight": 1, "steps": [{"text": " "}]}}`,
		"not a mapping":   "- a\n- b\n",
		"broken json":     `{"A": `,
	}
	for name, doc := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := Parse([]byte(doc))
			if !errors.Is(err, services.ErrValidation) {
				t.Fatalf("expected validation error, got %v", err)
			}
		})
	}
}

func TestSaveLoadRoundTrip(t *testing.T) {
	rules, err := Parse([]byte(sampleYAML))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	path := filepath.Join(t.TempDir(), "rules.yaml")
	if err := Save(path, rules); err != nil {
		t.Fatalf("Save: %v", err)
	}
	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if diff := cmp.Diff(rules, loaded); diff != "" {
		t.Fatalf("rules changed (-want +got):\n%s", diff)
	}
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	if !errors.Is(err, services.ErrConfiguration) {
		t.Fatalf("expected configuration error, got %v", err)
	}
	if !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("expected wrapped not-exist error, got %v", err)
	}
}

func TestWithChecklistKeepsKeywords(t *testing.T) {
	rules := Rules{RiskKeywords: []string{"refund"}}
	custom := rules.WithChecklist(Checklist{{Name: "X", Weight: 1}})
	if len(custom.Checklist) != 1 || custom.RiskKeywords[0] != "refund" {
		t.Fatalf("unexpected rules %+v", custom)
	}
	custom.RiskKeywords[0] = "changed"
	if rules.RiskKeywords[0] != "refund" {
		t.Fatal("WithChecklist must copy keywords")
	}
}

func TestParseUpdateKeepsKeywordsWithoutSentiments(t *testing.T) {
	current := Rules{
		Checklist:    Checklist{{Name: "Old", Weight: 5}},
		RiskKeywords: []string{"lawsuit", "cancel my account"},
	}
	tests := []struct {
		name string
		doc  string
		want []string
	}{
		{"bare json checklist", `{"Greeting": {"weight": 10, "steps": ["Say hello"]}}`, []string{"lawsuit", "cancel my account"}},
		{"wrapped json without sentiments", `{"sop_rules": {"Greeting": {"weight": 10, "steps": ["Say hello"]}}}`, []string{"lawsuit", "cancel my account"}},
		{"bare yaml checklist", "Greeting:\n  weight: 10\n  steps:\n    - Say hello\n", []string{"lawsuit", "cancel my account"}},
		{"json with sentiments", `{"sop_rules": {"Greeting": {"weight": 10, "steps": ["Say hello"]}}, "sentiments": {"risk_keywords": ["refund"]}}`, []string{"refund"}},
		{"json clearing keywords", `{"sop_rules": {"Greeting": {"weight": 10, "steps": ["Say hello"]}}, "sentiments": {"risk_keywords": []}}`, []string{}},
		{"yaml with sentiments", "sop_rules:\n  Greeting:\n    weight: 10\n    steps:\n      - Say hello\nsentiments:\n  risk_keywords:\n    - refund\n", []string{"refund"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseUpdate([]byte(tt.doc), current)
			if err != nil {
				t.Fatalf("ParseUpdate: %v", err)
			}
			if len(got.Checklist) != 1 || got.Checklist[0].Name != "Greeting" {
				t.Fatalf("unexpected checklist %+v", got.Checklist)
			}
			if diff := cmp.Diff(tt.want, got.RiskKeywords); diff != "" {
				t.Fatalf("keywords mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestParseUpdateRejectsInvalid(t *testing.T) {
	_, err := ParseUpdate([]byte(`{"Greeting": {"weight": -1, "steps": ["x"]}}`), Rules{RiskKeywords: []string{"lawsuit"}})
	if !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}
