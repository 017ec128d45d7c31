package sop

import "testing"

func TestParseStatus(t *testing.T) {
	tests := map[string]Status{
		"PASS":      StatusPass,
		" pass ":    StatusPass,
		"Partial":   StatusPartial,
		"FAIL":      StatusFail,
		"":          StatusFail,
		"maybe":     StatusFail,
		"N/A":       StatusFail,
		"passed":    StatusPass,
		"PARTIALLY": StatusPartial,
	}
	for raw, want := range tests {
		if got := ParseStatus(raw); got != want {
			t.Errorf("ParseStatus(%q) = %s, want %s", raw, got, want)
		}
	}
}

func TestResolveVerdictKeyVariants(t *testing.T) {
	for _, key := range []string{"Greeting::0", "GREETING::0", "greeting_0", "greeting 0", "0", " 0 "} {
		t.Run(key, func(t *testing.T) {
			verdicts := Verdicts{key: {Status: StatusPass, Confidence: 0.8}}
			got, ok := ResolveVerdict(verdicts, "Greeting", 0)
			if !ok {
				t.Fatalf("key %q did not resolve", key)
			}
			if got.Status != StatusPass {
				t.Fatalf("unexpected verdict %+v", got)
			}
		})
	}
}

func TestResolveVerdictPrefersExact(t *testing.T) {
	verdicts := Verdicts{
		"Greeting::0": {Status: StatusPass},
		"greeting_0":  {Status: StatusFail},
		"0":           {Status: StatusPartial},
	}
	got, ok := ResolveVerdict(verdicts, "Greeting", 0)
	if !ok || got.Status != StatusPass {
		t.Fatalf("expected exact key to win, got %+v ok=%v", got, ok)
	}
}

func TestResolveVerdictNormalizedBeforeIndex(t *testing.T) {
	verdicts := Verdicts{
		"greeting-1": {Status: StatusPartial},
		"1":          {Status: StatusFail},
	}
	got, ok := ResolveVerdict(verdicts, "Greeting", 1)
	if !ok || got.Status != StatusPartial {
		t.Fatalf("expected normalized key to win, got %+v ok=%v", got, ok)
	}
}

func TestResolveVerdictCollisionIsDeterministic(t *testing.T) {
	verdicts := Verdicts{
		"greeting_0": {Status: StatusFail},
		"GREETING-0": {Status: StatusPass},
	}
	for range 20 {
		got, ok := ResolveVerdict(verdicts, "Greeting", 0)
		if !ok || got.Status != StatusPass {
			t.Fatalf("expected smallest key GREETING-0 to win, got %+v", got)
		}
	}
}

func TestResolveVerdictMiss(t *testing.T) {
	if _, ok := ResolveVerdict(nil, "Greeting", 0); ok {
		t.Fatal("nil verdicts should not resolve")
	}
	verdicts := Verdicts{"Closure::0": {Status: StatusPass}, "3": {Status: StatusPass}}
	if _, ok := ResolveVerdict(verdicts, "Greeting", 0); ok {
		t.Fatal("unrelated keys should not resolve")
	}
}
