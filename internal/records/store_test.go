package records_test

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/google/go-cmp/cmp"

	"callqa/internal/records"
	"callqa/internal/scoring"
	"callqa/internal/services"
	"callqa/internal/sop"
	"callqa/internal/testsupport"
	"callqa/internal/transcript"
)

func sampleRecord(id, region, user string, score float64) records.CallRecord {
	return records.CallRecord{
		CallID:    id,
		Timestamp: "2026-01-02T03:04:05Z",
		Metadata:  records.Metadata{Language: "en", Duration: 42.5, Region: region},
		Transcript: []transcript.Segment{
			{Start: 0, End: 2, Text: "hello", Speaker: "Agent"},
		},
		SegmentSummary: map[string]int{"opening": 1},
		Evaluation: records.Evaluation{
			SOPAdherence: sop.Results{{
				Name:     "Greeting",
				Score:    10,
				MaxScore: 10,
				Steps:    []sop.StepResult{{Step: "Greet", Status: sop.StatusPass, Confidence: 0.9, Reason: "ok"}},
			}},
			Resolution:    sop.Resolution{Status: sop.StatusFail, Reason: "none"},
			RisksDetected: []sop.Risk{},
			Scoring:       scoring.Summary{TotalScore: 10, FinalScore: score, Percentage: score, Grade: "A"},
		},
		CoachingInsights: []string{"Good job"},
		SupervisorAlerts: []string{},
		UserID:           user,
		SpeakerMapping:   map[string]string{"SPEAKER_00": "Agent"},
	}
}

func TestAppendAndGetRoundTrip(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	want := sampleRecord("call-1", "North", "u1", 91.5)
	stored := testsupport.AppendRecord(t, store, want)
	if diff := cmp.Diff(want, stored); diff != "" {
		t.Fatalf("stored record mismatch (-want +got):\n%s", diff)
	}

	got, err := store.Get(ctx, "call-1")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("fetched record mismatch (-want +got):\n%s", diff)
	}
}

func TestAppendAssignsIDAndTimestamp(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	rec := sampleRecord("", "", "", 50)
	rec.Timestamp = ""
	stored := testsupport.AppendRecord(t, store, rec)
	if stored.CallID == "" {
		t.Fatal("expected call ID to be assigned")
	}
	if !strings.HasSuffix(stored.Timestamp, "Z") {
		t.Fatalf("expected UTC timestamp, got %q", stored.Timestamp)
	}
}

func TestAppendRejectsDuplicateCallID(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	testsupport.AppendRecord(t, store, sampleRecord("dup", "", "", 10))
	_, err := store.Append(context.Background(), sampleRecord("dup", "", "", 20))
	if !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
	n, err := store.Count(context.Background())
	if err != nil {
		t.Fatalf("Count: %v", err)
	}
	if n != 1 {
		t.Fatalf("expected 1 record, got %d", n)
	}
}

func TestGetUnknownCall(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	_, err := store.Get(context.Background(), "missing")
	if !errors.Is(err, records.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestListFiltersAndPreservesOrder(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	testsupport.AppendRecord(t, store, sampleRecord("c", "North", "u1", 10))
	testsupport.AppendRecord(t, store, sampleRecord("a", "South", "u1", 20))
	testsupport.AppendRecord(t, store, sampleRecord("b", "North", "u2", 30))

	cases := []struct {
		name   string
		filter records.Filter
		want   []string
	}{
		{name: "all", filter: records.Filter{}, want: []string{"c", "a", "b"}},
		{name: "region", filter: records.Filter{Region: "North"}, want: []string{"c", "b"}},
		{name: "user", filter: records.Filter{UserID: "u1"}, want: []string{"c", "a"}},
		{name: "both", filter: records.Filter{Region: "North", UserID: "u2"}, want: []string{"b"}},
		{name: "none", filter: records.Filter{Region: "East"}, want: []string{}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := store.List(ctx, tc.filter)
			if err != nil {
				t.Fatalf("List: %v", err)
			}
			ids := []string{}
			for _, rec := range got {
				ids = append(ids, rec.CallID)
			}
			if diff := cmp.Diff(tc.want, ids); diff != "" {
				t.Fatalf("ids mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestConcurrentAppends(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	const n = 12
	var wg sync.WaitGroup
	errs := make(chan error, n)
	for i := range n {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := store.Append(ctx, sampleRecord(fmt.Sprintf("call-%d", i), "", "", float64(i))); err != nil {
				errs <- err
			}
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Fatalf("Append: %v", err)
	}
	all, err := store.ListAll(ctx)
	if err != nil {
		t.Fatalf("ListAll: %v", err)
	}
	if len(all) != n {
		t.Fatalf("expected %d records, got %d", n, len(all))
	}
}

func TestImportLegacyExport(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	testsupport.AppendRecord(t, store, sampleRecord("existing", "", "", 10))

	legacy := `[
  {"call_id": "existing", "timestamp": "2025-01-01T00:00:00Z"},
  {
    "call_id": "old-1",
    "timestamp": "2025-01-02T00:00:00Z",
    "metadata": {"region": "West", "duration": 12},
    "evaluation": {
      "sop_adherence": [{"step": "Greet", "status": "PASS", "confidence": 1, "reason": "ok"}],
      "scoring": {"final_score": "85%"}
    },
    "user_id": "legacy-user"
  }
]`
	added, err := store.Import(ctx, strings.NewReader(legacy))
	if err != nil {
		t.Fatalf("Import: %v", err)
	}
	if added != 1 {
		t.Fatalf("expected 1 imported record, got %d", added)
	}

	rec, err := store.Get(ctx, "old-1")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if rec.Metadata.Region != "West" || rec.UserID != "legacy-user" {
		t.Fatalf("unexpected imported record: %#v", rec)
	}
	if rec.FinalScore() != 85 {
		t.Fatalf("expected coerced final score 85, got %v", rec.FinalScore())
	}
	section, ok := rec.Evaluation.SOPAdherence.Section(sop.LegacySection)
	if !ok || len(section.Steps) != 1 {
		t.Fatalf("expected legacy steps under %q, got %#v", sop.LegacySection, rec.Evaluation.SOPAdherence)
	}
}

func TestImportRejectsNonArray(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	_, err := store.Import(context.Background(), strings.NewReader(`{"call_id": "x"}`))
	if !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestReopenKeepsRecords(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store, err := records.Open(cfg)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	testsupport.AppendRecord(t, store, sampleRecord("persist", "", "", 10))
	if err := store.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	reopened := testsupport.MustOpenStore(t, cfg)
	if _, err := reopened.Get(context.Background(), "persist"); err != nil {
		t.Fatalf("Get after reopen: %v", err)
	}
}
