package pipeline_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"callqa/internal/audio"
	"callqa/internal/pipeline"
	"callqa/internal/records"
	"callqa/internal/scoring"
	"callqa/internal/sentiment"
	"callqa/internal/services"
	"callqa/internal/sop"
	"callqa/internal/testsupport"
	"callqa/internal/transcript"
)

type fakeTranscriber struct {
	mu     sync.Mutex
	result transcript.Transcription
	err    error
	paths  []string
	delay  time.Duration
	active atomic.Int32
	peak   atomic.Int32
}

func (f *fakeTranscriber) Transcribe(ctx context.Context, path string) (transcript.Transcription, error) {
	n := f.active.Add(1)
	defer f.active.Add(-1)
	for {
		peak := f.peak.Load()
		if n <= peak || f.peak.CompareAndSwap(peak, n) {
			break
		}
	}
	if f.delay > 0 {
		time.Sleep(f.delay)
	}
	f.mu.Lock()
	f.paths = append(f.paths, path)
	f.mu.Unlock()
	if f.err != nil {
		return transcript.Transcription{}, f.err
	}
	out := f.result
	out.Segments = append([]transcript.Segment(nil), f.result.Segments...)
	return out, nil
}

type fakeJudge struct {
	verdicts sop.Verdicts
	err      error
	calls    int
}

func (f *fakeJudge) Evaluate(context.Context, string, sop.Checklist, string) (sop.Verdicts, error) {
	f.calls++
	return f.verdicts, f.err
}

type fakeIdentifier struct {
	mapping map[string]string
	seen    []string
}

func (f *fakeIdentifier) IdentifySpeakers(_ context.Context, segments []transcript.Segment) (map[string]string, error) {
	for _, seg := range segments {
		f.seen = append(f.seen, seg.Speaker)
	}
	return f.mapping, nil
}

type fakeDiarizer struct {
	turns []transcript.SpeakerTurn
}

func (f fakeDiarizer) Diarize(context.Context, string) ([]transcript.SpeakerTurn, error) {
	return f.turns, nil
}

type constantClassifier struct {
	result sentiment.Result
}

func (c constantClassifier) Classify(_ context.Context, texts []string) ([]sentiment.Result, error) {
	out := make([]sentiment.Result, len(texts))
	for i := range out {
		out[i] = c.result
	}
	return out, nil
}

type fakeCompactor struct {
	duration float64
	result   audio.FileResult
	err      error
	compacts int
}

func (f *fakeCompactor) CompactFile(_ context.Context, _, dest string) (audio.FileResult, error) {
	f.compacts++
	if f.err != nil {
		return audio.FileResult{}, f.err
	}
	if f.result.OK {
		if err := os.WriteFile(dest, []byte("RIFF"), 0o644); err != nil {
			return audio.FileResult{}, err
		}
	}
	return f.result, nil
}

func (f *fakeCompactor) Duration(context.Context, string) (float64, error) {
	return f.duration, nil
}

func sampleRules(t *testing.T) sop.Rules {
	t.Helper()
	rules, err := sop.Parse([]byte(testsupport.SampleRules))
	if err != nil {
		t.Fatalf("parse rules: %v", err)
	}
	return rules
}

func sampleTranscription() transcript.Transcription {
	return transcript.Transcription{
		Segments: []transcript.Segment{
			{Start: 0, End: 2, Text: "umm Hello, thanks for calling"},
			{Start: 2, End: 5, Text: "My router is broken and I will file a lawsuit"},
			{Start: 5, End: 8, Text: "Let me help you"},
		},
		Turns: []transcript.SpeakerTurn{
			{Start: 0, End: 2, Speaker: "SPEAKER_00"},
			{Start: 2, End: 5, Speaker: "SPEAKER_01"},
			{Start: 5, End: 8, Speaker: "SPEAKER_00"},
		},
		Language:            "en",
		LanguageProbability: 0.98,
		Duration:            8,
	}
}

func writeAudio(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "call.mp3")
	testsupport.WriteFile(t, path, 128)
	return path
}

func TestRunScoresAndStoresCall(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	judge := &fakeJudge{verdicts: sop.Verdicts{
		"Greeting::0": {Status: sop.StatusPass, Reason: "greeted", Confidence: 0.9},
		"greeting_1":  {Status: "partially", Reason: "first name only", Confidence: 0.6},
	}}
	identifier := &fakeIdentifier{mapping: map[string]string{"SPEAKER_00": "Agent", "SPEAKER_01": "Customer"}}
	fixed := time.Date(2026, 3, 4, 5, 6, 7, 0, time.FixedZone("x", 3600))

	eval := pipeline.New(sop.NewScorer(judge, nil), sampleRules(t),
		pipeline.WithTranscriber(&fakeTranscriber{result: sampleTranscription()}),
		pipeline.WithSpeakerIdentifier(identifier),
		pipeline.WithSentiment(sentiment.NewAnalyzer(constantClassifier{sentiment.Result{Label: "POSITIVE", Score: 0.5}}, nil)),
		pipeline.WithStore(store),
		pipeline.WithClock(func() time.Time { return fixed }),
	)

	rec, err := eval.Run(context.Background(), pipeline.Request{
		AudioPath: writeAudio(t),
		Region:    "North",
		UserID:    "agent-7",
		Email:     "a7@example.com",
		Name:      "Avery",
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if rec.CallID == "" || rec.Timestamp != "2026-03-04T04:06:07Z" {
		t.Fatalf("unexpected identity: %q %q", rec.CallID, rec.Timestamp)
	}
	if diff := cmp.Diff([]string{"SPEAKER_00", "SPEAKER_01", "SPEAKER_00"}, identifier.seen); diff != "" {
		t.Fatalf("identifier saw unaligned speakers (-want +got):\n%s", diff)
	}
	wantTranscript := []transcript.Segment{
		{Start: 0, End: 2, Text: "Hello, thanks for calling", Speaker: "Agent"},
		{Start: 2, End: 5, Text: "My router is broken and I will file a lawsuit", Speaker: "Customer"},
		{Start: 5, End: 8, Text: "Let me help you", Speaker: "Agent"},
	}
	if diff := cmp.Diff(wantTranscript, rec.Transcript); diff != "" {
		t.Fatalf("transcript mismatch (-want +got):\n%s", diff)
	}

	greeting, _ := rec.Evaluation.SOPAdherence.Section("Greeting")
	if greeting.Score != 15 || greeting.MaxScore != 20 {
		t.Fatalf("greeting score = %v/%v, want 15/20", greeting.Score, greeting.MaxScore)
	}
	resolution, _ := rec.Evaluation.SOPAdherence.Section("Resolution")
	if got := resolution.Steps[0]; got.Status != sop.StatusFail || got.Reason != sop.NoEvaluationReason || got.Suggestion == nil {
		t.Fatalf("unexpected resolution step: %#v", got)
	}

	wantSummary := scoring.Summary{TotalScore: 20, FinalScore: 40, Percentage: 40, AvgSentiment: 0.5, Grade: "D"}
	if diff := cmp.Diff(wantSummary, rec.Evaluation.Scoring); diff != "" {
		t.Fatalf("summary mismatch (-want +got):\n%s", diff)
	}
	if rec.Evaluation.Resolution.Status != sop.StatusFail {
		t.Fatalf("expected resolution FAIL, got %#v", rec.Evaluation.Resolution)
	}
	wantAlerts := []string{"Critical risks detected: lawsuit", "Low SOP adherence in: Resolution"}
	if diff := cmp.Diff(wantAlerts, rec.SupervisorAlerts); diff != "" {
		t.Fatalf("alerts mismatch (-want +got):\n%s", diff)
	}
	wantNotes := []string{"Focus on Resolution: Missing Confirm the issue is fixed"}
	if diff := cmp.Diff(wantNotes, rec.CoachingInsights); diff != "" {
		t.Fatalf("coaching mismatch (-want +got):\n%s", diff)
	}
	if rec.Metadata.Region != "North" || rec.Metadata.Language != "en" || rec.Metadata.SourceFile != "call.mp3" {
		t.Fatalf("unexpected metadata: %#v", rec.Metadata)
	}
	if rec.UserID != "agent-7" || rec.Email != "a7@example.com" || rec.Name != "Avery" {
		t.Fatalf("user fields not recorded: %#v", rec)
	}

	stored, err := store.Get(context.Background(), rec.CallID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if diff := cmp.Diff(rec, stored); diff != "" {
		t.Fatalf("stored record mismatch (-want +got):\n%s", diff)
	}
}

func TestRunTranscriptionFailureAborts(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	eval := pipeline.New(nil, sampleRules(t),
		pipeline.WithTranscriber(&fakeTranscriber{err: errors.New("model crashed")}),
		pipeline.WithStore(store),
	)

	_, err := eval.Run(context.Background(), pipeline.Request{AudioPath: writeAudio(t)})
	if !errors.Is(err, services.ErrExternalTool) {
		t.Fatalf("expected external tool error, got %v", err)
	}
	n, err := store.Count(context.Background())
	if err != nil {
		t.Fatalf("Count: %v", err)
	}
	if n != 0 {
		t.Fatalf("expected no stored records, got %d", n)
	}
}

func TestRunMissingAudio(t *testing.T) {
	eval := pipeline.New(nil, sampleRules(t), pipeline.WithTranscriber(&fakeTranscriber{}))
	_, err := eval.Run(context.Background(), pipeline.Request{AudioPath: filepath.Join(t.TempDir(), "nope.wav")})
	if !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestRunCompaction(t *testing.T) {
	cases := []struct {
		name         string
		long         bool
		policy       pipeline.Compaction
		compactor    *fakeCompactor
		wantCompacts int
		wantScratch  bool
		wantMeta     records.Metadata
	}{
		{
			name:         "forced long call",
			long:         true,
			compactor:    &fakeCompactor{result: audio.FileResult{OK: true, OriginalDuration: 120, NewDuration: 90}},
			wantCompacts: 1,
			wantScratch:  true,
			wantMeta:     records.Metadata{LongCall: true, OriginalDuration: 120, TrimmedDuration: 30},
		},
		{
			name:         "over threshold",
			policy:       pipeline.Compaction{Enabled: true, MinDuration: 600},
			compactor:    &fakeCompactor{duration: 900, result: audio.FileResult{OK: true, OriginalDuration: 900, NewDuration: 700.5}},
			wantCompacts: 1,
			wantScratch:  true,
			wantMeta:     records.Metadata{LongCall: true, OriginalDuration: 900, TrimmedDuration: 199.5},
		},
		{
			name:      "under threshold",
			policy:    pipeline.Compaction{Enabled: true, MinDuration: 600},
			compactor: &fakeCompactor{duration: 30},
		},
		{
			name:         "compaction error falls back",
			long:         true,
			compactor:    &fakeCompactor{err: errors.New("ffmpeg missing")},
			wantCompacts: 1,
		},
		{
			name:         "no sound keeps original",
			long:         true,
			compactor:    &fakeCompactor{result: audio.FileResult{OK: false, OriginalDuration: 60, NewDuration: 60}},
			wantCompacts: 1,
			wantMeta:     records.Metadata{LongCall: true, OriginalDuration: 60},
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			workDir := t.TempDir()
			src := writeAudio(t)
			transcriber := &fakeTranscriber{result: sampleTranscription()}
			eval := pipeline.New(nil, sampleRules(t),
				pipeline.WithTranscriber(transcriber),
				pipeline.WithCompactor(tc.compactor, tc.policy),
				pipeline.WithWorkDir(workDir),
			)
			rec, err := eval.Run(context.Background(), pipeline.Request{AudioPath: src, Long: tc.long})
			if err != nil {
				t.Fatalf("Run: %v", err)
			}
			if tc.compactor.compacts != tc.wantCompacts {
				t.Fatalf("compacts = %d, want %d", tc.compactor.compacts, tc.wantCompacts)
			}
			usedScratch := transcriber.paths[0] != src
			if usedScratch != tc.wantScratch {
				t.Fatalf("transcribed %q, scratch expected %v", transcriber.paths[0], tc.wantScratch)
			}
			if usedScratch {
				if _, err := os.Stat(transcriber.paths[0]); !errors.Is(err, os.ErrNotExist) {
					t.Fatalf("expected scratch audio removed, stat err = %v", err)
				}
			}
			got := records.Metadata{
				LongCall:         rec.Metadata.LongCall,
				OriginalDuration: rec.Metadata.OriginalDuration,
				TrimmedDuration:  rec.Metadata.TrimmedDuration,
			}
			if diff := cmp.Diff(tc.wantMeta, got); diff != "" {
				t.Fatalf("metadata mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestRunFallsBackToDiarizer(t *testing.T) {
	tr := sampleTranscription()
	tr.Turns = nil
	eval := pipeline.New(nil, sampleRules(t),
		pipeline.WithTranscriber(&fakeTranscriber{result: tr}),
		pipeline.WithDiarizer(fakeDiarizer{turns: []transcript.SpeakerTurn{{Start: 0, End: 4, Speaker: "SPEAKER_03"}}}),
	)
	rec, err := eval.Run(context.Background(), pipeline.Request{AudioPath: writeAudio(t)})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	var speakers []string
	for _, seg := range rec.Transcript {
		speakers = append(speakers, seg.Speaker)
	}
	want := []string{"SPEAKER_03", "SPEAKER_03", transcript.UnknownSpeaker}
	if diff := cmp.Diff(want, speakers); diff != "" {
		t.Fatalf("speakers mismatch (-want +got):\n%s", diff)
	}
}

func TestEvaluateTranscriptEmptySkipsJudge(t *testing.T) {
	judge := &fakeJudge{}
	eval := pipeline.New(sop.NewScorer(judge, nil), sampleRules(t))

	rec, err := eval.EvaluateTranscript(context.Background(), transcript.Transcription{}, pipeline.Request{})
	if err != nil {
		t.Fatalf("EvaluateTranscript: %v", err)
	}
	if judge.calls != 0 {
		t.Fatalf("judge called %d times for empty transcript", judge.calls)
	}
	if rec.Transcript == nil || len(rec.Transcript) != 0 {
		t.Fatalf("expected empty transcript, got %#v", rec.Transcript)
	}
	for _, section := range rec.Evaluation.SOPAdherence {
		if section.Score != 0 || len(section.Steps) != 0 {
			t.Fatalf("expected zeroed section, got %#v", section)
		}
	}
	if rec.Evaluation.Scoring.FinalScore != 0 || rec.Evaluation.Scoring.Grade != "D" {
		t.Fatalf("unexpected summary: %#v", rec.Evaluation.Scoring)
	}
	if len(rec.SegmentSummary) != 0 {
		t.Fatalf("expected empty segment summary, got %#v", rec.SegmentSummary)
	}
}

func TestEvaluateTranscriptRecordsSourceName(t *testing.T) {
	eval := pipeline.New(nil, sampleRules(t))

	rec, err := eval.EvaluateTranscript(context.Background(), sampleTranscription(), pipeline.Request{
		SourceName: "/exports/call-0042.json",
		Region:     "West",
	})
	if err != nil {
		t.Fatalf("EvaluateTranscript: %v", err)
	}
	if rec.Metadata.SourceFile != "call-0042.json" || rec.Metadata.Region != "West" {
		t.Fatalf("unexpected metadata: %+v", rec.Metadata)
	}

	rec, err = eval.EvaluateTranscript(context.Background(), sampleTranscription(), pipeline.Request{})
	if err != nil {
		t.Fatalf("EvaluateTranscript: %v", err)
	}
	if rec.Metadata.SourceFile != "" {
		t.Fatalf("expected empty source file, got %q", rec.Metadata.SourceFile)
	}
}

func TestEvaluateTranscriptJudgeFailureScoresFail(t *testing.T) {
	judge := &fakeJudge{err: errors.New("upstream 500")}
	eval := pipeline.New(sop.NewScorer(judge, nil), sampleRules(t))

	rec, err := eval.EvaluateTranscript(context.Background(), sampleTranscription(), pipeline.Request{})
	if err != nil {
		t.Fatalf("EvaluateTranscript: %v", err)
	}
	for _, section := range rec.Evaluation.SOPAdherence {
		for _, step := range section.Steps {
			if step.Status != sop.StatusFail || step.Reason != sop.NoEvaluationReason {
				t.Fatalf("expected default FAIL, got %#v", step)
			}
		}
	}
}

func TestEvaluateTranscriptRulesOverride(t *testing.T) {
	override, err := sop.Parse([]byte(`{"Only": {"weight": 5, "steps": ["Say goodbye"]}}`))
	if err != nil {
		t.Fatalf("parse override: %v", err)
	}
	eval := pipeline.New(nil, sampleRules(t))
	rec, err := eval.EvaluateTranscript(context.Background(), sampleTranscription(), pipeline.Request{Rules: &override})
	if err != nil {
		t.Fatalf("EvaluateTranscript: %v", err)
	}
	if len(rec.Evaluation.SOPAdherence) != 1 || rec.Evaluation.SOPAdherence[0].Name != "Only" {
		t.Fatalf("override rules not used: %#v", rec.Evaluation.SOPAdherence)
	}
}

func TestRunBatchBoundsConcurrency(t *testing.T) {
	transcriber := &fakeTranscriber{result: sampleTranscription(), delay: 20 * time.Millisecond}
	eval := pipeline.New(nil, sampleRules(t),
		pipeline.WithTranscriber(transcriber),
		pipeline.WithMaxParallel(2),
	)
	reqs := []pipeline.Request{
		{AudioPath: writeAudio(t), Region: "a"},
		{AudioPath: filepath.Join(t.TempDir(), "missing.wav"), Region: "b"},
		{AudioPath: writeAudio(t), Region: "c"},
		{AudioPath: writeAudio(t), Region: "d"},
		{AudioPath: writeAudio(t), Region: "e"},
	}
	results := eval.RunBatch(context.Background(), reqs)
	if len(results) != len(reqs) {
		t.Fatalf("got %d results, want %d", len(results), len(reqs))
	}
	for i, r := range results {
		if r.Request.Region != reqs[i].Region {
			t.Fatalf("result %d out of order: %q", i, r.Request.Region)
		}
		if i == 1 {
			if !errors.Is(r.Err, services.ErrValidation) {
				t.Fatalf("expected validation error for missing file, got %v", r.Err)
			}
			continue
		}
		if r.Err != nil || r.Record.Metadata.Region != reqs[i].Region {
			t.Fatalf("result %d: err=%v region=%q", i, r.Err, r.Record.Metadata.Region)
		}
	}
	if peak := transcriber.peak.Load(); peak > 2 {
		t.Fatalf("peak concurrency %d exceeds limit 2", peak)
	}
}

type recordingNotifier struct {
	mu    sync.Mutex
	calls []string
	err   error
}

func (n *recordingNotifier) NotifyAlerts(_ context.Context, rec records.CallRecord) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.calls = append(n.calls, rec.CallID)
	return n.err
}

func TestEvaluateTranscriptNotifiesAlerts(t *testing.T) {
	for _, notifyErr := range []error{nil, errors.New("ntfy down")} {
		notifier := &recordingNotifier{err: notifyErr}
		eval := pipeline.New(sop.NewScorer(&fakeJudge{err: errors.New("upstream 500")}, nil), sampleRules(t),
			pipeline.WithNotifier(notifier))

		rec, err := eval.EvaluateTranscript(context.Background(), sampleTranscription(), pipeline.Request{})
		if err != nil {
			t.Fatalf("EvaluateTranscript with notifier error %v: %v", notifyErr, err)
		}
		if len(rec.SupervisorAlerts) == 0 {
			t.Fatal("expected supervisor alerts for a failed evaluation")
		}
		if diff := cmp.Diff([]string{rec.CallID}, notifier.calls); diff != "" {
			t.Fatalf("notified calls mismatch (-want +got):\n%s", diff)
		}
	}
}

func TestEvaluateTranscriptSkipsNotifierWithoutAlerts(t *testing.T) {
	notifier := &recordingNotifier{}
	eval := pipeline.New(nil, sop.Rules{}, pipeline.WithNotifier(notifier))
	rec, err := eval.EvaluateTranscript(context.Background(), transcript.Transcription{}, pipeline.Request{})
	if err != nil {
		t.Fatalf("EvaluateTranscript: %v", err)
	}
	if len(rec.SupervisorAlerts) != 0 {
		t.Fatalf("expected no alerts for an empty checklist, got %v", rec.SupervisorAlerts)
	}
	if len(notifier.calls) != 0 {
		t.Fatalf("expected no notification, got %v", notifier.calls)
	}
}
