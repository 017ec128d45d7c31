package pipeline

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"callqa/internal/audio"
	"callqa/internal/logging"
	"callqa/internal/records"
	"callqa/internal/sentiment"
	"callqa/internal/services"
	"callqa/internal/sop"
	"callqa/internal/transcript"
)

// Transcriber turns an audio file into timed segments.
type Transcriber interface {
	Transcribe(ctx context.Context, path string) (transcript.Transcription, error)
}

// Diarizer returns speaker turns for an audio file.
type Diarizer interface {
	Diarize(ctx context.Context, path string) ([]transcript.SpeakerTurn, error)
}

// SpeakerIdentifier maps diarization labels to roles.
type SpeakerIdentifier interface {
	IdentifySpeakers(ctx context.Context, segments []transcript.Segment) (map[string]string, error)
}

// Compactor trims silence from audio files.
type Compactor interface {
	CompactFile(ctx context.Context, src, dest string) (audio.FileResult, error)
	Duration(ctx context.Context, src string) (float64, error)
}

// Recorder persists finished call records.
type Recorder interface {
	Append(ctx context.Context, rec records.CallRecord) (records.CallRecord, error)
}

// Notifier pages supervisors about calls that raised alerts.
type Notifier interface {
	NotifyAlerts(ctx context.Context, rec records.CallRecord) error
}

// Compaction controls when long-call silence trimming runs.
type Compaction struct {
	// Enabled turns on automatic compaction for calls longer than MinDuration.
	Enabled     bool
	MinDuration float64
}

// Evaluator runs the per-call pipeline. Collaborators left nil are skipped;
// only the transcriber is required for Run and the scorer for both entry
// points.
type Evaluator struct {
	transcriber  Transcriber
	diarizer     Diarizer
	speakers     SpeakerIdentifier
	sentiment    *sentiment.Analyzer
	scorer       *sop.Scorer
	compactor    Compactor
	store        Recorder
	notifier     Notifier
	rules        sop.Rules
	compaction   Compaction
	policiesDir  string
	workDir      string
	stageTimeout time.Duration
	maxParallel  int
	logger       *slog.Logger
	now          func() time.Time
}

// Option configures an Evaluator.
type Option func(*Evaluator)

// WithTranscriber sets the speech-to-text backend.
func WithTranscriber(t Transcriber) Option { return func(e *Evaluator) { e.transcriber = t } }

// WithDiarizer sets the fallback diarizer used when transcription carries no turns.
func WithDiarizer(d Diarizer) Option { return func(e *Evaluator) { e.diarizer = d } }

// WithSpeakerIdentifier sets the role mapper.
func WithSpeakerIdentifier(s SpeakerIdentifier) Option { return func(e *Evaluator) { e.speakers = s } }

// WithSentiment sets the sentiment analyzer.
func WithSentiment(a *sentiment.Analyzer) Option { return func(e *Evaluator) { e.sentiment = a } }

// WithCompactor sets the silence compactor and when it runs.
func WithCompactor(c Compactor, policy Compaction) Option {
	return func(e *Evaluator) {
		e.compactor = c
		e.compaction = policy
	}
}

// WithStore sets where finished records are appended.
func WithStore(r Recorder) Option { return func(e *Evaluator) { e.store = r } }

// WithNotifier sets where supervisor alerts are sent.
func WithNotifier(n Notifier) Option { return func(e *Evaluator) { e.notifier = n } }

// WithPoliciesDir sets the directory searched for per-SOP policy text.
func WithPoliciesDir(dir string) Option { return func(e *Evaluator) { e.policiesDir = dir } }

// WithWorkDir sets where compacted audio is written.
func WithWorkDir(dir string) Option { return func(e *Evaluator) { e.workDir = dir } }

// WithStageTimeout bounds the transcription stage. Zero means no limit.
func WithStageTimeout(d time.Duration) Option { return func(e *Evaluator) { e.stageTimeout = d } }

// WithMaxParallel bounds RunBatch concurrency.
func WithMaxParallel(n int) Option { return func(e *Evaluator) { e.maxParallel = n } }

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option { return func(e *Evaluator) { e.logger = l } }

// WithClock overrides the record timestamp source.
func WithClock(now func() time.Time) Option { return func(e *Evaluator) { e.now = now } }

// New builds an Evaluator scoring against rules.
func New(scorer *sop.Scorer, rules sop.Rules, opts ...Option) *Evaluator {
	e := &Evaluator{
		scorer:      scorer,
		rules:       rules,
		workDir:     os.TempDir(),
		maxParallel: 1,
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.scorer == nil {
		e.scorer = sop.NewScorer(nil, e.logger)
	}
	e.logger = logging.NewComponentLogger(e.logger, "pipeline")
	if e.maxParallel < 1 {
		e.maxParallel = 1
	}
	return e
}

// Rules returns the default rules calls are scored against.
func (e *Evaluator) Rules() sop.Rules {
	return e.rules
}

// Request describes one call to evaluate.
type Request struct {
	AudioPath string
	Region    string
	UserID    string
	Email     string
	Name      string
	SOPID     string
	// Rules overrides the evaluator's rules for this call when non-nil.
	Rules *sop.Rules
	// Long forces silence compaction regardless of duration.
	Long bool
	// SourceName is the original file name when AudioPath is a scratch copy.
	SourceName string
}

func (r Request) sourceName() string {
	if name := strings.TrimSpace(r.SourceName); name != "" {
		return filepath.Base(name)
	}
	return sourceLabel(r.AudioPath)
}

func (r Request) rulesOr(fallback sop.Rules) sop.Rules {
	if r.Rules != nil {
		return *r.Rules
	}
	return fallback
}

// stage annotates ctx with a stage name and returns a logger carrying it.
func (e *Evaluator) stage(ctx context.Context, name string) (context.Context, *slog.Logger) {
	stageCtx := services.WithStage(ctx, name)
	return stageCtx, logging.WithContext(stageCtx, e.logger)
}

func sourceLabel(path string) string {
	path = strings.TrimSpace(path)
	if path == "" {
		return ""
	}
	return filepath.Base(path)
}
