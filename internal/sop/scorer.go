package sop

import (
	"context"
	"log/slog"

	"callqa/internal/logging"
	"callqa/internal/transcript"
)

// Judge rules on each checklist step given a rendered transcript and an
// optional policy excerpt.
type Judge interface {
	Evaluate(ctx context.Context, rendered string, checklist Checklist, policy string) (Verdicts, error)
}

// Assessment is everything the scorer derives from one transcript.
type Assessment struct {
	Results    Results
	Risks      []Risk
	Resolution Resolution
	Judged     bool
}

// Scorer runs the judge and turns its verdicts into an Assessment.
type Scorer struct {
	judge  Judge
	logger *slog.Logger
}

// NewScorer builds a scorer. A nil judge scores every step FAIL.
func NewScorer(judge Judge, logger *slog.Logger) *Scorer {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Scorer{judge: judge, logger: logger}
}

// Assess scores segments against rules. A transcript with no segments skips
// the judge and scores every section 0; segments left blank by cleaning are
// still judged. Judge failures never abort the assessment.
func (s *Scorer) Assess(ctx context.Context, rules Rules, segments []transcript.Segment, policy string) Assessment {
	logger := logging.WithContext(ctx, s.logger)
	if len(segments) == 0 {
		logger.Info("empty transcript, skipping judge", logging.Int("sections", len(rules.Checklist)))
		results := EmptyResults(rules.Checklist)
		return Assessment{Results: results, Risks: []Risk{}, Resolution: ValidateResolution(results)}
	}

	verdicts, judged := s.verdicts(ctx, logger, rules.Checklist, transcript.Render(segments), policy)
	results := Evaluate(rules.Checklist, verdicts)
	risks := DetectRisks(segments, rules.RiskKeywords)
	resolution := ValidateResolution(results)
	logger.Debug("sop assessment complete",
		logging.Int("verdicts", len(verdicts)),
		logging.Int("risks", len(risks)),
		logging.String("resolution", string(resolution.Status)),
	)
	return Assessment{Results: results, Risks: risks, Resolution: resolution, Judged: judged}
}

func (s *Scorer) verdicts(ctx context.Context, logger *slog.Logger, checklist Checklist, rendered, policy string) (Verdicts, bool) {
	if s.judge == nil || len(checklist) == 0 {
		return Verdicts{}, false
	}
	verdicts, err := s.judge.Evaluate(ctx, rendered, checklist, policy)
	if err != nil {
		logging.WarnWithContext(logger, "sop judge failed", "judge_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check llm.api_key and llm.base_url"),
			logging.String(logging.FieldImpact, "every step scored FAIL"),
		)
		return Verdicts{}, false
	}
	if verdicts == nil {
		verdicts = Verdicts{}
	}
	return verdicts, true
}
