// Package sentiment scores the emotional trajectory of a call.
//
// A Classifier labels text POSITIVE or NEGATIVE with a confidence score. The
// trajectory signs each score by its label so positive stretches of the call
// contribute positively and negative stretches negatively.
package sentiment

import (
	"context"
	"log/slog"
	"strings"

	"gonum.org/v1/gonum/stat"

	"callqa/internal/logging"
	"callqa/internal/transcript"
)

// Labels used by classifiers.
const (
	LabelPositive = "POSITIVE"
	LabelNegative = "NEGATIVE"
)

// Result is one classification.
type Result struct {
	Label string  `json:"label"`
	Score float64 `json:"score"`
}

// Signed returns +Score for POSITIVE and -Score for any other label.
func (r Result) Signed() float64 {
	if strings.EqualFold(strings.TrimSpace(r.Label), LabelPositive) {
		return r.Score
	}
	return -r.Score
}

// Classifier labels each text in order. Implementations return one result
// per input or an error.
type Classifier interface {
	Classify(ctx context.Context, texts []string) ([]Result, error)
}

// Point is one sample of the trajectory.
type Point struct {
	Time  float64 `json:"time"`
	Score float64 `json:"score"`
}

// Trajectory is a time-ordered series of signed sentiment scores.
type Trajectory []Point

// Scores returns the signed scores.
func (t Trajectory) Scores() []float64 {
	out := make([]float64, len(t))
	for i, p := range t {
		out[i] = p.Score
	}
	return out
}

// Mean returns the average signed score, or 0 for an empty trajectory.
func (t Trajectory) Mean() float64 {
	if len(t) == 0 {
		return 0
	}
	return stat.Mean(t.Scores(), nil)
}

// Analyzer builds trajectories from transcripts.
type Analyzer struct {
	classifier Classifier
	logger     *slog.Logger
}

// NewAnalyzer returns an analyzer. A nil classifier always yields an empty
// trajectory.
func NewAnalyzer(classifier Classifier, logger *slog.Logger) *Analyzer {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Analyzer{classifier: classifier, logger: logging.NewComponentLogger(logger, "sentiment")}
}

// Trajectory classifies every segment. Classifier failures and result
// count mismatches yield an empty trajectory.
func (a *Analyzer) Trajectory(ctx context.Context, segments []transcript.Segment) Trajectory {
	if a == nil || a.classifier == nil || len(segments) == 0 {
		return Trajectory{}
	}
	logger := logging.WithContext(ctx, a.logger)
	texts := make([]string, len(segments))
	for i, seg := range segments {
		texts[i] = seg.Text
	}
	results, err := a.classifier.Classify(ctx, texts)
	if err == nil && len(results) != len(segments) {
		err = errCountMismatch{want: len(segments), got: len(results)}
	}
	if err != nil {
		logging.WarnWithContext(logger, "sentiment classification failed", "sentiment_failed",
			logging.Error(err),
			logging.String(logging.FieldImpact, "score is computed without a sentiment modifier"),
		)
		return Trajectory{}
	}
	out := make(Trajectory, len(segments))
	for i, seg := range segments {
		out[i] = Point{Time: seg.Start, Score: results[i].Signed()}
	}
	logger.Debug("sentiment trajectory built", logging.Int("points", len(out)), logging.Float64("mean", out.Mean()))
	return out
}
