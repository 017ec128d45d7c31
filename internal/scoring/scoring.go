// Package scoring turns section results into a final score, a letter grade,
// coaching notes, and supervisor alerts.
package scoring

import (
	"math"

	"gonum.org/v1/gonum/floats"

	"callqa/internal/sentiment"
	"callqa/internal/sop"
)

// SentimentWeight scales the average signed sentiment into score points.
const SentimentWeight = 10.0

// Grade bands, checked highest first. A percent equal to a threshold earns
// that band.
var gradeBands = []struct {
	min   float64
	grade string
}{
	{90, "A+"},
	{80, "A"},
	{70, "B"},
	{50, "C"},
}

// Summary is the scoring block of a call record. TotalScore is the
// sentiment-adjusted point total; FinalScore and Percentage are both the
// percent of the maximum.
type Summary struct {
	TotalScore   float64 `json:"total_score"`
	FinalScore   float64 `json:"final_score"`
	Percentage   float64 `json:"percentage"`
	AvgSentiment float64 `json:"avg_sentiment"`
	Grade        string  `json:"grade"`
}

// Finalize combines section scores with the sentiment trajectory.
func Finalize(results sop.Results, trajectory sentiment.Trajectory) Summary {
	scores := make([]float64, len(results))
	maxScores := make([]float64, len(results))
	for i, r := range results {
		scores[i] = r.Score
		maxScores[i] = r.MaxScore
	}
	total := floats.Sum(scores)
	maxPossible := floats.Sum(maxScores)

	avg := trajectory.Mean()
	adjusted := math.Max(0, math.Min(total+avg*SentimentWeight, maxPossible))
	percent := 0.0
	if maxPossible > 0 {
		percent = adjusted / maxPossible * 100
	}
	return Summary{
		TotalScore:   sop.Round2(adjusted),
		FinalScore:   sop.Round2(percent),
		Percentage:   sop.Round2(percent),
		AvgSentiment: sop.Round2(avg),
		Grade:        GradeFor(percent),
	}
}

// GradeFor maps a percent to a letter grade.
func GradeFor(percent float64) string {
	for _, band := range gradeBands {
		if percent >= band.min {
			return band.grade
		}
	}
	return "D"
}
