package insights

import (
	"math"
	"slices"

	"gonum.org/v1/gonum/stat"

	"callqa/internal/records"
	"callqa/internal/sop"
)

// AllRegions labels unfiltered insights.
const AllRegions = "All Regions"

const (
	topFailures = 5
	recentCalls = 5
)

// Failure counts how often a step failed across calls.
type Failure struct {
	Step       string  `json:"step"`
	Count      int     `json:"count"`
	Percentage float64 `json:"percentage"`
}

// CallSummary is the reduced form of a recent call.
type CallSummary struct {
	CallID string  `json:"call_id"`
	Score  float64 `json:"score"`
	Date   string  `json:"date"`
}

// Insights is the aggregate view over a set of calls.
type Insights struct {
	Region             string        `json:"region"`
	TotalCalls         int           `json:"total_calls"`
	AverageScore       float64       `json:"average_score"`
	SOPPassRate        float64       `json:"sop_pass_rate"`
	CommonSOPFailures  []Failure     `json:"common_sop_failures"`
	RecentCallsSummary []CallSummary `json:"recent_calls_summary"`
}

// Aggregate computes insights for the records in region. An empty region
// means all records.
func Aggregate(recs []records.CallRecord, region string) Insights {
	out := Insights{
		Region:             region,
		CommonSOPFailures:  []Failure{},
		RecentCallsSummary: []CallSummary{},
	}
	if region == "" {
		out.Region = AllRegions
	}

	calls := recs
	if region != "" {
		calls = nil
		for _, rec := range recs {
			if rec.Metadata.Region == region {
				calls = append(calls, rec)
			}
		}
	}
	if len(calls) == 0 {
		return out
	}

	total := len(calls)
	scores := make([]float64, 0, total)
	passed := 0
	counts := map[string]int{}
	var order []string
	for _, rec := range calls {
		scores = append(scores, rec.FinalScore())
		failed := failedSteps(rec.Evaluation.SOPAdherence)
		if len(failed) == 0 {
			passed++
		}
		for _, step := range failed {
			if _, seen := counts[step]; !seen {
				order = append(order, step)
			}
			counts[step]++
		}
	}

	out.TotalCalls = total
	out.AverageScore = sop.Round2(stat.Mean(scores, nil))
	out.SOPPassRate = sop.Round2(float64(passed) / float64(total) * 100)

	slices.SortStableFunc(order, func(a, b string) int {
		return counts[b] - counts[a]
	})
	for _, step := range order[:min(topFailures, len(order))] {
		out.CommonSOPFailures = append(out.CommonSOPFailures, Failure{
			Step:       step,
			Count:      counts[step],
			Percentage: round1(float64(counts[step]) / float64(total) * 100),
		})
	}

	for _, rec := range calls[max(0, total-recentCalls):] {
		out.RecentCallsSummary = append(out.RecentCallsSummary, CallSummary{
			CallID: rec.CallID,
			Score:  rec.FinalScore(),
			Date:   rec.Timestamp,
		})
	}
	return out
}

// failedSteps lists FAIL step names in section order. Unnamed steps count
// as "Unknown Step".
func failedSteps(results sop.Results) []string {
	var out []string
	for _, section := range results {
		for _, step := range section.Steps {
			if step.Status != sop.StatusFail {
				continue
			}
			name := step.Step
			if name == "" {
				name = "Unknown Step"
			}
			out = append(out, name)
		}
	}
	return out
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}
