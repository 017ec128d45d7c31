package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"callqa/internal/language"
	"callqa/internal/records"
	"callqa/internal/sop"
)

// writeJSON encodes v as indented JSON to the command's stdout.
func writeJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func formatScore(v float64) string {
	return strconv.FormatFloat(v, 'f', 2, 64)
}

func formatSeconds(v float64) string {
	if v <= 0 {
		return "-"
	}
	return strconv.FormatFloat(v, 'f', 1, 64) + "s"
}

func dashIfEmpty(s string) string {
	if strings.TrimSpace(s) == "" {
		return "-"
	}
	return s
}

func statusKindFor(status sop.Status) statusKind {
	switch status {
	case sop.StatusPass:
		return statusOK
	case sop.StatusPartial:
		return statusWarn
	default:
		return statusError
	}
}

func callRows(recs []records.CallRecord) [][]string {
	rows := make([][]string, 0, len(recs))
	for _, rec := range recs {
		rows = append(rows, []string{
			rec.CallID,
			dashIfEmpty(rec.Timestamp),
			dashIfEmpty(rec.Metadata.Region),
			dashIfEmpty(rec.UserID),
			formatScore(rec.FinalScore()),
			dashIfEmpty(rec.Evaluation.Scoring.Grade),
		})
	}
	return rows
}

func renderCallTable(recs []records.CallRecord) string {
	return renderTable(
		[]column{textCol("Call ID"), textCol("Date"), textCol("Region"), textCol("User"), numCol("Score"), textCol("Grade")},
		callRows(recs),
	)
}

// printRecord writes the human-readable form of one call record.
func printRecord(out io.Writer, rec records.CallRecord, colorize bool) {
	summary := rec.Evaluation.Scoring
	for _, line := range renderSectionHeader("Call "+rec.CallID, colorize) {
		fmt.Fprintln(out, line)
	}
	fmt.Fprintln(out, renderStatusLine("Source", statusInfo, dashIfEmpty(rec.Metadata.SourceFile), colorize))
	fmt.Fprintln(out, renderStatusLine("Recorded", statusInfo, dashIfEmpty(rec.Timestamp), colorize))
	fmt.Fprintln(out, renderStatusLine("Region", statusInfo, dashIfEmpty(rec.Metadata.Region), colorize))
	duration := formatSeconds(rec.Metadata.Duration)
	if rec.Metadata.LongCall {
		duration = fmt.Sprintf("%s (long call, original %s)", duration, formatSeconds(rec.Metadata.OriginalDuration))
	}
	fmt.Fprintln(out, renderStatusLine("Duration", statusInfo, duration, colorize))
	fmt.Fprintln(out, renderStatusLine("Language", statusInfo, language.Describe(rec.Metadata.Language, rec.Metadata.LanguageProbability), colorize))
	fmt.Fprintln(out, renderStatusLine("Score", gradeKind(summary.Grade), fmt.Sprintf("%s%% (%s)", formatScore(summary.FinalScore), dashIfEmpty(summary.Grade)), colorize))
	fmt.Fprintln(out, renderStatusLine("Sentiment", statusInfo, formatScore(summary.AvgSentiment), colorize))
	res := rec.Evaluation.Resolution
	fmt.Fprintln(out, renderStatusLine("Resolution", statusKindFor(res.Status), string(res.Status)+" "+res.Reason, colorize))

	if len(rec.Evaluation.SOPAdherence) > 0 {
		fmt.Fprintln(out)
		fmt.Fprintln(out, renderTable(
			[]column{textCol("Section"), textCol("Step"), textCol("Status"), wideCol("Reason", 80)},
			stepRows(rec.Evaluation.SOPAdherence),
		))
	}
	printList(out, "Coaching", rec.CoachingInsights, statusInfo, colorize)
	printList(out, "Alerts", rec.SupervisorAlerts, statusWarn, colorize)
}

func stepRows(results sop.Results) [][]string {
	var rows [][]string
	for _, section := range results {
		label := fmt.Sprintf("%s (%s/%s)", section.Name, formatScore(section.Score), formatScore(section.MaxScore))
		for i, step := range section.Steps {
			name := ""
			if i == 0 {
				name = label
			}
			rows = append(rows, []string{name, step.Step, string(step.Status), step.Reason})
		}
	}
	return rows
}

func printList(out io.Writer, title string, items []string, kind statusKind, colorize bool) {
	if len(items) == 0 {
		return
	}
	fmt.Fprintln(out)
	for _, line := range renderSectionHeader(title, colorize) {
		fmt.Fprintln(out, line)
	}
	for _, item := range items {
		fmt.Fprintln(out, renderStatusLine(title, kind, item, colorize))
	}
}

func gradeKind(grade string) statusKind {
	switch grade {
	case "A+", "A", "B":
		return statusOK
	case "C":
		return statusWarn
	case "":
		return statusInfo
	default:
		return statusError
	}
}
