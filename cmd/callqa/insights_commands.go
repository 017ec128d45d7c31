package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"callqa/internal/config"
	"callqa/internal/insights"
	"callqa/internal/records"
)

func newInsightsCommand(ctx *commandContext) *cobra.Command {
	var region string
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "insights",
		Short: "Summarize scores and common SOP failures",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(_ *config.Config, store *records.Store) error {
				recs, err := store.ListAll(cmd.Context())
				if err != nil {
					return err
				}
				result := insights.Aggregate(recs, strings.TrimSpace(region))
				if jsonOutput {
					return writeJSON(cmd, result)
				}
				printInsights(cmd, result)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&region, "region", "", "Limit to one region")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")
	return cmd
}

func printInsights(cmd *cobra.Command, result insights.Insights) {
	out := cmd.OutOrStdout()
	colorize := shouldColorize(out)
	for _, line := range renderSectionHeader("Insights: "+result.Region, colorize) {
		fmt.Fprintln(out, line)
	}
	fmt.Fprintln(out, renderStatusLine("Calls", statusInfo, strconv.Itoa(result.TotalCalls), colorize))
	if result.TotalCalls == 0 {
		return
	}
	fmt.Fprintln(out, renderStatusLine("Average score", statusInfo, formatScore(result.AverageScore)+"%", colorize))
	fmt.Fprintln(out, renderStatusLine("SOP pass rate", statusInfo, formatScore(result.SOPPassRate)+"%", colorize))

	if len(result.CommonSOPFailures) > 0 {
		rows := make([][]string, 0, len(result.CommonSOPFailures))
		for _, f := range result.CommonSOPFailures {
			rows = append(rows, []string{f.Step, strconv.Itoa(f.Count), strconv.FormatFloat(f.Percentage, 'f', 1, 64) + "%"})
		}
		fmt.Fprintln(out)
		fmt.Fprintln(out, renderTable([]column{textCol("Failed step"), numCol("Calls"), numCol("Share")}, rows))
	}

	rows := make([][]string, 0, len(result.RecentCallsSummary))
	for _, c := range result.RecentCallsSummary {
		rows = append(rows, []string{c.CallID, dashIfEmpty(c.Date), formatScore(c.Score)})
	}
	fmt.Fprintln(out)
	fmt.Fprintln(out, renderTable([]column{textCol("Recent call"), textCol("Date"), numCol("Score")}, rows))
}

func newCoachingCommand(ctx *commandContext) *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "coaching",
		Short: "List calls that need supervisor follow-up, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(_ *config.Config, store *records.Store) error {
				recs, err := store.ListAll(cmd.Context())
				if err != nil {
					return err
				}
				needs := insights.CoachingNeeds(recs)
				if jsonOutput {
					return writeJSON(cmd, needs)
				}
				out := cmd.OutOrStdout()
				if len(needs) == 0 {
					fmt.Fprintln(out, "No calls need coaching")
					return nil
				}
				rows := make([][]string, 0, len(needs))
				for _, n := range needs {
					rows = append(rows, []string{
						n.CallID,
						dashIfEmpty(n.Date),
						n.Region,
						formatScore(n.Score),
						n.ProblemTitle,
						strings.Join(n.Tags, ", "),
					})
				}
				fmt.Fprintln(out, renderTable(
					[]column{textCol("Call ID"), textCol("Date"), textCol("Region"), numCol("Score"), wideCol("Problem", 80), textCol("Tags")},
					rows,
				))
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")
	return cmd
}
