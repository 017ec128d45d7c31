package main

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"callqa/internal/config"
	"callqa/internal/judge"
	"callqa/internal/sop"
)

func newSOPCommand(ctx *commandContext) *cobra.Command {
	sopCmd := &cobra.Command{
		Use:   "sop",
		Short: "Inspect and author the SOP checklist",
	}
	sopCmd.AddCommand(newSOPShowCommand(ctx))
	sopCmd.AddCommand(newSOPIntentsCommand(ctx))
	sopCmd.AddCommand(newSOPSuggestCommand(ctx))
	sopCmd.AddCommand(newSOPPolicyCommand(ctx))
	return sopCmd
}

func newSOPShowCommand(ctx *commandContext) *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "show",
		Short: "Show the active checklist and risk keywords",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			rules, err := loadRules(cfg, "")
			if err != nil {
				return err
			}
			if jsonOutput {
				return writeJSON(cmd, rules)
			}
			out := cmd.OutOrStdout()
			fmt.Fprintln(out, renderTable(
				[]column{textCol("Section"), numCol("Weight"), numCol("#"), textCol("Step"), wideCol("Intent", 80)},
				checklistRows(rules.Checklist),
			))
			if len(rules.RiskKeywords) > 0 {
				fmt.Fprintf(out, "Risk keywords: %s\n", strings.Join(rules.RiskKeywords, ", "))
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")
	return cmd
}

func checklistRows(checklist sop.Checklist) [][]string {
	var rows [][]string
	for _, section := range checklist {
		for i, step := range section.Steps {
			name, weight := "", ""
			if i == 0 {
				name, weight = section.Name, formatScore(section.Weight)
			}
			rows = append(rows, []string{name, weight, strconv.Itoa(i + 1), step.Text, dashIfEmpty(step.InternalIntent)})
		}
	}
	return rows
}

func newSOPIntentsCommand(ctx *commandContext) *cobra.Command {
	var dryRun bool

	cmd := &cobra.Command{
		Use:   "intents",
		Short: "Fill missing step intents with the LLM and save the rules file",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			rules, err := loadRules(cfg, "")
			if err != nil {
				return err
			}
			llmJudge, err := configuredJudge(ctx, cfg)
			if err != nil {
				return err
			}
			checklist, filled := llmJudge.FillIntents(cmd.Context(), rules.Checklist)
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Filled %d step intents\n", filled)
			if dryRun || filled == 0 {
				return writeJSON(cmd, rules.WithChecklist(checklist))
			}
			if err := sop.Save(cfg.Paths.RulesPath, rules.WithChecklist(checklist)); err != nil {
				return err
			}
			fmt.Fprintf(out, "Saved %s\n", cfg.Paths.RulesPath)
			return nil
		},
	}
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "Print the updated rules instead of saving them")
	return cmd
}

func newSOPSuggestCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "suggest <instruction>...",
		Short: "Draft an intent and script line for a new step",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			llmJudge, err := configuredJudge(ctx, cfg)
			if err != nil {
				return err
			}
			suggestion, err := llmJudge.SuggestStep(cmd.Context(), strings.Join(args, " "))
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Intent:     %s\n", suggestion.Intent)
			fmt.Fprintf(out, "Suggestion: %s\n", suggestion.Suggestion)
			return nil
		},
	}
}

func newSOPPolicyCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "policy <sop-id> <policy.txt>",
		Short: "Store policy text the judge applies to calls with this SOP ID",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			path, err := config.ExpandPath(args[1])
			if err != nil {
				return err
			}
			text, err := os.ReadFile(path)
			if err != nil {
				return fmt.Errorf("read policy: %w", err)
			}
			policy, err := judge.SavePolicy(cfg.Paths.PoliciesDir, args[0], string(text))
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Saved policy %s (%d chunks) to %s\n",
				policy.SOPID, len(policy.Chunks), judge.PolicyPath(cfg.Paths.PoliciesDir, policy.SOPID))
			return nil
		},
	}
}

func configuredJudge(ctx *commandContext, cfg *config.Config) (*judge.LLMJudge, error) {
	logger, err := ctx.fileLogger(cfg)
	if err != nil {
		return nil, err
	}
	client, llmJudge := newLLMJudge(cfg, logger)
	if !client.Configured() {
		return nil, errors.New("llm.api_key is not set (or export CALLQA_LLM_API_KEY)")
	}
	return llmJudge, nil
}
