package main

import (
	"fmt"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"callqa/internal/config"
	"callqa/internal/logging"
	"callqa/internal/pipeline"
	"callqa/internal/records"
	"callqa/internal/services/whisperx"
)

type callFlags struct {
	region     string
	userID     string
	email      string
	name       string
	sopID      string
	rulesPath  string
	jsonOutput bool
}

func (f *callFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.region, "region", "", "Region recorded with the call")
	cmd.Flags().StringVar(&f.userID, "user-id", "", "Agent user ID")
	cmd.Flags().StringVar(&f.email, "email", "", "Agent email")
	cmd.Flags().StringVar(&f.name, "name", "", "Agent name")
	cmd.Flags().StringVar(&f.sopID, "sop-id", "", "SOP whose policy text guides the judge")
	cmd.Flags().StringVar(&f.rulesPath, "rules", "", "Score against this rules file instead of paths.rules_path")
	cmd.Flags().BoolVar(&f.jsonOutput, "json", false, "Output the call record as JSON")
}

func (f *callFlags) request(path string) pipeline.Request {
	return pipeline.Request{
		AudioPath:  path,
		Region:     strings.TrimSpace(f.region),
		UserID:     strings.TrimSpace(f.userID),
		Email:      strings.TrimSpace(f.email),
		Name:       strings.TrimSpace(f.name),
		SOPID:      strings.TrimSpace(f.sopID),
		SourceName: filepath.Base(path),
	}
}

func newAnalyzeCommand(ctx *commandContext) *cobra.Command {
	var flags callFlags
	var long bool
	var dryRun bool

	cmd := &cobra.Command{
		Use:   "analyze <audio>...",
		Short: "Transcribe and score call recordings",
		Long: "Transcribe each recording with WhisperX, score it against the SOP checklist, and store the call record.\n" +
			"Several recordings are processed concurrently, bounded by workflow.max_concurrent_calls.",
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			rules, err := loadRules(cfg, flags.rulesPath)
			if err != nil {
				return err
			}
			logger, err := ctx.fileLogger(cfg)
			if err != nil {
				return err
			}

			reqs := make([]pipeline.Request, 0, len(args))
			for _, arg := range args {
				path, err := config.ExpandPath(arg)
				if err != nil {
					return err
				}
				req := flags.request(path)
				req.Long = long
				reqs = append(reqs, req)
			}

			return ctx.withStore(func(cfg *config.Config, store *records.Store) error {
				if dryRun {
					store = nil
				}
				svc, err := buildServices(cfg, rules, store, logger)
				if err != nil {
					return err
				}
				started := time.Now()
				results := svc.evaluator.RunBatch(cmd.Context(), reqs)
				if store != nil && len(results) > 1 {
					failed := 0
					for _, res := range results {
						if res.Err != nil {
							failed++
						}
					}
					if err := svc.notifier.NotifyBatchCompleted(cmd.Context(), len(results)-failed, failed, time.Since(started)); err != nil {
						logger.Warn("batch notification failed", logging.Error(err))
					}
				}
				return reportBatch(cmd, results, flags.jsonOutput)
			})
		},
	}
	flags.register(cmd)
	cmd.Flags().BoolVar(&long, "long", false, "Trim silence before transcription (long-call mode)")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "Score without storing the call record")
	return cmd
}

func reportBatch(cmd *cobra.Command, results []pipeline.BatchResult, jsonOutput bool) error {
	out := cmd.OutOrStdout()
	failed := 0
	recs := make([]records.CallRecord, 0, len(results))
	rows := make([][]string, 0, len(results))
	for _, res := range results {
		if res.Err != nil {
			failed++
			fmt.Fprintf(cmd.ErrOrStderr(), "%s: %v\n", res.Request.SourceName, res.Err)
			continue
		}
		recs = append(recs, res.Record)
		rows = append(rows, []string{
			res.Record.CallID,
			res.Request.SourceName,
			formatScore(res.Record.FinalScore()),
			res.Record.Evaluation.Scoring.Grade,
			strconv.Itoa(len(res.Record.SupervisorAlerts)),
		})
	}

	switch {
	case jsonOutput && len(results) == 1 && len(recs) == 1:
		if err := writeJSON(cmd, recs[0]); err != nil {
			return err
		}
	case jsonOutput:
		if err := writeJSON(cmd, recs); err != nil {
			return err
		}
	case len(results) == 1 && len(recs) == 1:
		printRecord(out, recs[0], shouldColorize(out))
	case len(rows) > 0:
		fmt.Fprintln(out, renderTable(
			[]column{textCol("Call ID"), textCol("Source"), numCol("Score"), textCol("Grade"), numCol("Alerts")},
			rows,
		))
	}

	if failed > 0 {
		return fmt.Errorf("%d of %d calls failed", failed, len(results))
	}
	return nil
}

func newEvaluateCommand(ctx *commandContext) *cobra.Command {
	var flags callFlags
	var dryRun bool

	cmd := &cobra.Command{
		Use:   "evaluate <transcript.json>",
		Short: "Score an existing WhisperX transcript without speech-to-text",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			rules, err := loadRules(cfg, flags.rulesPath)
			if err != nil {
				return err
			}
			logger, err := ctx.fileLogger(cfg)
			if err != nil {
				return err
			}
			path, err := config.ExpandPath(args[0])
			if err != nil {
				return err
			}
			tr, err := whisperx.LoadTranscription(path)
			if err != nil {
				return fmt.Errorf("load transcript: %w", err)
			}

			return ctx.withStore(func(cfg *config.Config, store *records.Store) error {
				if dryRun {
					store = nil
				}
				svc, err := buildServices(cfg, rules, store, logger)
				if err != nil {
					return err
				}
				rec, err := svc.evaluator.EvaluateTranscript(cmd.Context(), tr, flags.request(path))
				if err != nil {
					return err
				}
				if flags.jsonOutput {
					return writeJSON(cmd, rec)
				}
				out := cmd.OutOrStdout()
				printRecord(out, rec, shouldColorize(out))
				return nil
			})
		},
	}
	flags.register(cmd)
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "Score without storing the call record")
	return cmd
}
