package main

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"callqa/internal/audio"
	"callqa/internal/config"
	"callqa/internal/judge"
	"callqa/internal/notifications"
	"callqa/internal/pipeline"
	"callqa/internal/preflight"
	"callqa/internal/records"
	"callqa/internal/sentiment"
	"callqa/internal/services/llm"
	"callqa/internal/services/whisperx"
	"callqa/internal/sop"
)

// callServices bundles the collaborators built from one config.
type callServices struct {
	client    *llm.Client
	judge     *judge.LLMJudge
	notifier  notifications.Service
	evaluator *pipeline.Evaluator
}

func newLLMJudge(cfg *config.Config, logger *slog.Logger) (*llm.Client, *judge.LLMJudge) {
	client := llm.NewClient(preflight.LLMConfig(cfg.LLM), llm.WithLogger(logger))
	return client, judge.New(client, logger)
}

func workDir(cfg *config.Config) string {
	return filepath.Join(cfg.Paths.DataDir, "work")
}

// buildServices wires the evaluator the way analyze, evaluate, and serve use
// it. store may be nil to skip persistence; dry runs also page nobody.
func buildServices(cfg *config.Config, rules sop.Rules, store *records.Store, logger *slog.Logger) (callServices, error) {
	if err := os.MkdirAll(workDir(cfg), 0o755); err != nil {
		return callServices{}, fmt.Errorf("create work directory: %w", err)
	}
	client, llmJudge := newLLMJudge(cfg, logger)

	whisper := whisperx.NewService(whisperx.Config{
		Model:       cfg.Transcription.WhisperXModel,
		CUDAEnabled: cfg.Transcription.CUDAEnabled,
		VADMethod:   cfg.Transcription.VADMethod,
		HFToken:     cfg.Transcription.HFToken,
		Diarize:     cfg.Transcription.Diarize,
		Task:        cfg.Transcription.Task,
	}, cfg.FFmpegBinary(), cfg.UVXBinary(), workDir(cfg), logger)

	compactor := audio.NewCompactor(cfg.FFmpegBinary(), audio.CompactOptions{
		TopDB:      cfg.Compaction.TopDB,
		KeepBefore: cfg.Compaction.KeepBeforeSeconds,
		KeepAfter:  cfg.Compaction.KeepAfterSeconds,
	}, logger)

	opts := []pipeline.Option{
		pipeline.WithTranscriber(whisper),
		pipeline.WithSpeakerIdentifier(llmJudge),
		pipeline.WithCompactor(compactor, pipeline.Compaction{
			Enabled:     cfg.Compaction.Enabled,
			MinDuration: cfg.Compaction.MinDurationSeconds,
		}),
		pipeline.WithPoliciesDir(cfg.Paths.PoliciesDir),
		pipeline.WithWorkDir(workDir(cfg)),
		pipeline.WithStageTimeout(time.Duration(cfg.Workflow.StageTimeoutSecs) * time.Second),
		pipeline.WithMaxParallel(cfg.Workflow.MaxConcurrentCalls),
		pipeline.WithLogger(logger),
	}
	if whisper.DiarizationAvailable() {
		opts = append(opts, pipeline.WithDiarizer(whisper))
	}
	if cfg.Sentiment.Enabled {
		opts = append(opts, pipeline.WithSentiment(sentiment.NewAnalyzer(sentiment.NewLLMClassifier(client), logger)))
	}
	notifier := notifications.NewService(cfg)
	if store != nil {
		opts = append(opts, pipeline.WithStore(store), pipeline.WithNotifier(notifier))
	}

	return callServices{
		client:    client,
		judge:     llmJudge,
		notifier:  notifier,
		evaluator: pipeline.New(sop.NewScorer(llmJudge, logger), rules, opts...),
	}, nil
}
