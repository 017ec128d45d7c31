package pipeline

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"callqa/internal/judge"
	"callqa/internal/logging"
	"callqa/internal/records"
	"callqa/internal/scoring"
	"callqa/internal/sentiment"
	"callqa/internal/services"
	"callqa/internal/sop"
	"callqa/internal/transcript"
)

// Run evaluates the audio at req.AudioPath and appends the record.
func (e *Evaluator) Run(ctx context.Context, req Request) (records.CallRecord, error) {
	if e.transcriber == nil {
		return records.CallRecord{}, services.Wrap(services.ErrConfiguration, "pipeline", "run", "no transcriber configured", nil)
	}
	if _, err := os.Stat(req.AudioPath); err != nil {
		return records.CallRecord{}, services.Wrap(services.ErrValidation, "pipeline", "run", "audio file unavailable", err)
	}

	callID := records.NewCallID()
	ctx = services.WithCallID(ctx, callID)
	started := time.Now()
	logging.WithContext(ctx, e.logger).Info("call evaluation started",
		logging.String(logging.FieldEventType, "call_start"),
		logging.String("source_file", req.sourceName()),
		logging.Bool("long_call", req.Long),
	)

	audioPath, meta, cleanup := e.compact(ctx, callID, req)
	defer cleanup()

	tr, err := e.transcribe(ctx, audioPath)
	if err != nil {
		return records.CallRecord{}, err
	}
	if len(tr.Turns) == 0 && e.diarizer != nil {
		tr.Turns = e.diarize(ctx, audioPath)
	}

	meta.SourceFile = req.sourceName()
	rec, err := e.score(ctx, callID, tr, meta, req)
	if err != nil {
		return records.CallRecord{}, err
	}
	logging.WithContext(ctx, e.logger).Info("call evaluation completed",
		logging.String(logging.FieldEventType, "call_complete"),
		logging.Score(rec.FinalScore()),
		logging.String("grade", rec.Evaluation.Scoring.Grade),
		logging.Duration("elapsed", time.Since(started)),
	)
	return rec, nil
}

// EvaluateTranscript scores an existing transcription. Speaker turns carried
// by tr are aligned; no audio stage runs.
func (e *Evaluator) EvaluateTranscript(ctx context.Context, tr transcript.Transcription, req Request) (records.CallRecord, error) {
	callID := records.NewCallID()
	ctx = services.WithCallID(ctx, callID)
	meta := records.Metadata{SourceFile: req.sourceName()}
	return e.score(ctx, callID, tr, meta, req)
}

// compact trims silence when the call is long. It returns the audio path to
// transcribe and a cleanup func that removes any scratch file.
func (e *Evaluator) compact(ctx context.Context, callID string, req Request) (string, records.Metadata, func()) {
	meta := records.Metadata{}
	noop := func() {}
	if e.compactor == nil || (!req.Long && !e.compaction.Enabled) {
		return req.AudioPath, meta, noop
	}
	ctx, logger := e.stage(ctx, "compaction")

	if !req.Long {
		duration, err := e.compactor.Duration(ctx, req.AudioPath)
		if err != nil {
			logging.WarnWithContext(logger, "could not measure call duration", "compaction_skipped",
				logging.Error(err),
				logging.String(logging.FieldImpact, "call is evaluated without silence trimming"),
			)
			return req.AudioPath, meta, noop
		}
		if duration <= e.compaction.MinDuration {
			logger.Debug("call below long-call threshold",
				logging.Seconds("duration_seconds", duration),
				logging.Seconds("threshold_seconds", e.compaction.MinDuration),
			)
			return req.AudioPath, meta, noop
		}
	}

	dest := filepath.Join(e.workDir, callID+"_compacted.wav")
	result, err := e.compactor.CompactFile(ctx, req.AudioPath, dest)
	if err != nil {
		logging.WarnWithContext(logger, "silence compaction failed", "compaction_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check that ffmpeg is installed and can read the file"),
			logging.String(logging.FieldImpact, "call is evaluated without silence trimming"),
		)
		_ = os.Remove(dest)
		return req.AudioPath, meta, noop
	}
	meta.LongCall = true
	meta.OriginalDuration = sop.Round2(result.OriginalDuration)
	if !result.OK {
		return req.AudioPath, meta, noop
	}
	meta.TrimmedDuration = sop.Round2(result.TrimmedDuration())
	return dest, meta, func() { _ = os.Remove(dest) }
}

func (e *Evaluator) transcribe(ctx context.Context, path string) (transcript.Transcription, error) {
	ctx, logger := e.stage(ctx, "transcription")
	if e.stageTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.stageTimeout)
		defer cancel()
	}
	logger.Debug("transcription started")
	tr, err := e.transcriber.Transcribe(ctx, path)
	if err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return tr, services.Wrap(services.ErrTimeout, "transcription", "transcribe", fmt.Sprintf("exceeded %s", e.stageTimeout), err)
		}
		logger.Error("transcription failed",
			logging.String(logging.FieldEventType, "transcription_failed"),
			logging.Error(err),
		)
		return tr, services.Wrap(services.ErrExternalTool, "transcription", "transcribe", "speech to text failed", err)
	}
	return tr, nil
}

func (e *Evaluator) diarize(ctx context.Context, path string) []transcript.SpeakerTurn {
	ctx, logger := e.stage(ctx, "diarization")
	turns, err := e.diarizer.Diarize(ctx, path)
	if err != nil {
		logging.WarnWithContext(logger, "diarization failed", "diarization_failed",
			logging.Error(err),
			logging.String(logging.FieldImpact, "speakers are labelled Unknown"),
		)
		return nil
	}
	return turns
}

// score runs every text stage on tr and appends the resulting record.
func (e *Evaluator) score(ctx context.Context, callID string, tr transcript.Transcription, meta records.Metadata, req Request) (records.CallRecord, error) {
	segments := transcript.Normalize(tr.Segments)
	transcript.Align(segments, tr.Turns)

	mapping := e.identifySpeakers(ctx, segments)
	transcript.ApplySpeakerMapping(segments, mapping)
	segments = transcript.Clean(segments)
	if segments == nil {
		segments = []transcript.Segment{}
	}
	segmented := transcript.SplitPhases(segments)

	trajectory := sentiment.Trajectory{}
	if e.sentiment != nil {
		sctx, _ := e.stage(ctx, "sentiment")
		trajectory = e.sentiment.Trajectory(sctx, segments)
	}

	rules := req.rulesOr(e.rules)
	policy := e.policy(ctx, req.SOPID)
	sctx, logger := e.stage(ctx, "scoring")
	assessment := e.scorer.Assess(sctx, rules, segments, policy)
	summary := scoring.Finalize(assessment.Results, trajectory)

	meta.Language = tr.Language
	meta.LanguageProbability = tr.LanguageProbability
	meta.Duration = tr.Duration
	meta.Region = req.Region
	meta.SOPID = req.SOPID

	rec := records.CallRecord{
		CallID:         callID,
		Timestamp:      records.Timestamp(e.now()),
		Metadata:       meta,
		Transcript:     segments,
		SegmentSummary: segmented.Summary(),
		Evaluation: records.Evaluation{
			SOPAdherence:  assessment.Results,
			Resolution:    assessment.Resolution,
			RisksDetected: assessment.Risks,
			Scoring:       summary,
		},
		CoachingInsights: scoring.CoachingNotes(assessment.Results),
		SupervisorAlerts: scoring.Alerts(assessment.Results, assessment.Risks, summary),
		UserID:           req.UserID,
		Email:            req.Email,
		Name:             req.Name,
		SpeakerMapping:   mapping,
	}
	logger.Debug("call scored",
		logging.Bool("judged", assessment.Judged),
		logging.Int("segments", len(segments)),
		logging.Int("sentiment_points", len(trajectory)),
	)

	if e.store != nil {
		stored, err := e.store.Append(ctx, rec)
		if err != nil {
			return records.CallRecord{}, fmt.Errorf("store call record: %w", err)
		}
		rec = stored
	}
	e.notify(ctx, rec)
	return rec, nil
}

func (e *Evaluator) identifySpeakers(ctx context.Context, segments []transcript.Segment) map[string]string {
	if e.speakers == nil {
		return map[string]string{}
	}
	ctx, logger := e.stage(ctx, "speakers")
	mapping, err := e.speakers.IdentifySpeakers(ctx, segments)
	if err != nil {
		logging.WarnWithContext(logger, "speaker role identification failed", "speaker_mapping_failed",
			logging.Error(err),
			logging.String(logging.FieldImpact, "diarization labels are kept as-is"),
		)
		return map[string]string{}
	}
	if mapping == nil {
		mapping = map[string]string{}
	}
	return mapping
}

func (e *Evaluator) policy(ctx context.Context, sopID string) string {
	if e.policiesDir == "" {
		return ""
	}
	text, err := judge.LoadPolicy(e.policiesDir, sopID)
	if err != nil {
		logging.WarnWithContext(logging.WithContext(ctx, e.logger), "policy unavailable", "policy_load_failed",
			logging.String("sop_id", sopID),
			logging.Error(err),
			logging.String(logging.FieldImpact, "judge runs without policy constraints"),
		)
		return ""
	}
	return text
}

// notify forwards supervisor alerts. Delivery failures never fail the call.
func (e *Evaluator) notify(ctx context.Context, rec records.CallRecord) {
	if e.notifier == nil || len(rec.SupervisorAlerts) == 0 {
		return
	}
	if err := e.notifier.NotifyAlerts(ctx, rec); err != nil {
		logging.WarnWithContext(logging.WithContext(ctx, e.logger), "alert notification failed", "notification_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check notifications.ntfy_topic"),
			logging.String(logging.FieldImpact, "supervisors are not paged for this call"),
		)
	}
}
