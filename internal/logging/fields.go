package logging

import (
	"log/slog"
	"math"
	"time"
)

const (
	// FieldComponent names the package or service that emitted the line.
	FieldComponent = "component"
	// FieldCallID identifies the call being evaluated.
	FieldCallID = "call_id"
	// FieldStage names the pipeline stage (compaction, transcription, scoring, ...).
	FieldStage = "stage"
	// FieldCorrelationID carries the API request ID.
	FieldCorrelationID = "correlation_id"
	// FieldEventType classifies a log line for filtering.
	FieldEventType = "event_type"
	// FieldErrorHint suggests the next step for the operator.
	FieldErrorHint = "error_hint"
	// FieldImpact is the user-facing consequence of a warning.
	FieldImpact = "impact"
	// FieldFinalScore is the weighted call score in percent.
	FieldFinalScore = "final_score"
)

// Attr aliases slog.Attr so callers need only this package.
type Attr = slog.Attr

func Bool(key string, value bool) Attr { return slog.Bool(key, value) }

func Duration(key string, value time.Duration) Attr { return slog.Duration(key, value) }

func Float64(key string, value float64) Attr { return slog.Float64(key, value) }

func Int(key string, value int) Attr { return slog.Int(key, value) }

func String(key string, value string) Attr { return slog.String(key, value) }

// Seconds records an audio length rounded to centiseconds.
func Seconds(key string, value float64) Attr {
	return slog.Float64(key, round2(value))
}

// Score records a final call score.
func Score(value float64) Attr {
	return slog.Float64(FieldFinalScore, round2(value))
}

func Error(err error) Attr {
	if err == nil {
		return slog.String("error", "<nil>")
	}
	return slog.Any("error", err)
}

// Args converts attrs into the variadic form slog.Logger methods accept.
func Args(attrs ...Attr) []any {
	args := make([]any, len(attrs))
	for i, attr := range attrs {
		args[i] = attr
	}
	return args
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

// warnDefaults are the fields every WARN line must carry.
var warnDefaults = []Attr{
	slog.String(FieldErrorHint, "see the call's log lines for the failing stage"),
	slog.String(FieldImpact, "call evaluation continued with degraded output"),
}

// WarnWithContext logs a warning tagged with eventType. Missing error_hint and
// impact fields fall back to generic values.
func WarnWithContext(logger *slog.Logger, msg, eventType string, attrs ...Attr) {
	if logger == nil {
		return
	}
	attrs = withDefault(attrs, slog.String(FieldEventType, eventType))
	for _, def := range warnDefaults {
		attrs = withDefault(attrs, def)
	}
	logger.Warn(msg, Args(attrs...)...)
}

func withDefault(attrs []Attr, def Attr) []Attr {
	for _, a := range attrs {
		if a.Key == def.Key {
			return attrs
		}
	}
	return append(attrs, def)
}
