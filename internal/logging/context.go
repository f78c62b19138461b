package logging

import (
	"context"
	"log/slog"

	"voxdub/internal/services"
)

const (
	// FieldComponent is the standardized structured logging key for component names.
	FieldComponent = "component"
	// FieldJobID is the standardized structured logging key for dubbing job identifiers.
	FieldJobID = "job_id"
	// FieldStage is the standardized structured logging key for pipeline stage names.
	FieldStage = "stage"
	// FieldProvider is the standardized structured logging key for TTS provider names.
	FieldProvider = "provider"
	// FieldCorrelationID is the standardized structured logging key for request correlation identifiers.
	FieldCorrelationID = "correlation_id"
	// FieldEventType classifies a log line for filtering (e.g. "stage_complete").
	FieldEventType = "event_type"
	// FieldErrorHint carries the operator's next step for warnings and errors.
	FieldErrorHint = "error_hint"
	// FieldImpact is the standardized key for user-facing consequence of a warning.
	FieldImpact = "impact"
	// FieldProgressPercent is the job progress at the time of the log line.
	FieldProgressPercent = "progress_percent"
	// FieldProgressMessage is the user-facing stage label.
	FieldProgressMessage = "progress_message"
	// FieldAlert flags warnings or anomalies that should stand out in structured logs.
	FieldAlert = "alert"
)

var contextFields = []struct {
	key    string
	lookup func(context.Context) (string, bool)
}{
	{FieldJobID, services.JobIDFromContext},
	{FieldStage, services.StageFromContext},
	{FieldProvider, services.ProviderFromContext},
	{FieldCorrelationID, services.RequestIDFromContext},
}

// ContextFields returns the job, stage, provider and correlation attributes
// recorded on ctx.
func ContextFields(ctx context.Context) []slog.Attr {
	if ctx == nil {
		return nil
	}
	var fields []slog.Attr
	for _, f := range contextFields {
		if value, ok := f.lookup(ctx); ok {
			fields = append(fields, slog.String(f.key, value))
		}
	}
	return fields
}

// WithContext scopes logger to the fields recorded on ctx.
func WithContext(ctx context.Context, logger *slog.Logger) *slog.Logger {
	if logger == nil {
		logger = NewNop()
	}
	if fields := ContextFields(ctx); len(fields) > 0 {
		return logger.With(toArgs(fields)...)
	}
	return logger
}
