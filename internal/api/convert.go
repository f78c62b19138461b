package api

import (
	"time"

	"voxdub/internal/deps"
	"voxdub/internal/job"
	"voxdub/internal/language"
	"voxdub/internal/logging"
	"voxdub/internal/tts"
	"voxdub/internal/voices"
)

// FromJob converts a job snapshot to its API representation.
func FromJob(j job.Job, now time.Time) JobView {
	dto := JobView{
		ID:     j.ID,
		Status: string(j.Status),
		Progress: JobProgress{
			Percent: j.Progress,
			Step:    j.CurrentStep,
		},
		SourceLanguage:      j.SourceLanguage,
		TargetLanguage:      j.TargetLanguage,
		ProviderRequested:   j.ProviderRequested,
		ProviderResolved:    j.ProviderResolved,
		VoiceID:             j.VoiceID,
		Emotion:             j.Emotion,
		Speed:               j.Speed,
		OriginalFilename:    j.OriginalFilename,
		SourceText:          j.SourceText,
		TranslatedText:      j.TranslatedText,
		TranslationFallback: j.TranslationFallback,
		ResultAvailable:     j.Status == job.StatusCompleted && j.OutputArtifact != "",
		ErrorMessage:        j.Error,
		CreatedAt:           formatTime(j.CreatedAt),
		StartedAt:           formatTime(j.StartedAt),
		CompletedAt:         formatTime(j.CompletedAt),
		FailedAt:            formatTime(j.FailedAt),
	}
	if d := j.Duration(now); d > 0 {
		dto.DurationSeconds = d.Round(time.Millisecond).Seconds()
	}
	return dto
}

// FromJobs converts a slice of jobs.
func FromJobs(jobs []job.Job, now time.Time) []JobView {
	out := make([]JobView, 0, len(jobs))
	for _, j := range jobs {
		out = append(out, FromJob(j, now))
	}
	return out
}

// CountsMap flattens job counts keyed by status string.
func CountsMap(c job.Counts) map[string]int {
	return map[string]int{
		"total":                       c.Total,
		string(job.StatusQueued):     c.Queued,
		string(job.StatusProcessing): c.Processing,
		string(job.StatusCompleted):  c.Completed,
		string(job.StatusFailed):     c.Failed,
	}
}

// FromProviderStatus converts registry output.
func FromProviderStatus(s tts.Status) ProviderView {
	return ProviderView{
		Name:               s.Name,
		DisplayName:        s.DisplayName,
		Available:          s.Available,
		Reason:             s.Reason,
		Current:            s.Current,
		Preferred:          s.Preferred,
		RequiresCredential: s.RequiresCredential,
		Capabilities:       s.Capabilities.Names(),
		Languages:          s.Languages,
		Emotions:           s.Emotions,
	}
}

// FromVoice converts a catalog entry. The audio path stays server-side.
func FromVoice(v voices.Voice) VoiceView {
	return VoiceView{
		ID:         v.ID,
		Name:       v.Name,
		Language:   v.Language,
		Transcript: v.Transcript,
		SizeBytes:  v.SizeBytes,
		Registered: v.Registered,
		CreatedAt:  formatTime(v.CreatedAt),
	}
}

// FromVoices converts a catalog listing.
func FromVoices(list []voices.Voice) []VoiceView {
	out := make([]VoiceView, 0, len(list))
	for _, v := range list {
		out = append(out, FromVoice(v))
	}
	return out
}

// Languages lists the dubbing targets.
func Languages() []LanguageView {
	supported := language.Supported()
	out := make([]LanguageView, 0, len(supported))
	for _, info := range supported {
		out = append(out, LanguageView{Code: info.Code, Name: info.Name, Native: info.Native})
	}
	return out
}

// FromDependencies converts binary checks.
func FromDependencies(statuses []deps.Status) []DependencyStatus {
	out := make([]DependencyStatus, 0, len(statuses))
	for _, dep := range statuses {
		out = append(out, DependencyStatus{
			Name:        dep.Name,
			Command:     dep.Command,
			Path:        dep.Path,
			Description: dep.Description,
			Optional:    dep.Optional,
			Available:   dep.Available,
			Detail:      dep.Detail,
		})
	}
	return out
}

// FromLogEvents converts hub or archive events.
func FromLogEvents(events []logging.LogEvent) []LogEvent {
	out := make([]LogEvent, 0, len(events))
	for _, evt := range events {
		var details []DetailField
		for _, detail := range evt.Details {
			details = append(details, DetailField{Label: detail.Label, Value: detail.Value})
		}
		out = append(out, LogEvent{
			Sequence:      evt.Sequence,
			Timestamp:     formatTime(evt.Timestamp),
			Level:         evt.Level,
			Message:       evt.Message,
			Component:     evt.Component,
			JobID:         evt.JobID,
			Stage:         evt.Stage,
			Provider:      evt.Provider,
			CorrelationID: evt.CorrelationID,
			Fields:        evt.Fields,
			Details:       details,
		})
	}
	return out
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(dateTimeFormat)
}
