package job

import (
	"strings"
	"time"
)

// Status represents the lifecycle of a dubbing job.
type Status string

const (
	StatusQueued     Status = "queued"
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
)

var allStatuses = []Status{
	StatusQueued,
	StatusProcessing,
	StatusCompleted,
	StatusFailed,
}

// allowedTransitions lists the only status changes a job may make.
var allowedTransitions = map[Status][]Status{
	StatusQueued:     {StatusProcessing, StatusFailed},
	StatusProcessing: {StatusCompleted, StatusFailed},
}

// Step labels reported through Job.CurrentStep.
const (
	StepQueued     = "Queued"
	StepExtract    = "Extracting audio..."
	StepTranscribe = "Transcribing speech..."
	StepTranslate  = "Translating text..."
	StepSynthesize = "Generating new speech..."
	StepLipSync    = "Syncing lips..."
	StepComplete   = "Complete!"
	StepFailed     = "Failed"
)

// AllStatuses returns the ordered list of known statuses.
func AllStatuses() []Status {
	cp := make([]Status, len(allStatuses))
	copy(cp, allStatuses)
	return cp
}

// ParseStatus converts a string into a known Status.
func ParseStatus(value string) (Status, bool) {
	normalized := Status(strings.ToLower(strings.TrimSpace(value)))
	for _, status := range allStatuses {
		if status == normalized {
			return normalized, true
		}
	}
	return "", false
}

// IsTerminal reports whether no further transitions are possible.
func (s Status) IsTerminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// CanTransition reports whether a job may move from one status to another.
func CanTransition(from, to Status) bool {
	for _, next := range allowedTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// Spec captures what a caller asks for when submitting a job. Artifact paths
// are never part of a spec; the orchestrator assigns them.
type Spec struct {
	TargetLanguage   string
	Provider         string
	VoiceID          string
	Emotion          string
	Speed            float64
	OriginalFilename string
}

// Job is a snapshot of one dubbing run. Values returned by the Store are
// copies; mutating them has no effect on stored state.
type Job struct {
	ID                  string    `json:"id"`
	Status              Status    `json:"status"`
	Progress            int       `json:"progress"`
	CurrentStep         string    `json:"current_step"`
	SourceLanguage      string    `json:"source_language,omitempty"`
	TargetLanguage      string    `json:"target_language"`
	ProviderRequested   string    `json:"provider_requested"`
	ProviderResolved    string    `json:"provider_resolved,omitempty"`
	VoiceID             string    `json:"voice_id,omitempty"`
	Emotion             string    `json:"emotion,omitempty"`
	Speed               float64   `json:"speed"`
	OriginalFilename    string    `json:"original_filename,omitempty"`
	InputArtifact       string    `json:"input_artifact,omitempty"`
	OutputArtifact      string    `json:"output_artifact,omitempty"`
	SourceText          string    `json:"source_text,omitempty"`
	TranslatedText      string    `json:"translated_text,omitempty"`
	TranslationFallback bool      `json:"translation_fallback,omitempty"`
	Error               string    `json:"error,omitempty"`
	CreatedAt           time.Time `json:"created_at"`
	StartedAt           time.Time `json:"started_at,omitzero"`
	CompletedAt         time.Time `json:"completed_at,omitzero"`
	FailedAt            time.Time `json:"failed_at,omitzero"`
}

// TerminalAt returns when the job reached completed or failed, or the zero
// time while it is still active.
func (j Job) TerminalAt() time.Time {
	switch j.Status {
	case StatusCompleted:
		return j.CompletedAt
	case StatusFailed:
		return j.FailedAt
	default:
		return time.Time{}
	}
}

// Duration reports elapsed processing time for started jobs.
func (j Job) Duration(now time.Time) time.Duration {
	if j.StartedAt.IsZero() {
		return 0
	}
	end := j.TerminalAt()
	if end.IsZero() {
		end = now
	}
	return end.Sub(j.StartedAt)
}

// SetProgress records a stage label and percentage.
func (j *Job) SetProgress(step string, percent int) {
	j.CurrentStep = step
	j.Progress = percent
}

// Counts aggregates jobs per status.
type Counts struct {
	Total      int `json:"total"`
	Queued     int `json:"queued"`
	Processing int `json:"processing"`
	Completed  int `json:"completed"`
	Failed     int `json:"failed"`
}
