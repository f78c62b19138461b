package api

// dateTimeFormat is used for RFC3339 timestamps in API payloads.
const dateTimeFormat = "2006-01-02T15:04:05.000Z07:00"

// JobView describes a dubbing job in a transport-friendly format.
type JobView struct {
	ID                  string      `json:"id"`
	Status              string      `json:"status"`
	Progress            JobProgress `json:"progress"`
	SourceLanguage      string      `json:"sourceLanguage,omitempty"`
	TargetLanguage      string      `json:"targetLanguage"`
	ProviderRequested   string      `json:"providerRequested"`
	ProviderResolved    string      `json:"providerResolved,omitempty"`
	VoiceID             string      `json:"voiceId,omitempty"`
	Emotion             string      `json:"emotion,omitempty"`
	Speed               float64     `json:"speed"`
	OriginalFilename    string      `json:"originalFilename,omitempty"`
	SourceText          string      `json:"sourceText,omitempty"`
	TranslatedText      string      `json:"translatedText,omitempty"`
	TranslationFallback bool        `json:"translationFallback,omitempty"`
	ResultAvailable     bool        `json:"resultAvailable"`
	ErrorMessage        string      `json:"errorMessage,omitempty"`
	CreatedAt           string      `json:"createdAt"`
	StartedAt           string      `json:"startedAt,omitempty"`
	CompletedAt         string      `json:"completedAt,omitempty"`
	FailedAt            string      `json:"failedAt,omitempty"`
	DurationSeconds     float64     `json:"durationSeconds,omitempty"`
}

// JobProgress captures the current step of a job.
type JobProgress struct {
	Percent int    `json:"percent"`
	Step    string `json:"step"`
}

// JobListResponse wraps a collection of jobs.
type JobListResponse struct {
	Jobs   []JobView      `json:"jobs"`
	Counts map[string]int `json:"counts"`
}

// SubmitResponse is returned after a job is accepted.
type SubmitResponse struct {
	JobID   string  `json:"jobId"`
	Status  string  `json:"status"`
	Message string  `json:"message"`
	Job     JobView `json:"job"`
}

// ExpireResponse lists jobs removed by an expiry sweep.
type ExpireResponse struct {
	Expired []string `json:"expired"`
}

// ProviderView describes one TTS backend.
type ProviderView struct {
	Name               string   `json:"name"`
	DisplayName        string   `json:"displayName"`
	Available          bool     `json:"available"`
	Reason             string   `json:"reason,omitempty"`
	Current            bool     `json:"current"`
	Preferred          bool     `json:"preferred"`
	RequiresCredential bool     `json:"requiresCredential"`
	Capabilities       []string `json:"capabilities"`
	Languages          []string `json:"languages"`
	Emotions           []string `json:"emotions,omitempty"`
}

// ProvidersResponse wraps the provider listing.
type ProvidersResponse struct {
	Preferred string         `json:"preferred"`
	Current   string         `json:"current,omitempty"`
	Providers []ProviderView `json:"providers"`
}

// VoiceView describes a reference voice.
type VoiceView struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	Language   string `json:"language,omitempty"`
	Transcript string `json:"transcript,omitempty"`
	SizeBytes  int64  `json:"sizeBytes"`
	Registered bool   `json:"registered"`
	CreatedAt  string `json:"createdAt"`
}

// LanguageView describes a dubbing target language.
type LanguageView struct {
	Code   string `json:"code"`
	Name   string `json:"name"`
	Native string `json:"native"`
}

// DependencyStatus captures availability of an external dependency.
type DependencyStatus struct {
	Name        string `json:"name"`
	Command     string `json:"command"`
	Path        string `json:"path,omitempty"`
	Description string `json:"description"`
	Optional    bool   `json:"optional"`
	Available   bool   `json:"available"`
	Detail      string `json:"detail,omitempty"`
}

// HealthResponse reports daemon readiness.
type HealthResponse struct {
	Status       string             `json:"status"`
	Provider     string             `json:"provider,omitempty"`
	ProviderErr  string             `json:"providerError,omitempty"`
	Jobs         map[string]int     `json:"jobs"`
	Dependencies []DependencyStatus `json:"dependencies"`
}

// ErrorResponse is the body of every non-2xx answer.
type ErrorResponse struct {
	Error string `json:"error"`
}

// VoicesResponse wraps the reference-voice catalog.
type VoicesResponse struct {
	Voices []VoiceView `json:"voices"`
}

// LanguagesResponse wraps the dubbing target languages.
type LanguagesResponse struct {
	Languages []LanguageView `json:"languages"`
}

// EmotionsResponse lists the emotions a provider understands.
type EmotionsResponse struct {
	Provider string   `json:"provider"`
	Emotions []string `json:"emotions"`
}

// SetProviderRequest selects the preferred provider.
type SetProviderRequest struct {
	Provider string `json:"provider"`
}

// SubmitPathRequest submits a video already on the daemon's filesystem.
type SubmitPathRequest struct {
	VideoPath      string  `json:"videoPath"`
	TargetLanguage string  `json:"targetLanguage"`
	Provider       string  `json:"provider,omitempty"`
	VoiceID        string  `json:"voiceId,omitempty"`
	Emotion        string  `json:"emotion,omitempty"`
	Speed          float64 `json:"speed,omitempty"`
}

// SynthesizeRequest asks for one standalone synthesis.
type SynthesizeRequest struct {
	Text     string  `json:"text"`
	Language string  `json:"language"`
	Provider string  `json:"provider,omitempty"`
	VoiceID  string  `json:"voiceId,omitempty"`
	Emotion  string  `json:"emotion,omitempty"`
	Speed    float64 `json:"speed,omitempty"`
}

// LogEvent is one structured log line served by /api/logs.
type LogEvent struct {
	Sequence      uint64            `json:"seq"`
	Timestamp     string            `json:"ts"`
	Level         string            `json:"level"`
	Message       string            `json:"msg"`
	Component     string            `json:"component,omitempty"`
	JobID         string            `json:"jobId,omitempty"`
	Stage         string            `json:"stage,omitempty"`
	Provider      string            `json:"provider,omitempty"`
	CorrelationID string            `json:"correlationId,omitempty"`
	Fields        map[string]string `json:"fields,omitempty"`
	Details       []DetailField     `json:"details,omitempty"`
}

// DetailField mirrors one console detail bullet.
type DetailField struct {
	Label string `json:"label"`
	Value string `json:"value"`
}

// LogStreamResponse is one page of log events plus the cursor to resume from.
type LogStreamResponse struct {
	Events []LogEvent `json:"events"`
	Next   uint64     `json:"next"`
}

// ExpireRequest overrides the configured job age for one expiry sweep.
type ExpireRequest struct {
	OlderThanHours float64 `json:"olderThanHours,omitempty"`
}

// CleanupResponse reports one on-demand cleanup pass.
type CleanupResponse struct {
	Expired []string `json:"expired"`
	Removed []string `json:"removed"`
	Errors  []string `json:"errors,omitempty"`
}

// NotificationResponse reports a test notification attempt.
type NotificationResponse struct {
	Sent    bool   `json:"sent"`
	Message string `json:"message"`
}
