package tts

import (
	"context"
	"time"
)

// Provider names. "coqui" is accepted as an alias for NameOffline.
const (
	NameAuto       = "auto"
	NameFishAudio  = "fish_audio"
	NameFishSpeech = "fish_speech"
	NameOffline    = "offline"
	AliasCoqui     = "coqui"
)

// Speed bounds accepted by every provider.
const (
	DefaultSpeed = 1.0
	MinSpeed     = 0.5
	MaxSpeed     = 2.0
)

// Provider is one voice-synthesis backend.
type Provider interface {
	Name() string
	Synthesize(ctx context.Context, req Request) (Result, error)
	SupportedLanguages() []string
	Emotions() []string
	Capabilities() CapabilitySet
	HealthCheck(ctx context.Context) error
	// Cleanup releases held resources. The registry calls it at most once and
	// only after in-flight calls have returned.
	Cleanup() error
}

// Request describes one synthesis call.
type Request struct {
	Text       string  `json:"text"`
	Language   string  `json:"language"`
	VoiceID    string  `json:"voice_id,omitempty"`
	Emotion    string  `json:"emotion,omitempty"`
	Speed      float64 `json:"speed,omitempty"`
	Streaming  bool    `json:"streaming,omitempty"`
	OutputPath string  `json:"-"`
}

// EffectiveSpeed returns the speed with the default applied.
func (r Request) EffectiveSpeed() float64 {
	if r.Speed == 0 {
		return DefaultSpeed
	}
	return r.Speed
}

// Result describes the audio a provider wrote.
type Result struct {
	Provider string        `json:"provider"`
	Path     string        `json:"path"`
	Bytes    int64         `json:"bytes"`
	Elapsed  time.Duration `json:"elapsed"`
}

// Descriptor is the static description of a provider.
type Descriptor struct {
	Name               string        `json:"name"`
	DisplayName        string        `json:"display_name"`
	Capabilities       CapabilitySet `json:"capabilities"`
	RequiresCredential bool          `json:"requires_credential"`
	Languages          []string      `json:"languages"`
	Emotions           []string      `json:"emotions,omitempty"`
}

// Backend binds a descriptor to its availability predicate and constructor.
type Backend struct {
	Descriptor Descriptor
	// Available returns nil when the backend can be selected right now.
	Available func(ctx context.Context) error
	New       func() (Provider, error)
}

// Status reports one backend as seen by Registry.Describe.
type Status struct {
	Descriptor
	Available bool   `json:"available"`
	Reason    string `json:"reason,omitempty"`
	Current   bool   `json:"current"`
	Preferred bool   `json:"preferred"`
}
