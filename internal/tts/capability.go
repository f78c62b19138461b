package tts

import (
	"encoding/json"
	"strings"
)

// Capability is one optional feature a provider may support.
type Capability uint8

const (
	CapVoiceCloning Capability = 1 << iota
	CapEmotionSynthesis
	CapStreaming
	CapOffline
)

var capabilityNames = []struct {
	cap  Capability
	name string
}{
	{CapVoiceCloning, "voice_cloning"},
	{CapEmotionSynthesis, "emotion_synthesis"},
	{CapStreaming, "streaming"},
	{CapOffline, "offline"},
}

func (c Capability) String() string {
	for _, entry := range capabilityNames {
		if entry.cap == c {
			return entry.name
		}
	}
	return "unknown"
}

// CapabilitySet is a bit set of capabilities.
type CapabilitySet uint8

// Capabilities builds a set from individual flags.
func Capabilities(caps ...Capability) CapabilitySet {
	var set CapabilitySet
	for _, c := range caps {
		set |= CapabilitySet(c)
	}
	return set
}

// Has reports whether every given capability is present.
func (s CapabilitySet) Has(caps ...Capability) bool {
	for _, c := range caps {
		if s&CapabilitySet(c) == 0 {
			return false
		}
	}
	return true
}

// Names lists the set in a stable order.
func (s CapabilitySet) Names() []string {
	names := make([]string, 0, len(capabilityNames))
	for _, entry := range capabilityNames {
		if s.Has(entry.cap) {
			names = append(names, entry.name)
		}
	}
	return names
}

func (s CapabilitySet) String() string {
	names := s.Names()
	if len(names) == 0 {
		return "none"
	}
	return strings.Join(names, ",")
}

// MarshalJSON renders the set as a list of names.
func (s CapabilitySet) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.Names())
}

// UnmarshalJSON accepts the list form produced by MarshalJSON. Unknown names
// are ignored.
func (s *CapabilitySet) UnmarshalJSON(data []byte) error {
	var names []string
	if err := json.Unmarshal(data, &names); err != nil {
		return err
	}
	var set CapabilitySet
	for _, name := range names {
		for _, entry := range capabilityNames {
			if strings.EqualFold(entry.name, strings.TrimSpace(name)) {
				set |= CapabilitySet(entry.cap)
			}
		}
	}
	*s = set
	return nil
}
