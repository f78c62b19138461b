// Package tts defines the voice-synthesis provider contract and the Registry
// that resolves a requested provider name to one live instance.
//
// Providers advertise what they can do through Capabilities(); callers never
// inspect concrete types. The Registry is owned by the application root and
// passed to whoever needs synthesis. It keeps a single cached instance and
// swaps it atomically when a different provider is resolved: in-flight calls on
// the old instance drain first, then its Cleanup runs exactly once.
//
// Concrete backends live in the fishaudio, fishspeech and coqui subpackages;
// builtin wires them from configuration.
package tts
