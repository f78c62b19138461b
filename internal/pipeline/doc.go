// Package pipeline runs dubbing jobs end to end.
//
// An Orchestrator takes a queued job from the job store and drives it through
// five stages: audio extraction, transcription, translation, speech synthesis
// and lip sync. Each stage delegates to a collaborator behind a small
// interface so tests can substitute fakes. Progress and the current step
// label are written to the store after every stage.
//
// Every stage except translation is a hard failure boundary. A translation
// failure is logged and the transcript is dubbed in its original language.
// Intermediate files are removed when the job finishes either way.
//
// Start runs each job on its own goroutine; nothing serializes jobs except
// the provider registry when two jobs need different providers.
package pipeline
