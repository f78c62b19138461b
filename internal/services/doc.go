// Package services defines shared utilities consumed by the dubbing pipeline
// and its external integrations.
//
// Key responsibilities:
//   - Context helpers that stamp job IDs, stage names, providers, and
//     correlation identifiers for logging and tracing.
//   - The error taxonomy (validation, not found, external tool, external
//     service, resource) plus the Wrap helper that tags failures so the API
//     layer and the orchestrator can classify them consistently.
//
// Use these helpers when wiring new collaborators so operational behaviour
// (error handling, observability) stays uniform across the pipeline.
package services
