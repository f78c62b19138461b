// Package job holds dubbing jobs in an in-memory arena and enforces their
// lifecycle.
//
// Jobs move queued -> processing -> completed|failed and never go back.
// Progress only grows and reaches 100 exactly when a job completes. The Store
// hands out copies; the pipeline orchestrator is the only writer and goes
// through Update, which validates every change before committing it.
//
// Jobs are not persisted across restarts. Finished jobs stay in the arena
// until something outside the store calls Expire or Delete.
package job
