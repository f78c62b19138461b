// Package api is the submission surface shared by the HTTP daemon and the
// CLI, plus the wire-format types both of them render.
//
// # Service
//
// Service.Submit validates a dubbing request completely before anything is
// created: container extension, upload size, target language, and the
// provider, voice, emotion and speed options as judged by the provider
// registry. The video is then stored under the uploads directory as
// {job id}_{sanitized filename}, the job is created, and the pipeline is
// started on its own goroutine.
//
// GetStatus, List and FetchResult read the job store. FetchResult hands out
// the dubbed video only for completed jobs and returns an error wrapping
// ErrNotReady otherwise. Expire removes finished jobs past an age threshold
// together with their files.
//
// # Wire types
//
// JobView and friends use camelCase JSON tags. Timestamps are RFC3339 with
// milliseconds. Converters never expose filesystem paths of intermediate
// artifacts.
package api
