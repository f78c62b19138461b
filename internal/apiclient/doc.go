// Package apiclient talks to a running voxdub daemon over its HTTP API.
//
// The CLI uses it to follow the log stream, trigger cleanup inside the
// daemon so in-flight job files are respected, and probe health. Callers
// treat IsUnavailable errors as "no daemon running" and fall back to local
// behaviour where that makes sense.
package apiclient
