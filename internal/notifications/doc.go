// Package notifications delivers job events via pluggable notifiers.
//
// The default implementation publishes to ntfy using the topic configured in
// config.toml and degrades to a no-op when notifications are disabled.
// Per-event switches in the [notifications] section decide whether completed
// and failed jobs are announced; errors and test messages always go out.
package notifications
