// Package llm provides an OpenRouter-compatible chat client.
//
// The translation stage sends a system prompt and the transcript and expects
// a JSON object back; DecodeLLMJSON tolerates code fences and stray prose
// around the payload.
//
// # Configuration
//
// Requires api_key and model, and optionally base_url, referer, title and
// timeout. Callers check Configured before relying on the client.
//
// # Retry Behaviour
//
// The client retries on HTTP 408/429/5xx errors and network timeouts with
// exponential backoff (base 1s, max 10s, up to 5 attempts by default).
// Context cancellation aborts retries immediately.
//
// # Errors
//
// Failures are tagged with services markers: a missing key or a 401/403 is
// ErrConfiguration, anything else from the remote side is ErrExternalService.
package llm
