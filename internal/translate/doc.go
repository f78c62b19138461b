// Package translate converts transcripts between languages with a chat
// completion model.
//
// Language codes are normalized through internal/language and sent to the
// model as display names. The model answers with {"translation": "..."}.
// Identical source and target languages short-circuit without a request.
package translate
