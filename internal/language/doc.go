// Package language provides unified language code normalization and mapping.
//
// Conversions between ISO 639-1, ISO 639-2 and display names live here so
// the transcriber, translator and HTTP surface agree on codes. Supported
// lists the dubbing target languages with English and native names; native
// names come from golang.org/x/text.
package language
