// Package coqui implements the offline provider on top of the Coqui tts
// command-line tool. It needs no network and is always selectable.
package coqui
