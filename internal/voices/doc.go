// Package voices keeps the catalog of reference recordings used for voice
// cloning.
//
// Recordings live as files under the voices directory; metadata lives in a
// small SQLite database next to them. When a Fish Speech server is
// configured, new voices are also registered there so synthesis can refer to
// them by id instead of uploading the audio with every request.
package voices
