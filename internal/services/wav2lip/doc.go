// Package wav2lip runs the final lip-sync stage.
//
// In wav2lip mode the Wav2Lip repository's inference.py is executed from its
// own directory with the configured checkpoint; a missing installation is a
// resource error and a failed or silent run is an external tool error. In mux
// mode the dubbed audio simply replaces the source track through ffmpeg, for
// hosts without a GPU or the Wav2Lip checkout.
package wav2lip
