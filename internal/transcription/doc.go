// Package transcription converts recorded meeting audio into a timestamped
// transcript using a local whisper-cli binary. The stage handler persists the
// transcript on the session; the Engine interface isolates the external
// binary so tests can substitute a fake.
package transcription
