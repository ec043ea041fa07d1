// Package ingest watches a drop directory for recorded audio and creates
// upload sessions for it, so recordings made outside the bot still flow
// through transcription, analysis, and reporting.
package ingest
