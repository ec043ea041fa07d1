// Package analysis fans the transcript out to independent analyzers and
// merges their results into one report stored on the session.
//
// Analyzer failures are isolated: one analyzer failing or timing out marks
// its own result failed or skipped without disturbing the others, and the
// stage itself only fails when there is no transcript to analyze. The
// analyzer set is resolved once at startup from configuration.
package analysis
