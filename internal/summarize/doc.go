// Package summarize turns a meeting transcript into a structured summary.
//
// Long transcripts are split into overlapping word chunks, each chunk is
// summarized independently, and the partial summaries are merged with a final
// model call that sees them in "[Part N]" order, so the merged output is
// reproducible for a given transcript. Short transcripts go through a single
// call.
package summarize
