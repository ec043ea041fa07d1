// Package report assembles the summary and analysis results into a meeting
// report document. Building the document model is separated from rendering
// so the renderer can be swapped in tests.
package report
