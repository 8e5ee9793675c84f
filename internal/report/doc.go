// Package report renders run summaries and maintains the tile manifest.
//
// Writers implement the Writer interface so they can be composed with
// MultiWriter:
//   - SimpleWriter: text tables for the terminal
//   - JSONWriter: structured JSON for tool integration
//   - MarkdownWriter: GitHub-flavoured Markdown with a job status chart
//
// The manifest (manifest.json at the tile root) lists every tile set the
// viewer can display. It is merged across runs.
package report
