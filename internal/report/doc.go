// Package report renders check reports.
//
// Writers implement the Writer interface so that they can be combined
// with MultiWriter:
//   - VerdictWriter: the single OK / ERROR line printed by default
//   - SimpleWriter: a plain text per-provider breakdown
//   - JSONWriter: structured output for tool integration
//   - MarkdownWriter: a shareable document with a status pie chart
package report
