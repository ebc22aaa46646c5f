package report

import (
	"io"
	"strconv"

	"github.com/nao1215/markdown"
	"github.com/nao1215/markdown/mermaid/piechart"

	"github.com/nao1215/dnsblcheck/internal/model"
)

// MarkdownWriter outputs reports in Markdown format, for sharing a check
// result in an issue or a wiki page.
type MarkdownWriter struct {
	baseWriter
}

// NewMarkdownWriter creates a MarkdownWriter that outputs to the given writer.
func NewMarkdownWriter(output io.Writer) *MarkdownWriter {
	return &MarkdownWriter{
		baseWriter: newBaseWriter(output),
	}
}

// Write outputs the report in Markdown format.
func (w *MarkdownWriter) Write(report *model.CheckReport) (int, error) {
	md := markdown.NewMarkdown(w.output)

	w.writeHeader(md, report)
	w.writeSummary(md, report)
	w.writeProviders(md, report)
	w.writeFooter(md)

	return len(md.String()), md.Build()
}

func (w *MarkdownWriter) writeHeader(md *markdown.Markdown, report *model.CheckReport) {
	md.H1("DNSBL Check Report")
	md.PlainText("")

	rows := [][]string{
		{"Host", "`" + report.Host + "`"},
		{"Service", report.Service},
		{"Checked", report.DateChecked.Format("2006-01-02 15:04:05 MST")},
	}
	if report.Strategy != "" {
		rows = append(rows, []string{"Strategy", report.Strategy})
	}
	rows = append(rows,
		[]string{"Status", statusText(report)},
		[]string{"Verdict", "**" + verdictText(report) + "**"},
	)

	md.Table(markdown.TableSet{
		Header: []string{"Property", "Value"},
		Rows:   rows,
	})
	md.PlainText("")
}

func (w *MarkdownWriter) writeSummary(md *markdown.Markdown, report *model.CheckReport) {
	counts := report.Counts()

	md.H2("Summary")
	md.PlainText("")

	md.Table(markdown.TableSet{
		Header: []string{"Status", "Count"},
		Rows: [][]string{
			{"Clean", strconv.Itoa(counts.Clean)},
			{"Listed", strconv.Itoa(counts.Listed)},
			{"Unknown", strconv.Itoa(counts.Unknown)},
			{"Ignored", strconv.Itoa(counts.Ignored)},
			{"**Total**", "**" + strconv.Itoa(counts.Total()) + "**"},
		},
	})
	md.PlainText("")

	if counts.Total() > 0 {
		w.writePieChart(md, counts)
	}
	w.writeAlert(md, report, counts)
}

func (w *MarkdownWriter) writePieChart(md *markdown.Markdown, counts model.StatusCounts) {
	chart := piechart.NewPieChart(
		io.Discard,
		piechart.WithTitle("Provider Status"),
		piechart.WithShowData(true),
	)

	if counts.Clean > 0 {
		chart.LabelAndIntValue("Clean", uint64(counts.Clean))
	}
	if counts.Listed > 0 {
		chart.LabelAndIntValue("Listed", uint64(counts.Listed))
	}
	if counts.Unknown > 0 {
		chart.LabelAndIntValue("Unknown", uint64(counts.Unknown))
	}

	md.PlainText("")
	md.CodeBlocks(markdown.SyntaxHighlightMermaid, chart.String())
	md.PlainText("")
}

func (w *MarkdownWriter) writeAlert(md *markdown.Markdown, report *model.CheckReport, counts model.StatusCounts) {
	failing := len(report.Failing())

	switch {
	case report.ErrorMessage != "":
		md.Cautionf("The check did not complete: %s", report.ErrorMessage)
	case !report.Evaluated:
		md.Warningf("The check stopped before a verdict was reached.")
	case counts.Listed > 0 && failing > 0:
		md.Cautionf("%s is listed by %d provider(s).", report.Host, counts.Listed)
	case failing > 0:
		md.Warningf("%d provider(s) returned an unrecognized status.", failing)
	case counts.Total() == 0:
		md.Note("The result page contained no providers.")
	default:
		md.Tip("No provider lists this host.")
	}
	md.PlainText("")
}

func (w *MarkdownWriter) writeProviders(md *markdown.Markdown, report *model.CheckReport) {
	md.H2("Providers")
	md.PlainText("")

	if len(report.Providers) == 0 {
		md.PlainText("No providers found on the result page.")
		md.PlainText("")
		return
	}

	rows := make([][]string, len(report.Providers))
	for i, p := range report.Providers {
		name := p.Name
		if name == "" {
			name = "-"
		}
		status := p.Status.String()
		if p.Ignored {
			status += " (ignored)"
		}
		detail := p.FetchError
		if detail == "" {
			detail = p.Digest
		}
		if detail == "" {
			detail = "-"
		}

		rows[i] = []string{
			truncateString(name, 50),
			status,
			"`" + truncateString(detail, 60) + "`",
		}
	}

	md.Table(markdown.TableSet{
		Header: []string{"Provider", "Status", "Digest / Error"},
		Rows:   rows,
	})
	md.PlainText("")

	if report.Diagnostics.HasAnomalies() {
		md.Details("Parse anomalies",
			strconv.Itoa(report.Diagnostics.Anomalies)+" unbalanced tag sequence(s) were seen while parsing the result page.")
		md.PlainText("")
	}
}

func (w *MarkdownWriter) writeFooter(md *markdown.Markdown) {
	md.HorizontalRule()
	md.PlainText("")
	md.PlainTextf("*Report generated by [dnsblcheck](https://github.com/nao1215/dnsblcheck)*")
}
