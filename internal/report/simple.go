package report

import (
	"fmt"
	"io"
	"strings"

	"github.com/nao1215/dnsblcheck/internal/model"
)

// SimpleWriter outputs a human-readable text report with one line per
// provider. Failing providers are listed first so that a long report
// can be read from the top.
type SimpleWriter struct {
	baseWriter

	// showClean includes providers that show the clean image.
	showClean bool

	// verbose adds digests, fetch errors and parse diagnostics.
	verbose bool
}

// SimpleWriterOption configures a SimpleWriter.
type SimpleWriterOption func(*SimpleWriter)

// WithShowClean lists clean providers as well as failing ones.
func WithShowClean(show bool) SimpleWriterOption {
	return func(w *SimpleWriter) {
		w.showClean = show
	}
}

// WithVerbose enables verbose output with additional details.
func WithVerbose(verbose bool) SimpleWriterOption {
	return func(w *SimpleWriter) {
		w.verbose = verbose
	}
}

// NewSimpleWriter creates a SimpleWriter that outputs to the given writer.
func NewSimpleWriter(output io.Writer, opts ...SimpleWriterOption) *SimpleWriter {
	w := &SimpleWriter{
		baseWriter: newBaseWriter(output),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Write outputs the report in human-readable format.
func (w *SimpleWriter) Write(report *model.CheckReport) (int, error) {
	var sb strings.Builder

	w.writeHeader(&sb, report)
	w.writeSummary(&sb, report)
	w.writeProviders(&sb, report)
	if w.verbose {
		w.writeDiagnostics(&sb, report)
	}
	w.writeFooter(&sb)

	return io.WriteString(w.output, sb.String())
}

func (w *SimpleWriter) writeHeader(sb *strings.Builder, report *model.CheckReport) {
	sb.WriteString("\n")
	sb.WriteString(strings.Repeat("=", 70))
	sb.WriteString("\n")
	sb.WriteString("                        DNSBL CHECK REPORT\n")
	sb.WriteString(strings.Repeat("=", 70))
	sb.WriteString("\n\n")

	fmt.Fprintf(sb, "Host:      %s\n", report.Host)
	fmt.Fprintf(sb, "Service:   %s\n", report.Service)
	fmt.Fprintf(sb, "Checked:   %s\n", report.DateChecked.Format("2006-01-02 15:04:05 MST"))
	if report.Strategy != "" {
		fmt.Fprintf(sb, "Strategy:  %s\n", report.Strategy)
	}
	fmt.Fprintf(sb, "Status:    %s\n", statusText(report))
	fmt.Fprintf(sb, "Verdict:   %s\n", verdictText(report))
	sb.WriteString("\n")
}

func (w *SimpleWriter) writeSummary(sb *strings.Builder, report *model.CheckReport) {
	counts := report.Counts()

	sb.WriteString(strings.Repeat("-", 70))
	sb.WriteString("\n")
	sb.WriteString("SUMMARY\n")
	sb.WriteString(strings.Repeat("-", 70))
	sb.WriteString("\n\n")

	fmt.Fprintf(sb, "  CLEAN:    %d\n", counts.Clean)
	fmt.Fprintf(sb, "  LISTED:   %d\n", counts.Listed)
	fmt.Fprintf(sb, "  UNKNOWN:  %d\n", counts.Unknown)
	if counts.Ignored > 0 {
		fmt.Fprintf(sb, "  IGNORED:  %d\n", counts.Ignored)
	}
	if counts.Failed > 0 {
		fmt.Fprintf(sb, "  FAILED:   %d image fetch(es)\n", counts.Failed)
	}
	sb.WriteString("\n")
	fmt.Fprintf(sb, "  TOTAL:    %d providers\n", counts.Total())
	sb.WriteString("\n")
}

func (w *SimpleWriter) writeProviders(sb *strings.Builder, report *model.CheckReport) {
	failing := report.Failing()
	if len(failing) == 0 && !w.showClean {
		return
	}

	sb.WriteString(strings.Repeat("-", 70))
	sb.WriteString("\n")
	sb.WriteString("PROVIDERS\n")
	sb.WriteString(strings.Repeat("-", 70))
	sb.WriteString("\n\n")

	for _, p := range failing {
		w.writeProvider(sb, p)
	}
	for _, p := range report.Providers {
		if p.Fails() {
			continue
		}
		if p.IsClean() && !w.showClean {
			continue
		}
		w.writeProvider(sb, p)
	}
	sb.WriteString("\n")
}

func (w *SimpleWriter) writeProvider(sb *strings.Builder, p model.ProviderRecord) {
	name := p.Name
	if name == "" {
		name = "(unnamed)"
	}

	label := p.Status.Label()
	if p.Ignored {
		label += " (ignored)"
	}
	fmt.Fprintf(sb, "  [%-7s] %-40s %s\n", indicator(p), truncateString(name, 40), label)

	if !w.verbose {
		return
	}
	if p.FetchError != "" {
		fmt.Fprintf(sb, "            fetch error: %s\n", p.FetchError)
	}
	if p.Digest != "" {
		fmt.Fprintf(sb, "            sha1: %s\n", p.Digest)
	}
	fmt.Fprintf(sb, "            image: %s\n", p.ImageURL)
}

// indicator returns a short marker for a provider line.
func indicator(p model.ProviderRecord) string {
	switch {
	case p.Ignored:
		return "-"
	case p.Status == model.StatusClean:
		return "ok"
	case p.Status == model.StatusListed:
		return "!!"
	default:
		return "?"
	}
}

func (w *SimpleWriter) writeDiagnostics(sb *strings.Builder, report *model.CheckReport) {
	d := report.Diagnostics

	sb.WriteString(strings.Repeat("-", 70))
	sb.WriteString("\n")
	sb.WriteString("PARSE DIAGNOSTICS\n")
	sb.WriteString(strings.Repeat("-", 70))
	sb.WriteString("\n\n")

	fmt.Fprintf(sb, "  Tables:               %d\n", d.TablesSeen)
	fmt.Fprintf(sb, "  Cells:                %d\n", d.CellsSeen)
	fmt.Fprintf(sb, "  Records:              %d\n", d.RecordsEmitted)
	fmt.Fprintf(sb, "  Cells without image:  %d\n", d.CellsWithoutImage)
	fmt.Fprintf(sb, "  Anomalies:            %d\n", d.Anomalies)
	if len(report.PerformedSteps) > 0 {
		fmt.Fprintf(sb, "  Steps:                %s\n", strings.Join(report.PerformedSteps, ", "))
	}
	sb.WriteString("\n")
}

func (w *SimpleWriter) writeFooter(sb *strings.Builder) {
	sb.WriteString(strings.Repeat("=", 70))
	sb.WriteString("\n")
}
