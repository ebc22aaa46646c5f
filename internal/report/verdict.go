package report

import (
	"fmt"
	"io"

	"github.com/nao1215/dnsblcheck/internal/model"
)

// VerdictOK is printed for a host that no provider lists.
const VerdictOK = "OK"

// VerdictWriter prints one line per report: "OK" for a clean host and
// "ERROR, check <service>" otherwise.
type VerdictWriter struct {
	baseWriter

	// withHost prefixes each line with the checked host, for batch runs.
	withHost bool
}

// VerdictWriterOption configures a VerdictWriter.
type VerdictWriterOption func(*VerdictWriter)

// WithHostPrefix prefixes each verdict line with "<host>: ".
func WithHostPrefix(enabled bool) VerdictWriterOption {
	return func(w *VerdictWriter) {
		w.withHost = enabled
	}
}

// NewVerdictWriter creates a VerdictWriter that outputs to the given writer.
func NewVerdictWriter(output io.Writer, opts ...VerdictWriterOption) *VerdictWriter {
	w := &VerdictWriter{baseWriter: newBaseWriter(output)}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Write prints the verdict line for report. A check that failed before
// evaluation prints its error instead.
func (w *VerdictWriter) Write(report *model.CheckReport) (int, error) {
	line := VerdictLine(report)
	if w.withHost {
		line = report.Host + ": " + line
	}
	return fmt.Fprintln(w.output, line)
}

// VerdictLine returns the verdict text without a trailing newline.
func VerdictLine(report *model.CheckReport) string {
	if report.ErrorMessage != "" && !report.Evaluated {
		return "ERROR, " + report.ErrorMessage
	}
	if report.Passed() {
		return VerdictOK
	}
	return "ERROR, check " + report.Service
}
