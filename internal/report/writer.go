package report

import (
	"io"

	"github.com/nao1215/dnsblcheck/internal/model"
)

// Writer renders a check report to a destination.
type Writer interface {
	// Write outputs the report and returns the number of bytes written.
	Write(report *model.CheckReport) (int, error)
}

// MultiWriter writes every report to several Writers in order.
type MultiWriter struct {
	writers []Writer
}

// NewMultiWriter creates a Writer that writes to all provided Writers.
func NewMultiWriter(writers ...Writer) *MultiWriter {
	return &MultiWriter{writers: writers}
}

// Write outputs the report to all configured Writers.
// It stops on the first error.
func (m *MultiWriter) Write(report *model.CheckReport) (int, error) {
	var total int
	for _, w := range m.writers {
		n, err := w.Write(report)
		total += n
		if err != nil {
			return total, err
		}
	}
	return total, nil
}

type baseWriter struct {
	output io.Writer
}

func newBaseWriter(output io.Writer) baseWriter {
	return baseWriter{output: output}
}

// statusText describes how the check ended.
func statusText(report *model.CheckReport) string {
	switch {
	case report.TimedOut:
		return "TIMED OUT"
	case report.ErrorMessage != "":
		return "ERROR - " + report.ErrorMessage
	case !report.Evaluated:
		return "NOT EVALUATED"
	default:
		return "Complete"
	}
}

// verdictText returns the human verdict for a finished check.
func verdictText(report *model.CheckReport) string {
	switch {
	case !report.Evaluated || report.ErrorMessage != "":
		return "no verdict"
	case report.Clean:
		return "clean"
	default:
		return "listed"
	}
}

// truncateString truncates a string to maxLen runes with an ellipsis.
func truncateString(s string, maxLen int) string {
	r := []rune(s)
	if len(r) <= maxLen {
		return s
	}
	if maxLen <= 3 {
		return string(r[:maxLen])
	}
	return string(r[:maxLen-3]) + "..."
}
