package extractor

import (
	"fmt"
	"io"
	"log/slog"
	"strings"
	"testing"

	"github.com/nao1215/dnsblcheck/internal/model"
)

const testBaseURL = "http://www.dnsbl.info"

// newTestExtractor creates an extractor with a discarding logger.
func newTestExtractor(t *testing.T, opts ...Option) *Extractor {
	t.Helper()

	opts = append([]Option{WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil)))}, opts...)
	e, err := New(testBaseURL, opts...)
	if err != nil {
		t.Fatalf("failed to create extractor: %v", err)
	}
	return e
}

// providerCell renders one result page cell.
func providerCell(name, img string) string {
	return fmt.Sprintf(`<td><img src="%s" alt="status"> <a href="/dnsbl-details.php?dnsbl=%s">%s</a></td>`, img, name, name)
}

// TestExtract tests extraction from result page markup.
func TestExtract(t *testing.T) {
	t.Parallel()

	t.Run("yields one record per cell in document order", func(t *testing.T) {
		t.Parallel()

		names := []string{"b.barracudacentral.org", "bl.spamcop.net", "cbl.abuseat.org", "zen.spamhaus.org"}
		var sb strings.Builder
		sb.WriteString(`<html><body><table class="body_sub_page"><tr>`)
		for i, name := range names {
			sb.WriteString(providerCell(name, fmt.Sprintf("/images/status%d.gif", i)))
		}
		sb.WriteString(`</tr></table></body></html>`)

		e := newTestExtractor(t)
		result, err := e.Extract(strings.NewReader(sb.String()))
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		if len(result.Records) != len(names) {
			t.Fatalf("expected %d records, got %d", len(names), len(result.Records))
		}
		for i, name := range names {
			got := result.Records[i]
			if got.Name != name {
				t.Errorf("record %d: expected name %q, got %q", i, name, got.Name)
			}
			wantURL := fmt.Sprintf("%s/images/status%d.gif", testBaseURL, i)
			if got.ImageURL != wantURL {
				t.Errorf("record %d: expected image %q, got %q", i, wantURL, got.ImageURL)
			}
			if got.Status != model.StatusUnknown {
				t.Errorf("record %d: expected unknown status, got %s", i, got.Status)
			}
		}

		d := result.Diagnostics
		if d.TablesSeen != 1 || d.CellsSeen != 4 || d.RecordsEmitted != 4 || d.Anomalies != 0 {
			t.Errorf("unexpected diagnostics: %+v", d)
		}
	})

	t.Run("cell with image but no link text yields empty name", func(t *testing.T) {
		t.Parallel()

		html := `<table><tr><td><img src="/images/ok.gif"></td></tr></table>`
		e := newTestExtractor(t)
		result, err := e.Extract(strings.NewReader(html))
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(result.Records) != 1 {
			t.Fatalf("expected 1 record, got %d", len(result.Records))
		}
		if result.Records[0].Name != "" {
			t.Errorf("expected empty name, got %q", result.Records[0].Name)
		}
	})

	t.Run("cell with link but no image yields no record", func(t *testing.T) {
		t.Parallel()

		html := `<table><tr><td><a href="#">bl.example.org</a></td>` + providerCell("zen.spamhaus.org", "/ok.gif") + `</tr></table>`
		e := newTestExtractor(t)
		result, err := e.Extract(strings.NewReader(html))
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(result.Records) != 1 {
			t.Fatalf("expected 1 record, got %d", len(result.Records))
		}
		if result.Records[0].Name != "zen.spamhaus.org" {
			t.Errorf("expected zen.spamhaus.org, got %q", result.Records[0].Name)
		}
		if result.Diagnostics.CellsWithoutImage != 1 {
			t.Errorf("expected 1 cell without image, got %d", result.Diagnostics.CellsWithoutImage)
		}
	})

	t.Run("pending name does not leak into the next cell", func(t *testing.T) {
		t.Parallel()

		html := `<table><tr>` + providerCell("first.example.org", "/a.gif") + `<td><img src="/b.gif"></td></tr></table>`
		e := newTestExtractor(t)
		result, err := e.Extract(strings.NewReader(html))
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(result.Records) != 2 {
			t.Fatalf("expected 2 records, got %d", len(result.Records))
		}
		if result.Records[1].Name != "" {
			t.Errorf("expected second record to have empty name, got %q", result.Records[1].Name)
		}
	})

	t.Run("last image in a cell wins", func(t *testing.T) {
		t.Parallel()

		html := `<table><tr><td><img src="/first.gif"><img src="/second.gif"><a>x</a></td></tr></table>`
		e := newTestExtractor(t)
		result, err := e.Extract(strings.NewReader(html))
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(result.Records) != 1 {
			t.Fatalf("expected 1 record, got %d", len(result.Records))
		}
		if result.Records[0].ImageURL != testBaseURL+"/second.gif" {
			t.Errorf("expected second image, got %q", result.Records[0].ImageURL)
		}
	})

	t.Run("cells outside any table are ignored", func(t *testing.T) {
		t.Parallel()

		html := `<div><td><img src="/x.gif"><a>outside</a></td></div>`
		e := newTestExtractor(t)
		result, err := e.Extract(strings.NewReader(html))
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(result.Records) != 0 {
			t.Errorf("expected no records, got %d", len(result.Records))
		}
	})

	t.Run("table class marker filters tables", func(t *testing.T) {
		t.Parallel()

		html := `<table class="layout"><tr>` + providerCell("ignored.example.org", "/x.gif") + `</tr></table>` +
			`<table class="wide results"><tr>` + providerCell("bl.spamcop.net", "/ok.gif") + `</tr></table>`
		e := newTestExtractor(t, WithTableClass("results"))
		result, err := e.Extract(strings.NewReader(html))
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(result.Records) != 1 {
			t.Fatalf("expected 1 record, got %d", len(result.Records))
		}
		if result.Records[0].Name != "bl.spamcop.net" {
			t.Errorf("expected bl.spamcop.net, got %q", result.Records[0].Name)
		}
		if result.Diagnostics.TablesSeen != 1 {
			t.Errorf("expected 1 tracked table, got %d", result.Diagnostics.TablesSeen)
		}
	})

	t.Run("absolute image URLs are kept", func(t *testing.T) {
		t.Parallel()

		html := `<table><tr>` + providerCell("a", "https://img.example.net/ok.gif") + `</tr></table>`
		e := newTestExtractor(t)
		result, err := e.Extract(strings.NewReader(html))
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if result.Records[0].ImageURL != "https://img.example.net/ok.gif" {
			t.Errorf("unexpected image URL %q", result.Records[0].ImageURL)
		}
	})

	t.Run("entities in link text are unescaped", func(t *testing.T) {
		t.Parallel()

		html := `<table><tr><td><img src="/ok.gif"><a>Spam &amp; Abuse</a></td></tr></table>`
		e := newTestExtractor(t)
		result, err := e.Extract(strings.NewReader(html))
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if result.Records[0].Name != "Spam & Abuse" {
			t.Errorf("expected unescaped name, got %q", result.Records[0].Name)
		}
	})

	t.Run("empty markup yields no records and no error", func(t *testing.T) {
		t.Parallel()

		e := newTestExtractor(t)
		result, err := e.Extract(strings.NewReader(""))
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(result.Records) != 0 {
			t.Errorf("expected no records, got %d", len(result.Records))
		}
	})

	t.Run("extractor state is reset between calls", func(t *testing.T) {
		t.Parallel()

		e := newTestExtractor(t)
		// Leaves the automaton inside an open cell.
		if _, err := e.Extract(strings.NewReader(`<table><td><img src="/x.gif">`)); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		result, err := e.Extract(strings.NewReader(`<table><tr>` + providerCell("a", "/a.gif") + `</tr></table>`))
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(result.Records) != 1 || result.Records[0].Name != "a" {
			t.Errorf("unexpected records after reset: %+v", result.Records)
		}
		if result.Diagnostics.Anomalies != 0 {
			t.Errorf("expected anomalies to be reset, got %d", result.Diagnostics.Anomalies)
		}
	})
}

// TestExtractMalformed tests that unbalanced markup degrades without failing.
func TestExtractMalformed(t *testing.T) {
	t.Parallel()

	t.Run("unclosed table is parsed best-effort", func(t *testing.T) {
		t.Parallel()

		html := `<table><tr>` + providerCell("a", "/a.gif") + providerCell("b", "/b.gif")
		e := newTestExtractor(t)
		result, err := e.Extract(strings.NewReader(html))
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(result.Records) != 2 {
			t.Errorf("expected 2 records, got %d", len(result.Records))
		}
		if result.Diagnostics.Anomalies != 1 {
			t.Errorf("expected 1 anomaly, got %d", result.Diagnostics.Anomalies)
		}
	})

	t.Run("unclosed cell at end of input is dropped", func(t *testing.T) {
		t.Parallel()

		html := `<table><tr>` + providerCell("a", "/a.gif") + `<td><img src="/b.gif"><a>b</a>`
		e := newTestExtractor(t)
		result, err := e.Extract(strings.NewReader(html))
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(result.Records) != 1 {
			t.Errorf("expected 1 record, got %d", len(result.Records))
		}
		if result.Diagnostics.CellsSeen != 2 {
			t.Errorf("expected 2 cells seen, got %d", result.Diagnostics.CellsSeen)
		}
		if !result.Diagnostics.HasAnomalies() {
			t.Error("expected anomalies to be reported")
		}
	})

	t.Run("nested cell open is an anomaly and keeps the cell", func(t *testing.T) {
		t.Parallel()

		html := `<table><tr><td><img src="/a.gif"><td><a>a</a></td></tr></table>`
		e := newTestExtractor(t)
		result, err := e.Extract(strings.NewReader(html))
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(result.Records) != 1 {
			t.Fatalf("expected 1 record, got %d", len(result.Records))
		}
		if result.Records[0].Name != "a" || result.Records[0].ImageURL != testBaseURL+"/a.gif" {
			t.Errorf("unexpected record: %+v", result.Records[0])
		}
		if result.Diagnostics.Anomalies != 1 {
			t.Errorf("expected 1 anomaly, got %d", result.Diagnostics.Anomalies)
		}
	})

	t.Run("nested table closes the tracked table early", func(t *testing.T) {
		t.Parallel()

		html := `<table><tr>` + providerCell("a", "/a.gif") +
			`<td><table><tr><td>inner</td></tr></table></td>` +
			providerCell("b", "/b.gif") + `</tr></table>`
		e := newTestExtractor(t)
		result, err := e.Extract(strings.NewReader(html))
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(result.Records) != 1 {
			t.Errorf("expected only the record before the nested table, got %d", len(result.Records))
		}
		if !result.Diagnostics.HasAnomalies() {
			t.Error("expected anomalies to be reported")
		}
	})
}

// TestHandleEvents drives the automaton directly with events.
func TestHandleEvents(t *testing.T) {
	t.Parallel()

	e := newTestExtractor(t)
	events := []Event{
		StartTag("TABLE", Attr("class", "x")),
		StartTag("td"),
		StartTag("img", Attr("src", "/images/ok.gif")),
		StartTag("a", Attr("href", "#")),
		Text("  first  "),
		Text("bl.example.org"),
		Text("   "),
		EndTag("a"),
		Text("not a name"),
		EndTag("td"),
		EndTag("table"),
	}
	for _, ev := range events {
		e.Handle(ev)
	}

	result := e.Finish()
	if len(result.Records) != 1 {
		t.Fatalf("expected 1 record, got %d", len(result.Records))
	}
	if result.Records[0].Name != "bl.example.org" {
		t.Errorf("expected last text node to win, got %q", result.Records[0].Name)
	}
	if result.Diagnostics.Anomalies != 0 {
		t.Errorf("expected no anomalies, got %d", result.Diagnostics.Anomalies)
	}
}

// TestNew tests extractor construction.
func TestNew(t *testing.T) {
	t.Parallel()

	if _, err := New("http://[::1"); err == nil {
		t.Error("expected error for invalid base URL")
	}
}
