package extractor

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/url"
	"strings"

	"golang.org/x/net/html"

	"github.com/nao1215/dnsblcheck/internal/model"
)

// HTML element and attribute names the automaton reacts to.
const (
	elementTable = "table"
	elementCell  = "td"
	elementImage = "img"
	elementLink  = "a"
	attrClass    = "class"
	attrSource   = "src"
)

// EventType identifies the kind of a markup parse event.
type EventType int

const (
	// StartTagEvent is an opening (or self-closing) tag with attributes.
	StartTagEvent EventType = iota

	// EndTagEvent is a closing tag.
	EndTagEvent

	// TextEvent is a run of character data.
	TextEvent
)

// Event is one markup parse event, in document order.
type Event struct {
	// Type is the kind of event.
	Type EventType

	// Name is the lower-case tag name for tag events.
	Name string

	// Attr holds the attributes of a start tag.
	Attr []html.Attribute

	// Text is the unescaped character data of a text event.
	Text string
}

// StartTag builds a start tag event.
func StartTag(name string, attrs ...html.Attribute) Event {
	return Event{Type: StartTagEvent, Name: strings.ToLower(name), Attr: attrs}
}

// EndTag builds an end tag event.
func EndTag(name string) Event {
	return Event{Type: EndTagEvent, Name: strings.ToLower(name)}
}

// Text builds a text event.
func Text(data string) Event {
	return Event{Type: TextEvent, Text: data}
}

// Attr builds an attribute for StartTag.
func Attr(key, val string) html.Attribute {
	return html.Attribute{Key: key, Val: val}
}

// Result is the outcome of one extraction.
type Result struct {
	// Records holds the provider records in document order.
	Records []model.ProviderRecord

	// Diagnostics describes what the automaton saw.
	Diagnostics model.ParseDiagnostics
}

// Extractor reconstructs provider records from a flat event stream.
// An Extractor is not safe for concurrent use; its parse state lives
// for the duration of one Extract call.
type Extractor struct {
	// baseURL resolves relative image references.
	baseURL *url.URL

	// tableClass is the class token the tracked table must carry.
	// Empty matches every table.
	tableClass string

	logger *slog.Logger

	insideTable bool
	insideCell  bool
	insideLink  bool

	// pendingImage and pendingName are only meaningful while insideCell is true.
	pendingImage string
	pendingName  string

	records []model.ProviderRecord
	diag    model.ParseDiagnostics
}

// Option configures an Extractor.
type Option func(*Extractor)

// WithTableClass restricts the tracked table to tables carrying the class token.
func WithTableClass(class string) Option {
	return func(e *Extractor) {
		e.tableClass = strings.TrimSpace(class)
	}
}

// WithLogger sets the logger used for debug and anomaly messages.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Extractor) {
		e.logger = logger
	}
}

// New creates an Extractor that resolves image references against baseURL.
func New(baseURL string, opts ...Option) (*Extractor, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid base URL %q: %w", baseURL, err)
	}

	e := &Extractor{baseURL: u}
	for _, opt := range opts {
		opt(e)
	}
	if e.logger == nil {
		e.logger = slog.Default()
	}
	e.Reset()

	return e, nil
}

// Reset clears the parse state, records and diagnostics.
func (e *Extractor) Reset() {
	e.insideTable = false
	e.insideCell = false
	e.insideLink = false
	e.pendingImage = ""
	e.pendingName = ""
	e.records = make([]model.ProviderRecord, 0)
	e.diag = model.ParseDiagnostics{}
}

// Extract tokenizes r and feeds every event to the automaton.
// It returns an error only when reading r fails; malformed markup
// is reported through the diagnostics.
func (e *Extractor) Extract(r io.Reader) (*Result, error) {
	e.Reset()

	z := html.NewTokenizer(r)
	for {
		tt := z.Next()
		switch tt {
		case html.ErrorToken:
			if errors.Is(z.Err(), io.EOF) {
				return e.Finish(), nil
			}
			return nil, fmt.Errorf("failed to tokenize result page: %w", z.Err())
		case html.StartTagToken, html.SelfClosingTagToken:
			tok := z.Token()
			e.Handle(Event{Type: StartTagEvent, Name: tok.Data, Attr: tok.Attr})
		case html.EndTagToken:
			tok := z.Token()
			e.Handle(Event{Type: EndTagEvent, Name: tok.Data})
		case html.TextToken:
			e.Handle(Event{Type: TextEvent, Text: string(z.Text())})
		default:
			// Comments and doctypes carry nothing we track.
		}
	}
}

// Handle advances the automaton by one event.
func (e *Extractor) Handle(ev Event) {
	switch ev.Type {
	case StartTagEvent:
		e.handleStart(ev)
	case EndTagEvent:
		e.handleEnd(ev)
	case TextEvent:
		e.handleText(ev)
	}
}

// Finish ends the event stream and returns the records collected so far.
// Input that ends inside the tracked table counts as an anomaly, and a
// cell left open is dropped.
func (e *Extractor) Finish() *Result {
	if e.insideCell {
		e.anomaly("input ended inside a cell", "pending_image", e.pendingImage)
		e.clearCell()
	}
	if e.insideTable {
		e.anomaly("input ended inside the provider table")
		e.insideTable = false
	}

	e.diag.RecordsEmitted = len(e.records)
	if e.diag.CellsSeen > e.diag.RecordsEmitted {
		e.logger.Debug("cells without provider records",
			"cells", e.diag.CellsSeen,
			"records", e.diag.RecordsEmitted,
		)
	}

	records := make([]model.ProviderRecord, len(e.records))
	copy(records, e.records)

	return &Result{
		Records:     records,
		Diagnostics: e.diag,
	}
}

func (e *Extractor) handleStart(ev Event) {
	switch ev.Name {
	case elementTable:
		if e.insideTable {
			e.anomaly("table opened inside the provider table")
		}
		if e.matchesTable(ev.Attr) {
			e.logger.Debug("provider table", "class", attrValue(ev.Attr, attrClass))
			e.insideTable = true
			e.diag.TablesSeen++
		}

	case elementCell:
		if !e.insideTable {
			return
		}
		if e.insideCell {
			e.anomaly("cell opened inside a cell")
			return
		}
		e.insideCell = true
		e.diag.CellsSeen++

	case elementImage:
		if !e.insideTable || !e.insideCell {
			return
		}
		// Last image wins; the page carries one image per cell.
		if src := strings.TrimSpace(attrValue(ev.Attr, attrSource)); src != "" {
			e.pendingImage = src
		}

	case elementLink:
		if e.insideTable && e.insideCell {
			e.insideLink = true
		}
	}
}

func (e *Extractor) handleEnd(ev Event) {
	switch ev.Name {
	case elementCell:
		if !e.insideCell {
			return
		}
		if !e.insideTable {
			e.anomaly("cell closed after the provider table", "pending_image", e.pendingImage)
			e.clearCell()
			return
		}
		if e.insideLink {
			e.anomaly("cell closed inside a link", "name", e.pendingName)
		}
		e.emit()
		e.clearCell()

	case elementTable:
		if !e.insideTable {
			return
		}
		if e.insideCell {
			e.anomaly("table closed inside a cell")
		}
		e.insideTable = false

	case elementLink:
		e.insideLink = false
	}
}

func (e *Extractor) handleText(ev Event) {
	if !e.insideLink {
		return
	}
	// Last non-blank text node inside the link wins.
	if name := strings.TrimSpace(ev.Text); name != "" {
		e.pendingName = name
	}
}

// emit appends a record for the current cell if it held an image.
func (e *Extractor) emit() {
	if e.pendingImage == "" {
		e.diag.CellsWithoutImage++
		return
	}

	record := model.ProviderRecord{
		Name:     e.pendingName,
		ImageURL: e.resolve(e.pendingImage),
		Status:   model.StatusUnknown,
	}
	e.logger.Debug("provider", "name", record.Name, "image", record.ImageURL)
	e.records = append(e.records, record)
}

// clearCell leaves the cell and resets the per-cell pending fields.
func (e *Extractor) clearCell() {
	e.insideCell = false
	e.insideLink = false
	e.pendingImage = ""
	e.pendingName = ""
}

// resolve turns an image reference into an absolute URL.
// References that cannot be parsed are appended to the base URL as-is.
func (e *Extractor) resolve(ref string) string {
	u, err := url.Parse(ref)
	if err != nil {
		return strings.TrimSuffix(e.baseURL.String(), "/") + ref
	}
	return e.baseURL.ResolveReference(u).String()
}

func (e *Extractor) matchesTable(attrs []html.Attribute) bool {
	if e.tableClass == "" {
		return true
	}
	for _, class := range strings.Fields(attrValue(attrs, attrClass)) {
		if class == e.tableClass {
			return true
		}
	}
	return false
}

func (e *Extractor) anomaly(msg string, args ...any) {
	e.diag.Anomalies++
	e.logger.Warn("result page: "+msg, args...)
}

// attrValue returns the value of the named attribute, or "".
func attrValue(attrs []html.Attribute, key string) string {
	for _, a := range attrs {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}
