package web

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"golang.org/x/net/html/charset"
)

// Retriever defaults.
const (
	// DefaultServiceURL is the aggregator site.
	DefaultServiceURL = "http://www.dnsbl.info"

	// DefaultField is the form control that receives the host.
	DefaultField = "IP"

	// DefaultMaxBodySize caps the service and result pages.
	DefaultMaxBodySize = 5 * 1024 * 1024 // 5MB
)

// Page is a decoded HTML page.
type Page struct {
	// URL is the final URL after redirects.
	URL *url.URL

	// ContentType is the Content-Type header the server sent.
	ContentType string

	// Body is the page markup decoded to UTF-8.
	Body []byte
}

// Retriever submits hosts to the aggregator's lookup form.
type Retriever struct {
	client      *http.Client
	serviceURL  *url.URL
	field       string
	formIndex   int
	maxBodySize int64
	logger      *slog.Logger
}

// RetrieverOption configures a Retriever.
type RetrieverOption func(*Retriever)

// WithField sets the form control that receives the host.
func WithField(name string) RetrieverOption {
	return func(r *Retriever) {
		if name != "" {
			r.field = name
		}
	}
}

// WithFormIndex selects which form on the service page is submitted.
func WithFormIndex(i int) RetrieverOption {
	return func(r *Retriever) {
		if i >= 0 {
			r.formIndex = i
		}
	}
}

// WithMaxBodySize sets the page size limit in bytes.
func WithMaxBodySize(size int64) RetrieverOption {
	return func(r *Retriever) {
		if size > 0 {
			r.maxBodySize = size
		}
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) RetrieverOption {
	return func(r *Retriever) {
		r.logger = logger
	}
}

// NewRetriever creates a Retriever for the service at serviceURL.
func NewRetriever(client *http.Client, serviceURL string, opts ...RetrieverOption) (*Retriever, error) {
	u, err := url.Parse(serviceURL)
	if err != nil {
		return nil, fmt.Errorf("invalid service URL: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("invalid service URL %q: scheme must be http or https", serviceURL)
	}

	r := &Retriever{
		client:      client,
		serviceURL:  u,
		field:       DefaultField,
		maxBodySize: DefaultMaxBodySize,
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.client == nil {
		r.client = http.DefaultClient
	}
	if r.logger == nil {
		r.logger = slog.Default()
	}
	return r, nil
}

// ServiceURL returns the aggregator URL.
func (r *Retriever) ServiceURL() *url.URL {
	return r.serviceURL
}

// Retrieve loads the service page, submits host through its form and
// returns the result page. Every failure is a *RetrievalError.
func (r *Retriever) Retrieve(ctx context.Context, host string) (*Page, error) {
	host = strings.TrimSpace(host)
	if host == "" {
		return nil, &RetrievalError{Stage: StageForm, URL: r.serviceURL.String(), Err: ErrEmptyHost}
	}

	r.logger.Info("opening service page", "url", r.serviceURL.String())
	start, err := r.do(ctx, http.MethodGet, r.serviceURL, nil)
	if err != nil {
		return nil, &RetrievalError{Stage: StageOpen, URL: r.serviceURL.String(), Err: err}
	}

	form, err := ParseForm(bytes.NewReader(start.Body), start.URL, r.formIndex)
	if err != nil {
		return nil, &RetrievalError{Stage: StageForm, URL: start.URL.String(), Err: err}
	}
	if !form.Has(r.field) {
		return nil, &RetrievalError{
			Stage: StageForm,
			URL:   start.URL.String(),
			Err:   fmt.Errorf("%w: %s", ErrFieldNotFound, r.field),
		}
	}
	form.Values.Set(r.field, host)

	r.logger.Info("submitting lookup form",
		"action", form.Action.String(),
		"method", form.Method,
		"host", host,
	)

	var result *Page
	if form.Method == http.MethodPost {
		result, err = r.do(ctx, http.MethodPost, form.Action, strings.NewReader(form.Encode()))
	} else {
		target := *form.Action
		target.RawQuery = form.Encode()
		result, err = r.do(ctx, http.MethodGet, &target, nil)
	}
	if err != nil {
		return nil, &RetrievalError{Stage: StageSubmit, URL: form.Action.String(), Err: err}
	}

	r.logger.Debug("result page received", "url", result.URL.String(), "bytes", len(result.Body))
	return result, nil
}

// do performs one request and returns the decoded page.
func (r *Retriever) do(ctx context.Context, method string, target *url.URL, body io.Reader) (*Page, error) {
	req, err := http.NewRequestWithContext(ctx, method, target.String(), body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "text/html,application/xhtml+xml;q=0.9,*/*;q=0.8")
	if body != nil {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}

	resp, err := r.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("%w: %d", ErrUnexpectedStatus, resp.StatusCode)
	}

	raw, err := io.ReadAll(io.LimitReader(resp.Body, r.maxBodySize+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read page: %w", err)
	}
	if int64(len(raw)) > r.maxBodySize {
		return nil, fmt.Errorf("%w: more than %d bytes", ErrBodyTooLarge, r.maxBodySize)
	}

	contentType := resp.Header.Get("Content-Type")
	decoded, err := decode(raw, contentType)
	if err != nil {
		return nil, err
	}

	return &Page{
		URL:         resp.Request.URL,
		ContentType: contentType,
		Body:        decoded,
	}, nil
}

// decode converts raw page bytes to UTF-8 using the Content-Type header,
// a byte order mark or a meta charset declaration.
func decode(raw []byte, contentType string) ([]byte, error) {
	if len(raw) == 0 {
		return raw, nil
	}
	reader, err := charset.NewReader(bytes.NewReader(raw), contentType)
	if err != nil {
		return nil, fmt.Errorf("failed to decode page: %w", err)
	}
	decoded, err := io.ReadAll(reader)
	if err != nil {
		return nil, fmt.Errorf("failed to decode page: %w", err)
	}
	return decoded, nil
}
