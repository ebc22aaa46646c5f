package fetcher

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"golang.org/x/time/rate"

	"github.com/nao1215/dnsblcheck/internal/digest"
)

// DefaultMaxBodySize caps a status image download. Status images are a few
// hundred bytes; anything larger than this is not one of them.
const DefaultMaxBodySize = 1 * 1024 * 1024 // 1MB

var (
	// ErrUnexpectedStatus is returned when the image server answers with a
	// non-2xx status code.
	ErrUnexpectedStatus = errors.New("unexpected HTTP status")

	// ErrBodyTooLarge is returned when an image exceeds the size limit.
	ErrBodyTooLarge = errors.New("response body exceeds size limit")
)

// Outcome is the result of fetching one image reference.
// Exactly one of Digest (when Err is nil) or Err is meaningful.
type Outcome struct {
	// Reference is the image URL that was fetched.
	Reference string

	// Digest is the content digest of the response body.
	Digest digest.Sum

	// Size is the number of body bytes read.
	Size int64

	// Err is the reason the fetch failed.
	Err error
}

// OK reports whether the fetch succeeded.
func (o Outcome) OK() bool {
	return o.Err == nil
}

// Source fetches a set of image references.
// Implementations must return an outcome keyed by reference for every
// reference they managed to process; missing keys mean "no result".
type Source interface {
	// Name identifies the execution strategy.
	Name() string

	// Fetch retrieves every reference and returns the outcomes keyed by reference.
	Fetch(ctx context.Context, refs []string) map[string]Outcome
}

// Fetcher performs single image downloads.
type Fetcher struct {
	client      *http.Client
	maxBodySize int64
	limiter     *rate.Limiter
	logger      *slog.Logger
}

// Option configures a Fetcher.
type Option func(*Fetcher)

// WithMaxBodySize sets the largest accepted image size in bytes.
// Non-positive values keep the default.
func WithMaxBodySize(size int64) Option {
	return func(f *Fetcher) {
		if size > 0 {
			f.maxBodySize = size
		}
	}
}

// WithRateLimit caps image requests to perSecond requests per second,
// shared across every goroutine using this Fetcher. Non-positive values
// disable the limit.
func WithRateLimit(perSecond float64) Option {
	return func(f *Fetcher) {
		if perSecond > 0 {
			f.limiter = rate.NewLimiter(rate.Limit(perSecond), 1)
		} else {
			f.limiter = nil
		}
	}
}

// WithLogger sets the logger used for per-image messages.
func WithLogger(logger *slog.Logger) Option {
	return func(f *Fetcher) {
		f.logger = logger
	}
}

// New creates a Fetcher that downloads with client.
// A nil client falls back to http.DefaultClient.
func New(client *http.Client, opts ...Option) *Fetcher {
	f := &Fetcher{
		client:      client,
		maxBodySize: DefaultMaxBodySize,
	}
	for _, opt := range opts {
		opt(f)
	}
	if f.client == nil {
		f.client = http.DefaultClient
	}
	if f.logger == nil {
		f.logger = slog.Default()
	}
	return f
}

// FetchOne downloads ref and digests the body.
func (f *Fetcher) FetchOne(ctx context.Context, ref string) Outcome {
	out := Outcome{Reference: ref}

	if f.limiter != nil {
		if err := f.limiter.Wait(ctx); err != nil {
			out.Err = fmt.Errorf("rate limiter: %w", err)
			return out
		}
	}

	f.logger.Debug("fetching status image", "url", ref)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, ref, nil)
	if err != nil {
		out.Err = fmt.Errorf("failed to create request: %w", err)
		return out
	}

	resp, err := f.client.Do(req)
	if err != nil {
		out.Err = fmt.Errorf("failed to fetch image: %w", err)
		return out
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		out.Err = fmt.Errorf("%w: %d", ErrUnexpectedStatus, resp.StatusCode)
		return out
	}

	sum, n, err := digest.SumReader(io.LimitReader(resp.Body, f.maxBodySize+1))
	if err != nil {
		out.Err = fmt.Errorf("failed to read image: %w", err)
		return out
	}
	if n > f.maxBodySize {
		out.Err = fmt.Errorf("%w: more than %d bytes", ErrBodyTooLarge, f.maxBodySize)
		return out
	}

	out.Digest = sum
	out.Size = n

	f.logger.Debug("fetched status image", "url", ref, "bytes", n, "digest", sum.String())
	return out
}

// report logs a failed outcome.
func (f *Fetcher) report(out Outcome) {
	if out.Err != nil {
		f.logger.Warn("status image fetch failed", "url", out.Reference, "error", out.Err)
	}
}

// uniqueRefs drops empty and repeated references, keeping first-seen order.
func uniqueRefs(refs []string) []string {
	seen := make(map[string]bool, len(refs))
	unique := make([]string, 0, len(refs))
	for _, ref := range refs {
		if ref == "" || seen[ref] {
			continue
		}
		seen[ref] = true
		unique = append(unique, ref)
	}
	return unique
}
