package aggregator

import (
	"context"
	"log/slog"

	"github.com/nao1215/dnsblcheck/internal/digest"
	"github.com/nao1215/dnsblcheck/internal/fetcher"
	"github.com/nao1215/dnsblcheck/internal/model"
)

// Aggregator classifies provider records and computes the verdict.
type Aggregator struct {
	classifier *digest.Classifier
	ignore     IgnoreSet
	source     fetcher.Source
	logger     *slog.Logger
}

// Option configures an Aggregator.
type Option func(*Aggregator)

// WithClassifier sets the reference digests used for classification.
func WithClassifier(c *digest.Classifier) Option {
	return func(a *Aggregator) {
		a.classifier = c
	}
}

// WithIgnoreSet sets the providers exempt from the verdict.
func WithIgnoreSet(s IgnoreSet) Option {
	return func(a *Aggregator) {
		a.ignore = s
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(a *Aggregator) {
		a.logger = logger
	}
}

// New creates an Aggregator that fetches images through source.
// Without options it uses the default reference digests and ignore set.
func New(source fetcher.Source, opts ...Option) *Aggregator {
	a := &Aggregator{
		source: source,
		ignore: DefaultIgnoreSet(),
	}
	for _, opt := range opts {
		opt(a)
	}
	if a.classifier == nil {
		a.classifier = digest.DefaultClassifier()
	}
	if a.logger == nil {
		a.logger = slog.Default()
	}
	return a
}

// Strategy returns the name of the fetch strategy in use.
func (a *Aggregator) Strategy() string {
	return a.source.Name()
}

// Evaluate fetches, classifies and judges records.
//
// The returned slice is a copy of records, in the same order, with Status,
// Digest, FetchError and Ignored filled in. Records whose image could not be
// fetched, or whose result never arrived, stay StatusUnknown.
func (a *Aggregator) Evaluate(ctx context.Context, records []model.ProviderRecord) ([]model.ProviderRecord, bool) {
	refs := make([]string, 0, len(records))
	for _, r := range records {
		refs = append(refs, r.ImageURL)
	}

	outcomes := a.source.Fetch(ctx, refs)

	evaluated := make([]model.ProviderRecord, len(records))
	for i, r := range records {
		r.Status = model.StatusUnknown
		r.Digest = ""
		r.FetchError = ""
		r.Ignored = a.ignore.Contains(r.Name)

		out, ok := outcomes[r.ImageURL]
		switch {
		case !ok:
			a.logger.Debug("no fetch result for provider", "provider", r.Name, "url", r.ImageURL)
		case out.Err != nil:
			r.FetchError = out.Err.Error()
		default:
			r.Digest = out.Digest.String()
			r.Status = a.classifier.ClassifySum(out.Digest)
		}

		if r.Status == model.StatusUnknown && r.FetchError == "" && r.Digest != "" {
			a.logger.Warn("status image matches no reference digest",
				"provider", r.Name,
				"digest", r.Digest,
			)
		}
		evaluated[i] = r
	}

	if len(evaluated) == 0 {
		a.logger.Warn("no providers found on result page; verdict is vacuously clean")
	}

	return evaluated, Decide(evaluated)
}

// Decide returns the verdict for already evaluated records: true unless
// some record is not clean and not ignored. It does not depend on the
// order of records.
func Decide(records []model.ProviderRecord) bool {
	for _, r := range records {
		if r.Fails() {
			return false
		}
	}
	return true
}
