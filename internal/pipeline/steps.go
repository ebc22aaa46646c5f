package pipeline

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/nao1215/dnsblcheck/internal/aggregator"
	"github.com/nao1215/dnsblcheck/internal/extractor"
	"github.com/nao1215/dnsblcheck/internal/model"
	"github.com/nao1215/dnsblcheck/internal/web"
)

// Step names recorded in CheckReport.PerformedSteps.
const (
	StepRetrieve = "retrieve"
	StepExtract  = "extract"
	StepEvaluate = "evaluate"
)

// ErrNoResultPage is returned by ExtractStep when no page was retrieved.
var ErrNoResultPage = errors.New("no result page to extract from")

// PageRetriever fetches the aggregator's result page for a host.
// *web.Retriever implements it.
type PageRetriever interface {
	Retrieve(ctx context.Context, host string) (*web.Page, error)
}

// RetrieveStep submits the host to the aggregator and stores the result page.
// A retrieval failure is fatal to the check.
type RetrieveStep struct {
	retriever PageRetriever
	logger    *slog.Logger
}

// NewRetrieveStep creates a RetrieveStep.
func NewRetrieveStep(retriever PageRetriever, logger *slog.Logger) *RetrieveStep {
	if logger == nil {
		logger = slog.Default()
	}
	return &RetrieveStep{retriever: retriever, logger: logger}
}

// Name returns the step name.
func (s *RetrieveStep) Name() string {
	return StepRetrieve
}

// Do executes the retrieve step.
func (s *RetrieveStep) Do(ctx context.Context, report *model.CheckReport) error {
	page, err := s.retriever.Retrieve(ctx, report.Host)
	if err != nil {
		return err
	}
	report.ResultPage = page.Body
	s.logger.Info("result page retrieved", "host", report.Host, "bytes", len(page.Body))
	return nil
}

// ExtractStep parses the result page into provider records.
type ExtractStep struct {
	baseURL    string
	tableClass string
	logger     *slog.Logger
}

// ExtractStepOption configures an ExtractStep.
type ExtractStepOption func(*ExtractStep)

// WithBaseURL sets the URL image references are resolved against.
// The default is the report's service URL.
func WithBaseURL(u string) ExtractStepOption {
	return func(s *ExtractStep) {
		s.baseURL = u
	}
}

// WithTableClass restricts extraction to tables carrying this class.
func WithTableClass(class string) ExtractStepOption {
	return func(s *ExtractStep) {
		s.tableClass = class
	}
}

// WithExtractLogger sets the logger.
func WithExtractLogger(logger *slog.Logger) ExtractStepOption {
	return func(s *ExtractStep) {
		s.logger = logger
	}
}

// NewExtractStep creates an ExtractStep.
func NewExtractStep(opts ...ExtractStepOption) *ExtractStep {
	s := &ExtractStep{logger: slog.Default()}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Name returns the step name.
func (s *ExtractStep) Name() string {
	return StepExtract
}

// Do executes the extract step. A fresh extractor is used for every page.
func (s *ExtractStep) Do(_ context.Context, report *model.CheckReport) error {
	if report.ResultPage == nil {
		return ErrNoResultPage
	}

	base := s.baseURL
	if base == "" {
		base = report.Service
	}

	ex, err := extractor.New(base,
		extractor.WithTableClass(s.tableClass),
		extractor.WithLogger(s.logger),
	)
	if err != nil {
		return fmt.Errorf("failed to create extractor: %w", err)
	}

	result, err := ex.Extract(bytes.NewReader(report.ResultPage))
	if err != nil {
		return fmt.Errorf("failed to extract providers: %w", err)
	}

	report.Providers = result.Records
	report.Diagnostics = result.Diagnostics

	s.logger.Info("providers extracted",
		"host", report.Host,
		"providers", result.Diagnostics.RecordsEmitted,
		"cells", result.Diagnostics.CellsSeen,
	)
	if result.Diagnostics.HasAnomalies() {
		s.logger.Warn("result page markup was unbalanced",
			"host", report.Host,
			"anomalies", result.Diagnostics.Anomalies,
		)
	}
	return nil
}

// EvaluateStep fetches and classifies the status images and sets the verdict.
type EvaluateStep struct {
	aggregator *aggregator.Aggregator
	logger     *slog.Logger
}

// NewEvaluateStep creates an EvaluateStep.
func NewEvaluateStep(agg *aggregator.Aggregator, logger *slog.Logger) *EvaluateStep {
	if logger == nil {
		logger = slog.Default()
	}
	return &EvaluateStep{aggregator: agg, logger: logger}
}

// Name returns the step name.
func (s *EvaluateStep) Name() string {
	return StepEvaluate
}

// Do executes the evaluate step. Per-image failures are recorded on the
// providers and never returned as errors. If ctx is cancelled while the
// images are fetched, no verdict is recorded and the context error is
// returned.
func (s *EvaluateStep) Do(ctx context.Context, report *model.CheckReport) error {
	providers, clean := s.aggregator.Evaluate(ctx, report.Providers)

	report.Providers = providers
	report.Strategy = s.aggregator.Strategy()
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("evaluation interrupted: %w", err)
	}

	report.Clean = clean
	report.Evaluated = true

	counts := report.Counts()
	s.logger.Info("host evaluated",
		"host", report.Host,
		"clean", clean,
		"providers_clean", counts.Clean,
		"providers_listed", counts.Listed,
		"providers_unknown", counts.Unknown,
	)
	for _, p := range report.Failing() {
		s.logger.Info("provider not clean", "host", report.Host, "provider", p.Name, "status", p.Status.String())
	}
	return nil
}

// Components holds what a check pipeline needs.
type Components struct {
	Retriever  PageRetriever
	Aggregator *aggregator.Aggregator

	// TableClass restricts extraction to tables carrying this class.
	TableClass string

	// BaseURL overrides the URL image references are resolved against.
	BaseURL string

	Logger *slog.Logger
}

// DefaultPipeline builds the retrieve, extract and evaluate pipeline.
func DefaultPipeline(c Components, opts ...Option) *Pipeline {
	logger := c.Logger
	if logger == nil {
		logger = slog.Default()
	}

	p := New(append([]Option{WithLogger(logger)}, opts...)...)
	p.AddSteps(
		NewRetrieveStep(c.Retriever, logger),
		NewExtractStep(
			WithBaseURL(c.BaseURL),
			WithTableClass(c.TableClass),
			WithExtractLogger(logger),
		),
		NewEvaluateStep(c.Aggregator, logger),
	)
	return p
}
