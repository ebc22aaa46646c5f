package pipeline

import (
	"context"
	"log/slog"
	"time"

	"github.com/nao1215/dnsblcheck/internal/model"
	"golang.org/x/sync/errgroup"
)

// DefaultBatchConcurrency is the number of hosts checked at once.
const DefaultBatchConcurrency = 4

// BatchProcessor checks several hosts concurrently.
// Each host gets a fresh pipeline from the factory and its own report.
type BatchProcessor struct {
	pipelineFactory func() *Pipeline

	// newReport creates the report for a host.
	newReport func(host string) *model.CheckReport

	concurrency int

	logger *slog.Logger
}

// BatchOption configures a BatchProcessor.
type BatchOption func(*BatchProcessor)

// WithBatchLogger sets a custom logger for batch processing.
func WithBatchLogger(logger *slog.Logger) BatchOption {
	return func(b *BatchProcessor) {
		b.logger = logger
	}
}

// WithBatchConcurrency sets the maximum number of hosts checked at once.
func WithBatchConcurrency(n int) BatchOption {
	return func(b *BatchProcessor) {
		if n > 0 {
			b.concurrency = n
		}
	}
}

// WithReportFactory sets how the report for each host is created.
// The default creates a report with an empty service URL.
func WithReportFactory(f func(host string) *model.CheckReport) BatchOption {
	return func(b *BatchProcessor) {
		if f != nil {
			b.newReport = f
		}
	}
}

// NewBatchProcessor creates a BatchProcessor.
func NewBatchProcessor(pipelineFactory func() *Pipeline, opts ...BatchOption) *BatchProcessor {
	bp := &BatchProcessor{
		pipelineFactory: pipelineFactory,
		concurrency:     DefaultBatchConcurrency,
		newReport: func(host string) *model.CheckReport {
			return model.NewCheckReport(host, "")
		},
	}

	for _, opt := range opts {
		opt(bp)
	}

	if bp.logger == nil {
		bp.logger = slog.Default()
	}

	return bp
}

// ProcessBatch checks every host and returns the reports in input order.
// A failed check does not stop the others; its error is in its report.
// The returned error is non-nil only when ctx was cancelled, in which case
// hosts that never started have a nil report.
func (bp *BatchProcessor) ProcessBatch(ctx context.Context, hosts []string) ([]*model.CheckReport, error) {
	reports := make([]*model.CheckReport, len(hosts))
	err := bp.ProcessBatchWithCallback(ctx, hosts, func(report *model.CheckReport, index int) {
		// Each index is written by exactly one goroutine.
		reports[index] = report
	})
	return reports, err
}

// ProcessBatchWithCallback checks every host and calls callback as each
// check finishes. The callback runs on the worker goroutine and must be
// safe for concurrent use.
func (bp *BatchProcessor) ProcessBatchWithCallback(
	ctx context.Context,
	hosts []string,
	callback func(report *model.CheckReport, index int),
) error {
	bp.logger.Info("starting batch check",
		"total_hosts", len(hosts),
		"concurrency", bp.concurrency,
	)

	startTime := time.Now()

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(bp.concurrency)

	for i, host := range hosts {
		g.Go(func() error {
			select {
			case <-ctx.Done():
				return ctx.Err()
			default:
			}

			bp.logger.Info("checking host",
				"host", host,
				"index", i+1,
				"total", len(hosts),
			)

			report := bp.newReport(host)
			if err := bp.pipelineFactory().Execute(ctx, report); err != nil {
				bp.logger.Warn("check failed",
					"host", host,
					"error", err,
				)
			}

			callback(report, i)
			return nil
		})
	}

	err := g.Wait()

	bp.logger.Info("batch check complete",
		"total_hosts", len(hosts),
		"elapsed", time.Since(startTime),
	)

	return err
}
