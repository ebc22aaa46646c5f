package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/nao1215/dnsblcheck/internal/aggregator"
	"github.com/nao1215/dnsblcheck/internal/config"
	"github.com/nao1215/dnsblcheck/internal/digest"
	"github.com/nao1215/dnsblcheck/internal/fetcher"
	"github.com/nao1215/dnsblcheck/internal/history"
	applog "github.com/nao1215/dnsblcheck/internal/log"
	"github.com/nao1215/dnsblcheck/internal/model"
	"github.com/nao1215/dnsblcheck/internal/pipeline"
	"github.com/nao1215/dnsblcheck/internal/report"
	"github.com/nao1215/dnsblcheck/internal/web"
)

// NewCheckCmd creates the check command.
func NewCheckCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "check [host...]",
		Short: "Check mail servers against DNS blacklists",
		Long: `Check submits each host to the aggregator's lookup form and classifies
every provider on the result page by the status image it shows.

For each host one line is printed: "OK" when the host is clean, otherwise
"ERROR, check <service-url>". The exit status is 0 when every host is
clean, 2 when any host is listed or has a provider in an unknown state,
3 when no host was given and 1 when the result page could not be retrieved.

Examples:
  # Check a single mail server
  dnsblcheck check -s mx.example.com

  # Check several mail servers, two at a time
  dnsblcheck check --batch 2 mx1.example.com mx2.example.com

  # Fetch status images one at a time
  dnsblcheck check --strategy sequential mx.example.com

  # Show the per-provider breakdown
  dnsblcheck check --detail mx.example.com

  # Write a Markdown report and keep the result in the history database
  dnsblcheck check --markdown -o report.md --save mx.example.com

  # Go through a local SOCKS5 proxy
  dnsblcheck check --proxy 127.0.0.1:1080 mx.example.com`,
		Args: cobra.ArbitraryArgs,
		RunE: runCheckCmd,
	}

	cmd.Flags().StringP("server", "s", "",
		"Mail server to check (may also be given as arguments)")

	// Aggregator flags
	cmd.Flags().String("service-url", config.DefaultServiceURL,
		"URL of the aggregator page that holds the lookup form")
	cmd.Flags().String("field", config.DefaultFormField,
		"Name of the lookup form field that receives the host")
	cmd.Flags().String("table-class", config.DefaultTableClass,
		"Only parse result tables with this class (empty: every table)")
	cmd.Flags().StringSlice("ignore", config.DefaultIgnoreList(),
		"Providers whose status never affects the verdict")

	// Fetch flags
	cmd.Flags().String("strategy", config.DefaultStrategy,
		"Image fetch strategy: parallel or sequential")
	cmd.Flags().IntP("concurrency", "n", config.DefaultConcurrency,
		"Maximum concurrent image fetches (0 or less: unbounded)")
	cmd.Flags().DurationP("timeout", "t", config.DefaultTimeout,
		"Timeout for each HTTP request")
	cmd.Flags().Duration("drain-timeout", config.DefaultDrainTimeout,
		"How long to wait for each fetch result after all fetches finished")
	cmd.Flags().Float64("rate", 0,
		"Maximum image requests per second (0: unlimited)")
	cmd.Flags().String("proxy", "",
		"SOCKS5 proxy address (e.g. 127.0.0.1:1080 or socks5h://host:port)")

	// Batch flags
	cmd.Flags().IntP("batch", "b", config.DefaultBatchSize,
		"Number of hosts checked concurrently")

	// Configuration file
	cmd.Flags().StringP("config", "c", "",
		"Configuration file path (default: .dnsblcheck in current or home directory)")

	// Report flags
	cmd.Flags().BoolP("detail", "d", false,
		"Print the per-provider report after the verdict")
	cmd.Flags().BoolP("json", "j", false,
		"Output JSON report (mutually exclusive with --markdown)")
	cmd.Flags().BoolP("markdown", "m", false,
		"Output Markdown report (mutually exclusive with --json)")
	cmd.Flags().StringP("output", "o", "",
		"Write report to specified file path (creates directories if needed)")

	// History flags
	cmd.Flags().Bool("save", false,
		"Save the result to the history database")
	cmd.Flags().String("db-dir", "",
		"History database directory (default: XDG data directory)")

	return cmd
}

// runCheckCmd executes the check command.
func runCheckCmd(cmd *cobra.Command, args []string) error {
	cfg, err := buildConfig(cmd, args)
	if err != nil {
		return configError(err)
	}
	if err := cfg.Validate(); err != nil {
		return configError(err)
	}
	cfg.Verbose = getBoolFlag(cmd, "verbose")

	logger := setupLogger(cmd)
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return runCheck(ctx, cfg, cmd.OutOrStdout(), logger)
}

// getBoolFlag reads a boolean flag from the command or the root's
// persistent flags.
func getBoolFlag(cmd *cobra.Command, name string) bool {
	v, err := cmd.Flags().GetBool(name)
	if err != nil {
		v, err = cmd.Root().PersistentFlags().GetBool(name)
		if err != nil {
			return false
		}
	}
	return v
}

// setupLogger creates the stderr logger from the global flags.
func setupLogger(cmd *cobra.Command) *slog.Logger {
	return applog.NewLogger(cmd.ErrOrStderr(), getBoolFlag(cmd, "verbose"), getBoolFlag(cmd, "log-json"))
}

// buildConfig creates a Config from defaults, the configuration file and
// the command flags, in that order of precedence (lowest first).
func buildConfig(cmd *cobra.Command, args []string) (*config.Config, error) {
	cfg := config.NewConfig()
	flags := cmd.Flags()

	var err error
	cfg.ConfigFilePath, err = flags.GetString("config")
	if err != nil {
		return nil, err
	}

	// An explicit --config must exist; otherwise a missing file is fine.
	configPath := config.FindConfigFile(cfg.ConfigFilePath)
	switch {
	case configPath != "":
		file, err := config.LoadConfigFile(configPath)
		if err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", configPath, err)
		}
		cfg.Apply(file)
	case cfg.ConfigFilePath != "":
		return nil, fmt.Errorf("%w: %s", config.ErrConfigNotFound, cfg.ConfigFilePath)
	}

	if err := applyFlags(cmd, cfg); err != nil {
		return nil, err
	}

	server, err := flags.GetString("server")
	if err != nil {
		return nil, err
	}
	cfg.Targets = collectTargets(server, args)

	return cfg, nil
}

// applyFlags overrides cfg with every flag the user set explicitly.
func applyFlags(cmd *cobra.Command, cfg *config.Config) error {
	flags := cmd.Flags()

	stringFlags := map[string]*string{
		"service-url": &cfg.ServiceURL,
		"field":       &cfg.FormField,
		"table-class": &cfg.TableClass,
		"strategy":    &cfg.Strategy,
		"proxy":       &cfg.ProxyAddress,
		"output":      &cfg.ReportFile,
		"db-dir":      &cfg.DBDir,
	}
	for name, dst := range stringFlags {
		if !flags.Changed(name) {
			continue
		}
		v, err := flags.GetString(name)
		if err != nil {
			return err
		}
		*dst = v
	}

	intFlags := map[string]*int{
		"concurrency": &cfg.Concurrency,
		"batch":       &cfg.BatchSize,
	}
	for name, dst := range intFlags {
		if !flags.Changed(name) {
			continue
		}
		v, err := flags.GetInt(name)
		if err != nil {
			return err
		}
		*dst = v
	}

	if flags.Changed("timeout") {
		v, err := flags.GetDuration("timeout")
		if err != nil {
			return err
		}
		cfg.Timeout = v
	}
	if flags.Changed("drain-timeout") {
		v, err := flags.GetDuration("drain-timeout")
		if err != nil {
			return err
		}
		cfg.DrainTimeout = v
	}
	if flags.Changed("rate") {
		v, err := flags.GetFloat64("rate")
		if err != nil {
			return err
		}
		cfg.RateLimit = v
	}
	if flags.Changed("ignore") {
		v, err := flags.GetStringSlice("ignore")
		if err != nil {
			return err
		}
		cfg.IgnoreList = v
	}

	boolFlags := map[string]*bool{
		"detail":   &cfg.Detail,
		"json":     &cfg.JSONReport,
		"markdown": &cfg.MarkdownReport,
		"save":     &cfg.SaveHistory,
	}
	for name, dst := range boolFlags {
		v, err := flags.GetBool(name)
		if err != nil {
			return err
		}
		*dst = v
	}

	return nil
}

// collectTargets merges --server and positional hosts, dropping blanks
// and duplicates.
func collectTargets(server string, args []string) []string {
	seen := make(map[string]bool)
	targets := make([]string, 0, len(args)+1)
	for _, host := range append([]string{server}, args...) {
		host = strings.TrimSpace(host)
		if host == "" || seen[host] {
			continue
		}
		seen[host] = true
		targets = append(targets, host)
	}
	return targets
}

// checker holds the shared components of a check run.
type checker struct {
	retriever  *web.Retriever
	aggregator *aggregator.Aggregator
	cfg        *config.Config
	logger     *slog.Logger
}

// newChecker wires the HTTP client, retriever, fetch source and
// aggregator described by cfg.
func newChecker(cfg *config.Config, logger *slog.Logger) (*checker, error) {
	client, err := web.NewHTTPClient(web.ClientOptions{
		Timeout:      cfg.Timeout,
		ProxyAddress: cfg.ProxyAddress,
		UserAgent:    cfg.UserAgent,
	})
	if err != nil {
		return nil, configError(err)
	}

	retriever, err := web.NewRetriever(client, cfg.ServiceURL,
		web.WithField(cfg.FormField),
		web.WithMaxBodySize(cfg.MaxBodySize),
		web.WithLogger(logger),
	)
	if err != nil {
		return nil, configError(err)
	}

	clean, err := digest.ParseSum(cfg.CleanDigest)
	if err != nil {
		return nil, configError(err)
	}
	listed, err := digest.ParseSum(cfg.ListedDigest)
	if err != nil {
		return nil, configError(err)
	}

	f := fetcher.New(client,
		fetcher.WithRateLimit(cfg.RateLimit),
		fetcher.WithLogger(logger),
	)

	var source fetcher.Source
	switch cfg.Strategy {
	case config.StrategySequential:
		source = fetcher.NewSequential(f)
	default:
		source = fetcher.NewParallel(f,
			fetcher.WithConcurrency(cfg.Concurrency),
			fetcher.WithDrainTimeout(cfg.DrainTimeout),
		)
	}

	agg := aggregator.New(source,
		aggregator.WithClassifier(digest.NewClassifier(clean, listed)),
		aggregator.WithIgnoreSet(aggregator.NewIgnoreSet(cfg.IgnoreList...)),
		aggregator.WithLogger(logger),
	)

	return &checker{
		retriever:  retriever,
		aggregator: agg,
		cfg:        cfg,
		logger:     logger,
	}, nil
}

// newPipeline builds the pipeline for one host.
func (c *checker) newPipeline() *pipeline.Pipeline {
	return pipeline.DefaultPipeline(pipeline.Components{
		Retriever:  c.retriever,
		Aggregator: c.aggregator,
		TableClass: c.cfg.TableClass,
		Logger:     c.logger,
	})
}

// newReport creates the report for host.
func (c *checker) newReport(host string) *model.CheckReport {
	return model.NewCheckReport(host, c.cfg.ServiceURL)
}

// runCheck checks every target and writes the results to stdout and,
// when configured, to a report file and the history database.
func runCheck(ctx context.Context, cfg *config.Config, stdout io.Writer, logger *slog.Logger) error {
	logger.Info("starting check",
		"targets", cfg.Targets,
		"service", cfg.ServiceURL,
		"strategy", cfg.Strategy,
		"batchSize", cfg.BatchSize,
	)

	c, err := newChecker(cfg, logger)
	if err != nil {
		return err
	}

	var store *history.Store
	if cfg.SaveHistory {
		store, err = history.Open(cfg.DBDir, history.DefaultOptions())
		if err != nil {
			return fmt.Errorf("failed to open history database: %w", err)
		}
		defer store.Close()
		logger.Info("history database opened", "path", store.Path())
	}

	writer, closeOutput, err := buildWriter(cfg, stdout)
	if err != nil {
		return err
	}
	defer closeOutput()

	bp := pipeline.NewBatchProcessor(c.newPipeline,
		pipeline.WithBatchConcurrency(cfg.BatchSize),
		pipeline.WithBatchLogger(logger),
		pipeline.WithReportFactory(c.newReport),
	)

	reports, batchErr := bp.ProcessBatch(ctx, cfg.Targets)

	for _, r := range reports {
		if r == nil {
			continue
		}
		if _, err := writer.Write(r); err != nil {
			return fmt.Errorf("failed to write report: %w", err)
		}
		if err := saveReport(ctx, store, r, logger); err != nil {
			logger.Error("failed to save check", "host", r.Host, "error", err)
		}
	}

	if batchErr != nil {
		return newExitError(exitFailure, fmt.Errorf("check interrupted: %w", batchErr))
	}
	return verdictError(reports)
}

// verdictError maps the reports to the command result. Any host that is
// not clean yields exit code 2; otherwise any failed check yields 1.
func verdictError(reports []*model.CheckReport) error {
	code := exitOK
	for _, r := range reports {
		switch {
		case r == nil:
			continue
		case r.Evaluated && r.ErrorMessage == "" && !r.Clean:
			code = exitNotClean
		case !r.Passed() && code == exitOK:
			code = exitFailure
		}
	}
	if code == exitOK {
		return nil
	}
	return newExitError(code, nil)
}

// buildWriter assembles the writers for cfg. The verdict line always goes
// to stdout unless a JSON or Markdown report is also written there.
func buildWriter(cfg *config.Config, stdout io.Writer) (report.Writer, func(), error) {
	closeOutput := func() {}
	output := stdout

	if cfg.ReportFile != "" {
		dir := filepath.Dir(cfg.ReportFile)
		if dir != "" && dir != "." {
			if err := os.MkdirAll(dir, 0o750); err != nil {
				return nil, nil, fmt.Errorf("failed to create output directory: %w", err)
			}
		}
		f, err := os.OpenFile(cfg.ReportFile, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o600)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to create output file: %w", err)
		}
		output = f
		closeOutput = func() { _ = f.Close() }
	}

	writers := make([]report.Writer, 0, 2)
	structured := cfg.JSONReport || cfg.MarkdownReport
	if !structured || cfg.ReportFile != "" {
		writers = append(writers, report.NewVerdictWriter(stdout,
			report.WithHostPrefix(len(cfg.Targets) > 1)))
	}

	switch {
	case cfg.JSONReport:
		writers = append(writers, report.NewJSONWriter(output,
			report.WithPrettyPrint(), report.WithVersion(getVersion())))
	case cfg.MarkdownReport:
		writers = append(writers, report.NewMarkdownWriter(output))
	case cfg.Detail || cfg.ReportFile != "":
		writers = append(writers, report.NewSimpleWriter(output,
			report.WithShowClean(cfg.Verbose), report.WithVerbose(cfg.Verbose)))
	}

	return report.NewMultiWriter(writers...), closeOutput, nil
}

// saveReport stores r in the history database. A nil store is a no-op.
func saveReport(ctx context.Context, store *history.Store, r *model.CheckReport, logger *slog.Logger) error {
	if store == nil {
		return nil
	}
	// A cancelled run still records what finished.
	id, err := store.Save(context.WithoutCancel(ctx), r)
	if err != nil {
		return err
	}
	logger.Info("check saved to history", "host", r.Host, "id", id)
	return nil
}
