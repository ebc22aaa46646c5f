package config

import (
	"fmt"
	"net/url"
	"path/filepath"
	"strings"
	"time"

	"github.com/adrg/xdg"
	"github.com/nao1215/dnsblcheck/internal/digest"
)

// Default configuration values.
const (
	// AppName is the application name used for XDG directory paths.
	AppName = "dnsblcheck"

	// DefaultServiceURL is the aggregator site queried for a host.
	DefaultServiceURL = "http://www.dnsbl.info"

	// DefaultFormField is the lookup form control that receives the host.
	DefaultFormField = "IP"

	// DefaultTableClass is empty: every table on the result page is scanned.
	DefaultTableClass = ""

	// DefaultCleanDigest is the SHA-1 of the aggregator's "not listed" image.
	DefaultCleanDigest = "11f40b11c891c53b6f97945ed71e771d0caa2503"

	// DefaultListedDigest is the SHA-1 of the aggregator's "listed" image.
	DefaultListedDigest = "2ab93125fbe266b3bb4fd3704e5b1523d895dda3"

	// StrategyParallel fetches status images concurrently.
	StrategyParallel = "parallel"

	// StrategySequential fetches status images one by one.
	StrategySequential = "sequential"

	// DefaultStrategy is the fetch strategy used when none is configured.
	DefaultStrategy = StrategyParallel

	// DefaultConcurrency bounds simultaneous image downloads.
	// Zero or negative means one goroutine per image.
	DefaultConcurrency = 10

	// DefaultTimeout bounds every HTTP request.
	DefaultTimeout = 30 * time.Second

	// DefaultDrainTimeout bounds the wait for each image result once
	// all downloads have finished.
	DefaultDrainTimeout = 5 * time.Second

	// DefaultBatchSize is the number of hosts checked at once.
	DefaultBatchSize = 4

	// DefaultUserAgent identifies dnsblcheck in HTTP requests.
	DefaultUserAgent = "dnsblcheck (+https://github.com/nao1215/dnsblcheck)"

	// DefaultMaxBodySize limits the size of the service and result pages.
	DefaultMaxBodySize = 5 * 1024 * 1024 // 5MB
)

// DefaultIgnoreList returns the providers ignored by default.
// Their status images are not reliable enough to fail a check.
func DefaultIgnoreList() []string {
	return []string{"ips.backscatterer.org"}
}

// Config holds all configuration options for dnsblcheck.
// It is populated from defaults, the configuration file and CLI flags,
// in that order, and passed down explicitly.
type Config struct {
	// ServiceURL is the aggregator site.
	ServiceURL string

	// FormField is the name of the lookup form control.
	FormField string

	// TableClass restricts extraction to tables with this class.
	// Empty means every table.
	TableClass string

	// CleanDigest and ListedDigest are the hex SHA-1 digests of the
	// reference status images.
	CleanDigest  string
	ListedDigest string

	// IgnoreList names providers that never fail the verdict.
	IgnoreList []string

	// Strategy is StrategyParallel or StrategySequential.
	Strategy string

	// Concurrency bounds the parallel strategy. Zero or negative is unbounded.
	Concurrency int

	// Timeout bounds each HTTP request.
	Timeout time.Duration

	// DrainTimeout bounds the wait for each parallel fetch result.
	DrainTimeout time.Duration

	// RateLimit caps image downloads per second. Zero disables the limit.
	RateLimit float64

	// ProxyAddress routes all traffic through a SOCKS5 proxy when set.
	ProxyAddress string

	// UserAgent is sent with every HTTP request.
	UserAgent string

	// MaxBodySize limits page sizes in bytes. Zero means the default.
	MaxBodySize int64

	// BatchSize is the number of hosts checked concurrently.
	BatchSize int

	// Verbose enables debug logging.
	Verbose bool

	// JSONReport and MarkdownReport select a detailed report format.
	// They are mutually exclusive.
	JSONReport     bool
	MarkdownReport bool

	// Detail prints a per-provider table after the verdict line.
	Detail bool

	// ReportFile writes the report to a file instead of stdout.
	ReportFile string

	// SaveHistory stores finished checks in the history database.
	SaveHistory bool

	// DBDir is the directory of the history database.
	DBDir string

	// Targets are the mail servers to check.
	Targets []string

	// ConfigFilePath is the configuration file given with --config.
	ConfigFilePath string
}

// NewConfig creates a Config with default values.
func NewConfig() *Config {
	return &Config{
		ServiceURL:   DefaultServiceURL,
		FormField:    DefaultFormField,
		TableClass:   DefaultTableClass,
		CleanDigest:  DefaultCleanDigest,
		ListedDigest: DefaultListedDigest,
		IgnoreList:   DefaultIgnoreList(),
		Strategy:     DefaultStrategy,
		Concurrency:  DefaultConcurrency,
		Timeout:      DefaultTimeout,
		DrainTimeout: DefaultDrainTimeout,
		BatchSize:    DefaultBatchSize,
		UserAgent:    DefaultUserAgent,
		MaxBodySize:  DefaultMaxBodySize,
		DBDir:        XDGDataDir(),
	}
}

// XDGDataDir returns the XDG data directory for dnsblcheck.
// On Linux: ~/.local/share/dnsblcheck
func XDGDataDir() string {
	return filepath.Join(xdg.DataHome, AppName)
}

// XDGConfigDir returns the XDG config directory for dnsblcheck.
// On Linux: ~/.config/dnsblcheck
func XDGConfigDir() string {
	return filepath.Join(xdg.ConfigHome, AppName)
}

// Validate checks the configuration and returns the first problem found.
func (c *Config) Validate() error {
	if len(c.Targets) == 0 {
		return ErrNoTarget
	}

	u, err := url.Parse(c.ServiceURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return ErrInvalidServiceURL
	}

	if strings.TrimSpace(c.FormField) == "" {
		return ErrEmptyFormField
	}

	clean, err := digest.ParseSum(c.CleanDigest)
	if err != nil {
		return fmt.Errorf("%w: clean digest %q", ErrInvalidDigest, c.CleanDigest)
	}
	listed, err := digest.ParseSum(c.ListedDigest)
	if err != nil {
		return fmt.Errorf("%w: listed digest %q", ErrInvalidDigest, c.ListedDigest)
	}
	if clean == listed {
		return ErrSameDigests
	}

	if c.Strategy != StrategyParallel && c.Strategy != StrategySequential {
		return ErrInvalidStrategy
	}

	if c.Timeout <= 0 {
		return ErrInvalidTimeout
	}

	if c.DrainTimeout <= 0 {
		return ErrInvalidDrainTimeout
	}

	if c.BatchSize <= 0 {
		return ErrInvalidBatchSize
	}

	if c.RateLimit < 0 {
		return ErrInvalidRateLimit
	}

	if c.JSONReport && c.MarkdownReport {
		return ErrConflictingReportFormats
	}

	if c.MaxBodySize < 0 {
		return ErrInvalidMaxBodySize
	}

	return nil
}
