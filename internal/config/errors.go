package config

import "errors"

// Configuration validation errors returned by Config.Validate.
var (
	// ErrNoTarget is returned when no host to check is given.
	ErrNoTarget = errors.New("no target specified: provide a mail server with --server or as an argument")

	// ErrInvalidServiceURL is returned when the aggregator URL is not an absolute http(s) URL.
	ErrInvalidServiceURL = errors.New("invalid service URL: must be an absolute http or https URL")

	// ErrEmptyFormField is returned when the lookup form field name is empty.
	ErrEmptyFormField = errors.New("invalid form field: must not be empty")

	// ErrInvalidDigest is returned when a reference digest is not 40 hex characters.
	ErrInvalidDigest = errors.New("invalid reference digest")

	// ErrSameDigests is returned when the clean and listed digests are equal.
	ErrSameDigests = errors.New("invalid reference digests: clean and listed digests must differ")

	// ErrInvalidStrategy is returned for an unknown fetch strategy.
	ErrInvalidStrategy = errors.New("invalid strategy: must be parallel or sequential")

	// ErrInvalidTimeout is returned when the timeout is not positive.
	ErrInvalidTimeout = errors.New("invalid timeout: must be positive")

	// ErrInvalidDrainTimeout is returned when the drain timeout is not positive.
	ErrInvalidDrainTimeout = errors.New("invalid drain timeout: must be positive")

	// ErrInvalidBatchSize is returned when the batch size is not positive.
	ErrInvalidBatchSize = errors.New("invalid batch size: must be positive")

	// ErrInvalidRateLimit is returned when the image rate limit is negative.
	ErrInvalidRateLimit = errors.New("invalid rate limit: must be non-negative")

	// ErrConflictingReportFormats is returned when both --json and --markdown are set.
	ErrConflictingReportFormats = errors.New("conflicting report formats: --json and --markdown cannot be used together")

	// ErrInvalidMaxBodySize is returned when the max body size is negative.
	ErrInvalidMaxBodySize = errors.New("invalid max body size: must be non-negative")
)
