package model

import (
	"time"
)

// CheckReport is the result of checking one mail-exchange host.
// It is filled in step by step by the check pipeline.
type CheckReport struct {
	// Host is the mail-exchange host that was checked.
	Host string `json:"host"`

	// Service is the aggregator service URL that was queried.
	Service string `json:"service"`

	// DateChecked is the timestamp when the check started.
	DateChecked time.Time `json:"date_checked"`

	// Strategy is the name of the fetch strategy used ("parallel" or "sequential").
	Strategy string `json:"strategy,omitempty"`

	// Providers holds one record per provider, in document order.
	Providers []ProviderRecord `json:"providers"`

	// Clean is the verdict: true when no provider outside the ignore set
	// is in a status other than clean.
	Clean bool `json:"clean"`

	// Evaluated is true once the verdict has been computed.
	// A report whose check failed before evaluation is never clean.
	Evaluated bool `json:"evaluated"`

	// Diagnostics describes how the result page was parsed.
	Diagnostics ParseDiagnostics `json:"diagnostics"`

	// ResultPage is the raw result page markup. It is not serialized.
	ResultPage []byte `json:"-"`

	// Error is the error that stopped the check, if any. It is not serialized.
	Error error `json:"-"`

	// ErrorMessage is the serializable form of Error.
	ErrorMessage string `json:"error,omitempty"`

	// TimedOut is true when the check was cancelled before it finished.
	TimedOut bool `json:"timed_out,omitempty"`

	// PerformedSteps lists the pipeline steps that were executed.
	PerformedSteps []string `json:"performed_steps,omitempty"`
}

// NewCheckReport creates a report for the given host and service URL.
func NewCheckReport(host, service string) *CheckReport {
	return &CheckReport{
		Host:           host,
		Service:        service,
		DateChecked:    time.Now(),
		Providers:      make([]ProviderRecord, 0),
		PerformedSteps: make([]string, 0),
	}
}

// StatusCounts summarizes provider statuses.
type StatusCounts struct {
	Clean   int `json:"clean"`
	Listed  int `json:"listed"`
	Unknown int `json:"unknown"`
	Ignored int `json:"ignored"`
	Failed  int `json:"fetch_failed"`
}

// Total returns the number of providers counted.
func (c StatusCounts) Total() int {
	return c.Clean + c.Listed + c.Unknown
}

// Counts returns the number of providers in each status.
// Ignored and Failed are counted independently of the status.
func (r *CheckReport) Counts() StatusCounts {
	var c StatusCounts
	for _, p := range r.Providers {
		switch p.Status {
		case StatusClean:
			c.Clean++
		case StatusListed:
			c.Listed++
		default:
			c.Unknown++
		}
		if p.Ignored {
			c.Ignored++
		}
		if p.FetchError != "" {
			c.Failed++
		}
	}
	return c
}

// Failing returns the providers that make the verdict fail.
func (r *CheckReport) Failing() []ProviderRecord {
	failing := make([]ProviderRecord, 0)
	for _, p := range r.Providers {
		if p.Fails() {
			failing = append(failing, p)
		}
	}
	return failing
}

// Passed reports whether the check completed and the host is clean.
func (r *CheckReport) Passed() bool {
	return r.Evaluated && r.Error == nil && r.Clean
}

// SetError records err as the error that stopped the check.
func (r *CheckReport) SetError(err error) {
	r.Error = err
	if err != nil {
		r.ErrorMessage = err.Error()
	}
}
