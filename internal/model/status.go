package model

import (
	"fmt"
	"strings"
)

// Status is the classification of a provider's status image.
//
// The zero value is StatusUnknown so that a freshly extracted record,
// or one whose image could not be fetched, counts against the verdict
// until a digest proves otherwise.
type Status int

const (
	// StatusUnknown means the image digest matched neither reference digest,
	// or the image was never fetched.
	StatusUnknown Status = iota

	// StatusClean means the image is the provider's "not listed" image.
	StatusClean

	// StatusListed means the image is the provider's "listed" image.
	StatusListed
)

// String returns the lower-case name of the status.
func (s Status) String() string {
	switch s {
	case StatusUnknown:
		return "unknown"
	case StatusClean:
		return "clean"
	case StatusListed:
		return "listed"
	default:
		return "unknown"
	}
}

// Label returns an upper-case label used by the text report.
func (s Status) Label() string {
	return strings.ToUpper(s.String())
}

// MarshalText implements encoding.TextMarshaler.
func (s Status) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (s *Status) UnmarshalText(text []byte) error {
	status, err := ParseStatus(string(text))
	if err != nil {
		return err
	}
	*s = status
	return nil
}

// ParseStatus converts a status name into a Status.
// The comparison is case-insensitive.
func ParseStatus(name string) (Status, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "unknown", "":
		return StatusUnknown, nil
	case "clean":
		return StatusClean, nil
	case "listed":
		return StatusListed, nil
	default:
		return StatusUnknown, fmt.Errorf("invalid status %q", name)
	}
}
