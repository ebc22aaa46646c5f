package aggregator

import (
	"sort"
	"strings"

	"golang.org/x/text/cases"
)

// DefaultIgnored lists providers whose status is not trusted by default.
var DefaultIgnored = []string{"ips.backscatterer.org"}

// IgnoreSet is an immutable set of provider names exempt from the verdict.
// Membership is exact after trimming and Unicode case folding, so
// "IPS.Backscatterer.org" matches "ips.backscatterer.org" but
// "backscatterer.org" does not.
type IgnoreSet struct {
	names map[string]struct{}
}

// NewIgnoreSet builds an ignore set from names. Blank names are skipped.
func NewIgnoreSet(names ...string) IgnoreSet {
	set := IgnoreSet{names: make(map[string]struct{}, len(names))}
	for _, name := range names {
		key := fold(name)
		if key == "" {
			continue
		}
		set.names[key] = struct{}{}
	}
	return set
}

// DefaultIgnoreSet returns the ignore set built from DefaultIgnored.
func DefaultIgnoreSet() IgnoreSet {
	return NewIgnoreSet(DefaultIgnored...)
}

// Contains reports whether name is in the set.
func (s IgnoreSet) Contains(name string) bool {
	if len(s.names) == 0 {
		return false
	}
	_, ok := s.names[fold(name)]
	return ok
}

// Len returns the number of names in the set.
func (s IgnoreSet) Len() int {
	return len(s.names)
}

// Names returns the folded names in sorted order.
func (s IgnoreSet) Names() []string {
	names := make([]string, 0, len(s.names))
	for name := range s.names {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// fold normalizes a provider name for comparison.
func fold(name string) string {
	return cases.Fold().String(strings.TrimSpace(name))
}
