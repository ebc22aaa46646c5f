package fetcher

import "context"

// Sequential fetches references one at a time, in order.
type Sequential struct {
	fetcher *Fetcher
}

// NewSequential creates a sequential source on top of f.
func NewSequential(f *Fetcher) *Sequential {
	return &Sequential{fetcher: f}
}

// Name implements Source.
func (s *Sequential) Name() string {
	return "sequential"
}

// Fetch downloads every reference in order.
func (s *Sequential) Fetch(ctx context.Context, refs []string) map[string]Outcome {
	unique := uniqueRefs(refs)
	outcomes := make(map[string]Outcome, len(unique))
	for _, ref := range unique {
		out := s.fetcher.FetchOne(ctx, ref)
		s.fetcher.report(out)
		outcomes[ref] = out
	}
	return outcomes
}
