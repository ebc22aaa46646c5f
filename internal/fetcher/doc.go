// Package fetcher downloads provider status images and digests them.
//
// Each unit of work performs one GET and hashes the full response body while
// streaming it, so image bytes are never held in memory. Two execution
// strategies share that unit of work:
//
//   - Parallel runs the units on a bounded pool (golang.org/x/sync/errgroup)
//     that reports into a shared channel, waits for every unit to finish,
//     and only then drains the channel.
//   - Sequential runs them one after another.
//
// A failed download never aborts its siblings. It is reported as an Outcome
// with a non-nil Err, and the aggregator treats it like an unknown status.
// Failed downloads are not retried.
package fetcher
