// Package aggregator turns extracted provider records into a single verdict.
//
// The Aggregator fetches every status image through a fetcher.Source,
// classifies each digest against the clean and listed reference digests,
// and folds the statuses into one boolean. A record fails the verdict when
// it is not clean and its provider is not in the ignore set; unknown
// statuses and failed downloads therefore fail closed.
package aggregator
