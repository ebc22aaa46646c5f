// Package model defines the core data structures used throughout dnsblcheck.
//
// This package contains the following main types:
//   - Status: The classification of a single provider status image
//   - ProviderRecord: One blacklist provider found on the result page
//   - ParseDiagnostics: Counters describing how the result page was parsed
//   - CheckReport: The result of checking one mail-exchange host
//
// The types live in their own package because the extractor, fetcher,
// aggregator, pipeline, history and report packages all share them.
// Every type is serializable to JSON for report output and history storage.
package model
