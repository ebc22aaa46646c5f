// Package pipeline runs a host check as a sequence of steps.
//
// A check has three stages: retrieve the aggregator's result page for the
// host, extract the provider records from it, and evaluate the records into
// a verdict. Each stage is a Step that receives the current
// model.CheckReport and fills in its part. A failing step stops the
// pipeline by default, since later stages have nothing to work on.
//
// BatchProcessor checks several hosts concurrently, each with its own
// pipeline, using errgroup for the concurrency limit.
package pipeline
