// Package web submits a host to the aggregator site and returns the result page.
//
// The aggregator is driven like a browser would drive it: the service page
// is loaded, its first form is located, the lookup field is filled with the
// host and the form is submitted with its own method and action. Pages are
// decoded to UTF-8 before they are parsed or returned.
//
// The HTTP client built by NewHTTPClient is shared with the image fetcher so
// that proxy and User-Agent settings apply to every request of a check.
package web
