// Package main provides the entry point for the dnsblcheck CLI.
//
// dnsblcheck reports whether a mail-exchange host is listed on any DNS
// blacklist known to the dnsbl.info aggregator.
//
// Usage:
//
//	dnsblcheck check -s mx.example.com
//	dnsblcheck check mx1.example.com mx2.example.com
//
// Exit status is 0 when the host is clean, 2 when it is listed or its
// status is unknown, 3 when no host was given and 1 on any other error.
// See --help for all available options.
package main

import "os"

func main() {
	os.Exit(Execute())
}
