// Package config provides the configuration for dnsblcheck: the aggregator
// service settings, the reference digests and ignore list used for the
// verdict, fetch tuning, and report preferences.
package config
