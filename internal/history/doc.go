// Package history stores finished checks in a SQLite database.
//
// The store is written only when the user asks for it (check --save) and
// is read only by the history command. A check never consults earlier
// results: every verdict is computed from a fresh result page.
//
// The database is a single file (dnsblcheck.db) opened through
// modernc.org/sqlite, which needs no cgo.
package history
