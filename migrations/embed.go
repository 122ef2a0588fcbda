// Package migrations holds the SQLite schema for the telemetry history
// store, compiled into the binary.
package migrations

import "embed"

// FS contains every YYYYMMDD_HHMMSS_name.{up,down}.sql file in this
// directory, at the root of the filesystem.
//
//go:embed *.sql
var FS embed.FS
