// Package migrations embeds the SQLite schema for the sidecar store.
package migrations

import "embed"

// Files holds the up/down migration pairs applied by golang-migrate.
//
//go:embed *.sql
var Files embed.FS
