// Package migrations embeds the goose SQL migrations for the SQLite state backend.
package migrations

import "embed"

//go:embed *.sql
var FS embed.FS
