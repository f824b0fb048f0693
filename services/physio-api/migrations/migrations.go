package migrations

import "embed"

// FS holds the postgres migrations applied on startup.
//
//go:embed *.sql
var FS embed.FS
