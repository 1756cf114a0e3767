package migrations

import "embed"

// Files holds the SQL migrations compiled into the binary. Migrations use a
// flat numeric naming scheme (001_init.sql, 002_*.sql, ...) so the runner can
// order them lexically.
//
//go:embed *.sql
var Files embed.FS
