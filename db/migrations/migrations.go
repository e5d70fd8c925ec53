// Package migrations embeds the PostgreSQL schema of the rating ledger.
package migrations

import "embed"

// FS holds the *.up.sql and *.down.sql files, applied in lexical order.
//
//go:embed *.sql
var FS embed.FS
