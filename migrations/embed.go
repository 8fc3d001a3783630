// Package migrations ships the tenant schema with the binary.
package migrations

import "embed"

// FS holds the versioned SQL files applied by db.Migrator.
//
//go:embed *.sql
var FS embed.FS
