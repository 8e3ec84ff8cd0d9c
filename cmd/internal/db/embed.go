// Package db owns the securebank schema and applies it with golang-migrate.
package db

import "embed"

// MigrationFS holds the SQL migrations applied by Migrate and cmd/migrate.
//
//go:embed migrations/*.sql
var MigrationFS embed.FS
