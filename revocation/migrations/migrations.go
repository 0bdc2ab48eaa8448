// Package migrations embeds the goose SQL migrations for the PostgreSQL
// revocation store.
package migrations

import "embed"

// Migrations holds the *.sql files applied by revocation.RunMigrations.
//
//go:embed *.sql
var Migrations embed.FS
