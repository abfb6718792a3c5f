package db

import "embed"

// MigrationFS embeds the SQL migration files from internal/db/migrations.
// The migrate runner (cmd/migrate) reads them from here, so the server binary
// never needs the files on disk.
//
//go:embed migrations/*.sql
var MigrationFS embed.FS
