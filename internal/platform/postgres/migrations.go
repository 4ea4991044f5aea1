package postgres

import "embed"

// Migrations holds the goose SQL migrations, applied by cmd/server at
// startup and by cmd/admin on demand.
//
//go:embed migrations/*.sql
var Migrations embed.FS

// MigrationsDir is the directory inside Migrations that goose reads.
const MigrationsDir = "migrations"
