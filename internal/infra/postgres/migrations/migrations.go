package migrations

import "github.com/uptrace/bun/migrate"

// Migrations holds the schema of the catalog and attempt tables. Each
// migration registers itself from a file named <version>_<name>.go.
var Migrations = migrate.NewMigrations()
