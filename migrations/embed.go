// Package migrations embeds SQL migration files into the binary.
//
// This lets the service run migrations without the SQL files present on
// the filesystem at deploy time.
package migrations

import (
	"embed"

	"github.com/nerrad567/jarvis-core/internal/infrastructure/database"
)

//go:embed *.sql
var migrationsFS embed.FS

func init() {
	// Register embedded migrations with the database package.
	database.MigrationsFS = migrationsFS
	database.MigrationsDir = "." // Files are at root of embedded FS
}
