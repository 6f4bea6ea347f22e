// Package migrations embeds the SQL schema migrations for every supported durable store.
package migrations

import "embed"

// Directories inside FS holding the migrations of each store.
const (
	PostgresDir = "postgres"
	SQLiteDir   = "sqlite"
)

//go:embed postgres/*.sql sqlite/*.sql
var FS embed.FS
