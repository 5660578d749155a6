package journal

import (
	"database/sql"
	"embed"
	"strings"

	"github.com/pressly/goose/v3"
)

//go:embed migrations/*.sql
var embedMigrations embed.FS

// migrate runs all pending migrations with a file lock to prevent
// concurrent migration races across processes sharing the journal.
// In-memory databases (tests) skip the lock.
func migrate(db *sql.DB, path string) error {
	if path != ":memory:" && !strings.Contains(path, ":memory:") {
		lockF, err := lockFile(path)
		if err != nil {
			return err
		}
		defer unlockFile(lockF)
	}

	goose.SetBaseFS(embedMigrations)
	goose.SetVerbose(false) // keep stdout clean for JSON output
	goose.SetLogger(goose.NopLogger())

	// goose uses "sqlite3" as its dialect name regardless of the driver.
	// modernc.org/sqlite registers as "sqlite"; the dialect only controls
	// SQL generation, not the driver name.
	if err := goose.SetDialect("sqlite3"); err != nil {
		return err
	}
	return goose.Up(db, "migrations")
}
