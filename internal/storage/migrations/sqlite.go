package migrations

import (
	"context"

	"commodity-forecast/internal/storage/sqlite"
)

// RunSQLiteMigrations applies all embedded SQLite files in lexical order.
func RunSQLiteMigrations(ctx context.Context, db *sqlite.DB) error {
	return eachStatement(SQLiteFS, "sqlite", func(_, stmt string) error {
		_, err := db.ExecContext(ctx, stmt)
		return err
	})
}
