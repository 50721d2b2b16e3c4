package storage

import (
	"context"
	"database/sql"
	"fmt"

	"ArticlesBot/internal/config"
)

// EnsureSchema creates the legacy tables in an empty SQLite database.
// Production MySQL/Postgres schemas are owned by the upstream system.
func EnsureSchema(ctx context.Context, db *sql.DB, tables config.TablesConfig) error {
	statements := []string{
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
			article_id INTEGER NOT NULL,
			user_id INTEGER NOT NULL,
			status TEXT NOT NULL,
			start_time TIMESTAMP NULL,
			end_time TIMESTAMP NULL
		)`, tables.Articles),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			article_id INTEGER NOT NULL,
			user_id INTEGER NOT NULL,
			status TEXT NOT NULL,
			changed_at TIMESTAMP NOT NULL
		)`, tables.History),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
			ID_TAB INTEGER PRIMARY KEY,
			DONOR_DOM TEXT NOT NULL,
			PROJ_DOM TEXT NOT NULL
		)`, tables.Links),
	}

	for _, stmt := range statements {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("ensure schema: %w", err)
		}
	}
	return nil
}
