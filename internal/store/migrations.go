package store

import (
	"context"
	"database/sql"
	"strings"
)

// schema contains the DDL for all queuesim tables.
// Each statement uses IF NOT EXISTS for idempotency.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS runs (
		id          TEXT PRIMARY KEY,
		name        TEXT NOT NULL,
		policy      TEXT NOT NULL,
		ticks       INTEGER NOT NULL,
		summary     TEXT NOT NULL DEFAULT '{}',
		scenario    TEXT NOT NULL DEFAULT '',
		started_at  TEXT NOT NULL,
		finished_at TEXT
	)`,

	`CREATE TABLE IF NOT EXISTS client_results (
		run_id        TEXT NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
		client_id     TEXT NOT NULL,
		seq           INTEGER NOT NULL,
		work          INTEGER NOT NULL,
		remaining     INTEGER NOT NULL,
		priority      INTEGER,
		level         INTEGER NOT NULL DEFAULT 0,
		arrival       INTEGER NOT NULL,
		first_service INTEGER NOT NULL DEFAULT -1,
		finish        INTEGER NOT NULL DEFAULT -1,
		turnaround    INTEGER NOT NULL DEFAULT -1,
		waiting       INTEGER NOT NULL DEFAULT -1,
		response      INTEGER NOT NULL DEFAULT -1,
		state         TEXT NOT NULL,
		PRIMARY KEY (run_id, client_id)
	)`,

	`CREATE INDEX IF NOT EXISTS idx_runs_policy ON runs(policy)`,
	`CREATE INDEX IF NOT EXISTS idx_runs_started_at ON runs(started_at)`,
}

// alterStatements are column additions that need special handling since
// SQLite doesn't support IF NOT EXISTS for ALTER TABLE ADD COLUMN.
var alterStatements = []struct {
	table    string
	column   string
	alterSQL string
	indexSQL string // Optional index to create after column is added
}{
	{
		table:    "runs",
		column:   "segments",
		alterSQL: "ALTER TABLE runs ADD COLUMN segments TEXT NOT NULL DEFAULT '[]'",
	},
	{
		table:    "client_results",
		column:   "state",
		alterSQL: "ALTER TABLE client_results ADD COLUMN state TEXT NOT NULL DEFAULT 'DONE'",
		indexSQL: "CREATE INDEX IF NOT EXISTS idx_client_results_state ON client_results(run_id, state)",
	},
}

// migrate executes all schema DDL statements, alter migrations, and post-migration indexes.
func migrate(ctx context.Context, db *sql.DB) error {
	for _, stmt := range schema {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}

	for _, alter := range alterStatements {
		if err := addColumnIfNotExists(ctx, db, alter.table, alter.column, alter.alterSQL); err != nil {
			return err
		}
		if alter.indexSQL != "" {
			if _, err := db.ExecContext(ctx, alter.indexSQL); err != nil {
				return err
			}
		}
	}
	return nil
}

// addColumnIfNotExists adds a column to a table if it doesn't already exist.
func addColumnIfNotExists(ctx context.Context, db *sql.DB, table, column, alterSQL string) error {
	rows, err := db.QueryContext(ctx, "PRAGMA table_info("+table+")")
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var cid int
		var name, ctype string
		var notnull, pk int
		var dfltValue *string
		if err := rows.Scan(&cid, &name, &ctype, &notnull, &dfltValue, &pk); err != nil {
			return err
		}
		if strings.EqualFold(name, column) {
			return nil
		}
	}
	if err := rows.Err(); err != nil {
		return err
	}
	rows.Close()

	_, err = db.ExecContext(ctx, alterSQL)
	return err
}
