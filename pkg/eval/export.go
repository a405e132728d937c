package eval

import (
	"context"
	"database/sql"
	"fmt"
	"sort"

	_ "modernc.org/sqlite"
)

var exportSchema = []string{`
CREATE TABLE IF NOT EXISTS run_metrics (
	report_id TEXT NOT NULL,
	dataset   TEXT NOT NULL,
	run       TEXT NOT NULL,
	cutoff    INTEGER NOT NULL,
	metric    TEXT NOT NULL,
	value     REAL NOT NULL,
	users     INTEGER NOT NULL,
	PRIMARY KEY (report_id, run, cutoff, metric)
)`, `
CREATE TABLE IF NOT EXISTS user_metrics (
	report_id TEXT NOT NULL,
	run       TEXT NOT NULL,
	cutoff    INTEGER NOT NULL,
	metric    TEXT NOT NULL,
	user_id   TEXT NOT NULL,
	value     REAL NOT NULL,
	PRIMARY KEY (report_id, run, cutoff, metric, user_id)
)`,
}

// ExportSQLite writes the report's aggregate and per-user scores into a
// SQLite database at path, creating tables as needed. Rows for the same
// report ID are replaced. Per-user rows are written only for results that
// carry per-user scores.
func ExportSQLite(ctx context.Context, path string, r *Report) error {
	if r.ID == "" {
		return fmt.Errorf("export: report has no id")
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return fmt.Errorf("open export db: %w", err)
	}
	defer db.Close()

	for _, stmt := range exportSchema {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("create export schema: %w", err)
		}
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for _, table := range []string{"run_metrics", "user_metrics"} {
		if _, err := tx.ExecContext(ctx, "DELETE FROM "+table+" WHERE report_id = ?", r.ID); err != nil {
			return fmt.Errorf("clear %s: %w", table, err)
		}
	}

	runStmt, err := tx.PrepareContext(ctx,
		`INSERT INTO run_metrics (report_id, dataset, run, cutoff, metric, value, users) VALUES (?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer runStmt.Close()

	userStmt, err := tx.PrepareContext(ctx,
		`INSERT INTO user_metrics (report_id, run, cutoff, metric, user_id, value) VALUES (?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer userStmt.Close()

	for _, res := range r.Results {
		for _, m := range r.Metrics {
			v, ok := res.Scores[m]
			if !ok {
				continue
			}
			users := res.Stats[m].Users
			if _, err := runStmt.ExecContext(ctx, r.ID, r.Dataset, res.Run, res.Cutoff, m, v, users); err != nil {
				return fmt.Errorf("insert run metric %s/%s@%d: %w", res.Run, m, res.Cutoff, err)
			}

			perUser := res.PerUser[m]
			ids := make([]string, 0, len(perUser))
			for id := range perUser {
				ids = append(ids, id)
			}
			sort.Strings(ids)
			for _, id := range ids {
				if _, err := userStmt.ExecContext(ctx, r.ID, res.Run, res.Cutoff, m, id, perUser[id]); err != nil {
					return fmt.Errorf("insert user metric %s/%s@%d: %w", res.Run, m, res.Cutoff, err)
				}
			}
		}
	}
	return tx.Commit()
}
