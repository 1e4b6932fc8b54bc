package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"sttmgen/internal/report"
)

// Ledger implements report.Repository for SQLite, the default backend for
// local runs. Timestamps are stored as RFC3339Nano strings so they round-trip
// without driver-specific time handling.
type Ledger struct {
	db *sql.DB
}

func init() {
	report.Register("sqlite", New)
}

func New(ctx context.Context, cfg report.Config) (report.Repository, error) {
	db, err := sql.Open("sqlite", cfg.DSN)
	if err != nil {
		return nil, err
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &Ledger{db: db}, nil
}

func (l *Ledger) Close() { _ = l.db.Close() }

func (l *Ledger) EnsureSchema(ctx context.Context) error {
	for _, stmt := range schemaSQL() {
		if _, err := l.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("ensure ledger schema: %w", err)
		}
	}
	return nil
}

func schemaSQL() []string {
	return []string{
		`CREATE TABLE IF NOT EXISTS runs (
			run_id TEXT PRIMARY KEY,
			mapping_file TEXT NOT NULL,
			started_at TEXT NOT NULL,
			finished_at TEXT NOT NULL,
			statements INTEGER NOT NULL,
			errors INTEGER NOT NULL,
			diagnostics INTEGER NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS run_statements (
			run_id TEXT NOT NULL,
			statement_id TEXT NOT NULL,
			kind TEXT NOT NULL,
			name TEXT NOT NULL,
			result TEXT NOT NULL,
			sql_text TEXT NOT NULL,
			PRIMARY KEY (run_id, statement_id)
		)`,
	}
}

func (l *Ledger) RecordRun(ctx context.Context, run report.RunRecord) error {
	_, err := l.db.ExecContext(ctx,
		`INSERT INTO runs (run_id, mapping_file, started_at, finished_at, statements, errors, diagnostics)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		run.RunID, run.MappingFile,
		run.StartedAt.UTC().Format(time.RFC3339Nano),
		run.FinishedAt.UTC().Format(time.RFC3339Nano),
		run.Statements, run.Errors, run.Diagnostics,
	)
	if err != nil {
		return fmt.Errorf("record run %s: %w", run.RunID, err)
	}
	return nil
}

func (l *Ledger) RecordStatements(ctx context.Context, stmts []report.StatementRecord) error {
	if len(stmts) == 0 {
		return nil
	}
	tx, err := l.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	for _, st := range stmts {
		_, err := tx.ExecContext(ctx,
			`INSERT OR IGNORE INTO run_statements (run_id, statement_id, kind, name, result, sql_text)
			 VALUES (?, ?, ?, ?, ?, ?)`,
			st.RunID, st.StatementID, st.Kind, st.Name, st.Result, st.SQL,
		)
		if err != nil {
			return fmt.Errorf("record statement %s: %w", st.StatementID, err)
		}
	}
	return tx.Commit()
}

func (l *Ledger) LastRuns(ctx context.Context, limit int) ([]report.RunRecord, error) {
	if limit <= 0 {
		limit = 10
	}
	rows, err := l.db.QueryContext(ctx,
		`SELECT run_id, mapping_file, started_at, finished_at, statements, errors, diagnostics
		 FROM runs ORDER BY started_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []report.RunRecord
	for rows.Next() {
		var r report.RunRecord
		var started, finished string
		if err := rows.Scan(&r.RunID, &r.MappingFile, &started, &finished, &r.Statements, &r.Errors, &r.Diagnostics); err != nil {
			return nil, err
		}
		if r.StartedAt, err = time.Parse(time.RFC3339Nano, started); err != nil {
			return nil, fmt.Errorf("parse started_at for run %s: %w", r.RunID, err)
		}
		if r.FinishedAt, err = time.Parse(time.RFC3339Nano, finished); err != nil {
			return nil, fmt.Errorf("parse finished_at for run %s: %w", r.RunID, err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}
