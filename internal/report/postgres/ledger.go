package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"sttmgen/internal/report"
)

// Ledger implements report.Repository for Postgres over a pgx pool, for
// shared ledgers written by CI runs.
type Ledger struct {
	pool *pgxpool.Pool
}

func New(ctx context.Context, cfg report.Config) (report.Repository, error) {
	pool, err := pgxpool.New(ctx, cfg.DSN)
	if err != nil {
		return nil, err
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return &Ledger{pool: pool}, nil
}

func (l *Ledger) Close() { l.pool.Close() }

func (l *Ledger) EnsureSchema(ctx context.Context) error {
	for _, stmt := range schemaSQL() {
		if _, err := l.pool.Exec(ctx, stmt); err != nil {
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
			started_at TIMESTAMPTZ NOT NULL,
			finished_at TIMESTAMPTZ NOT NULL,
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
	_, err := l.pool.Exec(ctx,
		`INSERT INTO runs (run_id, mapping_file, started_at, finished_at, statements, errors, diagnostics)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		run.RunID, run.MappingFile, run.StartedAt, run.FinishedAt,
		run.Statements, run.Errors, run.Diagnostics,
	)
	if err != nil {
		return fmt.Errorf("record run %s: %w", run.RunID, err)
	}
	return nil
}

// RecordStatements batches the inserts over a single round trip. ON CONFLICT
// DO NOTHING keeps reprocessing a run idempotent.
func (l *Ledger) RecordStatements(ctx context.Context, stmts []report.StatementRecord) error {
	if len(stmts) == 0 {
		return nil
	}
	batch := &pgx.Batch{}
	for _, st := range stmts {
		batch.Queue(
			`INSERT INTO run_statements (run_id, statement_id, kind, name, result, sql_text)
			 VALUES ($1, $2, $3, $4, $5, $6)
			 ON CONFLICT (run_id, statement_id) DO NOTHING`,
			st.RunID, st.StatementID, st.Kind, st.Name, st.Result, st.SQL,
		)
	}
	br := l.pool.SendBatch(ctx, batch)
	defer br.Close()
	for range stmts {
		if _, err := br.Exec(); err != nil {
			return fmt.Errorf("record statements: %w", err)
		}
	}
	return nil
}

func (l *Ledger) LastRuns(ctx context.Context, limit int) ([]report.RunRecord, error) {
	if limit <= 0 {
		limit = 10
	}
	rows, err := l.pool.Query(ctx,
		`SELECT run_id, mapping_file, started_at, finished_at, statements, errors, diagnostics
		 FROM runs ORDER BY started_at DESC LIMIT $1`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []report.RunRecord
	for rows.Next() {
		var r report.RunRecord
		if err := rows.Scan(&r.RunID, &r.MappingFile, &r.StartedAt, &r.FinishedAt, &r.Statements, &r.Errors, &r.Diagnostics); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}
