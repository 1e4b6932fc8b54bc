package mssql

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/microsoft/go-mssqldb"

	"sttmgen/internal/report"
)

// Ledger implements report.Repository for SQL Server over database/sql and
// the "sqlserver" driver.
type Ledger struct {
	db *sql.DB
}

func init() {
	report.Register("mssql", New)
}

func New(ctx context.Context, cfg report.Config) (report.Repository, error) {
	db, err := sql.Open("sqlserver", cfg.DSN)
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

// EnsureSchema is idempotent: SQL Server has no CREATE TABLE IF NOT EXISTS,
// so each definition is guarded by an object_id probe.
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
		`IF OBJECT_ID(N'runs', N'U') IS NULL
		CREATE TABLE runs (
			run_id NVARCHAR(64) NOT NULL PRIMARY KEY,
			mapping_file NVARCHAR(400) NOT NULL,
			started_at DATETIMEOFFSET NOT NULL,
			finished_at DATETIMEOFFSET NOT NULL,
			statements INT NOT NULL,
			errors INT NOT NULL,
			diagnostics INT NOT NULL
		)`,
		`IF OBJECT_ID(N'run_statements', N'U') IS NULL
		CREATE TABLE run_statements (
			run_id NVARCHAR(64) NOT NULL,
			statement_id NVARCHAR(200) NOT NULL,
			kind NVARCHAR(40) NOT NULL,
			name NVARCHAR(200) NOT NULL,
			result NVARCHAR(10) NOT NULL,
			sql_text NVARCHAR(MAX) NOT NULL,
			CONSTRAINT pk_run_statements PRIMARY KEY (run_id, statement_id)
		)`,
	}
}

func (l *Ledger) RecordRun(ctx context.Context, run report.RunRecord) error {
	_, err := l.db.ExecContext(ctx,
		`INSERT INTO runs (run_id, mapping_file, started_at, finished_at, statements, errors, diagnostics)
		 VALUES (@p1, @p2, @p3, @p4, @p5, @p6, @p7)`,
		run.RunID, run.MappingFile, run.StartedAt, run.FinishedAt,
		run.Statements, run.Errors, run.Diagnostics,
	)
	if err != nil {
		return fmt.Errorf("record run %s: %w", run.RunID, err)
	}
	return nil
}

// RecordStatements stays idempotent via NOT EXISTS, matching the behavior of
// the other backends without MERGE locking caveats.
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
			`INSERT INTO run_statements (run_id, statement_id, kind, name, result, sql_text)
			 SELECT @p1, @p2, @p3, @p4, @p5, @p6
			 WHERE NOT EXISTS (
				SELECT 1 FROM run_statements WHERE run_id = @p1 AND statement_id = @p2
			 )`,
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
		`SELECT TOP (@p1) run_id, mapping_file, started_at, finished_at, statements, errors, diagnostics
		 FROM runs ORDER BY started_at DESC`, limit)
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
