// Package report is the run ledger: an optional audit trail of generation
// runs and the statements they produced, persisted to a configurable SQL
// backend. Backends register themselves by kind, mirroring how the rest of
// the tool selects pluggable implementations.
package report

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// Config selects a ledger backend.
//
// Kind must match a registered backend ("sqlite", "postgres", "mssql").
// DSN is passed through to the backend factory; validation is
// backend-specific.
type Config struct {
	Kind string
	DSN  string
}

// RunRecord summarizes one generation run.
type RunRecord struct {
	RunID       string
	MappingFile string
	StartedAt   time.Time
	FinishedAt  time.Time
	Statements  int
	Errors      int
	Diagnostics int
}

// StatementRecord is one generated statement within a run. Result is "ok" or
// "error"; SQL is stored flattened to a single line.
type StatementRecord struct {
	RunID       string
	StatementID string
	Kind        string
	Name        string
	Result      string
	SQL         string
}

// Repository is the backend-agnostic ledger interface. Implementations keep
// EnsureSchema idempotent so repeated runs against the same database work
// without migrations.
type Repository interface {
	Close()
	EnsureSchema(ctx context.Context) error
	RecordRun(ctx context.Context, run RunRecord) error
	RecordStatements(ctx context.Context, stmts []StatementRecord) error
	LastRuns(ctx context.Context, limit int) ([]RunRecord, error)
}

type factory func(ctx context.Context, cfg Config) (Repository, error)

var (
	mu        sync.RWMutex
	factories = map[string]factory{}
)

// Register registers a ledger backend under a kind. Call it from an init()
// in the backend package. Registering the same kind twice panics so an
// ambiguous selection fails at startup, not at lookup.
func Register(kind string, f factory) {
	mu.Lock()
	defer mu.Unlock()

	if kind == "" {
		panic("report: Register called with empty kind")
	}
	if f == nil {
		panic("report: Register called with nil factory")
	}
	if _, exists := factories[kind]; exists {
		panic(fmt.Sprintf("report: factory already registered for kind=%q", kind))
	}
	factories[kind] = f
}

// New constructs a Repository for the configured backend kind.
func New(ctx context.Context, cfg Config) (Repository, error) {
	if cfg.Kind == "" {
		return nil, fmt.Errorf("report: missing ledger kind")
	}

	mu.RLock()
	f := factories[cfg.Kind]
	mu.RUnlock()

	if f == nil {
		return nil, fmt.Errorf("unsupported ledger kind=%s", cfg.Kind)
	}
	return f(ctx, cfg)
}
