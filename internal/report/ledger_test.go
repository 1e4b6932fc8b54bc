package report

import (
	"context"
	"testing"
)

type nopRepo struct{}

func (nopRepo) Close()                                                {}
func (nopRepo) EnsureSchema(context.Context) error                    { return nil }
func (nopRepo) RecordRun(context.Context, RunRecord) error            { return nil }
func (nopRepo) RecordStatements(context.Context, []StatementRecord) error { return nil }
func (nopRepo) LastRuns(context.Context, int) ([]RunRecord, error)    { return nil, nil }

func TestNew_EmptyAndUnknownKind(t *testing.T) {
	t.Parallel()

	if _, err := New(context.Background(), Config{}); err == nil {
		t.Fatalf("empty kind must error")
	}
	if _, err := New(context.Background(), Config{Kind: "ghost"}); err == nil {
		t.Fatalf("unregistered kind must error")
	}
}

func TestRegisterAndNew(t *testing.T) {
	t.Parallel()

	Register("test-kind", func(ctx context.Context, cfg Config) (Repository, error) {
		return nopRepo{}, nil
	})
	repo, err := New(context.Background(), Config{Kind: "test-kind"})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	repo.Close()
}

func TestRegister_DuplicatePanics(t *testing.T) {
	t.Parallel()

	Register("dup-kind", func(ctx context.Context, cfg Config) (Repository, error) {
		return nopRepo{}, nil
	})
	defer func() {
		if recover() == nil {
			t.Fatalf("duplicate registration must panic")
		}
	}()
	Register("dup-kind", func(ctx context.Context, cfg Config) (Repository, error) {
		return nopRepo{}, nil
	})
}
