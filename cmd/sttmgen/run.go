package main

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"sttmgen/internal/generate"
	"sttmgen/internal/metrics"
	"sttmgen/internal/output"
	csvparser "sttmgen/internal/parser/csv"
	jsonparser "sttmgen/internal/parser/json"
	"sttmgen/internal/report"
	"sttmgen/internal/sqlcheck"
	"sttmgen/internal/sttm"
)

type runParams struct {
	MappingPath string
	Format      string
	Encoding    string
	OutDir      string
	Options     generate.Options
	LedgerKind  string
	LedgerDSN   string
	Verbose     bool
}

type runSummary struct {
	Statements  int
	GroupErrors int
	Diagnostics int
}

func loadOptions(path string) (generate.Options, error) {
	if path == "" {
		return generate.Options{}.WithDefaults(), nil
	}
	return generate.LoadOptions(path)
}

func readMapping(p runParams) ([]sttm.MappingRow, error) {
	f, err := os.Open(p.MappingPath)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	format := p.Format
	if format == "" {
		if strings.EqualFold(filepath.Ext(p.MappingPath), ".json") {
			format = "json"
		} else {
			format = "csv"
		}
	}

	switch format {
	case "json":
		return jsonparser.ReadRows(f)
	case "csv":
		return csvparser.ReadRows(f, p.Encoding, func(line int, err error) {
			log.Printf("mapping: line %d skipped: %v", line, err)
		})
	default:
		return nil, fmt.Errorf("unknown mapping format %q", format)
	}
}

// execute runs the whole pipeline: parse, generate, write artifacts,
// validate, and optionally record the run in the ledger.
func execute(ctx context.Context, p runParams) (runSummary, error) {
	started := time.Now()

	rows, err := readMapping(p)
	if err != nil {
		return runSummary{}, fmt.Errorf("read mapping: %w", err)
	}
	for _, row := range rows {
		metrics.IncCounter(metrics.MetricRowsTotal, 1, metrics.Labels{"kind": string(row.Kind)})
	}

	res := generate.Generate(rows, p.Options)
	for _, gerr := range res.Errors {
		log.Printf("generate: %v", gerr)
		metrics.IncCounter(metrics.MetricGroupErrorsTotal, 1, nil)
	}
	stmts := res.Statements()
	for _, st := range stmts {
		metrics.IncCounter(metrics.MetricStatementsTotal, 1, metrics.Labels{"kind": string(st.Kind)})
	}

	if err := os.MkdirAll(p.OutDir, 0o755); err != nil {
		return runSummary{}, fmt.Errorf("create out dir: %w", err)
	}
	w := output.NewWriter(p.OutDir)
	if err := w.WriteSQL(res); err != nil {
		return runSummary{}, err
	}
	if err := w.WriteYAML(res); err != nil {
		return runSummary{}, err
	}

	inputs := make([]sqlcheck.Input, 0, len(stmts))
	for _, st := range stmts {
		inputs = append(inputs, sqlcheck.Input{ID: st.ID, Kind: string(st.Kind), SQL: st.SQL})
	}
	vStart := time.Now()
	rep := sqlcheck.ValidateStatements(ctx, inputs, 0)
	for _, probe := range expressionProbes(rows) {
		rep.Add(probe, sqlcheck.ValidateExpression(probe.ID, probe.SQL))
		inputs = append(inputs, probe)
	}
	metrics.ObserveHistogram(metrics.MetricValidateSeconds, time.Since(vStart).Seconds(), nil)
	for _, d := range rep.Diagnostics {
		log.Printf("syntax: %s:%d:%d: %s", d.StatementID, d.Line, d.Column, d.Message)
		metrics.IncCounter(metrics.MetricDiagnostics, 1, nil)
	}
	if err := w.WriteValidationCSV(inputs, rep); err != nil {
		return runSummary{}, err
	}

	summary := runSummary{
		Statements:  len(stmts),
		GroupErrors: len(res.Errors),
		Diagnostics: len(rep.Diagnostics),
	}

	if p.LedgerKind != "" {
		if err := recordRun(ctx, p, inputs, rep, summary, started); err != nil {
			// The ledger is an audit convenience; a broken ledger must not
			// fail the generation run.
			log.Printf("ledger: %v", err)
		}
	}
	return summary, nil
}

// expressionProbes wraps each distinct non-empty expression cell as a probe
// input so a malformed fragment is reported even when the statement embedding
// it was never generated.
func expressionProbes(rows []sttm.MappingRow) []sqlcheck.Input {
	var probes []sqlcheck.Input
	seen := make(map[string]bool)
	for _, row := range rows {
		expr := strings.TrimSpace(row.Expression)
		if expr == "" {
			continue
		}
		id := fmt.Sprintf("expr:%s.%s", row.TargetTable, row.TargetColumn)
		if seen[id] {
			continue
		}
		seen[id] = true
		probes = append(probes, sqlcheck.Input{ID: id, Kind: "expression", SQL: expr})
	}
	return probes
}

func recordRun(ctx context.Context, p runParams, inputs []sqlcheck.Input, rep *sqlcheck.Report, summary runSummary, started time.Time) error {
	repo, err := report.New(ctx, report.Config{Kind: p.LedgerKind, DSN: p.LedgerDSN})
	if err != nil {
		return err
	}
	defer repo.Close()

	if err := repo.EnsureSchema(ctx); err != nil {
		return err
	}

	runID := newRunID()
	// Results and inputs share the same order.
	stmts := make([]report.StatementRecord, 0, len(rep.Results))
	for i, r := range rep.Results {
		result := "ok"
		if !r.OK {
			result = "error"
		}
		stmts = append(stmts, report.StatementRecord{
			RunID:       runID,
			StatementID: r.StatementID,
			Kind:        r.Kind,
			Name:        r.StatementID,
			Result:      result,
			SQL:         sqlcheck.Flatten(inputs[i].SQL),
		})
	}

	if err := repo.RecordRun(ctx, report.RunRecord{
		RunID:       runID,
		MappingFile: p.MappingPath,
		StartedAt:   started,
		FinishedAt:  time.Now(),
		Statements:  summary.Statements,
		Errors:      summary.GroupErrors,
		Diagnostics: summary.Diagnostics,
	}); err != nil {
		return err
	}
	return repo.RecordStatements(ctx, stmts)
}

func newRunID() string {
	var b [8]byte
	if _, err := rand.Read(b[:]); err != nil {
		return fmt.Sprintf("run-%d", time.Now().UnixNano())
	}
	return hex.EncodeToString(b[:])
}
