// Package output renders generation results to the on-disk artifact set:
// numbered SQL files, deployment YAML, and the validation CSV. Writers are
// deterministic so regenerating from the same mapping produces identical
// bytes.
package output

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"sttmgen/internal/generate"
	"sttmgen/internal/sqlcheck"
)

const (
	FileAll     = "00_all.sql"
	FileViews   = "01_views.sql"
	FileTables  = "02_tables.sql"
	FileInserts = "03_inserts.sql"

	FileViewsYAML   = "views.yaml"
	FileSinksYAML   = "sinks.yaml"
	FileInsertsYAML = "inserts.yaml"

	FileValidationCSV = "validation.csv"
)

type Writer struct {
	Dir string
}

func NewWriter(dir string) *Writer { return &Writer{Dir: dir} }

func (w *Writer) write(name string, data []byte) error {
	path := filepath.Join(w.Dir, name)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", name, err)
	}
	return nil
}

func joinSQL(stmts []generate.Statement) []byte {
	var b strings.Builder
	for i, st := range stmts {
		if i > 0 {
			b.WriteString("\n")
		}
		b.WriteString(st.SQL)
		b.WriteString("\n")
	}
	return []byte(b.String())
}

// WriteSQL emits the combined script plus one file per statement category.
// When the result carries a statement set, the inserts file holds the set
// instead of the individual INSERTs.
func (w *Writer) WriteSQL(res *generate.Result) error {
	if err := w.write(FileAll, joinSQL(res.Statements())); err != nil {
		return err
	}
	if err := w.write(FileViews, joinSQL(res.Views)); err != nil {
		return err
	}
	tables := make([]generate.Statement, 0, len(res.XrefTables)+len(res.TargetTables))
	tables = append(tables, res.XrefTables...)
	tables = append(tables, res.TargetTables...)
	if err := w.write(FileTables, joinSQL(tables)); err != nil {
		return err
	}
	var inserts []generate.Statement
	if res.StatementSet != nil {
		inserts = []generate.Statement{*res.StatementSet}
	} else {
		inserts = append(inserts, res.XrefInserts...)
		inserts = append(inserts, res.TargetInserts...)
	}
	return w.write(FileInserts, joinSQL(inserts))
}

// sqlQueriesDoc is the deployment YAML shape: a single literal block under
// the "SQL queries" key, comments stripped.
func sqlQueriesDoc(stmts []generate.Statement) ([]byte, error) {
	var b strings.Builder
	for i, st := range stmts {
		if i > 0 {
			b.WriteString("\n")
		}
		b.WriteString(strings.TrimSpace(sqlcheck.StripComments(st.SQL)))
		b.WriteString("\n")
	}

	doc := yaml.Node{
		Kind: yaml.MappingNode,
		Content: []*yaml.Node{
			{Kind: yaml.ScalarNode, Value: "SQL queries"},
			{Kind: yaml.ScalarNode, Style: yaml.LiteralStyle, Value: b.String()},
		},
	}
	return yaml.Marshal(&doc)
}

// WriteYAML emits views.yaml, sinks.yaml and inserts.yaml for deployment
// tooling that expects one literal SQL block per file.
func (w *Writer) WriteYAML(res *generate.Result) error {
	sinks := make([]generate.Statement, 0, len(res.XrefTables)+len(res.TargetTables))
	sinks = append(sinks, res.XrefTables...)
	sinks = append(sinks, res.TargetTables...)

	var inserts []generate.Statement
	if res.StatementSet != nil {
		inserts = []generate.Statement{*res.StatementSet}
	} else {
		inserts = append(inserts, res.XrefInserts...)
		inserts = append(inserts, res.TargetInserts...)
	}

	for _, part := range []struct {
		name  string
		stmts []generate.Statement
	}{
		{FileViewsYAML, res.Views},
		{FileSinksYAML, sinks},
		{FileInsertsYAML, inserts},
	} {
		data, err := sqlQueriesDoc(part.stmts)
		if err != nil {
			return fmt.Errorf("marshal %s: %w", part.name, err)
		}
		if err := w.write(part.name, data); err != nil {
			return err
		}
	}
	return nil
}

// WriteValidationCSV emits one row per validated statement, plus one row per
// diagnostic for statements that failed. The SQL column is flattened to a
// single line.
func (w *Writer) WriteValidationCSV(inputs []sqlcheck.Input, rep *sqlcheck.Report) error {
	byID := make(map[string][]sqlcheck.Diagnostic)
	for _, d := range rep.Diagnostics {
		byID[d.StatementID] = append(byID[d.StatementID], d)
	}

	var buf strings.Builder
	cw := csv.NewWriter(&buf)
	if err := cw.Write([]string{"statement_id", "result", "line", "column", "message", "sql"}); err != nil {
		return err
	}
	for _, in := range inputs {
		diags := byID[in.ID]
		if len(diags) == 0 {
			if err := cw.Write([]string{in.ID, "ok", "", "", "", sqlcheck.Flatten(in.SQL)}); err != nil {
				return err
			}
			continue
		}
		for _, d := range diags {
			row := []string{
				in.ID, "error",
				strconv.Itoa(d.Line), strconv.Itoa(d.Column),
				d.Message, sqlcheck.Flatten(in.SQL),
			}
			if err := cw.Write(row); err != nil {
				return err
			}
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return err
	}
	return w.write(FileValidationCSV, []byte(buf.String()))
}
