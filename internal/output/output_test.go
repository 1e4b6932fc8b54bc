package output

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"gopkg.in/yaml.v3"

	"sttmgen/internal/generate"
	"sttmgen/internal/sqlcheck"
)

func sampleResult() *generate.Result {
	return &generate.Result{
		Views: []generate.Statement{
			{ID: "view:cust_v", Kind: generate.KindView, Name: "cust_v", SQL: "CREATE VIEW cust_v (a) AS\nSELECT a FROM raw;"},
		},
		XrefTables: []generate.Statement{
			{ID: "table:cust_xref", Kind: generate.KindTable, Name: "cust_xref", SQL: "CREATE TABLE IF NOT EXISTS cust_xref (a STRING);"},
		},
		XrefInserts: []generate.Statement{
			{ID: "insert:cust_xref", Kind: generate.KindInsert, Name: "cust_xref", SQL: "INSERT INTO cust_xref (a)\nSELECT a FROM cust_v; -- latest only"},
		},
	}
}

func readFile(t *testing.T, dir, name string) string {
	t.Helper()
	data, err := os.ReadFile(filepath.Join(dir, name))
	if err != nil {
		t.Fatalf("read %s: %v", name, err)
	}
	return string(data)
}

func TestWriteSQL(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	if err := NewWriter(dir).WriteSQL(sampleResult()); err != nil {
		t.Fatalf("WriteSQL: %v", err)
	}

	all := readFile(t, dir, FileAll)
	for _, want := range []string{"CREATE VIEW cust_v", "CREATE TABLE IF NOT EXISTS cust_xref", "INSERT INTO cust_xref"} {
		if !strings.Contains(all, want) {
			t.Fatalf("%s missing %q:\n%s", FileAll, want, all)
		}
	}
	if views := readFile(t, dir, FileViews); strings.Contains(views, "INSERT") {
		t.Fatalf("views file contains inserts:\n%s", views)
	}
	if inserts := readFile(t, dir, FileInserts); strings.Contains(inserts, "CREATE") {
		t.Fatalf("inserts file contains DDL:\n%s", inserts)
	}
}

func TestWriteSQL_StatementSetReplacesInserts(t *testing.T) {
	t.Parallel()

	res := sampleResult()
	res.StatementSet = &generate.Statement{
		ID: "statement_set", Kind: generate.KindStatementSet, Name: "statement_set",
		SQL: "EXECUTE STATEMENT SET\nBEGIN\n\nINSERT INTO cust_xref (a)\nSELECT a FROM cust_v;\n\nEND;",
	}

	dir := t.TempDir()
	if err := NewWriter(dir).WriteSQL(res); err != nil {
		t.Fatalf("WriteSQL: %v", err)
	}
	inserts := readFile(t, dir, FileInserts)
	if !strings.Contains(inserts, "EXECUTE STATEMENT SET") {
		t.Fatalf("inserts file should hold the set:\n%s", inserts)
	}
	if strings.Count(inserts, "INSERT INTO") != 1 {
		t.Fatalf("individual inserts must not be duplicated next to the set:\n%s", inserts)
	}
}

func TestWriteYAML_LiteralBlockWithoutComments(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	if err := NewWriter(dir).WriteYAML(sampleResult()); err != nil {
		t.Fatalf("WriteYAML: %v", err)
	}

	raw := readFile(t, dir, FileInsertsYAML)
	var doc map[string]string
	if err := yaml.Unmarshal([]byte(raw), &doc); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	block, ok := doc["SQL queries"]
	if !ok {
		t.Fatalf("missing 'SQL queries' key:\n%s", raw)
	}
	if !strings.Contains(block, "INSERT INTO cust_xref") {
		t.Fatalf("block missing SQL:\n%s", block)
	}
	if strings.Contains(block, "latest only") {
		t.Fatalf("comments must be stripped from deployment YAML:\n%s", block)
	}
	if !strings.Contains(raw, "|") {
		t.Fatalf("SQL must render as a literal block:\n%s", raw)
	}
}

func TestWriteValidationCSV(t *testing.T) {
	t.Parallel()

	inputs := []sqlcheck.Input{
		{ID: "view:cust_v", Kind: "view", SQL: "CREATE VIEW cust_v (a) AS\nSELECT a FROM raw;"},
		{ID: "insert:bad", Kind: "insert", SQL: "INSERT INTO x SELEC;"},
	}
	rep := &sqlcheck.Report{
		Checked: 2,
		Diagnostics: []sqlcheck.Diagnostic{
			{StatementID: "insert:bad", Line: 1, Column: 15, Message: "unexpected token"},
		},
	}

	dir := t.TempDir()
	if err := NewWriter(dir).WriteValidationCSV(inputs, rep); err != nil {
		t.Fatalf("WriteValidationCSV: %v", err)
	}

	got := readFile(t, dir, FileValidationCSV)
	lines := strings.Split(strings.TrimSpace(got), "\n")
	if len(lines) != 3 {
		t.Fatalf("want header + 2 rows:\n%s", got)
	}
	if !strings.HasPrefix(lines[0], "statement_id,result,line,column,message,sql") {
		t.Fatalf("header = %q", lines[0])
	}
	if !strings.Contains(lines[1], ",ok,") || strings.Contains(lines[1], "\n") {
		t.Fatalf("ok row = %q", lines[1])
	}
	if !strings.Contains(lines[1], "CREATE VIEW cust_v (a) AS SELECT a FROM raw;") {
		t.Fatalf("sql not flattened: %q", lines[1])
	}
	if !strings.Contains(lines[2], ",error,1,15,unexpected token,") {
		t.Fatalf("error row = %q", lines[2])
	}
}
