package generate

// StatementKind labels the shape of one emitted SQL artifact.
type StatementKind string

const (
	KindView         StatementKind = "view"
	KindTable        StatementKind = "table"
	KindInsert       StatementKind = "insert"
	KindStatementSet StatementKind = "statement_set"
)

// Statement is one textual SQL artifact. ID is stable across runs of the same
// mapping and is the identity used by the validator's report.
type Statement struct {
	ID   string
	Kind StatementKind
	Name string
	SQL  string
}

// Result is everything one generation pass produced. Statement slices are in
// deterministic (name-sorted) order; regenerating from the same rows yields
// byte-identical SQL.
type Result struct {
	Views         []Statement
	XrefTables    []Statement
	XrefInserts   []Statement
	TargetTables  []Statement
	TargetInserts []Statement

	// StatementSet wraps XrefInserts+TargetInserts when configured; nil when
	// inserts are emitted individually.
	StatementSet *Statement

	// Errors aggregates generation-time failures (SchemaError,
	// XrefValidationError, AmbiguousJoinError). A failed group is skipped;
	// the remaining groups still generate.
	Errors []error
}

// Statements returns every emitted statement in pipeline order: views, table
// definitions, then inserts (or the wrapping statement set).
func (r *Result) Statements() []Statement {
	out := make([]Statement, 0,
		len(r.Views)+len(r.XrefTables)+len(r.TargetTables)+len(r.XrefInserts)+len(r.TargetInserts)+1)
	out = append(out, r.Views...)
	out = append(out, r.XrefTables...)
	out = append(out, r.TargetTables...)
	if r.StatementSet != nil {
		out = append(out, *r.StatementSet)
		return out
	}
	out = append(out, r.XrefInserts...)
	out = append(out, r.TargetInserts...)
	return out
}
