package generate

import (
	"strings"

	"sttmgen/internal/schema"
	"sttmgen/internal/sttm"
)

// Generate runs the full pipeline over an already-parsed mapping: register
// MASTER rows, freeze the registry, then emit views, xref snapshots and
// target sinks. Errors abort only the group they belong to; everything else
// still generates, and the same input always yields the same bytes.
func Generate(rows []sttm.MappingRow, opts Options) *Result {
	res := &Result{}

	reg := schema.NewRegistry()
	for _, row := range rows {
		if row.Kind != sttm.KindMaster {
			continue
		}
		if err := reg.Register(row); err != nil {
			res.Errors = append(res.Errors, err)
		}
	}
	reg.Freeze()

	res.Views = BuildViews(reg, opts)

	var xe []error
	res.XrefTables, res.XrefInserts, xe = BuildXrefs(rows, reg, opts)
	res.Errors = append(res.Errors, xe...)

	names := NameIndex{
		views: make(map[string]string),
		xrefs: make(map[string]string),
	}
	for _, t := range reg.Tables() {
		names.views[t] = opts.ViewName(t)
	}
	for _, g := range foldXrefGroups(rows) {
		names.xrefs[g.Table] = opts.XrefName(g.Table)
	}

	var te []error
	res.TargetTables, res.TargetInserts, te = BuildTargets(rows, names, opts)
	res.Errors = append(res.Errors, te...)

	if opts.WrapStatementSet {
		res.StatementSet = wrapStatementSet(res)
	}
	return res
}

// wrapStatementSet folds every INSERT into a single EXECUTE STATEMENT SET so
// a session submits all continuous pipelines atomically. Views and table
// definitions stay standalone; only INSERTs belong in the set.
func wrapStatementSet(res *Result) *Statement {
	inserts := make([]Statement, 0, len(res.XrefInserts)+len(res.TargetInserts))
	inserts = append(inserts, res.XrefInserts...)
	inserts = append(inserts, res.TargetInserts...)
	if len(inserts) == 0 {
		return nil
	}

	var b strings.Builder
	b.WriteString("EXECUTE STATEMENT SET\nBEGIN\n")
	for _, st := range inserts {
		b.WriteString("\n")
		b.WriteString(st.SQL)
		b.WriteString("\n")
	}
	b.WriteString("\nEND;")
	return &Statement{
		ID:   "statement_set",
		Kind: KindStatementSet,
		Name: "statement_set",
		SQL:  b.String(),
	}
}
