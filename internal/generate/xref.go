package generate

import (
	"errors"
	"slices"
	"sort"
	"strings"

	"sttmgen/internal/schema"
	"sttmgen/internal/sttm"
)

// XrefGroup is one deduplicated snapshot table folded from XREF rows sharing a
// source table (the xref's own name).
type XrefGroup struct {
	Table string
	From  string // the referenced MASTER table

	// Columns the snapshot projects, lexicographic. When the rows name no
	// source columns the full MASTER column set is inherited; an explicit
	// subset always gets the key and event timestamp columns added.
	Columns []string

	SourcePK         []string
	EventTsField     string
	SeqField         string
	DeleteFlagField  string
	DeleteFlagValues []string

	// Conflicts holds metadata disagreements found while folding; a group
	// with conflicts never generates.
	Conflicts []error
}

// foldXrefGroups partitions XREF rows by their own table name. Within a group
// the first non-empty value fills each metadata slot; a later row that names
// a different xref_from or source_pk is a conflict, not a loser. Column cells
// accumulate as a set. Group order is name-sorted for determinism.
func foldXrefGroups(rows []sttm.MappingRow) []*XrefGroup {
	byName := make(map[string]*XrefGroup)
	colSets := make(map[string]map[string]struct{})
	var order []string

	for _, row := range rows {
		if row.Kind != sttm.KindXref || row.SourceTable == "" {
			continue
		}
		g, ok := byName[row.SourceTable]
		if !ok {
			g = &XrefGroup{Table: row.SourceTable}
			byName[row.SourceTable] = g
			colSets[row.SourceTable] = make(map[string]struct{})
			order = append(order, row.SourceTable)
		}
		if row.XrefFrom != "" {
			if g.From == "" {
				g.From = row.XrefFrom
			} else if row.XrefFrom != g.From {
				g.Conflicts = append(g.Conflicts, &XrefConflictError{
					XrefTable: g.Table, Slot: "xref_from", Want: g.From, Got: row.XrefFrom,
				})
			}
		}
		if len(row.SourcePK) > 0 {
			if len(g.SourcePK) == 0 {
				g.SourcePK = row.SourcePK
			} else if !slices.Equal(g.SourcePK, row.SourcePK) {
				g.Conflicts = append(g.Conflicts, &XrefConflictError{
					XrefTable: g.Table, Slot: "source_pk",
					Want: strings.Join(g.SourcePK, ", "), Got: strings.Join(row.SourcePK, ", "),
				})
			}
		}
		if g.EventTsField == "" {
			g.EventTsField = row.EventTsField
		}
		if g.SeqField == "" {
			g.SeqField = row.SeqField
		}
		if g.DeleteFlagField == "" {
			g.DeleteFlagField = row.DeleteFlagField
			g.DeleteFlagValues = row.DeleteFlagValues
		}
		if row.SourceColumn != "" {
			colSets[row.SourceTable][row.SourceColumn] = struct{}{}
		}
	}

	sort.Strings(order)
	out := make([]*XrefGroup, 0, len(order))
	for _, name := range order {
		g := byName[name]
		for c := range colSets[name] {
			g.Columns = append(g.Columns, c)
		}
		sort.Strings(g.Columns)
		out = append(out, g)
	}
	return out
}

// validateXref checks the group's referential integrity against the frozen
// registry. Every finding is returned; none is silently defaulted.
func validateXref(g *XrefGroup, reg *schema.Registry) []error {
	master, err := reg.Group(g.From)
	if err != nil {
		var unknown *schema.UnknownTableError
		if errors.As(err, &unknown) {
			return []error{&SchemaError{Group: "xref " + g.Table, Table: g.From}}
		}
		return []error{err}
	}

	var errs []error
	missing := func(role, field string) {
		errs = append(errs, &XrefValidationError{XrefTable: g.Table, MissingField: field, Role: role})
	}

	if len(g.SourcePK) == 0 {
		missing("source_pk", "")
	}
	for _, pk := range g.SourcePK {
		if !master.Has(pk) {
			missing("source_pk", pk)
		}
	}
	if g.EventTsField == "" {
		missing("event_ts_field", "")
	} else if !master.Has(g.EventTsField) {
		missing("event_ts_field", g.EventTsField)
	}
	if g.SeqField != "" && !master.Has(g.SeqField) {
		missing("seq_field", g.SeqField)
	}
	if g.DeleteFlagField != "" && !master.Has(g.DeleteFlagField) {
		missing("delete_flag_field", g.DeleteFlagField)
	}
	for _, c := range g.Columns {
		if !master.Has(c) {
			missing("source_column", c)
		}
	}
	return errs
}

// BuildXrefs validates and emits every XREF group: a table definition with an
// advisory primary key, and a dedup INSERT selecting rank-1 rows per key from
// the MASTER view. A failing group is skipped and its errors reported; the
// remaining groups still generate.
func BuildXrefs(rows []sttm.MappingRow, reg *schema.Registry, opts Options) (tables, inserts []Statement, errs []error) {
	for _, g := range foldXrefGroups(rows) {
		if len(g.Conflicts) > 0 {
			errs = append(errs, g.Conflicts...)
			continue
		}
		if ve := validateXref(g, reg); len(ve) > 0 {
			errs = append(errs, ve...)
			continue
		}
		if len(g.Columns) == 0 {
			cols, _ := reg.ColumnsOf(g.From)
			g.Columns = cols
		} else {
			g.Columns = withKeyColumns(g)
		}

		name := opts.XrefName(g.Table)
		tables = append(tables, Statement{
			ID:   "table:" + name,
			Kind: KindTable,
			Name: name,
			SQL:  buildXrefTableSQL(name, g, opts),
		})
		inserts = append(inserts, Statement{
			ID:   "insert:" + name,
			Kind: KindInsert,
			Name: name,
			SQL:  buildXrefInsertSQL(name, g, opts),
		})
	}
	return tables, inserts, errs
}

// withKeyColumns unions the partition key and event timestamp into an
// explicit column subset. The declared primary key must have backing columns
// and the surviving row must keep its key; validateXref has already confirmed
// both exist on the referenced MASTER group.
func withKeyColumns(g *XrefGroup) []string {
	set := make(map[string]struct{}, len(g.Columns)+len(g.SourcePK)+1)
	for _, c := range g.Columns {
		set[c] = struct{}{}
	}
	for _, pk := range g.SourcePK {
		set[pk] = struct{}{}
	}
	set[g.EventTsField] = struct{}{}
	out := make([]string, 0, len(set))
	for c := range set {
		out = append(out, c)
	}
	sort.Strings(out)
	return out
}

// buildXrefTableSQL renders the snapshot table definition. The primary key is
// declared NOT ENFORCED: uniqueness is advisory, the dedup INSERT is what
// actually guarantees one row per key.
func buildXrefTableSQL(name string, g *XrefGroup, opts Options) string {
	var b strings.Builder
	b.WriteString("CREATE TABLE IF NOT EXISTS ")
	b.WriteString(name)
	b.WriteString(" (\n")
	for _, c := range g.Columns {
		b.WriteString("  ")
		b.WriteString(c)
		b.WriteString(" ")
		b.WriteString(opts.DefaultDataType)
		b.WriteString(",\n")
	}
	b.WriteString("  PRIMARY KEY (")
	b.WriteString(strings.Join(g.SourcePK, ", "))
	b.WriteString(") NOT ENFORCED\n)")
	b.WriteString(renderWithClause(opts.TableProps(g.Table)))
	b.WriteString(";")
	return b.String()
}

// buildXrefInsertSQL renders the dedup INSERT.
//
// Ranking is per source_pk partition, latest event_ts first, then highest seq
// when configured. Rows tied beyond that keep an arbitrary single winner; that
// non-determinism is inherent to the input and deliberately not papered over
// with an invented secondary order.
func buildXrefInsertSQL(name string, g *XrefGroup, opts Options) string {
	fromView := opts.ViewName(g.From)

	order := g.EventTsField + " DESC"
	if g.SeqField != "" {
		order += ", " + g.SeqField + " DESC"
	}

	var b strings.Builder
	b.WriteString("INSERT INTO ")
	b.WriteString(name)
	b.WriteString(" (")
	b.WriteString(strings.Join(g.Columns, ", "))
	b.WriteString(")\nSELECT ")
	b.WriteString(strings.Join(g.Columns, ", "))
	b.WriteString("\nFROM (\n  SELECT\n")
	for _, c := range g.Columns {
		b.WriteString("    ")
		b.WriteString(c)
		b.WriteString(",\n")
	}
	b.WriteString("    ROW_NUMBER() OVER (PARTITION BY ")
	b.WriteString(strings.Join(g.SourcePK, ", "))
	b.WriteString(" ORDER BY ")
	b.WriteString(order)
	b.WriteString(") AS rn\n  FROM ")
	b.WriteString(fromView)
	if g.DeleteFlagField != "" && len(g.DeleteFlagValues) > 0 {
		vals := make([]string, len(g.DeleteFlagValues))
		copy(vals, g.DeleteFlagValues)
		sort.Strings(vals)
		for i, v := range vals {
			vals[i] = renderFlagValue(v)
		}
		b.WriteString("\n  WHERE ")
		b.WriteString(g.DeleteFlagField)
		b.WriteString(" NOT IN (")
		b.WriteString(strings.Join(vals, ", "))
		b.WriteString(")")
	}
	b.WriteString("\n) AS ranked\nWHERE rn = 1;")
	return b.String()
}
