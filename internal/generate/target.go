package generate

import (
	"sort"
	"strings"

	"sttmgen/internal/sttm"
)

// NameIndex maps logical source names to emitted relation names: MASTER
// tables resolve to their projection views, XREF tables to their snapshot
// tables. Target rows may reference either.
type NameIndex struct {
	views map[string]string
	xrefs map[string]string
}

func (n NameIndex) Resolve(logical string) (string, bool) {
	if v, ok := n.xrefs[logical]; ok {
		return v, true
	}
	if v, ok := n.views[logical]; ok {
		return v, true
	}
	return "", false
}

// JoinStep is one node of an ordered join chain. The driving node has an
// empty JoinType and Condition; every later node carries both.
type JoinStep struct {
	Order     int
	Source    string // logical source table
	JoinType  string
	Condition string
}

// UnionArm is one SELECT of a multi-arm INSERT: the rows sharing a filter and
// a join-condition assignment, plus the chain assembled from them.
type UnionArm struct {
	Filter string
	Chain  []JoinStep
	Rows   []sttm.MappingRow
}

// TargetGroup folds every TARGET row of one sink table.
type TargetGroup struct {
	Table   string
	Columns []TargetColumn // first-appearance order
	Arms    []*UnionArm
}

// TargetColumn is a resolved sink column definition.
type TargetColumn struct {
	Name string
	Type string
}

// nodeKey distinguishes join-chain slots. Rows carrying a join condition but
// no join_order share one slot so conflicting conditions still split arms.
type nodeKey struct {
	order    int
	hasOrder bool
}

// foldTargetGroups partitions TARGET rows by sink table and assembles union
// arms. Groups come back name-sorted; arms and columns keep first-appearance
// order within the row sequence, which makes regeneration byte-stable.
func foldTargetGroups(rows []sttm.MappingRow, opts Options) ([]*TargetGroup, []error) {
	byTable := make(map[string][]sttm.MappingRow)
	var names []string
	for _, row := range rows {
		if row.Kind != sttm.KindTarget || row.TargetTable == "" {
			continue
		}
		if _, ok := byTable[row.TargetTable]; !ok {
			names = append(names, row.TargetTable)
		}
		byTable[row.TargetTable] = append(byTable[row.TargetTable], row)
	}
	sort.Strings(names)

	var errs []error
	groups := make([]*TargetGroup, 0, len(names))
	for _, name := range names {
		g, ge := foldOneTarget(name, byTable[name], opts)
		if len(ge) > 0 {
			errs = append(errs, ge...)
			continue
		}
		groups = append(groups, g)
	}
	return groups, errs
}

func foldOneTarget(table string, rows []sttm.MappingRow, opts Options) (*TargetGroup, []error) {
	g := &TargetGroup{Table: table}

	// Column definitions: union of target columns, deduplicated by name,
	// first row with a declared type wins, default type otherwise.
	seen := make(map[string]int)
	for _, row := range rows {
		if row.TargetColumn == "" {
			continue
		}
		if i, ok := seen[row.TargetColumn]; ok {
			if g.Columns[i].Type == "" {
				g.Columns[i].Type = row.TargetDataType
			}
			continue
		}
		seen[row.TargetColumn] = len(g.Columns)
		g.Columns = append(g.Columns, TargetColumn{Name: row.TargetColumn, Type: row.TargetDataType})
	}
	for i := range g.Columns {
		if g.Columns[i].Type == "" {
			g.Columns[i].Type = opts.DefaultDataType
		}
	}

	// Arms: partition by filter, then split on conflicting join-condition
	// assignments within a slot.
	var filters []string
	byFilter := make(map[string][]sttm.MappingRow)
	for _, row := range rows {
		if _, ok := byFilter[row.Filter]; !ok {
			filters = append(filters, row.Filter)
		}
		byFilter[row.Filter] = append(byFilter[row.Filter], row)
	}

	var errs []error
	for _, f := range filters {
		arms, ae := buildArms(table, f, byFilter[f], opts)
		if len(ae) > 0 {
			errs = append(errs, ae...)
			continue
		}
		g.Arms = append(g.Arms, arms...)
	}
	if len(errs) > 0 {
		return nil, errs
	}
	return g, nil
}

// buildArms expands one filter bucket into union arms. In the common case
// every join slot has a single condition and the bucket is exactly one arm;
// rows that disagree on the condition for a slot fan out into one arm per
// distinct assignment, with condition-less rows shared by all of them.
func buildArms(table, filter string, rows []sttm.MappingRow, opts Options) ([]*UnionArm, []error) {
	var slots []nodeKey
	conds := make(map[nodeKey][]string)
	for _, row := range rows {
		if row.JoinCondition == "" {
			continue
		}
		k := nodeKey{order: row.JoinOrder, hasOrder: row.HasJoinOrder}
		if _, ok := conds[k]; !ok {
			slots = append(slots, k)
		}
		if !contains(conds[k], row.JoinCondition) {
			conds[k] = append(conds[k], row.JoinCondition)
		}
	}

	assignments := expandAssignments(slots, conds)
	arms := make([]*UnionArm, 0, len(assignments))
	var errs []error
	for _, assign := range assignments {
		armRows := make([]sttm.MappingRow, 0, len(rows))
		for _, row := range rows {
			if row.JoinCondition == "" ||
				assign[nodeKey{order: row.JoinOrder, hasOrder: row.HasJoinOrder}] == row.JoinCondition {
				armRows = append(armRows, row)
			}
		}
		chain, ce := buildChain(table, armRows, assign, opts)
		if len(ce) > 0 {
			errs = append(errs, ce...)
			continue
		}
		arms = append(arms, &UnionArm{Filter: filter, Chain: chain, Rows: armRows})
	}
	if len(errs) > 0 {
		return nil, errs
	}
	return arms, nil
}

// expandAssignments produces one condition choice per slot, in appearance
// order. A bucket with no conflicting slots yields a single assignment (the
// empty one when there are no conditions at all).
func expandAssignments(slots []nodeKey, conds map[nodeKey][]string) []map[nodeKey]string {
	out := []map[nodeKey]string{{}}
	for _, slot := range slots {
		next := make([]map[nodeKey]string, 0, len(out)*len(conds[slot]))
		for _, base := range out {
			for _, c := range conds[slot] {
				m := make(map[nodeKey]string, len(base)+1)
				for k, v := range base {
					m[k] = v
				}
				m[slot] = c
				next = append(next, m)
			}
		}
		out = next
	}
	return out
}

// buildChain assembles the ordered join chain of one arm. The minimum
// join_order is the driving relation; each subsequent distinct order appends
// one step. Multi-node chains fail fast when a non-driving node has no
// condition or relies on an unconfigured default join type.
func buildChain(table string, rows []sttm.MappingRow, assign map[nodeKey]string, opts Options) ([]JoinStep, []error) {
	type node struct {
		order  int
		source string
		jt     string
	}
	var orders []int
	nodes := make(map[int]*node)
	for _, row := range rows {
		if !row.HasJoinOrder || row.SourceTable == "" {
			continue
		}
		n, ok := nodes[row.JoinOrder]
		if !ok {
			n = &node{order: row.JoinOrder, source: row.SourceTable}
			nodes[row.JoinOrder] = n
			orders = append(orders, row.JoinOrder)
		}
		if n.jt == "" {
			n.jt = row.JoinType
		}
	}
	sort.Ints(orders)

	if len(orders) == 0 {
		// No ordered rows: a single distinct source is its own driving chain.
		var src string
		for _, row := range rows {
			if row.SourceTable == "" {
				continue
			}
			if src == "" {
				src = row.SourceTable
			} else if src != row.SourceTable {
				return nil, []error{&AmbiguousJoinError{
					TargetTable: table,
					Reason:      "multiple source tables but no join_order to sequence them",
				}}
			}
		}
		if src == "" {
			return nil, nil
		}
		return []JoinStep{{Source: src}}, nil
	}

	var errs []error
	chain := make([]JoinStep, 0, len(orders))
	for i, o := range orders {
		n := nodes[o]
		if i == 0 {
			chain = append(chain, JoinStep{Order: o, Source: n.source})
			continue
		}
		cond := assign[nodeKey{order: o, hasOrder: true}]
		if cond == "" {
			errs = append(errs, &AmbiguousJoinError{
				TargetTable: table, JoinOrder: o,
				Reason: "non-driving join node has no join_condition",
			})
			continue
		}
		jt := n.jt
		if jt == "" {
			jt = opts.DefaultJoinType
		}
		if jt == "" {
			errs = append(errs, &AmbiguousJoinError{
				TargetTable: table, JoinOrder: o,
				Reason: "join_type not set and no default_join_type configured",
			})
			continue
		}
		norm, ok := sttm.NormalizeJoinType(jt)
		if !ok {
			errs = append(errs, &AmbiguousJoinError{
				TargetTable: table, JoinOrder: o,
				Reason: "unrecognized join_type " + jt,
			})
			continue
		}
		chain = append(chain, JoinStep{Order: o, Source: n.source, JoinType: norm, Condition: cond})
	}
	if len(errs) > 0 {
		return nil, errs
	}
	return chain, nil
}

// BuildTargets emits one table definition and one (possibly multi-arm) INSERT
// per sink table. A failing group is skipped; the rest still generate.
func BuildTargets(rows []sttm.MappingRow, names NameIndex, opts Options) (tables, inserts []Statement, errs []error) {
	groups, errs := foldTargetGroups(rows, opts)
	for _, g := range groups {
		sql, ge := buildTargetInsertSQL(g, names)
		if len(ge) > 0 {
			errs = append(errs, ge...)
			continue
		}
		tables = append(tables, Statement{
			ID:   "table:" + g.Table,
			Kind: KindTable,
			Name: g.Table,
			SQL:  buildTargetTableSQL(g, opts),
		})
		inserts = append(inserts, Statement{
			ID:   "insert:" + g.Table,
			Kind: KindInsert,
			Name: g.Table,
			SQL:  sql,
		})
	}
	return tables, inserts, errs
}

func buildTargetTableSQL(g *TargetGroup, opts Options) string {
	var b strings.Builder
	b.WriteString("CREATE TABLE IF NOT EXISTS ")
	b.WriteString(g.Table)
	b.WriteString(" (\n")
	for i, c := range g.Columns {
		if i > 0 {
			b.WriteString(",\n")
		}
		b.WriteString("  ")
		b.WriteString(c.Name)
		b.WriteString(" ")
		b.WriteString(c.Type)
	}
	b.WriteString("\n)")
	b.WriteString(renderWithClause(opts.TableProps(g.Table)))
	b.WriteString(";")
	return b.String()
}

// buildTargetInsertSQL renders the INSERT: one SELECT per arm, combined with
// UNION ALL (set union preserving duplicates).
func buildTargetInsertSQL(g *TargetGroup, names NameIndex) (string, []error) {
	var errs []error

	var b strings.Builder
	b.WriteString("INSERT INTO ")
	b.WriteString(g.Table)
	b.WriteString(" (")
	for i, c := range g.Columns {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(c.Name)
	}
	b.WriteString(")\n")

	for ai, arm := range g.Arms {
		if ai > 0 {
			b.WriteString("\nUNION ALL\n")
		}
		sel, se := buildArmSelect(g, arm, names)
		if len(se) > 0 {
			errs = append(errs, se...)
			continue
		}
		b.WriteString(sel)
	}
	if len(errs) > 0 {
		return "", errs
	}
	b.WriteString(";")
	return b.String(), nil
}

func buildArmSelect(g *TargetGroup, arm *UnionArm, names NameIndex) (string, []error) {
	qualified := len(arm.Chain) >= 2
	var errs []error

	resolve := func(logical string) string {
		emitted, ok := names.Resolve(logical)
		if !ok {
			errs = append(errs, &SchemaError{Group: "target " + g.Table, Table: logical})
			return logical
		}
		return emitted
	}

	// One expression per target column: first arm row for the column wins;
	// columns the arm does not feed select NULL so every arm stays
	// union-compatible.
	exprFor := make(map[string]string, len(g.Columns))
	for _, row := range arm.Rows {
		if row.TargetColumn == "" {
			continue
		}
		if _, ok := exprFor[row.TargetColumn]; ok {
			continue
		}
		switch {
		case row.Expression != "":
			exprFor[row.TargetColumn] = row.Expression
		case row.SourceColumn != "" && qualified:
			exprFor[row.TargetColumn] = resolve(row.SourceTable) + "." + row.SourceColumn
		case row.SourceColumn != "":
			exprFor[row.TargetColumn] = row.SourceColumn
		default:
			exprFor[row.TargetColumn] = "NULL"
		}
	}

	var b strings.Builder
	b.WriteString("SELECT\n")
	for i, c := range g.Columns {
		if i > 0 {
			b.WriteString(",\n")
		}
		expr, ok := exprFor[c.Name]
		if !ok {
			expr = "NULL"
		}
		b.WriteString("  ")
		b.WriteString(expr)
		b.WriteString(" AS ")
		b.WriteString(c.Name)
	}

	if len(arm.Chain) > 0 {
		b.WriteString("\nFROM ")
		b.WriteString(resolve(arm.Chain[0].Source))
		for _, step := range arm.Chain[1:] {
			b.WriteString("\n")
			b.WriteString(step.JoinType)
			b.WriteString(" JOIN ")
			b.WriteString(resolve(step.Source))
			b.WriteString(" ON ")
			b.WriteString(step.Condition)
		}
	}
	if arm.Filter != "" {
		b.WriteString("\nWHERE ")
		b.WriteString(arm.Filter)
	}
	if len(errs) > 0 {
		return "", errs
	}
	return b.String(), nil
}

func contains(list []string, v string) bool {
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}
