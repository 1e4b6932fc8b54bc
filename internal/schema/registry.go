// Package schema accumulates MASTER column sets keyed by source table. The
// registry is built in one pass, frozen, and then consumed read-only by the
// xref and target generators; it is never mutated after Freeze.
package schema

import (
	"fmt"
	"sort"

	"sttmgen/internal/sttm"
)

// UnknownTableError reports a lookup for a table never registered as MASTER.
type UnknownTableError struct {
	Table string
}

func (e *UnknownTableError) Error() string {
	return fmt.Sprintf("unknown source table %q: no MASTER rows registered for it", e.Table)
}

// MasterGroup owns the distinct source columns of one MASTER table.
type MasterGroup struct {
	Table string

	cols map[string]struct{}
}

// Columns returns the group's column set in lexicographic order.
func (g *MasterGroup) Columns() []string {
	out := make([]string, 0, len(g.cols))
	for c := range g.cols {
		out = append(out, c)
	}
	sort.Strings(out)
	return out
}

// Has reports whether the group contains the named column.
func (g *MasterGroup) Has(col string) bool {
	_, ok := g.cols[col]
	return ok
}

// Registry is the single source of truth for MASTER column existence checks.
//
// Usage is strictly two-phase: Register every MASTER row, call Freeze, then
// share it across any number of concurrent readers. Register after Freeze is
// a programming error and fails loudly.
type Registry struct {
	groups map[string]*MasterGroup
	frozen bool
}

func NewRegistry() *Registry {
	return &Registry{groups: make(map[string]*MasterGroup)}
}

// Register folds one MASTER row into its group, deduplicating columns.
func (r *Registry) Register(row sttm.MappingRow) error {
	if r.frozen {
		return fmt.Errorf("schema registry is frozen; register must happen before any lookup")
	}
	if row.Kind != sttm.KindMaster {
		return fmt.Errorf("register: row kind %s is not MASTER", row.Kind)
	}
	if row.SourceTable == "" {
		return fmt.Errorf("register: MASTER row has empty source table")
	}
	if row.SourceColumn == "" {
		return fmt.Errorf("register: MASTER row for %q has empty source column", row.SourceTable)
	}

	g, ok := r.groups[row.SourceTable]
	if !ok {
		g = &MasterGroup{Table: row.SourceTable, cols: make(map[string]struct{})}
		r.groups[row.SourceTable] = g
	}
	g.cols[row.SourceColumn] = struct{}{}
	return nil
}

// Freeze marks the registry read-only.
func (r *Registry) Freeze() {
	r.frozen = true
}

// Group returns the MASTER group for table, or an UnknownTableError.
func (r *Registry) Group(table string) (*MasterGroup, error) {
	g, ok := r.groups[table]
	if !ok {
		return nil, &UnknownTableError{Table: table}
	}
	return g, nil
}

// ColumnsOf returns the frozen column set of table in lexicographic order.
func (r *Registry) ColumnsOf(table string) ([]string, error) {
	g, err := r.Group(table)
	if err != nil {
		return nil, err
	}
	return g.Columns(), nil
}

// Tables returns all registered MASTER tables in lexicographic order.
func (r *Registry) Tables() []string {
	out := make([]string, 0, len(r.groups))
	for t := range r.groups {
		out = append(out, t)
	}
	sort.Strings(out)
	return out
}
