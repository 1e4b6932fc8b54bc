package generate

import "fmt"

// SchemaError wraps a registry lookup failure with the group that made it.
type SchemaError struct {
	Group string // the view/xref/target being generated
	Table string // the unknown source table
}

func (e *SchemaError) Error() string {
	return fmt.Sprintf("%s: unknown source table %q (no MASTER rows define it)", e.Group, e.Table)
}

// XrefValidationError names the exact missing column so the mapping can be
// corrected; nothing about it is silently defaulted.
type XrefValidationError struct {
	XrefTable    string
	MissingField string
	// Role says which slot referenced the field (source_pk, event_ts_field,
	// seq_field, delete_flag_field, source_column).
	Role string
}

func (e *XrefValidationError) Error() string {
	return fmt.Sprintf("xref %s: %s %q is not a column of the referenced MASTER group",
		e.XrefTable, e.Role, e.MissingField)
}

// XrefConflictError reports XREF rows of one group that disagree on a
// metadata slot. Conflicts are surfaced, never resolved by picking a winner.
type XrefConflictError struct {
	XrefTable string
	Slot      string // xref_from or source_pk
	Want      string // the value the group's first row established
	Got       string
}

func (e *XrefConflictError) Error() string {
	return fmt.Sprintf("xref %s: rows disagree on %s (%q vs %q)",
		e.XrefTable, e.Slot, e.Want, e.Got)
}

// AmbiguousJoinError reports a multi-node join chain that cannot be assembled:
// a non-driving node without a join condition, or a node relying on a default
// join type the configuration does not define.
type AmbiguousJoinError struct {
	TargetTable string
	JoinOrder   int
	Reason      string
}

func (e *AmbiguousJoinError) Error() string {
	return fmt.Sprintf("target %s: join node %d: %s", e.TargetTable, e.JoinOrder, e.Reason)
}
