// Package sttm holds the normalized row model for a Source-to-Target Mapping
// (STTM). The row types need to live in a place both the ingestion readers and
// the generator packages can import without circular deps.
package sttm

import "strings"

// Kind classifies what a mapping row contributes to the pipeline.
type Kind string

const (
	// KindMaster rows define a JSON-projection view over the shared raw relation.
	KindMaster Kind = "MASTER"
	// KindXref rows define a deduplicated latest-by-key snapshot of a master view.
	KindXref Kind = "XREF"
	// KindTarget rows contribute columns to a final sink table and its INSERT.
	KindTarget Kind = "TARGET"
)

// ParseKind normalizes a raw kind cell. Unknown values are returned verbatim
// (upper-cased) with ok=false so callers can report them.
func ParseKind(s string) (Kind, bool) {
	switch k := Kind(strings.ToUpper(strings.TrimSpace(s))); k {
	case KindMaster, KindXref, KindTarget:
		return k, true
	default:
		return k, false
	}
}

// NormalizeJoinType maps the short join spellings used in mapping sheets to
// their OUTER variants. ok=false means the value is not a recognized join type
// (an empty value is not recognized either; the default comes from config).
func NormalizeJoinType(s string) (string, bool) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "INNER", "INNER JOIN":
		return "INNER", true
	case "LEFT", "LEFT OUTER", "LEFT JOIN", "LEFT OUTER JOIN":
		return "LEFT OUTER", true
	case "RIGHT", "RIGHT OUTER", "RIGHT JOIN", "RIGHT OUTER JOIN":
		return "RIGHT OUTER", true
	case "FULL", "FULL OUTER", "FULL JOIN", "FULL OUTER JOIN":
		return "FULL OUTER", true
	default:
		return "", false
	}
}

// MappingRow is one normalized input record. Rows are treated as immutable
// once parsed; free-form SQL fragments (Expression, Filter, JoinCondition) are
// opaque text passed through to generation and to the validator's probes.
type MappingRow struct {
	Kind Kind

	SourceTable  string
	SourceColumn string

	TargetTable    string
	TargetColumn   string
	TargetDataType string

	Expression string
	Filter     string

	// JoinOrder is only meaningful when HasJoinOrder is set; rows without it
	// contribute columns but never join-chain nodes.
	JoinOrder    int
	HasJoinOrder bool

	JoinType      string
	JoinCondition string

	// XREF-only metadata.
	XrefFrom         string
	SourcePK         []string
	EventTsField     string
	SeqField         string
	DeleteFlagField  string
	DeleteFlagValues []string
}

// NormalizeWS collapses all runs of whitespace to single spaces. Filters and
// join conditions are compared textually when grouping union arms, so two
// fragments differing only in layout must compare equal.
func NormalizeWS(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// SplitList splits a comma-separated cell (composite keys, flag value sets)
// into trimmed, non-empty parts.
func SplitList(s string) []string {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
