package generate

import (
	"encoding/json"
	"fmt"
	"os"

	"sttmgen/internal/sttm"
)

// Options is the configuration surface consumed by generation. It is supplied
// by an external config collaborator (typically a JSON file next to the
// mapping) and validated up front; generation itself never reads files.
type Options struct {
	// RawRelation is the shared raw relation all projection views read from.
	RawRelation string `json:"raw_relation"`
	// RawPayloadColumn is the JSON-carrying column of the raw relation.
	RawPayloadColumn string `json:"raw_payload_column"`
	// DiscriminatorPath is the JSON path whose value names the logical source
	// table of each raw record, e.g. "$.tbl".
	DiscriminatorPath string `json:"discriminator_path"`

	ViewPrefix string `json:"view_prefix"`
	ViewSuffix string `json:"view_suffix"`
	XrefPrefix string `json:"xref_prefix"`
	XrefSuffix string `json:"xref_suffix"`

	// DefaultDataType is used when a row leaves target_data_type empty.
	DefaultDataType string `json:"default_data_type"`

	// DefaultJoinType applies when a join-chain node leaves join_type empty.
	// There is deliberately no built-in fallback: an empty value makes any
	// chain that needs it fail with AmbiguousJoinError.
	DefaultJoinType string `json:"default_join_type"`

	// WrapStatementSet selects whether xref and target INSERTs are wrapped in
	// one EXECUTE STATEMENT SET block or emitted individually.
	WrapStatementSet bool `json:"wrap_statement_set"`

	// With holds global connector properties appended to every table
	// definition; TableWith holds per-table overrides keyed by the logical
	// (pre-affix) table name. Override keys win over global keys.
	With      map[string]string            `json:"with"`
	TableWith map[string]map[string]string `json:"table_with"`
}

// Issue is one configuration finding. Severity "error" blocks generation.
type Issue struct {
	Severity string
	Path     string
	Message  string
}

const (
	SeverityError   = "error"
	SeverityWarning = "warning"
)

// LoadOptions reads an Options JSON file and applies defaults.
func LoadOptions(path string) (Options, error) {
	f, err := os.Open(path)
	if err != nil {
		return Options{}, fmt.Errorf("open config: %w", err)
	}
	defer f.Close()

	var o Options
	dec := json.NewDecoder(f)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&o); err != nil {
		return Options{}, fmt.Errorf("decode config: %w", err)
	}
	return o.WithDefaults(), nil
}

// WithDefaults fills the fields that have safe defaults. DefaultJoinType is
// intentionally left alone: an unset value must stay unset.
func (o Options) WithDefaults() Options {
	if o.RawRelation == "" {
		o.RawRelation = "raw_events"
	}
	if o.RawPayloadColumn == "" {
		o.RawPayloadColumn = "val"
	}
	if o.DiscriminatorPath == "" {
		o.DiscriminatorPath = "$.tbl"
	}
	if o.DefaultDataType == "" {
		o.DefaultDataType = "STRING"
	}
	return o
}

// ValidateOptions checks an Options value and returns all findings.
func ValidateOptions(o Options) []Issue {
	var issues []Issue

	if o.RawRelation == "" {
		issues = append(issues, Issue{SeverityError, "raw_relation", "must be set"})
	}
	if o.RawPayloadColumn == "" {
		issues = append(issues, Issue{SeverityError, "raw_payload_column", "must be set"})
	}
	if o.DiscriminatorPath == "" {
		issues = append(issues, Issue{SeverityError, "discriminator_path", "must be set"})
	}
	if o.DefaultDataType == "" {
		issues = append(issues, Issue{SeverityError, "default_data_type", "must be set"})
	}
	if o.DefaultJoinType != "" {
		if _, ok := sttm.NormalizeJoinType(o.DefaultJoinType); !ok {
			issues = append(issues, Issue{
				SeverityError, "default_join_type",
				fmt.Sprintf("%q is not a join type (want LEFT, RIGHT, FULL or INNER)", o.DefaultJoinType),
			})
		}
	} else {
		issues = append(issues, Issue{
			SeverityWarning, "default_join_type",
			"not set; multi-node join chains without an explicit join_type will fail generation",
		})
	}
	return issues
}

// ViewName applies the view naming template to a MASTER table name.
func (o Options) ViewName(table string) string {
	return o.ViewPrefix + table + o.ViewSuffix
}

// XrefName applies the xref naming template to an XREF table name.
func (o Options) XrefName(table string) string {
	return o.XrefPrefix + table + o.XrefSuffix
}

// TableProps resolves the connector WITH properties for one logical table:
// global keys first, then per-table overrides.
func (o Options) TableProps(logical string) map[string]string {
	if len(o.With) == 0 && len(o.TableWith[logical]) == 0 {
		return nil
	}
	props := make(map[string]string, len(o.With)+len(o.TableWith[logical]))
	for k, v := range o.With {
		props[k] = v
	}
	for k, v := range o.TableWith[logical] {
		props[k] = v
	}
	return props
}
