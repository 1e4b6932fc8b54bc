package generate

import (
	"strings"

	"sttmgen/internal/schema"
)

// BuildViews emits one projection view per MASTER group, in table-name order.
//
// Each view selects every group column via a JSON-path extraction keyed by the
// column name, from the single shared raw relation, filtered by an equality
// predicate on the configured discriminator path. The column list is declared
// on the view head so downstream SQL can reference columns unqualified.
func BuildViews(reg *schema.Registry, opts Options) []Statement {
	tables := reg.Tables()
	out := make([]Statement, 0, len(tables))
	for _, table := range tables {
		cols, err := reg.ColumnsOf(table)
		if err != nil {
			// Tables() only returns registered tables; a miss here would be a
			// registry bug, not a mapping problem.
			continue
		}
		name := opts.ViewName(table)
		out = append(out, Statement{
			ID:   "view:" + name,
			Kind: KindView,
			Name: name,
			SQL:  buildViewSQL(name, table, cols, opts),
		})
	}
	return out
}

func buildViewSQL(name, table string, cols []string, opts Options) string {
	payload := "CAST(" + opts.RawPayloadColumn + " AS STRING)"

	var b strings.Builder
	b.WriteString("CREATE VIEW ")
	b.WriteString(name)
	b.WriteString(" (")
	b.WriteString(strings.Join(cols, ", "))
	b.WriteString(") AS\nSELECT\n")
	for i, c := range cols {
		if i > 0 {
			b.WriteString(",\n")
		}
		b.WriteString("  JSON_VALUE(")
		b.WriteString(payload)
		b.WriteString(", ")
		b.WriteString(quoteLiteral(jsonPath(c)))
		b.WriteString(")")
	}
	b.WriteString("\nFROM ")
	b.WriteString(opts.RawRelation)
	b.WriteString("\nWHERE JSON_VALUE(")
	b.WriteString(payload)
	b.WriteString(", ")
	b.WriteString(quoteLiteral(opts.DiscriminatorPath))
	b.WriteString(") = ")
	b.WriteString(quoteLiteral(table))
	b.WriteString(";")
	return b.String()
}
