package generate

import (
	"sort"
	"strconv"
	"strings"
)

// quoteLiteral renders s as a SQL string literal with '' escaping.
func quoteLiteral(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}

// renderFlagValue renders one delete-flag value. Numbers and the boolean/null
// keywords pass through as bare literals; everything else becomes a quoted
// string. The mapping cell {true,1} therefore compares against both the
// boolean TRUE and the numeric 1 forms seen in change feeds.
func renderFlagValue(v string) string {
	if _, err := strconv.ParseFloat(v, 64); err == nil {
		return v
	}
	switch strings.ToUpper(v) {
	case "TRUE", "FALSE", "NULL":
		return strings.ToUpper(v)
	}
	return quoteLiteral(v)
}

// renderWithClause renders connector properties as a WITH (...) clause with
// sorted keys. Empty props render nothing so table definitions without any
// configured connector stay plain.
func renderWithClause(props map[string]string) string {
	if len(props) == 0 {
		return ""
	}
	keys := make([]string, 0, len(props))
	for k := range props {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	b.WriteString(" WITH (\n")
	for i, k := range keys {
		if i > 0 {
			b.WriteString(",\n")
		}
		b.WriteString("  ")
		b.WriteString(quoteLiteral(k))
		b.WriteString(" = ")
		b.WriteString(quoteLiteral(props[k]))
	}
	b.WriteString("\n)")
	return b.String()
}

// jsonPath builds the JSON path expression for a payload field.
func jsonPath(field string) string {
	return "$." + field
}
