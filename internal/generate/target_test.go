package generate

import (
	"errors"
	"strings"
	"testing"

	"sttmgen/internal/sttm"
)

func testNames() NameIndex {
	return NameIndex{
		views: map[string]string{"cust": "cust", "order": "order"},
		xrefs: map[string]string{"cust_xref": "cust_xref"},
	}
}

func targetRow(mut func(*sttm.MappingRow)) sttm.MappingRow {
	row := sttm.MappingRow{Kind: sttm.KindTarget, TargetTable: "orders_enriched"}
	if mut != nil {
		mut(&row)
	}
	return row
}

func TestBuildTargets_SingleSourceUnqualified(t *testing.T) {
	t.Parallel()

	rows := []sttm.MappingRow{
		targetRow(func(r *sttm.MappingRow) {
			r.TargetTable = "cust_flat"
			r.SourceTable = "cust"
			r.SourceColumn = "cust_id"
			r.TargetColumn = "cust_id"
			r.TargetDataType = "BIGINT"
		}),
		targetRow(func(r *sttm.MappingRow) {
			r.TargetTable = "cust_flat"
			r.SourceTable = "cust"
			r.Expression = "UPPER(name)"
			r.TargetColumn = "cust_name"
		}),
	}

	tables, inserts, errs := BuildTargets(rows, testNames(), Options{}.WithDefaults())
	if len(errs) != 0 {
		t.Fatalf("errs = %v", errs)
	}
	ddl := tables[0].SQL
	if !strings.Contains(ddl, "cust_id BIGINT") || !strings.Contains(ddl, "cust_name STRING") {
		t.Fatalf("ddl types wrong (declared wins, default fills):\n%s", ddl)
	}

	ins := inserts[0].SQL
	if !strings.Contains(ins, "  cust_id AS cust_id") {
		t.Fatalf("single-node chain must reference columns unqualified:\n%s", ins)
	}
	if !strings.Contains(ins, "UPPER(name) AS cust_name") {
		t.Fatalf("expression must pass through verbatim:\n%s", ins)
	}
	if !strings.Contains(ins, "FROM cust") || strings.Contains(ins, "JOIN") {
		t.Fatalf("single-node chain must not emit joins:\n%s", ins)
	}
}

func TestBuildTargets_JoinChainQualifiesColumns(t *testing.T) {
	t.Parallel()

	rows := []sttm.MappingRow{
		targetRow(func(r *sttm.MappingRow) {
			r.SourceTable = "order"
			r.SourceColumn = "order_id"
			r.TargetColumn = "order_id"
			r.JoinOrder, r.HasJoinOrder = 1, true
		}),
		targetRow(func(r *sttm.MappingRow) {
			r.SourceTable = "cust_xref"
			r.SourceColumn = "name"
			r.TargetColumn = "cust_name"
			r.JoinOrder, r.HasJoinOrder = 2, true
			r.JoinType = "LEFT"
			r.JoinCondition = "order.cust_id = cust_xref.cust_id"
		}),
	}

	_, inserts, errs := BuildTargets(rows, testNames(), Options{}.WithDefaults())
	if len(errs) != 0 {
		t.Fatalf("errs = %v", errs)
	}
	if len(inserts) != 1 {
		t.Fatalf("driving and joined rows must land in one arm; got %d inserts", len(inserts))
	}

	ins := inserts[0].SQL
	if got := strings.Count(ins, "SELECT"); got != 1 {
		t.Fatalf("want a single-arm insert, got %d SELECTs:\n%s", got, ins)
	}
	if !strings.Contains(ins, "FROM order\nLEFT OUTER JOIN cust_xref ON order.cust_id = cust_xref.cust_id") {
		t.Fatalf("join chain wrong:\n%s", ins)
	}
	if !strings.Contains(ins, "order.order_id AS order_id") ||
		!strings.Contains(ins, "cust_xref.name AS cust_name") {
		t.Fatalf("multi-node chain must qualify source columns:\n%s", ins)
	}
}

func TestBuildTargets_FiltersBecomeUnionArms(t *testing.T) {
	t.Parallel()

	rows := []sttm.MappingRow{
		targetRow(func(r *sttm.MappingRow) {
			r.SourceTable = "order"
			r.SourceColumn = "order_id"
			r.TargetColumn = "order_id"
			r.Filter = "status = 'open'"
		}),
		targetRow(func(r *sttm.MappingRow) {
			r.SourceTable = "order"
			r.SourceColumn = "order_id"
			r.TargetColumn = "order_id"
			r.Filter = "status = 'closed'"
		}),
		targetRow(func(r *sttm.MappingRow) {
			r.SourceTable = "order"
			r.SourceColumn = "closed_at"
			r.TargetColumn = "closed_at"
			r.Filter = "status = 'closed'"
		}),
	}

	_, inserts, errs := BuildTargets(rows, testNames(), Options{}.WithDefaults())
	if len(errs) != 0 {
		t.Fatalf("errs = %v", errs)
	}
	ins := inserts[0].SQL
	if strings.Count(ins, "UNION ALL") != 1 {
		t.Fatalf("two filters must produce two arms:\n%s", ins)
	}
	if !strings.Contains(ins, "WHERE status = 'open'") || !strings.Contains(ins, "WHERE status = 'closed'") {
		t.Fatalf("arm filters missing:\n%s", ins)
	}
	// The open arm does not feed closed_at; it must pad with NULL to stay
	// union-compatible.
	openArm := ins[:strings.Index(ins, "UNION ALL")]
	if !strings.Contains(openArm, "NULL AS closed_at") {
		t.Fatalf("first arm must select NULL for its missing column:\n%s", openArm)
	}
}

func TestBuildTargets_ConflictingConditionsSplitArms(t *testing.T) {
	t.Parallel()

	rows := []sttm.MappingRow{
		targetRow(func(r *sttm.MappingRow) {
			r.SourceTable = "order"
			r.SourceColumn = "order_id"
			r.TargetColumn = "order_id"
			r.JoinOrder, r.HasJoinOrder = 1, true
		}),
		targetRow(func(r *sttm.MappingRow) {
			r.SourceTable = "cust_xref"
			r.SourceColumn = "name"
			r.TargetColumn = "cust_name"
			r.JoinOrder, r.HasJoinOrder = 2, true
			r.JoinType = "LEFT"
			r.JoinCondition = "order.cust_id = cust_xref.cust_id"
		}),
		targetRow(func(r *sttm.MappingRow) {
			r.SourceTable = "cust_xref"
			r.SourceColumn = "email"
			r.TargetColumn = "cust_email"
			r.JoinOrder, r.HasJoinOrder = 2, true
			r.JoinType = "LEFT"
			r.JoinCondition = "order.bill_to = cust_xref.cust_id"
		}),
	}

	_, inserts, errs := BuildTargets(rows, testNames(), Options{}.WithDefaults())
	if len(errs) != 0 {
		t.Fatalf("errs = %v", errs)
	}
	ins := inserts[0].SQL
	if strings.Count(ins, "UNION ALL") != 1 {
		t.Fatalf("conflicting conditions for one node must split into two arms:\n%s", ins)
	}
	if !strings.Contains(ins, "ON order.cust_id = cust_xref.cust_id") ||
		!strings.Contains(ins, "ON order.bill_to = cust_xref.cust_id") {
		t.Fatalf("each arm keeps its own condition:\n%s", ins)
	}
}

func TestBuildTargets_MissingConditionIsAmbiguous(t *testing.T) {
	t.Parallel()

	rows := []sttm.MappingRow{
		targetRow(func(r *sttm.MappingRow) {
			r.SourceTable = "order"
			r.TargetColumn = "order_id"
			r.SourceColumn = "order_id"
			r.JoinOrder, r.HasJoinOrder = 1, true
		}),
		targetRow(func(r *sttm.MappingRow) {
			r.SourceTable = "cust_xref"
			r.SourceColumn = "name"
			r.TargetColumn = "cust_name"
			r.JoinOrder, r.HasJoinOrder = 2, true
			r.JoinType = "LEFT"
		}),
	}

	tables, _, errs := BuildTargets(rows, testNames(), Options{}.WithDefaults())
	if len(tables) != 0 {
		t.Fatalf("failed group must not emit its table")
	}
	var aj *AmbiguousJoinError
	if len(errs) != 1 || !errors.As(errs[0], &aj) {
		t.Fatalf("errs = %v; want AmbiguousJoinError", errs)
	}
	if aj.TargetTable != "orders_enriched" || aj.JoinOrder != 2 {
		t.Fatalf("error = %+v", aj)
	}
}

func TestBuildTargets_NoDefaultJoinTypeIsAmbiguous(t *testing.T) {
	t.Parallel()

	rows := []sttm.MappingRow{
		targetRow(func(r *sttm.MappingRow) {
			r.SourceTable = "order"
			r.SourceColumn = "order_id"
			r.TargetColumn = "order_id"
			r.JoinOrder, r.HasJoinOrder = 1, true
		}),
		targetRow(func(r *sttm.MappingRow) {
			r.SourceTable = "cust_xref"
			r.SourceColumn = "name"
			r.TargetColumn = "cust_name"
			r.JoinOrder, r.HasJoinOrder = 2, true
			r.JoinCondition = "order.cust_id = cust_xref.cust_id"
		}),
	}

	// No join_type on the node and no default configured: ambiguous.
	_, _, errs := BuildTargets(rows, testNames(), Options{}.WithDefaults())
	var aj *AmbiguousJoinError
	if len(errs) != 1 || !errors.As(errs[0], &aj) {
		t.Fatalf("errs = %v; want AmbiguousJoinError", errs)
	}

	// With a configured default the same rows generate.
	opts := Options{DefaultJoinType: "LEFT"}.WithDefaults()
	_, inserts, errs := BuildTargets(rows, testNames(), opts)
	if len(errs) != 0 {
		t.Fatalf("errs with default join type = %v", errs)
	}
	if !strings.Contains(inserts[0].SQL, "LEFT OUTER JOIN cust_xref") {
		t.Fatalf("default join type not applied:\n%s", inserts[0].SQL)
	}
}

func TestBuildTargets_MultipleSourcesWithoutOrderIsAmbiguous(t *testing.T) {
	t.Parallel()

	rows := []sttm.MappingRow{
		targetRow(func(r *sttm.MappingRow) {
			r.SourceTable = "order"
			r.SourceColumn = "order_id"
			r.TargetColumn = "order_id"
		}),
		targetRow(func(r *sttm.MappingRow) {
			r.SourceTable = "cust"
			r.SourceColumn = "name"
			r.TargetColumn = "cust_name"
		}),
	}

	_, _, errs := BuildTargets(rows, testNames(), Options{}.WithDefaults())
	var aj *AmbiguousJoinError
	if len(errs) != 1 || !errors.As(errs[0], &aj) {
		t.Fatalf("errs = %v; want AmbiguousJoinError", errs)
	}
}

func TestBuildTargets_UnknownSourceIsSchemaError(t *testing.T) {
	t.Parallel()

	rows := []sttm.MappingRow{
		targetRow(func(r *sttm.MappingRow) {
			r.SourceTable = "ghost"
			r.SourceColumn = "x"
			r.TargetColumn = "x"
			r.JoinOrder, r.HasJoinOrder = 1, true
		}),
		targetRow(func(r *sttm.MappingRow) {
			r.SourceTable = "cust_xref"
			r.SourceColumn = "name"
			r.TargetColumn = "cust_name"
			r.JoinOrder, r.HasJoinOrder = 2, true
			r.JoinType = "LEFT"
			r.JoinCondition = "ghost.x = cust_xref.cust_id"
		}),
	}

	_, inserts, errs := BuildTargets(rows, testNames(), Options{}.WithDefaults())
	if len(inserts) != 0 {
		t.Fatalf("group with unknown source must not generate")
	}
	var se *SchemaError
	found := false
	for _, err := range errs {
		if errors.As(err, &se) && se.Table == "ghost" {
			found = true
		}
	}
	if !found {
		t.Fatalf("errs = %v; want SchemaError naming ghost", errs)
	}
}
