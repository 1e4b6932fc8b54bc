package generate

import (
	"strings"
	"testing"

	"sttmgen/internal/schema"
	"sttmgen/internal/sttm"
)

func custRegistry(t *testing.T, cols ...string) *schema.Registry {
	t.Helper()
	r := schema.NewRegistry()
	for _, c := range cols {
		row := sttm.MappingRow{Kind: sttm.KindMaster, SourceTable: "cust", SourceColumn: c}
		if err := r.Register(row); err != nil {
			t.Fatalf("register: %v", err)
		}
	}
	r.Freeze()
	return r
}

func TestBuildViews_ProjectsEveryColumn(t *testing.T) {
	t.Parallel()

	reg := custRegistry(t, "cust_id", "name", "email", "is_deleted", "event_ts")
	opts := Options{ViewSuffix: "_v"}.WithDefaults()

	views := BuildViews(reg, opts)
	if len(views) != 1 {
		t.Fatalf("got %d views; want 1", len(views))
	}
	v := views[0]
	if v.Name != "cust_v" || v.ID != "view:cust_v" {
		t.Fatalf("view identity = %q / %q", v.Name, v.ID)
	}
	if !strings.Contains(v.SQL, "CREATE VIEW cust_v (cust_id, email, event_ts, is_deleted, name)") {
		t.Fatalf("view head missing declared column list:\n%s", v.SQL)
	}
	if n := strings.Count(v.SQL, "JSON_VALUE("); n != 6 {
		// 5 projections plus the discriminator predicate.
		t.Fatalf("got %d JSON_VALUE calls; want 6:\n%s", n, v.SQL)
	}
	if !strings.Contains(v.SQL, "JSON_VALUE(CAST(val AS STRING), '$.cust_id')") {
		t.Fatalf("projection missing JSON path keyed by column name:\n%s", v.SQL)
	}
	if !strings.Contains(v.SQL, "FROM raw_events") {
		t.Fatalf("view not reading the shared raw relation:\n%s", v.SQL)
	}
	if !strings.Contains(v.SQL, "WHERE JSON_VALUE(CAST(val AS STRING), '$.tbl') = 'cust'") {
		t.Fatalf("discriminator predicate missing:\n%s", v.SQL)
	}
}

func TestBuildViews_TableOrderIsSorted(t *testing.T) {
	t.Parallel()

	r := schema.NewRegistry()
	for _, tb := range []string{"zeta", "alpha", "mid"} {
		row := sttm.MappingRow{Kind: sttm.KindMaster, SourceTable: tb, SourceColumn: "id"}
		if err := r.Register(row); err != nil {
			t.Fatalf("register: %v", err)
		}
	}
	r.Freeze()

	views := BuildViews(r, Options{}.WithDefaults())
	got := []string{views[0].Name, views[1].Name, views[2].Name}
	if got[0] != "alpha" || got[1] != "mid" || got[2] != "zeta" {
		t.Fatalf("view order = %v; want name-sorted", got)
	}
}
