package csv

import (
	"strings"
	"testing"

	"sttmgen/internal/sttm"
)

func TestReadRows_NormalizesHeadersAndCells(t *testing.T) {
	t.Parallel()

	in := "Kind,Source Table,Source Column,Target Table,Target Column,Data Type,Join Order\n" +
		"MASTER,cust,cust_id,,,,\n" +
		"target,order,order_id,orders_enriched,order_id,STRING,1\n"

	rows, err := ReadRows(strings.NewReader(in), "", nil)
	if err != nil {
		t.Fatalf("ReadRows: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("got %d rows; want 2", len(rows))
	}
	if rows[0].Kind != sttm.KindMaster || rows[0].SourceTable != "cust" {
		t.Fatalf("row 0 = %+v", rows[0])
	}
	if rows[1].Kind != sttm.KindTarget || !rows[1].HasJoinOrder || rows[1].JoinOrder != 1 {
		t.Fatalf("row 1 join order not parsed: %+v", rows[1])
	}
	if rows[1].TargetDataType != "STRING" {
		t.Fatalf("data_type alias not mapped: %+v", rows[1])
	}
}

func TestReadRows_SkipsBadRowsAndContinues(t *testing.T) {
	t.Parallel()

	in := "kind,source_table,source_column,join_order\n" +
		"MASTER,cust,cust_id,\n" +
		"LOOKUP,cust,name,\n" +
		"MASTER,cust,email,notanumber\n" +
		"MASTER,cust,name,\n"

	var badLines []int
	rows, err := ReadRows(strings.NewReader(in), "", func(line int, err error) {
		badLines = append(badLines, line)
	})
	if err != nil {
		t.Fatalf("ReadRows: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("got %d rows; want the 2 good ones", len(rows))
	}
	if len(badLines) != 2 || badLines[0] != 3 || badLines[1] != 4 {
		t.Fatalf("bad lines = %v; want [3 4]", badLines)
	}
}

func TestReadRows_StripsBOM(t *testing.T) {
	t.Parallel()

	in := "\ufeffkind,source_table,source_column\nMASTER,cust,cust_id\n"
	rows, err := ReadRows(strings.NewReader(in), "utf-8", nil)
	if err != nil {
		t.Fatalf("ReadRows: %v", err)
	}
	if len(rows) != 1 || rows[0].SourceTable != "cust" {
		t.Fatalf("rows = %+v", rows)
	}
}

func TestReadRows_Windows1252(t *testing.T) {
	t.Parallel()

	// 0xE9 is é in Windows-1252.
	in := "kind,source_table,source_column\nMASTER,caf\xe9,cust_id\n"
	rows, err := ReadRows(strings.NewReader(in), "windows-1252", nil)
	if err != nil {
		t.Fatalf("ReadRows: %v", err)
	}
	if rows[0].SourceTable != "café" {
		t.Fatalf("source table = %q; want café", rows[0].SourceTable)
	}
}

func TestReadRows_ListCellsSplit(t *testing.T) {
	t.Parallel()

	in := "kind,source_table,xref_from,source_pk,event_ts_field,delete_flag_field,delete_flag_values\n" +
		"XREF,cust_xref,cust,\"cust_id, region_id\",event_ts,is_deleted,\"true, 1\"\n"

	rows, err := ReadRows(strings.NewReader(in), "", nil)
	if err != nil {
		t.Fatalf("ReadRows: %v", err)
	}
	r := rows[0]
	if len(r.SourcePK) != 2 || r.SourcePK[1] != "region_id" {
		t.Fatalf("source_pk = %v", r.SourcePK)
	}
	if len(r.DeleteFlagValues) != 2 || r.DeleteFlagValues[0] != "true" {
		t.Fatalf("delete_flag_values = %v", r.DeleteFlagValues)
	}
}

func TestReadRows_MissingKindColumn(t *testing.T) {
	t.Parallel()

	if _, err := ReadRows(strings.NewReader("source_table,source_column\ncust,cust_id\n"), "", nil); err == nil {
		t.Fatalf("expected error for header without kind column")
	}
}

func TestDecodeReader_UnknownEncoding(t *testing.T) {
	t.Parallel()

	if _, err := DecodeReader(strings.NewReader("x"), "koi8-r"); err == nil {
		t.Fatalf("expected error for unsupported encoding")
	}
}
