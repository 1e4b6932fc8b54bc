package csv

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"

	"sttmgen/internal/sttm"
)

// Header cells are matched after lower_snake_case normalization, so sheets
// exported with "Source Table" or "source_table" headers both work.
var headerAliases = map[string]string{
	"kind":               "kind",
	"pipeline_stage":     "kind",
	"source_table":       "source_table",
	"source_column":      "source_column",
	"target_table":       "target_table",
	"target_column":      "target_column",
	"target_data_type":   "target_data_type",
	"data_type":          "target_data_type",
	"expression":         "expression",
	"filter":             "filter",
	"join_order":         "join_order",
	"join_type":          "join_type",
	"join_condition":     "join_condition",
	"xref_from":          "xref_from",
	"source_pk":          "source_pk",
	"event_ts_field":     "event_ts_field",
	"seq_field":          "seq_field",
	"delete_flag_field":  "delete_flag_field",
	"delete_flag_values": "delete_flag_values",
}

// DecodeReader wraps src so the CSV reader always sees UTF-8. Mapping sheets
// frequently arrive re-saved from spreadsheet tools with a BOM or in
// Windows-1252, so "utf-8" here still honors a leading BOM.
func DecodeReader(src io.Reader, enc string) (io.Reader, error) {
	switch strings.ToLower(strings.TrimSpace(enc)) {
	case "", "utf-8", "utf8":
		return transform.NewReader(src, unicode.BOMOverride(encoding.Nop.NewDecoder())), nil
	case "windows-1252", "cp1252":
		return transform.NewReader(src, charmap.Windows1252.NewDecoder()), nil
	case "iso-8859-1", "latin1":
		return transform.NewReader(src, charmap.ISO8859_1.NewDecoder()), nil
	default:
		return nil, fmt.Errorf("unsupported mapping encoding %q", enc)
	}
}

// ReadRows reads mapping rows from a CSV stream. The first record must be a
// header. Malformed cells are reported through onErr with their 1-based line
// number and the row is skipped; reading continues, mirroring how the
// downstream generator aggregates per-group errors instead of stopping.
func ReadRows(src io.Reader, enc string, onErr func(line int, err error)) ([]sttm.MappingRow, error) {
	dec, err := DecodeReader(src, enc)
	if err != nil {
		return nil, err
	}

	cr := csv.NewReader(dec)
	cr.FieldsPerRecord = -1
	cr.ReuseRecord = true

	line := 0
	readRec := func() ([]string, error) {
		line++
		return cr.Read()
	}

	hdr, err := readRec()
	if err != nil {
		return nil, fmt.Errorf("read mapping header: %w", err)
	}
	colIdx := make(map[string]int, len(hdr))
	for i, h := range hdr {
		key := strings.ReplaceAll(strings.ToLower(strings.TrimSpace(h)), " ", "_")
		if canon, ok := headerAliases[key]; ok {
			colIdx[canon] = i
		}
	}
	if _, ok := colIdx["kind"]; !ok {
		return nil, fmt.Errorf("mapping header has no kind column (got %q)", hdr)
	}

	var rows []sttm.MappingRow
	for {
		rec, err := readRec()
		if err == io.EOF {
			return rows, nil
		}
		if err != nil {
			if onErr != nil {
				onErr(line, fmt.Errorf("csv read: %w", err))
			}
			continue
		}

		cell := func(name string) string {
			i, ok := colIdx[name]
			if !ok || i >= len(rec) {
				return ""
			}
			return strings.TrimSpace(rec[i])
		}

		kind, ok := sttm.ParseKind(cell("kind"))
		if !ok {
			if onErr != nil {
				onErr(line, fmt.Errorf("unknown row kind %q", cell("kind")))
			}
			continue
		}

		row := sttm.MappingRow{
			Kind:             kind,
			SourceTable:      cell("source_table"),
			SourceColumn:     cell("source_column"),
			TargetTable:      cell("target_table"),
			TargetColumn:     cell("target_column"),
			TargetDataType:   cell("target_data_type"),
			Expression:       sttm.NormalizeWS(cell("expression")),
			Filter:           sttm.NormalizeWS(cell("filter")),
			JoinType:         cell("join_type"),
			JoinCondition:    sttm.NormalizeWS(cell("join_condition")),
			XrefFrom:         cell("xref_from"),
			SourcePK:         sttm.SplitList(cell("source_pk")),
			EventTsField:     cell("event_ts_field"),
			SeqField:         cell("seq_field"),
			DeleteFlagField:  cell("delete_flag_field"),
			DeleteFlagValues: sttm.SplitList(cell("delete_flag_values")),
		}

		if jo := cell("join_order"); jo != "" {
			n, err := strconv.Atoi(jo)
			if err != nil {
				if onErr != nil {
					onErr(line, fmt.Errorf("join_order %q is not an integer", jo))
				}
				continue
			}
			row.JoinOrder = n
			row.HasJoinOrder = true
		}

		rows = append(rows, row)
	}
}
