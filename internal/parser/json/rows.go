package json

import (
	"encoding/json"
	"fmt"
	"io"

	"sttmgen/internal/sttm"
)

// rawRow mirrors the CSV header vocabulary so the same mapping can be supplied
// as a JSON array. Scalar list cells use real JSON arrays here instead of
// comma-separated strings.
type rawRow struct {
	Kind             string   `json:"kind"`
	SourceTable      string   `json:"source_table"`
	SourceColumn     string   `json:"source_column"`
	TargetTable      string   `json:"target_table"`
	TargetColumn     string   `json:"target_column"`
	TargetDataType   string   `json:"target_data_type"`
	Expression       string   `json:"expression"`
	Filter           string   `json:"filter"`
	JoinOrder        *int     `json:"join_order"`
	JoinType         string   `json:"join_type"`
	JoinCondition    string   `json:"join_condition"`
	XrefFrom         string   `json:"xref_from"`
	SourcePK         []string `json:"source_pk"`
	EventTsField     string   `json:"event_ts_field"`
	SeqField         string   `json:"seq_field"`
	DeleteFlagField  string   `json:"delete_flag_field"`
	DeleteFlagValues []string `json:"delete_flag_values"`
}

// ReadRows decodes a JSON array of mapping rows.
func ReadRows(src io.Reader) ([]sttm.MappingRow, error) {
	var raw []rawRow
	if err := json.NewDecoder(src).Decode(&raw); err != nil {
		return nil, fmt.Errorf("parse mapping json: %w", err)
	}
	if len(raw) == 0 {
		return nil, fmt.Errorf("mapping json has no rows")
	}

	rows := make([]sttm.MappingRow, 0, len(raw))
	for i, r := range raw {
		kind, ok := sttm.ParseKind(r.Kind)
		if !ok {
			return nil, fmt.Errorf("row %d: unknown kind %q", i, r.Kind)
		}
		row := sttm.MappingRow{
			Kind:             kind,
			SourceTable:      r.SourceTable,
			SourceColumn:     r.SourceColumn,
			TargetTable:      r.TargetTable,
			TargetColumn:     r.TargetColumn,
			TargetDataType:   r.TargetDataType,
			Expression:       sttm.NormalizeWS(r.Expression),
			Filter:           sttm.NormalizeWS(r.Filter),
			JoinType:         r.JoinType,
			JoinCondition:    sttm.NormalizeWS(r.JoinCondition),
			XrefFrom:         r.XrefFrom,
			SourcePK:         r.SourcePK,
			EventTsField:     r.EventTsField,
			SeqField:         r.SeqField,
			DeleteFlagField:  r.DeleteFlagField,
			DeleteFlagValues: r.DeleteFlagValues,
		}
		if r.JoinOrder != nil {
			row.JoinOrder = *r.JoinOrder
			row.HasJoinOrder = true
		}
		rows = append(rows, row)
	}
	return rows, nil
}
