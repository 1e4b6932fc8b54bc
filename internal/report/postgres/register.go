package postgres

import "sttmgen/internal/report"

func init() {
	report.Register("postgres", New)
}
