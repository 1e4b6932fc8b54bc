// Package all registers every ledger backend. Blank-import it from a main
// package to make sqlite, postgres and mssql selectable by kind.
package all

import (
	_ "sttmgen/internal/report/mssql"
	_ "sttmgen/internal/report/postgres"
	_ "sttmgen/internal/report/sqlite"
)
