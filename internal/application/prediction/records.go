// Package prediction runs batches of SMILES rows through feature
// extraction and a property model. A batch either yields one value per row
// or fails as a whole on the first bad row.
package prediction

import (
	"database/sql"
	"sort"

	"github.com/turtacn/fluoric/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/fluoric/pkg/errors"
)

// SMILESColumn is the required input column.
const SMILESColumn = "SMILES"

// InputTable is a rectangular table of nullable string cells. A row shorter
// than Columns treats the missing trailing cells as null.
type InputTable struct {
	Columns []string
	Rows    [][]sql.NullString
}

// NumRows returns the number of rows.
func (t *InputTable) NumRows() int {
	if t == nil {
		return 0
	}
	return len(t.Rows)
}

// ColumnIndex returns the position of the column named exactly name.
func (t *InputTable) ColumnIndex(name string) (int, bool) {
	if t == nil {
		return -1, false
	}
	for i, c := range t.Columns {
		if c == name {
			return i, true
		}
	}
	return -1, false
}

// TableFromMaps builds a table whose columns are the sorted union of the
// row keys. A nil value or an absent key is a null cell.
func TableFromMaps(rows []map[string]*string) *InputTable {
	seen := make(map[string]struct{})
	for _, r := range rows {
		for k := range r {
			seen[k] = struct{}{}
		}
	}
	cols := make([]string, 0, len(seen))
	for k := range seen {
		cols = append(cols, k)
	}
	sort.Strings(cols)

	t := &InputTable{Columns: cols, Rows: make([][]sql.NullString, len(rows))}
	for i, r := range rows {
		cells := make([]sql.NullString, len(cols))
		for j, c := range cols {
			if v, ok := r[c]; ok && v != nil {
				cells[j] = sql.NullString{String: *v, Valid: true}
			}
		}
		t.Rows[i] = cells
	}
	return t
}

// Record is one validated input row. SMILES is the raw cell text.
type Record struct {
	Index  int
	SMILES string
}

// CheckSchema verifies that table has a SMILES column and returns its index.
func CheckSchema(table *InputTable, log logging.Logger) (int, error) {
	idx, ok := table.ColumnIndex(SMILESColumn)
	if !ok {
		if log != nil {
			log.Error("SMILES column is not represented in the input table.",
				logging.Strings("columns", columnsOf(table)))
		}
		return -1, errors.SchemaError(SMILESColumn)
	}
	return idx, nil
}

// RecordFromRow reads the SMILES cell of row. A null or absent cell is a
// MissingValue error; the string itself is not trimmed or rewritten.
func RecordFromRow(table *InputTable, row int) (Record, error) {
	col, ok := table.ColumnIndex(SMILESColumn)
	if !ok {
		return Record{}, errors.SchemaError(SMILESColumn)
	}
	return recordAt(table, col, row)
}

func recordAt(table *InputTable, col, row int) (Record, error) {
	if row < 0 || row >= table.NumRows() {
		return Record{}, errors.Newf(errors.ErrCodeBadRequest, "row %d out of range", row)
	}
	cells := table.Rows[row]
	if col >= len(cells) || !cells[col].Valid {
		return Record{}, errors.MissingValueError(row)
	}
	return Record{Index: row, SMILES: cells[col].String}, nil
}

func columnsOf(t *InputTable) []string {
	if t == nil {
		return nil
	}
	return t.Columns
}
