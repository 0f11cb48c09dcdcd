package prediction

import (
	"database/sql"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/turtacn/fluoric/pkg/errors"
)

func cell(s string) sql.NullString { return sql.NullString{String: s, Valid: true} }

func strp(s string) *string { return &s }

func TestCheckSchema(t *testing.T) {
	idx, err := CheckSchema(&InputTable{Columns: []string{"id", "SMILES"}}, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, idx)

	_, err = CheckSchema(&InputTable{Columns: []string{"smiles"}}, nil)
	require.Error(t, err)
	assert.True(t, errors.IsSchemaError(err))
	assert.Contains(t, err.Error(), "The table does not contain the column 'SMILES'.")

	_, err = CheckSchema(nil, nil)
	assert.True(t, errors.IsSchemaError(err))
}

func TestRecordFromRow(t *testing.T) {
	table := &InputTable{
		Columns: []string{"SMILES", "name"},
		Rows: [][]sql.NullString{
			{cell("  CCO "), cell("ethanol")},
			{{}, cell("blank")},
			{},
		},
	}

	rec, err := RecordFromRow(table, 0)
	require.NoError(t, err)
	assert.Equal(t, Record{Index: 0, SMILES: "  CCO "}, rec)

	for _, row := range []int{1, 2} {
		_, err = RecordFromRow(table, row)
		require.Error(t, err)
		assert.True(t, errors.IsMissingValue(err))
		var ae *errors.AppError
		require.True(t, errors.As(err, &ae))
		assert.Equal(t, "SMILES cannot be NaN.", ae.Message)
	}

	_, err = RecordFromRow(table, 3)
	assert.True(t, errors.IsCode(err, errors.ErrCodeBadRequest))

	_, err = RecordFromRow(&InputTable{Columns: []string{"x"}, Rows: [][]sql.NullString{{cell("C")}}}, 0)
	assert.True(t, errors.IsSchemaError(err))
}

func TestTableFromMaps(t *testing.T) {
	table := TableFromMaps([]map[string]*string{
		{"SMILES": strp("CCO"), "id": strp("1")},
		{"SMILES": nil},
		{"id": strp("3")},
	})

	assert.Equal(t, []string{"SMILES", "id"}, table.Columns)
	require.Equal(t, 3, table.NumRows())
	assert.Equal(t, cell("CCO"), table.Rows[0][0])
	assert.False(t, table.Rows[1][0].Valid)
	assert.False(t, table.Rows[2][0].Valid)
	assert.Equal(t, cell("3"), table.Rows[2][1])

	noSMILES := TableFromMaps([]map[string]*string{{"smiles": strp("C")}})
	_, err := CheckSchema(noSMILES, nil)
	assert.True(t, errors.IsSchemaError(err))
}
