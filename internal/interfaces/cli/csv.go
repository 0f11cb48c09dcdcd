package cli

import (
	"database/sql"
	"encoding/csv"
	"io"
	"strconv"
	"strings"

	"github.com/turtacn/fluoric/internal/application/prediction"
	"github.com/turtacn/fluoric/pkg/errors"
)

// nullTokens are the cell texts read as missing values.
var nullTokens = map[string]bool{
	"":     true,
	"NaN":  true,
	"nan":  true,
	"NA":   true,
	"N/A":  true,
	"null": true,
	"NULL": true,
}

// ReadTable reads a CSV table whose first record is the header. Short rows
// leave their trailing cells null.
func ReadTable(r io.Reader) (*prediction.InputTable, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err == io.EOF {
		return nil, errors.New(errors.ErrCodeBadRequest, "input has no header row")
	}
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeBadRequest, "failed to read CSV header")
	}
	if len(header) > 0 {
		header[0] = strings.TrimPrefix(header[0], "\uFEFF")
	}

	table := &prediction.InputTable{Columns: header}
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, errors.Wrap(err, errors.ErrCodeBadRequest, "failed to read CSV")
		}
		cells := make([]sql.NullString, len(header))
		for i := 0; i < len(header) && i < len(record); i++ {
			if !nullTokens[record[i]] {
				cells[i] = sql.NullString{String: record[i], Valid: true}
			}
		}
		table.Rows = append(table.Rows, cells)
	}
	return table, nil
}

func writeCSV(w io.Writer, headers []string, rows [][]string) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(headers); err != nil {
		return err
	}
	if err := cw.WriteAll(rows); err != nil {
		return err
	}
	return cw.Error()
}

func formatValue(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}
