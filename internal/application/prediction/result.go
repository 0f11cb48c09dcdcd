package prediction

import (
	"fmt"
	"time"

	"github.com/turtacn/fluoric/internal/intelligence/common"
	"github.com/turtacn/fluoric/pkg/errors"
)

// OutputRow pairs an input SMILES with its predicted value.
type OutputRow struct {
	SMILES string  `json:"SMILES"`
	Value  float64 `json:"value"`
}

// OutputTable is the two-column result, row-aligned with the input.
type OutputTable struct {
	Columns []string    `json:"columns"`
	Rows    []OutputRow `json:"rows"`
}

func newOutputTable(property common.Property, n int) *OutputTable {
	return &OutputTable{
		Columns: []string{SMILESColumn, property.String()},
		Rows:    make([]OutputRow, n),
	}
}

// BatchRow is the index used in RowFailure for failures that belong to the
// batch rather than to a row.
const BatchRow = -1

// RowFailure describes why a batch was aborted. Cause is the typed error;
// Error reports the user-facing message.
type RowFailure struct {
	Row    int
	SMILES string
	Cause  error
	err    error
}

func batchFailure(cause error) *RowFailure {
	return &RowFailure{Row: BatchRow, Cause: cause, err: cause}
}

// rowFailure wraps cause the way users see it. A null cell keeps its own
// message; anything that went wrong with a present SMILES is reported as a
// format problem carrying the cause's code.
func rowFailure(row int, smiles string, cause error) *RowFailure {
	f := &RowFailure{Row: row, SMILES: smiles, Cause: cause, err: cause}
	if !errors.IsMissingValue(cause) {
		f.err = errors.Wrap(cause, errors.CodeUnknown, fmt.Sprintf("Inappropriate SMILES format: %s", smiles)).
			WithDetail(fmt.Sprintf("row %d", row))
	}
	return f
}

func cancelledFailure(row int, smiles string, cause error) *RowFailure {
	return &RowFailure{
		Row:    row,
		SMILES: smiles,
		Cause:  cause,
		err:    errors.Wrap(cause, errors.ErrCodeServiceUnavailable, "batch cancelled"),
	}
}

func (f *RowFailure) Error() string { return f.err.Error() }

func (f *RowFailure) Unwrap() error { return f.err }

// Code returns the error code reported to users.
func (f *RowFailure) Code() errors.ErrorCode { return errors.GetCode(f.err) }

// BatchResult is the outcome of Service.Run. Exactly one of Output and
// Failure is set.
type BatchResult struct {
	BatchID  string
	Property common.Property
	Output   *OutputTable
	Failure  *RowFailure
	Duration time.Duration
}

// OK reports whether the batch produced output.
func (r *BatchResult) OK() bool { return r.Failure == nil }

// Err returns the user-facing error of a failed batch, or nil.
func (r *BatchResult) Err() error {
	if r.Failure == nil {
		return nil
	}
	return r.Failure.err
}
