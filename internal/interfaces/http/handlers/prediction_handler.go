package handlers

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/turtacn/fluoric/internal/application/prediction"
	"github.com/turtacn/fluoric/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/fluoric/internal/intelligence/common"
	"github.com/turtacn/fluoric/pkg/errors"
)

// BatchRunner runs one prediction batch.
type BatchRunner interface {
	Run(ctx context.Context, property common.Property, table *prediction.InputTable) *prediction.BatchResult
}

// PredictRequest is the body of POST /api/v1/predict/{property}. Each row
// maps column names to nullable cells; the table's columns are the union of
// the keys.
type PredictRequest struct {
	Rows []map[string]*string `json:"rows" validate:"required,min=1"`
}

// PredictResponse carries a successful batch.
type PredictResponse struct {
	BatchID  string                   `json:"batch_id"`
	Property string                   `json:"property"`
	Columns  []string                 `json:"columns"`
	Rows     []map[string]interface{} `json:"rows"`
}

// PredictionHandler serves batch predictions.
type PredictionHandler struct {
	runner   BatchRunner
	validate *validator.Validate
	maxRows  int
	maxBytes int64
	logger   logging.Logger
	onError  ErrorObserver
}

// ErrorObserver receives the error code of every failed request.
type ErrorObserver func(code string)

// NewPredictionHandler creates a handler accepting at most maxRows rows.
func NewPredictionHandler(runner BatchRunner, maxRows int, logger logging.Logger) *PredictionHandler {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	return &PredictionHandler{
		runner:   runner,
		validate: validator.New(),
		maxRows:  maxRows,
		maxBytes: 64 << 20,
		logger:   logger,
	}
}

// WithErrorObserver sets a callback run for every error response.
func (h *PredictionHandler) WithErrorObserver(o ErrorObserver) *PredictionHandler {
	h.onError = o
	return h
}

func (h *PredictionHandler) observe(err error) {
	if h.onError != nil {
		h.onError(errors.GetCode(err).String())
	}
}

func (h *PredictionHandler) fail(w http.ResponseWriter, err error) {
	h.observe(err)
	writeAppError(w, err)
}

// Predict handles POST /api/v1/predict/{property}.
func (h *PredictionHandler) Predict(w http.ResponseWriter, r *http.Request) {
	property, err := common.ParseProperty(chi.URLParam(r, "property"))
	if err != nil {
		h.fail(w, err)
		return
	}

	var req PredictRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, h.maxBytes))
	if err := dec.Decode(&req); err != nil {
		h.fail(w, errors.Wrap(err, errors.ErrCodeBadRequest, "invalid request body"))
		return
	}
	if err := h.validate.Struct(&req); err != nil {
		h.fail(w, errors.Wrap(err, errors.ErrCodeValidation, "request must contain at least one row"))
		return
	}
	if h.maxRows > 0 && len(req.Rows) > h.maxRows {
		h.fail(w, errors.Newf(errors.ErrCodeValidation, "too many rows: %d (limit %d)", len(req.Rows), h.maxRows))
		return
	}

	res := h.runner.Run(r.Context(), property, prediction.TableFromMaps(req.Rows))
	if !res.OK() {
		h.observe(res.Err())
		status, body := errorResponse(res.Err())
		body.BatchID = res.BatchID
		if res.Failure.Row != prediction.BatchRow {
			row := res.Failure.Row
			body.Row = &row
			body.SMILES = res.Failure.SMILES
		}
		writeJSON(w, status, body)
		return
	}

	rows := make([]map[string]interface{}, len(res.Output.Rows))
	for i, row := range res.Output.Rows {
		rows[i] = map[string]interface{}{
			prediction.SMILESColumn: row.SMILES,
			property.String():       row.Value,
		}
	}
	writeJSON(w, http.StatusOK, PredictResponse{
		BatchID:  res.BatchID,
		Property: property.String(),
		Columns:  res.Output.Columns,
		Rows:     rows,
	})
}
