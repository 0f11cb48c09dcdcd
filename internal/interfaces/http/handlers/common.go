package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/turtacn/fluoric/pkg/errors"
)

// writeJSON writes a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, statusCode int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if data != nil {
		_ = json.NewEncoder(w).Encode(data)
	}
}

// ErrorResponse is the standard error response body.
type ErrorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Detail  string `json:"detail,omitempty"`
	BatchID string `json:"batch_id,omitempty"`
	Row     *int   `json:"row,omitempty"`
	SMILES  string `json:"smiles,omitempty"`
}

// errorResponse maps err to a status and body. Server-side failures are
// masked; user errors carry their message.
func errorResponse(err error) (int, ErrorResponse) {
	code := errors.GetCode(err)
	status := code.HTTPStatus()
	if status == http.StatusInternalServerError {
		return status, ErrorResponse{Code: code.String(), Message: "internal server error"}
	}
	resp := ErrorResponse{Code: code.String(), Message: err.Error()}
	var ae *errors.AppError
	if errors.As(err, &ae) {
		resp.Message = ae.Message
		resp.Detail = ae.Detail
	}
	return status, resp
}

// writeAppError writes err as {code, message}.
func writeAppError(w http.ResponseWriter, err error) {
	status, resp := errorResponse(err)
	writeJSON(w, status, resp)
}
