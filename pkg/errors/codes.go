package errors

import "net/http"

// ErrorCode is a string representation of a specific error condition.
type ErrorCode string

func (c ErrorCode) String() string {
	return string(c)
}

// Common Error Codes
const (
	ErrCodeInternal           ErrorCode = "COMMON_001"
	ErrCodeBadRequest         ErrorCode = "COMMON_002"
	ErrCodeNotFound           ErrorCode = "COMMON_005"
	ErrCodeServiceUnavailable ErrorCode = "COMMON_008"
	ErrCodeValidation         ErrorCode = "COMMON_010"
	ErrCodeSerialization      ErrorCode = "COMMON_011"
	ErrCodeCacheError         ErrorCode = "COMMON_013"
	ErrCodeExternalService    ErrorCode = "COMMON_014"
)

const (
	CodeUnknown  = ErrorCode("")
	CodeOK       = ErrorCode("OK")
	CodeInternal = ErrCodeInternal
	CodeNotFound = ErrCodeNotFound
)

// Input table errors.
const (
	ErrCodeSchema       ErrorCode = "TABLE_001"
	ErrCodeMissingValue ErrorCode = "TABLE_002"
)

// Molecule errors.
const (
	ErrCodeInvalidSMILES       ErrorCode = "MOL_001"
	ErrCodeConformerGeneration ErrorCode = "MOL_002"
)

// Model errors.
const (
	ErrCodeFeatureSchemaMismatch ErrorCode = "MODEL_001"
	ErrCodeModelNotLoaded        ErrorCode = "MODEL_002"
	ErrCodeModelArtifactInvalid  ErrorCode = "MODEL_003"
	ErrCodeModelNotFound         ErrorCode = "MODEL_004"
	ErrCodePredictionFailed      ErrorCode = "MODEL_005"
	ErrCodeChecksumMismatch      ErrorCode = "MODEL_006"
)

// HTTPStatus maps an error code to the status returned by the HTTP API.
// Every failure a caller can fix by changing its input is a 4xx; contract
// violations and model faults are 5xx.
func (c ErrorCode) HTTPStatus() int {
	switch c {
	case CodeOK:
		return http.StatusOK
	case ErrCodeBadRequest, ErrCodeValidation, ErrCodeSchema, ErrCodeMissingValue,
		ErrCodeInvalidSMILES, ErrCodeConformerGeneration:
		return http.StatusBadRequest
	case ErrCodeNotFound, ErrCodeModelNotFound:
		return http.StatusNotFound
	case ErrCodeServiceUnavailable, ErrCodeModelNotLoaded:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// IsUserError reports whether the code describes bad input rather than a
// defect in the service.
func (c ErrorCode) IsUserError() bool {
	return c.HTTPStatus() >= 400 && c.HTTPStatus() < 500
}
