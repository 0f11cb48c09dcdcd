// Package errors provides the unified error type and factory functions for
// the fluoric prediction service. Every layer (domain, application,
// infrastructure, interfaces) reports failures as *AppError so that the CLI,
// the HTTP API and the logs agree on a single code per failure.
package errors

import (
	"errors"
	"fmt"
	"runtime"
	"strings"
)

// stackDepth is the maximum number of frames captured per error.
const stackDepth = 32

// captureStack returns a formatted call-stack string starting two frames above
// the caller (skipping captureStack itself and New/Wrap).
func captureStack(skip int) string {
	pcs := make([]uintptr, stackDepth)
	n := runtime.Callers(skip+2, pcs)
	if n == 0 {
		return ""
	}
	frames := runtime.CallersFrames(pcs[:n])
	var sb strings.Builder
	for {
		f, more := frames.Next()
		if !strings.Contains(f.File, "runtime/") {
			fmt.Fprintf(&sb, "\n\t%s:%d %s", f.File, f.Line, f.Function)
		}
		if !more {
			break
		}
	}
	return sb.String()
}

// ─────────────────────────────────────────────────────────────────────────────
// AppError
// ─────────────────────────────────────────────────────────────────────────────

// AppError is the structured error type used throughout the module. It
// supports wrapping so errors.Is / errors.As / errors.Unwrap work across
// layers.
//
// Usage:
//
//	return errors.New(errors.ErrCodeInvalidSMILES, "unclosed ring bond 1")
//	return errors.Wrap(err, errors.ErrCodeModelArtifactInvalid, "decode artifact")
//	return errors.InvalidSMILES(smiles, "unexpected character").WithDetail("position 3")
type AppError struct {
	// Code identifies the failure category.
	Code ErrorCode

	// Message is the primary human-readable description, safe to show to
	// callers of the CLI or the HTTP API.
	Message string

	// Detail carries supplementary context (positions, names, sizes).
	Detail string

	// Cause is the underlying error.
	Cause error

	// Stack is the call stack captured at creation. It is not part of
	// Error(); log middleware may inspect it directly.
	Stack string
}

// Error implements the error interface.
// Format: "[<code>] <message>: <detail>: <cause>"; empty segments are omitted.
func (e *AppError) Error() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "[%s] %s", e.Code, e.Message)
	if e.Detail != "" {
		sb.WriteString(": ")
		sb.WriteString(e.Detail)
	}
	if e.Cause != nil {
		sb.WriteString(": ")
		sb.WriteString(e.Cause.Error())
	}
	return sb.String()
}

// Unwrap returns the underlying cause.
func (e *AppError) Unwrap() error {
	return e.Cause
}

// WithDetail returns a shallow copy of the receiver with Detail set.
// It is safe to call on a nil pointer (returns nil).
func (e *AppError) WithDetail(detail string) *AppError {
	if e == nil {
		return nil
	}
	clone := *e
	clone.Detail = detail
	return &clone
}

// WithCause returns a shallow copy of the receiver with Cause set to err.
func (e *AppError) WithCause(err error) *AppError {
	if e == nil {
		return nil
	}
	clone := *e
	clone.Cause = err
	return &clone
}

// ─────────────────────────────────────────────────────────────────────────────
// Primary factory functions
// ─────────────────────────────────────────────────────────────────────────────

// New constructs a fresh AppError with the given code and message.
func New(code ErrorCode, message string) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Stack:   captureStack(1),
	}
}

// Newf is New with a format string.
func Newf(code ErrorCode, format string, args ...interface{}) *AppError {
	return &AppError{
		Code:    code,
		Message: fmt.Sprintf(format, args...),
		Stack:   captureStack(1),
	}
}

// Wrap constructs an AppError that wraps err. A nil err yields nil.
//
// When code is CodeUnknown and err already carries an *AppError, the original
// code is kept so the classification survives propagation across layers.
func Wrap(err error, code ErrorCode, message string) *AppError {
	if err == nil {
		return nil
	}
	if code == CodeUnknown {
		var ae *AppError
		if errors.As(err, &ae) {
			code = ae.Code
		} else {
			code = CodeInternal
		}
	}
	return &AppError{
		Code:    code,
		Message: message,
		Cause:   err,
		Stack:   captureStack(1),
	}
}

// ─────────────────────────────────────────────────────────────────────────────
// Error-chain inspection helpers
// ─────────────────────────────────────────────────────────────────────────────

// IsCode reports whether any error in err's chain is an *AppError with the
// given code.
func IsCode(err error, code ErrorCode) bool {
	for err != nil {
		if ae, ok := err.(*AppError); ok && ae.Code == code {
			return true
		}
		err = errors.Unwrap(err)
	}
	return false
}

// GetCode extracts the ErrorCode from the first *AppError found in err's
// chain. A nil error yields CodeOK and a foreign error CodeInternal.
func GetCode(err error) ErrorCode {
	if err == nil {
		return CodeOK
	}
	var ae *AppError
	if errors.As(err, &ae) {
		return ae.Code
	}
	return CodeInternal
}

// Is, As and Unwrap re-export the standard library helpers so callers only
// import one errors package.
func Is(err, target error) bool { return errors.Is(err, target) }

func As(err error, target interface{}) bool { return errors.As(err, target) }

func Unwrap(err error) error { return errors.Unwrap(err) }

// ─────────────────────────────────────────────────────────────────────────────
// Prediction pipeline taxonomy
// ─────────────────────────────────────────────────────────────────────────────

// SchemaError reports an input table without the required column.
func SchemaError(column string) *AppError {
	return &AppError{
		Code:    ErrCodeSchema,
		Message: fmt.Sprintf("The table does not contain the column '%s'.", column),
		Stack:   captureStack(1),
	}
}

// MissingValueError reports a null cell in the SMILES column.
func MissingValueError(row int) *AppError {
	return &AppError{
		Code:    ErrCodeMissingValue,
		Message: "SMILES cannot be NaN.",
		Detail:  fmt.Sprintf("row %d", row),
		Stack:   captureStack(1),
	}
}

// InvalidSMILES reports a string that does not parse into a valid structure.
func InvalidSMILES(smiles, reason string) *AppError {
	return &AppError{
		Code:    ErrCodeInvalidSMILES,
		Message: fmt.Sprintf("invalid SMILES %q: %s", smiles, reason),
		Stack:   captureStack(1),
	}
}

// ConformerGenerationError reports that no plausible 3D embedding was found.
func ConformerGenerationError(smiles, reason string) *AppError {
	return &AppError{
		Code:    ErrCodeConformerGeneration,
		Message: fmt.Sprintf("conformer generation failed for %q: %s", smiles, reason),
		Stack:   captureStack(1),
	}
}

// FeatureSchemaMismatchError reports a feature vector whose names or order
// differ from what the model was trained on.
func FeatureSchemaMismatchError(model string, want, got []string) *AppError {
	return &AppError{
		Code:    ErrCodeFeatureSchemaMismatch,
		Message: fmt.Sprintf("feature schema mismatch for model %s", model),
		Detail:  fmt.Sprintf("want %d features %v, got %d features %v", len(want), want, len(got), got),
		Stack:   captureStack(1),
	}
}

// IsSchemaError reports whether err is a missing-column error.
func IsSchemaError(err error) bool { return IsCode(err, ErrCodeSchema) }

// IsMissingValue reports whether err is a null SMILES cell error.
func IsMissingValue(err error) bool { return IsCode(err, ErrCodeMissingValue) }

// IsInvalidSMILES reports whether err is a SMILES parse or valence error.
func IsInvalidSMILES(err error) bool { return IsCode(err, ErrCodeInvalidSMILES) }

// IsConformerGeneration reports whether err is an embedding failure.
func IsConformerGeneration(err error) bool { return IsCode(err, ErrCodeConformerGeneration) }

// IsFeatureSchemaMismatch reports whether err is an extractor/model contract
// violation.
func IsFeatureSchemaMismatch(err error) bool { return IsCode(err, ErrCodeFeatureSchemaMismatch) }
