package apierr

import (
	"errors"
	"fmt"
	"net/http"
)

// Error codes surfaced by the placement API.
const (
	CodeInvalidPayload      = "invalid_payload"
	CodeInvalidDateRange    = "invalid_date_range"
	CodeTypeRule            = "type_rule"
	CodeDuplicateMembership = "duplicate_membership"
	CodeConflictStagiaire   = "conflict_stagiaire"
	CodeConflictGroupe      = "conflict_groupe"
	CodeUnknownGroupeNumero = "unknown_groupe_numero"
	CodeNotFound            = "not_found"
	CodeMissingFile         = "missing_file"
	CodeBadFile             = "bad_file"
	CodeMissingReference    = "missing_reference"
	CodeReferenceMismatch   = "reference_mismatch"
	CodeStorageError        = "storage_error"
	CodeInternal            = "internal"
)

type Error struct {
	Status int
	Code   string
	Err    error
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	if e.Code != "" {
		return e.Code
	}
	if e.Status != 0 {
		return fmt.Sprintf("api error (%d)", e.Status)
	}
	return "api error"
}

func (e *Error) Unwrap() error { return e.Err }

func New(status int, code string, err error) *Error {
	return &Error{Status: status, Code: code, Err: err}
}

func BadRequest(code string, err error) *Error {
	return New(http.StatusBadRequest, code, err)
}

func NotFound(err error) *Error {
	return New(http.StatusNotFound, CodeNotFound, err)
}

func Internal(code string, err error) *Error {
	if code == "" {
		code = CodeInternal
	}
	return New(http.StatusInternalServerError, code, err)
}

// From maps any error onto an *Error, defaulting to a 500.
func From(err error) *Error {
	if err == nil {
		return nil
	}
	var ae *Error
	if errors.As(err, &ae) {
		return ae
	}
	return Internal(CodeInternal, err)
}
