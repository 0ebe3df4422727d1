package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// Error represents a typed domain error with HTTP awareness.
type Error struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Status  int    `json:"status"`
	Err     error  `json:"-"`
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e == nil {
		return "<nil>"
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

// Unwrap returns the wrapped error.
func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// Is reports whether target carries the same code, so clones of a predefined
// error still match it through errors.Is.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) || e == nil || t == nil {
		return false
	}
	return e.Code == t.Code
}

// New creates a new Error instance.
func New(code string, status int, message string) *Error {
	return &Error{Code: code, Status: status, Message: message}
}

// Wrap attaches context to an existing error.
func Wrap(err error, code string, status int, message string) *Error {
	return &Error{Code: code, Status: status, Message: message, Err: err}
}

// Generic errors shared by every module.
var (
	ErrNotFound     = New("NOT_FOUND", http.StatusNotFound, "resource not found")
	ErrForbidden    = New("FORBIDDEN", http.StatusForbidden, "forbidden")
	ErrUnauthorized = New("UNAUTHORIZED", http.StatusUnauthorized, "unauthorized")
	ErrValidation   = New("VALIDATION_ERROR", http.StatusBadRequest, "validation failed")
	ErrInternal     = New("INTERNAL_ERROR", http.StatusInternalServerError, "internal server error")
	ErrCacheMiss    = New("CACHE_MISS", http.StatusNotFound, "cache miss")
)

// Allocation errors. All of them abort the enclosing transaction.
var (
	ErrNoAvailableAreas          = New("NO_AVAILABLE_AREAS", http.StatusBadRequest, "no active areas available for the career")
	ErrAreaUnavailable           = New("AREA_UNAVAILABLE", http.StatusBadRequest, "requested area is not available")
	ErrAreaNotAvailableForCareer = New("AREA_NOT_AVAILABLE_FOR_CAREER", http.StatusBadRequest, "case study area is not available for the career")
	ErrNoAvailableCaseStudy      = New("NO_AVAILABLE_CASE_STUDY", http.StatusBadRequest, "no case study available")
	ErrCaseStudyUnavailable      = New("CASE_STUDY_UNAVAILABLE", http.StatusBadRequest, "case study is not available")
	ErrDuplicateDefense          = New("DUPLICATE_DEFENSE", http.StatusBadRequest, "defense already scheduled for this student, type and date")
	ErrDefenseTypeNotFound       = New("DEFENSE_TYPE_NOT_FOUND", http.StatusNotFound, "defense type not found")
	ErrDefenseNotFound           = New("DEFENSE_NOT_FOUND", http.StatusNotFound, "defense not found")
	ErrStudentNotFound           = New("STUDENT_NOT_FOUND", http.StatusNotFound, "student not found")
)

// Jury assignment preconditions.
var (
	ErrNoDefensesSpecified  = New("NO_DEFENSES_SPECIFIED", http.StatusBadRequest, "no defenses specified")
	ErrInsufficientJurors   = New("INSUFFICIENT_JURORS", http.StatusBadRequest, "at least two eligible jurors are required")
	ErrInvalidJurySelection = New("INVALID_JURY_SELECTION", http.StatusBadRequest, "at least two jurors of the defense area must be selected")
	ErrNoAreaAssigned       = New("NO_AREA_ASSIGNED", http.StatusBadRequest, "defense has no area assigned")
)

// FromError normalises any error into an *Error.
func FromError(err error) *Error {
	if err == nil {
		return nil
	}
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	return Wrap(err, ErrInternal.Code, ErrInternal.Status, ErrInternal.Message)
}

// Clone returns a copy of the error allowing for message overrides.
func Clone(err *Error, message string) *Error {
	if err == nil {
		return nil
	}
	clone := *err
	if message != "" {
		clone.Message = message
	}
	return &clone
}

// Internal wraps an infrastructure failure with a human readable message.
func Internal(err error, message string) *Error {
	return Wrap(err, ErrInternal.Code, ErrInternal.Status, message)
}
