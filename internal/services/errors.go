package services

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrInvalidSelection        = errors.New("invalid selection")
	ErrJobStartRejected        = errors.New("job start rejected")
	ErrDuplicateExportInFlight = errors.New("duplicate export in flight")
	ErrInvalidOutputTarget     = errors.New("invalid output target")
	ErrBackendFailure          = errors.New("backend failure")
	ErrConfiguration           = errors.New("configuration error")
)

var markers = []error{
	ErrInvalidSelection,
	ErrJobStartRejected,
	ErrDuplicateExportInFlight,
	ErrInvalidOutputTarget,
	ErrBackendFailure,
	ErrConfiguration,
}

// Error is the concrete type produced by Wrap. It matches both its marker and
// its cause under errors.Is.
type Error struct {
	Marker    error
	Scope     string
	Operation string
	Message   string
	Cause     error
}

func (e *Error) Error() string {
	detail := buildDetail(e.Scope, e.Operation, e.Message)
	if e.Cause != nil {
		return fmt.Sprintf("%v: %s: %v", e.Marker, detail, e.Cause)
	}
	return fmt.Sprintf("%v: %s", e.Marker, detail)
}

func (e *Error) Unwrap() []error {
	if e.Cause == nil {
		return []error{e.Marker}
	}
	return []error{e.Marker, e.Cause}
}

// Wrap builds an error that carries scope context while tagging it with the
// provided marker for later classification. The marker should be one of the
// exported sentinel errors above; nil falls back to ErrBackendFailure.
func Wrap(marker error, scope, operation, message string, err error) error {
	if marker == nil {
		marker = ErrBackendFailure
	}
	return &Error{
		Marker:    marker,
		Scope:     strings.TrimSpace(scope),
		Operation: strings.TrimSpace(operation),
		Message:   strings.TrimSpace(message),
		Cause:     err,
	}
}

// ErrorDetails is the structured view of an error used by logging and the
// HTTP API.
type ErrorDetails struct {
	Kind      string
	Scope     string
	Operation string
	Message   string
	Cause     string
}

// Details extracts the marker and context from err. Errors that were not
// produced by Wrap still report a Kind when they match a known marker.
func Details(err error) ErrorDetails {
	if err == nil {
		return ErrorDetails{}
	}
	details := ErrorDetails{Kind: Kind(err), Message: err.Error()}
	var wrapped *Error
	if errors.As(err, &wrapped) {
		details.Scope = wrapped.Scope
		details.Operation = wrapped.Operation
		details.Message = wrapped.Message
		if wrapped.Cause != nil {
			details.Cause = wrapped.Cause.Error()
		}
	}
	return details
}

// Kind returns a stable snake_case identifier for the first marker err
// matches, or "internal" when none match.
func Kind(err error) string {
	for _, marker := range markers {
		if errors.Is(err, marker) {
			return strings.ReplaceAll(marker.Error(), " ", "_")
		}
	}
	return "internal"
}

func buildDetail(scope, operation, message string) string {
	parts := make([]string, 0, 3)
	if scope != "" {
		parts = append(parts, scope)
	}
	if operation != "" {
		parts = append(parts, operation)
	}
	if message != "" {
		parts = append(parts, message)
	}
	if len(parts) == 0 {
		return "service failure"
	}
	return strings.Join(parts, ": ")
}

// MarkerForKind returns the sentinel whose Kind is kind, or nil.
func MarkerForKind(kind string) error {
	for _, marker := range markers {
		if strings.ReplaceAll(marker.Error(), " ", "_") == kind {
			return marker
		}
	}
	return nil
}
