// Package memerr defines the shared error taxonomy used across every
// component (spec §7). It generalizes the teacher's per-domain errors.go
// files into one Kind enum so the MCP surface can translate any package's
// error into a consistent {code, message, recovery_hint} response.
package memerr

import (
	"errors"
	"fmt"
)

// Kind classifies an error for policy and for MCP/CLI surfacing.
type Kind string

const (
	KindStorage          Kind = "storage"
	KindNotFound         Kind = "not_found"
	KindInvalidState     Kind = "invalid_state"
	KindInvalidInput     Kind = "invalid_input"
	KindCapacityExceeded Kind = "capacity_exceeded"
	KindProvider         Kind = "provider"
	KindInfrastructure   Kind = "infrastructure"
)

// Error is a typed, wrapped error carrying a Kind for policy dispatch.
type Error struct {
	Kind    Kind
	Entity  string // e.g. "Thread", "Bridge", "Agent" for NotFound
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Entity != "" {
		return fmt.Sprintf("%s: %s: %s", e.Kind, e.Entity, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

func newErr(kind Kind, entity, message string, err error) *Error {
	return &Error{Kind: kind, Entity: entity, Message: message, Err: err}
}

// NotFound builds a KindNotFound error for the named entity kind (e.g. "Thread").
func NotFound(entity, id string) *Error {
	return newErr(KindNotFound, entity, fmt.Sprintf("%s not found: %s", entity, id), nil)
}

// Storage wraps an underlying store/transaction failure.
func Storage(message string, err error) *Error {
	return newErr(KindStorage, "", message, err)
}

// InvalidState reports an invariant violation that must reject the mutation.
func InvalidState(message string) *Error {
	return newErr(KindInvalidState, "", message, nil)
}

// InvalidInput reports a parameter outside its contract.
func InvalidInput(message string) *Error {
	return newErr(KindInvalidInput, "", message, nil)
}

// CapacityExceeded reports a per-project/per-agent cap hit, with a
// remediation hint for the caller to surface.
func CapacityExceeded(message, hint string) *Error {
	return newErr(KindCapacityExceeded, hint, message, nil)
}

// Provider wraps an external LLM/embedding helper failure. Callers degrade
// rather than cascade this error per spec §7.
func Provider(message string, err error) *Error {
	return newErr(KindProvider, "", message, err)
}

// Infrastructure wraps a serialization/IO/database/date-parse failure.
func Infrastructure(message string, err error) *Error {
	return newErr(KindInfrastructure, "", message, err)
}

// KindOf extracts the Kind of err if it is (or wraps) a *Error.
func KindOf(err error) (Kind, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind, true
	}
	return "", false
}

// Is reports whether err is a memerr.Error of the given kind.
func Is(err error, kind Kind) bool {
	k, ok := KindOf(err)
	return ok && k == kind
}
