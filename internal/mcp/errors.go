package mcp

import (
	"fmt"

	"github.com/rpggio/memengine/internal/memerr"
)

// APIError is the MCP-surfaced error shape, generalizing the teacher's
// {code, message, recovery_hint} response into memerr's Kind taxonomy.
type APIError struct {
	Code         string `json:"code"`
	Message      string `json:"message"`
	RecoveryHint string `json:"recovery_hint,omitempty"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// MapError translates any error into an APIError. Errors that are (or
// wrap) a memerr.Error map by Kind; anything else maps to a generic
// internal error rather than leaking implementation details to the caller.
func MapError(err error) *APIError {
	if err == nil {
		return nil
	}
	kind, ok := memerr.KindOf(err)
	if !ok {
		return &APIError{Code: "INTERNAL", Message: err.Error()}
	}
	switch kind {
	case memerr.KindNotFound:
		return &APIError{Code: "NOT_FOUND", Message: err.Error(), RecoveryHint: "Check the ID and try again"}
	case memerr.KindInvalidState:
		return &APIError{Code: "INVALID_STATE", Message: err.Error(), RecoveryHint: "The thread is not in a state that allows this operation"}
	case memerr.KindInvalidInput:
		return &APIError{Code: "INVALID_INPUT", Message: err.Error(), RecoveryHint: "Check the request parameters"}
	case memerr.KindCapacityExceeded:
		return &APIError{Code: "CAPACITY_EXCEEDED", Message: err.Error(), RecoveryHint: "Suspend or archive threads to free capacity"}
	case memerr.KindProvider:
		return &APIError{Code: "PROVIDER_UNAVAILABLE", Message: err.Error(), RecoveryHint: "The configured LLM/embedding provider degraded; retry later"}
	case memerr.KindStorage, memerr.KindInfrastructure:
		return &APIError{Code: "STORAGE_ERROR", Message: err.Error()}
	default:
		return &APIError{Code: "INTERNAL", Message: err.Error()}
	}
}

func mapError(err error) error {
	if apiErr := MapError(err); apiErr != nil {
		return apiErr
	}
	return err
}
