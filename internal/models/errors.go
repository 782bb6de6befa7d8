package models

import (
	"errors"
	"fmt"
)

type ErrorKind string

const (
	ErrKindMalformedSource   ErrorKind = "malformed_source"
	ErrKindSearchUnavailable ErrorKind = "search_unavailable"
	ErrKindModelRequest      ErrorKind = "model_request"
	ErrKindAuthentication    ErrorKind = "authentication"
	ErrKindTimeout           ErrorKind = "timeout"
	ErrKindCancelled         ErrorKind = "cancelled"
	ErrKindExternal          ErrorKind = "external"
	ErrKindValidation        ErrorKind = "validation"
)

// AppError is the typed error carried across the pipeline. Message is safe
// for user-facing output: provider response bodies and credentials must never
// be placed in it, only in Cause, which stays internal.
type AppError struct {
	Kind    ErrorKind
	Code    string
	Message string
	Cause   error
}

func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Cause
}

func (e *AppError) WithCause(err error) *AppError {
	e.Cause = err
	return e
}

func NewMalformedSourceError(message string) *AppError {
	return &AppError{Kind: ErrKindMalformedSource, Code: "MALFORMED_SOURCE", Message: message}
}

func NewSearchUnavailableError(message string) *AppError {
	return &AppError{Kind: ErrKindSearchUnavailable, Code: "SEARCH_UNAVAILABLE", Message: message}
}

func NewModelRequestError(code, message string) *AppError {
	return &AppError{Kind: ErrKindModelRequest, Code: code, Message: message}
}

func NewAuthenticationError(message string) *AppError {
	return &AppError{Kind: ErrKindAuthentication, Code: "AUTHENTICATION_FAILED", Message: message}
}

func NewTimeoutError(code, message string) *AppError {
	return &AppError{Kind: ErrKindTimeout, Code: code, Message: message}
}

func NewCancelledError(message string) *AppError {
	return &AppError{Kind: ErrKindCancelled, Code: "REQUEST_CANCELLED", Message: message}
}

func NewValidationError(message string) *AppError {
	return &AppError{Kind: ErrKindValidation, Code: "INVALID_REQUEST", Message: message}
}

// WrapExternalError tags a provider failure without copying the provider's
// error body into the surfaced message.
func WrapExternalError(provider string, err error) *AppError {
	return &AppError{
		Kind:    ErrKindExternal,
		Code:    provider + "_ERROR",
		Message: fmt.Sprintf("%s request failed", provider),
		Cause:   err,
	}
}

func IsKind(err error, kind ErrorKind) bool {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Kind == kind
	}
	return false
}

// OrchestrationError wraps a fatal pipeline failure with the role and the
// stage that was reached, for user-facing messaging.
type OrchestrationError struct {
	Role  Role
	Stage Stage
	Err   error
}

func (e *OrchestrationError) Error() string {
	return fmt.Sprintf("orchestration failed for role %s at stage %s: %v", e.Role, e.Stage, e.Err)
}

func (e *OrchestrationError) Unwrap() error {
	return e.Err
}

func NewOrchestrationError(role Role, stage Stage, err error) *OrchestrationError {
	return &OrchestrationError{Role: role, Stage: stage, Err: err}
}
