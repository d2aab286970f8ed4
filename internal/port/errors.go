package port

import (
	"errors"
	"fmt"
)

// Sentinel errors used across ports. Handlers map them to HTTP statuses.
var (
	ErrValidation   = errors.New("validation failed")
	ErrNotFound     = errors.New("not found")
	ErrUpstream     = errors.New("upstream call failed")
	ErrAuthInvalid  = errors.New("invalid password")
	ErrAuthDisabled = errors.New("admin panel disabled")
	ErrTokenExpired = errors.New("token expired")
	ErrTokenInvalid = errors.New("token invalid")
)

// ValidationError is a client mistake the caller can fix. Msg is shown to the user.
type ValidationError struct {
	Msg string
}

func (e *ValidationError) Error() string { return e.Msg }

// Is makes errors.Is(err, ErrValidation) true.
func (e *ValidationError) Is(target error) bool { return target == ErrValidation }

// Validationf builds a ValidationError with a formatted message.
func Validationf(format string, args ...any) error {
	return &ValidationError{Msg: fmt.Sprintf(format, args...)}
}

// NotFoundError reports a missing target, e.g. a document to delete.
type NotFoundError struct {
	Msg string
}

func (e *NotFoundError) Error() string { return e.Msg }

// Is makes errors.Is(err, ErrNotFound) true.
func (e *NotFoundError) Is(target error) bool { return target == ErrNotFound }

// UpstreamError wraps a failed call to the embedding, vector-store, or LLM service.
type UpstreamError struct {
	Op  string
	Err error
}

func (e *UpstreamError) Error() string { return e.Op + ": " + e.Err.Error() }

func (e *UpstreamError) Unwrap() error { return e.Err }

// Is makes errors.Is(err, ErrUpstream) true.
func (e *UpstreamError) Is(target error) bool { return target == ErrUpstream }

// EmbeddingError is returned when the embedding call fails or its response
// lacks the expected vectors.
type EmbeddingError struct {
	Err error
}

func (e *EmbeddingError) Error() string { return "embedding: " + e.Err.Error() }

func (e *EmbeddingError) Unwrap() error { return e.Err }

// Is makes errors.Is(err, ErrUpstream) true.
func (e *EmbeddingError) Is(target error) bool { return target == ErrUpstream }

// ErrEmptyContent is returned when an uploaded file has no text after trimming.
var ErrEmptyContent error = &ValidationError{Msg: "No text content found in file"}
