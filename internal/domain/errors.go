package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound signals a missing resource.
	ErrNotFound = errors.New("not found")
	// ErrInvalidConfig signals an unknown or out-of-range option value.
	ErrInvalidConfig = errors.New("invalid configuration")
	// ErrInvalidRecord signals a catalog record that cannot be used.
	ErrInvalidRecord = errors.New("invalid catalog record")
	// ErrVectorDimMismatch signals a vector dimension mismatch.
	ErrVectorDimMismatch = errors.New("vector dimension mismatch")
	// ErrRateLimited signals a rate limit hit.
	ErrRateLimited = errors.New("rate limited")
	// ErrEmbeddingProviderError signals an embedding provider failure.
	ErrEmbeddingProviderError = errors.New("embedding provider error")
	// ErrRerankerError signals a context reranker failure.
	ErrRerankerError = errors.New("reranker error")
	// ErrKeywordSearchNotSupported signals that the backend lacks keyword search.
	ErrKeywordSearchNotSupported = errors.New("keyword search not supported by backend")
)

// ConfigurationError reports a rejected option. It is the only error kind
// that reaches callers of Search, Cluster and Process.
type ConfigurationError struct {
	Field string
	Value string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("%s: %s %q", ErrInvalidConfig.Error(), e.Field, e.Value)
}

func (e *ConfigurationError) Unwrap() error { return ErrInvalidConfig }

// NewConfigError creates a configuration error for field with the offending value.
func NewConfigError(field, value string) error {
	return &ConfigurationError{Field: field, Value: value}
}

// CollaboratorError wraps a failure of an external dependency
// (embedder, vector store, reranker, cache).
type CollaboratorError struct {
	Source string
	Err    error
}

func (e *CollaboratorError) Error() string {
	return fmt.Sprintf("%s: %v", e.Source, e.Err)
}

func (e *CollaboratorError) Unwrap() error { return e.Err }

// StageError reports a failed query understanding stage.
type StageError struct {
	Stage string
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("stage %s: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error { return e.Err }

// DataError reports a malformed catalog record. The record is skipped.
type DataError struct {
	ID     string
	Reason string
}

func (e *DataError) Error() string {
	if e.ID == "" {
		return fmt.Sprintf("%s: %s", ErrInvalidRecord.Error(), e.Reason)
	}
	return fmt.Sprintf("%s %q: %s", ErrInvalidRecord.Error(), e.ID, e.Reason)
}

func (e *DataError) Unwrap() error { return ErrInvalidRecord }

// IsConfigError reports whether err is a configuration error.
func IsConfigError(err error) bool {
	return errors.Is(err, ErrInvalidConfig)
}
