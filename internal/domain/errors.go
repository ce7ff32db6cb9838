package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidConfig signals an invalid chunking or store parameter.
	ErrInvalidConfig = errors.New("invalid config")
	// ErrDimensionMismatch signals an embedding dimension disagreement.
	ErrDimensionMismatch = errors.New("embedding dimension mismatch")
	// ErrExtraction signals an upstream document parsing failure.
	ErrExtraction = errors.New("text extraction failed")
	// ErrPersistence signals a durable storage read/write failure.
	ErrPersistence = errors.New("persistence failure")
	// ErrEmbeddingProviderError signals an embedding provider failure.
	ErrEmbeddingProviderError = errors.New("embedding provider error")
)

// ConfigError wraps ErrInvalidConfig with the offending parameter and value.
type ConfigError struct {
	Param  string
	Value  any
	Reason string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("%s: %s=%v: %s", ErrInvalidConfig.Error(), e.Param, e.Value, e.Reason)
}

func (e *ConfigError) Unwrap() error { return ErrInvalidConfig }

// NewConfigError creates a config error for a parameter/value pair.
func NewConfigError(param string, value any, reason string) error {
	return &ConfigError{Param: param, Value: value, Reason: reason}
}

// DimensionMismatchError wraps ErrDimensionMismatch with both dimensions
// and the index of the offending vector within the batch (-1 for a query).
type DimensionMismatchError struct {
	Want  int
	Got   int
	Index int
}

func (e *DimensionMismatchError) Error() string {
	if e.Index < 0 {
		return fmt.Sprintf("%s: want %d, got %d", ErrDimensionMismatch.Error(), e.Want, e.Got)
	}
	return fmt.Sprintf("%s: want %d, got %d at batch index %d",
		ErrDimensionMismatch.Error(), e.Want, e.Got, e.Index)
}

func (e *DimensionMismatchError) Unwrap() error { return ErrDimensionMismatch }

// NewDimensionMismatch creates a dimension mismatch error for a batch element.
func NewDimensionMismatch(want, got, index int) error {
	return &DimensionMismatchError{Want: want, Got: got, Index: index}
}

// ExtractionError wraps ErrExtraction with the source path.
type ExtractionError struct {
	Path string
	Err  error
}

func (e *ExtractionError) Error() string {
	return fmt.Sprintf("%s: %s: %v", ErrExtraction.Error(), e.Path, e.Err)
}

func (e *ExtractionError) Unwrap() error { return ErrExtraction }

// NewExtractionError creates an extraction error for a source path.
func NewExtractionError(path string, err error) error {
	return &ExtractionError{Path: path, Err: err}
}
