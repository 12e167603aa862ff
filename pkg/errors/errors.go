package errors

import (
	"errors"
	"fmt"
	"time"
)

// ErrorType represents the type of error
type ErrorType string

const (
	// ErrorTypeFetch represents network-level fetch errors
	ErrorTypeFetch ErrorType = "fetch"
	// ErrorTypeParse represents record rejections during normalization
	ErrorTypeParse ErrorType = "parse"
	// ErrorTypeStorage represents storage collaborator failures
	ErrorTypeStorage ErrorType = "storage"
	// ErrorTypeSource represents a source whose listing fetch exhausted retries
	ErrorTypeSource ErrorType = "source"
	// ErrorTypeRun represents a run in which every source failed
	ErrorTypeRun ErrorType = "run"
	// ErrorTypeConfiguration represents configuration errors
	ErrorTypeConfiguration ErrorType = "configuration"
)

// ScrapeError represents a scraper-specific error
type ScrapeError struct {
	Type      ErrorType
	Source    string
	Message   string
	Err       error
	Retryable bool
	Time      time.Time
}

// Error implements the error interface
func (e *ScrapeError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %s - %v", e.Type, e.Source, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s: %s", e.Type, e.Source, e.Message)
}

// Unwrap returns the underlying error
func (e *ScrapeError) Unwrap() error {
	return e.Err
}

// IsRetryable returns true if another attempt may succeed.
// Only fetch errors are ever retryable; rejections, storage failures
// and exhausted sources are not.
func (e *ScrapeError) IsRetryable() bool {
	return e.Type == ErrorTypeFetch && e.Retryable
}

// New creates a new ScrapeError
func New(errType ErrorType, source, message string, err error) *ScrapeError {
	return &ScrapeError{
		Type:    errType,
		Source:  source,
		Message: message,
		Err:     err,
		Time:    time.Now(),
	}
}

// NewFetch creates a new fetch error with explicit retryability
func NewFetch(source, message string, err error, retryable bool) *ScrapeError {
	e := New(ErrorTypeFetch, source, message, err)
	e.Retryable = retryable
	return e
}

// NewParse creates a record rejection
func NewParse(source, message string) *ScrapeError {
	return New(ErrorTypeParse, source, message, nil)
}

// NewStorage creates a new storage error
func NewStorage(source, message string, err error) *ScrapeError {
	return New(ErrorTypeStorage, source, message, err)
}

// NewSource creates a source-level failure
func NewSource(source, message string, err error) *ScrapeError {
	return New(ErrorTypeSource, source, message, err)
}

// NewRun creates a run-level failure
func NewRun(message string) *ScrapeError {
	return New(ErrorTypeRun, "", message, nil)
}

// NewConfiguration creates a new configuration error
func NewConfiguration(message string, err error) *ScrapeError {
	return New(ErrorTypeConfiguration, "", message, err)
}

// IsType reports whether err is a ScrapeError of the given type
func IsType(err error, t ErrorType) bool {
	var se *ScrapeError
	if errors.As(err, &se) {
		return se.Type == t
	}
	return false
}

// IsRejection reports whether err is a record rejection
func IsRejection(err error) bool {
	return IsType(err, ErrorTypeParse)
}

// IsSourceFailure reports whether err is a source-level failure
func IsSourceFailure(err error) bool {
	return IsType(err, ErrorTypeSource)
}

// IsRetryable reports whether err is a retryable fetch error
func IsRetryable(err error) bool {
	var se *ScrapeError
	if errors.As(err, &se) {
		return se.IsRetryable()
	}
	return false
}
