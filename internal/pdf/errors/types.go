package errors

import (
	"fmt"
	"time"
)

// PipelineError represents a failure in the extraction/mapping pipeline with enough context
// for a caller to decide whether a different input could succeed
type PipelineError struct {
	Type      ErrorType `json:"type"`
	Message   string    `json:"message"`
	Context   string    `json:"context,omitempty"`
	FieldName string    `json:"field_name,omitempty"`
	Status    int       `json:"status,omitempty"`
	Timestamp time.Time `json:"timestamp"`
	Cause     error     `json:"-"`
}

// ErrorType represents the categories of pipeline failures
type ErrorType int

const (
	ErrorTypeUnknown ErrorType = iota
	ErrorTypeInput
	ErrorTypeExtraction
	ErrorTypeUpstream
	ErrorTypeContractViolation
	ErrorTypeParse
	ErrorTypeConfiguration
)

// Sentinels usable with errors.Is
var (
	ErrNoFillableFields = &PipelineError{Type: ErrorTypeInput, Message: "No fillable fields found in PDF"}
	ErrUnknownPDFField  = &PipelineError{Type: ErrorTypeContractViolation, Message: "PDF field not found"}
	ErrUpstream         = &PipelineError{Type: ErrorTypeUpstream, Message: "upstream service error"}
	ErrParse            = &PipelineError{Type: ErrorTypeParse, Message: "invalid mapping response"}
)

// Error implements the error interface
func (e *PipelineError) Error() string {
	msg := e.Message
	if e.FieldName != "" {
		msg = fmt.Sprintf("%s: %s", msg, e.FieldName)
	}
	if e.Context != "" {
		msg = fmt.Sprintf("%s: %s", msg, e.Context)
	}
	if e.Cause != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Cause)
	}
	return msg
}

// Unwrap exposes the underlying cause
func (e *PipelineError) Unwrap() error {
	return e.Cause
}

// Is matches on error type so that wrapped errors compare equal to the package sentinels
func (e *PipelineError) Is(target error) bool {
	t, ok := target.(*PipelineError)
	if !ok {
		return false
	}
	return e.Type == t.Type
}

// String returns a string representation of the ErrorType
func (et ErrorType) String() string {
	switch et {
	case ErrorTypeInput:
		return "INPUT"
	case ErrorTypeExtraction:
		return "EXTRACTION"
	case ErrorTypeUpstream:
		return "UPSTREAM"
	case ErrorTypeContractViolation:
		return "CONTRACT_VIOLATION"
	case ErrorTypeParse:
		return "PARSE"
	case ErrorTypeConfiguration:
		return "CONFIGURATION"
	default:
		return "UNKNOWN"
	}
}

// IsRetryable reports whether repeating the same call could plausibly succeed.
// Input and contract errors need a different document or a fixed upstream.
func (et ErrorType) IsRetryable() bool {
	switch et {
	case ErrorTypeUpstream, ErrorTypeParse:
		return true
	default:
		return false
	}
}

// NewPipelineError creates a new PipelineError
func NewPipelineError(errorType ErrorType, message string) *PipelineError {
	return &PipelineError{
		Type:      errorType,
		Message:   message,
		Timestamp: time.Now(),
	}
}

// NoFillableFields reports a document without any form widgets
func NoFillableFields() *PipelineError {
	return NewPipelineError(ErrorTypeInput, ErrNoFillableFields.Message)
}

// UnknownField reports a mapping that references a field absent from the extraction input
func UnknownField(name string) *PipelineError {
	e := NewPipelineError(ErrorTypeContractViolation, ErrUnknownPDFField.Message)
	e.FieldName = name
	return e
}

// Upstream reports a non-success response; the raw body is kept verbatim
func Upstream(status int, body string) *PipelineError {
	e := NewPipelineError(ErrorTypeUpstream, "mapping service error")
	e.Status = status
	e.Context = body
	return e
}

// WrapError wraps a standard error as a PipelineError
func WrapError(errorType ErrorType, message string, err error) *PipelineError {
	e := NewPipelineError(errorType, message)
	e.Cause = err
	return e
}

// WithContext adds context to an existing PipelineError
func (e *PipelineError) WithContext(context string) *PipelineError {
	e.Context = context
	return e
}

// TypeOf returns the ErrorType of err, or ErrorTypeUnknown when err is not a PipelineError
func TypeOf(err error) ErrorType {
	for err != nil {
		if pe, ok := err.(*PipelineError); ok {
			return pe.Type
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			return ErrorTypeUnknown
		}
		err = u.Unwrap()
	}
	return ErrorTypeUnknown
}
