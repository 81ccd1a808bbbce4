package errors

import (
	stderrors "errors"
	"fmt"
)

// ErrorCategory classifies failures raised by the decision core
type ErrorCategory string

const (
	ErrorCategoryValidation       ErrorCategory = "VALIDATION"
	ErrorCategoryInsufficientData ErrorCategory = "INSUFFICIENT_DATA"
	ErrorCategoryPolicy           ErrorCategory = "POLICY"
	ErrorCategoryConfiguration    ErrorCategory = "CONFIG"
	ErrorCategoryState            ErrorCategory = "STATE"
)

// Sentinel errors. CoreError values wrap these so callers can use errors.Is.
var (
	ErrInsufficientData = stderrors.New("insufficient data")
	ErrPositionNotFound = stderrors.New("position not found")
	ErrStaleTick        = stderrors.New("tick timestamp not after last observation")
	ErrInvalidTick      = stderrors.New("invalid tick")
	ErrInvalidFill      = stderrors.New("invalid fill")
	ErrInvalidConfig    = stderrors.New("invalid configuration")
)

// CoreError represents a categorized error with context
type CoreError struct {
	Category   ErrorCategory
	Component  string
	Operation  string
	Message    string
	Underlying error
	Context    map[string]interface{}
}

// Error implements the error interface
func (e *CoreError) Error() string {
	if e.Underlying != nil {
		return fmt.Sprintf("[%s:%s] %s: %s: %v", e.Category, e.Component, e.Operation, e.Message, e.Underlying)
	}
	return fmt.Sprintf("[%s:%s] %s: %s", e.Category, e.Component, e.Operation, e.Message)
}

// Unwrap returns the underlying error for error unwrapping
func (e *CoreError) Unwrap() error {
	return e.Underlying
}

// Is matches another *CoreError by category so callers can test
// errors.Is(err, &CoreError{Category: ErrorCategoryValidation}).
func (e *CoreError) Is(target error) bool {
	t, ok := target.(*CoreError)
	if !ok {
		return false
	}
	return t.Category == e.Category && (t.Component == "" || t.Component == e.Component)
}

// WithContext adds context information to the error
func (e *CoreError) WithContext(key string, value interface{}) *CoreError {
	if e.Context == nil {
		e.Context = make(map[string]interface{})
	}
	e.Context[key] = value
	return e
}

// NewCoreError creates a new categorized error
func NewCoreError(category ErrorCategory, component, operation, message string) *CoreError {
	return &CoreError{
		Category:  category,
		Component: component,
		Operation: operation,
		Message:   message,
		Context:   make(map[string]interface{}),
	}
}

// WrapError wraps an existing error with component context
func WrapError(err error, category ErrorCategory, component, operation, message string) *CoreError {
	if err == nil {
		return nil
	}
	return &CoreError{
		Category:   category,
		Component:  component,
		Operation:  operation,
		Message:    message,
		Underlying: err,
		Context:    make(map[string]interface{}),
	}
}

func NewValidationError(component, operation, message string) *CoreError {
	return NewCoreError(ErrorCategoryValidation, component, operation, message)
}

// NewConfigurationError wraps err so it matches both ErrInvalidConfig and
// the original cause.
func NewConfigurationError(component, operation string, err error) *CoreError {
	if err == nil {
		return nil
	}
	return WrapError(fmt.Errorf("%w: %w", ErrInvalidConfig, err), ErrorCategoryConfiguration, component, operation, "rejected")
}

func NewInsufficientDataError(component, operation string, have, need int) *CoreError {
	return WrapError(ErrInsufficientData, ErrorCategoryInsufficientData, component, operation,
		fmt.Sprintf("have %d samples, need %d", have, need)).
		WithContext("have", have).
		WithContext("need", need)
}

func NewStateError(component, operation string, err error) *CoreError {
	return WrapError(err, ErrorCategoryState, component, operation, "operation rejected")
}

// CategoryOf returns the category of the first CoreError in err's chain.
func CategoryOf(err error) (ErrorCategory, bool) {
	var ce *CoreError
	if stderrors.As(err, &ce) {
		return ce.Category, true
	}
	return "", false
}
