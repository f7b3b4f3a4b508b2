// Package errors defines the typed failures surfaced by the federation layer.
//
// Callers distinguish failure kinds with IsType / GetType:
//
//	rows, err := tmpl.SelectList(ctx, "user.byRegion", args)
//	switch errors.GetType(err) {
//	case errors.ErrTypeRouting:
//		// router rejected the fact, no shard was touched
//	case errors.ErrTypeConnection:
//		// a shard handle could not be acquired, nothing was submitted
//	case errors.ErrTypeExecution:
//		// a statement failed on one shard; the whole call failed
//	}
package errors

import (
	stderrors "errors"
	"fmt"
	"sort"
	"strings"
)

// ErrorType represents the type of error
type ErrorType string

const (
	// ErrTypeConfig represents setup-time configuration errors
	ErrTypeConfig ErrorType = "config"
	// ErrTypeRouting represents failures raised by a router
	ErrTypeRouting ErrorType = "routing"
	// ErrTypeConnection represents failures acquiring a shard handle
	ErrTypeConnection ErrorType = "connection"
	// ErrTypeExecution represents a unit of work failing against its shard
	ErrTypeExecution ErrorType = "execution"
	// ErrTypeConcurrency represents an interrupted or abandoned scatter/gather wait
	ErrTypeConcurrency ErrorType = "concurrency"
	// ErrTypeTimeout represents a caller deadline expiring
	ErrTypeTimeout ErrorType = "timeout"
	// ErrTypeDisposed represents use of a pool or manager after disposal
	ErrTypeDisposed ErrorType = "disposed"
	// ErrTypeValidation represents invalid input values
	ErrTypeValidation ErrorType = "validation"
	// ErrTypeNotFound represents resource not found errors
	ErrTypeNotFound ErrorType = "not_found"
	// ErrTypeInternal represents internal system errors
	ErrTypeInternal ErrorType = "internal"
)

// ContextShard is the context key carrying the shard identity of a failure.
const ContextShard = "shard"

// AppError represents a structured application error
type AppError struct {
	Type    ErrorType              `json:"type"`
	Message string                 `json:"message"`
	Code    string                 `json:"code,omitempty"`
	Cause   error                  `json:"-"`
	Context map[string]interface{} `json:"context,omitempty"`
}

// Error implements the error interface
func (e *AppError) Error() string {
	parts := []string{string(e.Type), e.Message}

	if e.Code != "" {
		parts = append(parts, fmt.Sprintf("code=%s", e.Code))
	}

	if e.Cause != nil {
		parts = append(parts, fmt.Sprintf("cause=%v", e.Cause))
	}

	if len(e.Context) > 0 {
		keys := make([]string, 0, len(e.Context))
		for k := range e.Context {
			keys = append(keys, k)
		}
		sort.Strings(keys)

		contextParts := make([]string, 0, len(keys))
		for _, k := range keys {
			contextParts = append(contextParts, fmt.Sprintf("%s=%v", k, e.Context[k]))
		}
		parts = append(parts, fmt.Sprintf("context={%s}", strings.Join(contextParts, ", ")))
	}

	return strings.Join(parts, ": ")
}

// Unwrap returns the underlying cause
func (e *AppError) Unwrap() error {
	return e.Cause
}

// WithContext adds context to the error
func (e *AppError) WithContext(key string, value interface{}) *AppError {
	if e.Context == nil {
		e.Context = make(map[string]interface{})
	}
	e.Context[key] = value
	return e
}

// WithShard records the shard identity the failure belongs to.
func (e *AppError) WithShard(identity string) *AppError {
	return e.WithContext(ContextShard, identity)
}

// WithCode adds an error code
func (e *AppError) WithCode(code string) *AppError {
	e.Code = code
	return e
}

// Shard returns the shard identity attached to the error, if any.
func (e *AppError) Shard() string {
	if e.Context == nil {
		return ""
	}
	s, _ := e.Context[ContextShard].(string)
	return s
}

// ConfigError creates a new configuration error
func ConfigError(msg string) *AppError {
	return &AppError{
		Type:    ErrTypeConfig,
		Message: msg,
	}
}

// RoutingError creates a new routing error
func RoutingError(msg string, cause error) *AppError {
	return &AppError{
		Type:    ErrTypeRouting,
		Message: msg,
		Cause:   cause,
	}
}

// ConnectionError creates a new handle acquisition error
func ConnectionError(msg string, cause error) *AppError {
	return &AppError{
		Type:    ErrTypeConnection,
		Message: msg,
		Cause:   cause,
	}
}

// ExecutionError creates a new execution error
func ExecutionError(msg string, cause error) *AppError {
	return &AppError{
		Type:    ErrTypeExecution,
		Message: msg,
		Cause:   cause,
	}
}

// ConcurrencyError creates a new concurrency failure
func ConcurrencyError(msg string, cause error) *AppError {
	return &AppError{
		Type:    ErrTypeConcurrency,
		Message: msg,
		Cause:   cause,
	}
}

// TimeoutError creates a new timeout error
func TimeoutError(operation string, cause error) *AppError {
	return &AppError{
		Type:    ErrTypeTimeout,
		Message: fmt.Sprintf("timeout during %s", operation),
		Cause:   cause,
	}
}

// DisposedError creates a new error for use after disposal
func DisposedError(resource string) *AppError {
	return &AppError{
		Type:    ErrTypeDisposed,
		Message: fmt.Sprintf("%s has been disposed", resource),
	}
}

// ValidationError creates a new validation error
func ValidationError(msg string) *AppError {
	return &AppError{
		Type:    ErrTypeValidation,
		Message: msg,
	}
}

// NotFoundError creates a new not found error
func NotFoundError(resource string) *AppError {
	return &AppError{
		Type:    ErrTypeNotFound,
		Message: fmt.Sprintf("%s not found", resource),
	}
}

// InternalError creates a new internal error
func InternalError(msg string, cause error) *AppError {
	return &AppError{
		Type:    ErrTypeInternal,
		Message: msg,
		Cause:   cause,
	}
}

// IsType checks if an error, or any error it wraps, is an AppError of a specific type
func IsType(err error, errType ErrorType) bool {
	if err == nil {
		return false
	}

	for err != nil {
		var appErr *AppError
		if !stderrors.As(err, &appErr) {
			return false
		}
		if appErr.Type == errType {
			return true
		}
		err = appErr.Cause
	}

	return false
}

// GetType returns the type of the outermost AppError, otherwise ErrTypeInternal
func GetType(err error) ErrorType {
	if err == nil {
		return ""
	}

	var appErr *AppError
	if !stderrors.As(err, &appErr) {
		return ErrTypeInternal
	}

	return appErr.Type
}

// ShardOf returns the shard identity recorded on the outermost AppError.
func ShardOf(err error) string {
	var appErr *AppError
	if stderrors.As(err, &appErr) {
		return appErr.Shard()
	}
	return ""
}
