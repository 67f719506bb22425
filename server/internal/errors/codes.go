package errors

import (
	"fmt"
)

// ErrorCode represents a specific error type for cache operations.
type ErrorCode string

const (
	// ErrCodeInvalidInput indicates empty or invalid query text, rejected
	// before any external call.
	ErrCodeInvalidInput ErrorCode = "INVALID_INPUT"
	// ErrCodeEmbeddingFailed indicates the embedding capability was
	// unavailable or erred.
	ErrCodeEmbeddingFailed ErrorCode = "EMBEDDING_FAILED"
	// ErrCodeSearchFailed indicates the vector store was unreachable or
	// erred during lookup.
	ErrCodeSearchFailed ErrorCode = "SEARCH_FAILED"
	// ErrCodeInsertFailed indicates the vector store rejected or failed the write.
	ErrCodeInsertFailed ErrorCode = "INSERT_FAILED"
	// ErrCodeServiceUnavailable indicates a backing service is not available.
	ErrCodeServiceUnavailable ErrorCode = "SERVICE_UNAVAILABLE"
	// ErrCodeTimeout indicates the operation timed out.
	ErrCodeTimeout ErrorCode = "TIMEOUT"
	// ErrCodeContextCanceled indicates the operation was canceled.
	ErrCodeContextCanceled ErrorCode = "CONTEXT_CANCELED"
)

// CacheError represents a structured error for cache operations.
type CacheError struct {
	Code    ErrorCode
	Message string
	Cause   error
}

// Error implements the error interface.
func (e *CacheError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause.
func (e *CacheError) Unwrap() error {
	return e.Cause
}

// GetCode returns the error code.
func (e *CacheError) GetCode() ErrorCode {
	return e.Code
}

// Convenience constructors for common error types.

// InvalidInput creates an invalid input error.
func InvalidInput(msg string) *CacheError {
	return &CacheError{Code: ErrCodeInvalidInput, Message: msg}
}

// EmbeddingFailed creates an embedding failure error.
func EmbeddingFailed(msg string, cause error) *CacheError {
	return &CacheError{Code: ErrCodeEmbeddingFailed, Message: msg, Cause: cause}
}

// SearchFailed creates a search failure error.
func SearchFailed(msg string, cause error) *CacheError {
	return &CacheError{Code: ErrCodeSearchFailed, Message: msg, Cause: cause}
}

// InsertFailed creates an insert failure error.
func InsertFailed(msg string, cause error) *CacheError {
	return &CacheError{Code: ErrCodeInsertFailed, Message: msg, Cause: cause}
}

// ServiceUnavailable creates a service unavailable error.
func ServiceUnavailable(msg string) *CacheError {
	return &CacheError{Code: ErrCodeServiceUnavailable, Message: msg}
}

// Timeout creates a timeout error.
func Timeout(msg string, cause error) *CacheError {
	return &CacheError{Code: ErrCodeTimeout, Message: msg, Cause: cause}
}

// ContextCanceled creates a context canceled error.
func ContextCanceled(cause error) *CacheError {
	return &CacheError{Code: ErrCodeContextCanceled, Message: "operation canceled", Cause: cause}
}

// Wrap wraps an existing error with a code and message.
func Wrap(cause error, code ErrorCode, msg string) *CacheError {
	return &CacheError{Code: code, Message: msg, Cause: cause}
}

// IsCode checks if an error is of a specific code.
func IsCode(err error, code ErrorCode) bool {
	if cacheErr, ok := err.(*CacheError); ok {
		return cacheErr.Code == code
	}
	return false
}

// GetCodeFromError extracts the error code from any error.
// Returns the provided default code if the error is not a CacheError.
func GetCodeFromError(err error, defaultCode ErrorCode) ErrorCode {
	if cacheErr, ok := err.(*CacheError); ok {
		return cacheErr.Code
	}
	return defaultCode
}
