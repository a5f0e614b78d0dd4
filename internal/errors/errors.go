// Package errors provides structured error types for the tixaudit tools.
// All errors include a category, code, message, and retryable flag for
// consistent error handling across components.
package errors

import (
	"errors"
	"fmt"
)

// ErrorCategory classifies errors by system component.
type ErrorCategory string

const (
	ErrCategoryConfig   ErrorCategory = "CONFIG"
	ErrCategoryDataset  ErrorCategory = "DATASET"
	ErrCategoryCatalog  ErrorCategory = "CATALOG"
	ErrCategoryStorage  ErrorCategory = "STORAGE"
	ErrCategoryExport   ErrorCategory = "EXPORT"
	ErrCategoryInternal ErrorCategory = "INTERNAL"
)

// Error codes for each category.
const (
	// Config codes
	CodeInvalidValue      = "INVALID_VALUE"
	CodeUnsupportedFormat = "UNSUPPORTED_FORMAT"

	// Dataset codes
	CodeFileMissing = "FILE_MISSING"
	CodeWriteFailed = "WRITE_FAILED"

	// Catalog codes
	CodeOpenFailed   = "OPEN_FAILED"
	CodeRecordFailed = "RECORD_FAILED"
	CodeQueryFailed  = "QUERY_FAILED"
	CodeRunNotFound  = "RUN_NOT_FOUND"
	CodeSchemaTooNew = "SCHEMA_TOO_NEW"
	CodeCatalogBusy  = "CATALOG_BUSY"

	// Storage codes
	CodeUploadFailed   = "UPLOAD_FAILED"
	CodeDownloadFailed = "DOWNLOAD_FAILED"
	CodeObjectNotFound = "OBJECT_NOT_FOUND"
	CodePublishFailed  = "PUBLISH_FAILED"

	// Export codes
	CodeJoinFailed    = "JOIN_FAILED"
	CodeArtifactBuild = "ARTIFACT_BUILD_FAILED"

	// Internal codes
	CodeUnexpected = "UNEXPECTED"
)

// AuditError is the structured error type used throughout the system.
type AuditError struct {
	Category  ErrorCategory
	Code      string
	Message   string
	Details   map[string]interface{}
	Cause     error
	Retryable bool
}

// Error returns a formatted error string.
func (e *AuditError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s:%s] %s: %v", e.Category, e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s:%s] %s", e.Category, e.Code, e.Message)
}

// Unwrap returns the underlying cause for errors.Is/As compatibility.
func (e *AuditError) Unwrap() error {
	return e.Cause
}

// Is reports whether the target matches this error's category and code.
func (e *AuditError) Is(target error) bool {
	var t *AuditError
	if errors.As(target, &t) {
		return e.Category == t.Category && e.Code == t.Code
	}
	return false
}

// New creates a new AuditError.
func New(category ErrorCategory, code, message string) *AuditError {
	return &AuditError{
		Category:  category,
		Code:      code,
		Message:   message,
		Retryable: isRetryable(category, code),
	}
}

// Wrap creates a new AuditError wrapping an existing error.
func Wrap(category ErrorCategory, code, message string, cause error) *AuditError {
	return &AuditError{
		Category:  category,
		Code:      code,
		Message:   message,
		Cause:     cause,
		Retryable: isRetryable(category, code),
	}
}

// WithDetails returns a copy of the error with additional details.
func (e *AuditError) WithDetails(details map[string]interface{}) *AuditError {
	cp := *e
	cp.Details = details
	return &cp
}

// IsRetryable checks whether an error (or its chain) is retryable.
func IsRetryable(err error) bool {
	var ae *AuditError
	if errors.As(err, &ae) {
		return ae.Retryable
	}
	return false
}

// GetCategory extracts the error category from an error chain.
// Returns empty string if the error is not an AuditError.
func GetCategory(err error) ErrorCategory {
	var ae *AuditError
	if errors.As(err, &ae) {
		return ae.Category
	}
	return ""
}

// GetCode extracts the error code from an error chain.
// Returns empty string if the error is not an AuditError.
func GetCode(err error) string {
	var ae *AuditError
	if errors.As(err, &ae) {
		return ae.Code
	}
	return ""
}

// isRetryable determines whether an error code is worth retrying.
// Transient storage and catalog contention are; everything else is not.
func isRetryable(category ErrorCategory, code string) bool {
	switch {
	case category == ErrCategoryStorage && code == CodeUploadFailed:
		return true
	case category == ErrCategoryStorage && code == CodeDownloadFailed:
		return true
	case category == ErrCategoryCatalog && code == CodeCatalogBusy:
		return true
	default:
		return false
	}
}

// Convenience constructors for common errors.

func NewConfigError(code, message string) *AuditError {
	return New(ErrCategoryConfig, code, message)
}

func NewDatasetError(code, message string, cause error) *AuditError {
	return Wrap(ErrCategoryDataset, code, message, cause)
}

func NewCatalogError(code, message string, cause error) *AuditError {
	return Wrap(ErrCategoryCatalog, code, message, cause)
}

func NewStorageError(code, message string, cause error) *AuditError {
	return Wrap(ErrCategoryStorage, code, message, cause)
}

func NewExportError(code, message string, cause error) *AuditError {
	return Wrap(ErrCategoryExport, code, message, cause)
}

func NewInternalError(message string, cause error) *AuditError {
	return Wrap(ErrCategoryInternal, CodeUnexpected, message, cause)
}
