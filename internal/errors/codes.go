// Package errors provides structured error handling for semidx.
//
// Error codes follow the pattern ERR_XXX_DESCRIPTION where:
//   - 1XX: Configuration errors
//   - 2XX: Ingestion errors (file, disk)
//   - 3XX: Embedding errors (remote embedding service)
//   - 4XX: Validation errors
//   - 5XX: Store and query errors
package errors

import "strings"

// Category defines error categories for classification.
type Category string

const (
	// CategoryConfig indicates configuration-related errors.
	CategoryConfig Category = "CONFIG"
	// CategoryIngestion indicates file read and chunking errors.
	CategoryIngestion Category = "INGESTION"
	// CategoryEmbedding indicates embedding service errors.
	CategoryEmbedding Category = "EMBEDDING"
	// CategoryValidation indicates input validation errors.
	CategoryValidation Category = "VALIDATION"
	// CategoryStore indicates index store errors.
	CategoryStore Category = "STORE"
)

// Severity defines error severity levels.
type Severity string

const (
	// SeverityFatal indicates unrecoverable error, must abort.
	SeverityFatal Severity = "FATAL"
	// SeverityError indicates operation failed but the batch can continue.
	SeverityError Severity = "ERROR"
	// SeverityWarning indicates degraded operation, continuing.
	SeverityWarning Severity = "WARNING"
)

// Error codes organized by category.
const (
	// Config errors (100-199)
	ErrCodeConfigNotFound = "ERR_101_CONFIG_NOT_FOUND"
	ErrCodeConfigInvalid  = "ERR_102_CONFIG_INVALID"

	// Ingestion errors (200-299)
	ErrCodeFileNotFound  = "ERR_201_FILE_NOT_FOUND"
	ErrCodeFileTooLarge  = "ERR_202_FILE_TOO_LARGE"
	ErrCodeFileBinary    = "ERR_203_FILE_BINARY"
	ErrCodeFileEmpty     = "ERR_204_FILE_EMPTY"
	ErrCodeChunkingError = "ERR_205_CHUNKING_FAILED"

	// Embedding errors (300-399)
	ErrCodeEmbedTimeout     = "ERR_301_EMBED_TIMEOUT"
	ErrCodeEmbedUnavailable = "ERR_302_EMBED_UNAVAILABLE"
	ErrCodeEmbedBadResponse = "ERR_303_EMBED_BAD_RESPONSE"

	// Validation errors (400-499)
	ErrCodeInvalidInput   = "ERR_401_INVALID_INPUT"
	ErrCodeDimMismatch    = "ERR_402_DIMENSION_MISMATCH"
	ErrCodeInvalidProject = "ERR_403_INVALID_PROJECT"

	// Store and query errors (500-599)
	ErrCodeStoreWrite       = "ERR_501_STORE_WRITE"
	ErrCodeStoreUnreachable = "ERR_502_STORE_UNREACHABLE"
	ErrCodeStoreLocked      = "ERR_503_STORE_LOCKED"
	ErrCodeSearchFailed     = "ERR_504_SEARCH_FAILED"
)

// categoryFromCode extracts category from error code.
func categoryFromCode(code string) Category {
	if len(code) < 7 || !strings.HasPrefix(code, "ERR_") {
		return CategoryStore
	}
	switch code[4] {
	case '1':
		return CategoryConfig
	case '2':
		return CategoryIngestion
	case '3':
		return CategoryEmbedding
	case '4':
		return CategoryValidation
	default:
		return CategoryStore
	}
}

// severityFromCode derives severity from the code.
// Only total store unavailability is fatal; everything else is
// recoverable at the batch level.
func severityFromCode(code string) Severity {
	switch code {
	case ErrCodeStoreUnreachable, ErrCodeStoreLocked, ErrCodeConfigInvalid:
		return SeverityFatal
	case ErrCodeFileBinary, ErrCodeFileEmpty, ErrCodeFileTooLarge:
		return SeverityWarning
	default:
		return SeverityError
	}
}

// isRetryableCode reports whether operations failing with this code
// may be retried. Embedding calls are transient by contract.
func isRetryableCode(code string) bool {
	switch code {
	case ErrCodeEmbedTimeout, ErrCodeEmbedUnavailable, ErrCodeStoreWrite:
		return true
	default:
		return false
	}
}
