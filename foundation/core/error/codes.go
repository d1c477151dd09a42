// File: codes.go
// Title: Error Code Definitions
// Description: Defines the error codes used across hatsuon. The first block is the
//              failure taxonomy of a streaming attempt; the rest are generic codes
//              used by configuration, storage and the catalog client.
// Author: msto63
// Version: v0.2.0
// Created: 2025-01-24
// Modified: 2025-12-10

package error

// Code represents a structured error code for categorizing errors
type Code string

const (
	// Streaming attempt taxonomy
	CodePermissionDenied  Code = "PERMISSION_DENIED"
	CodeDeviceUnavailable Code = "DEVICE_UNAVAILABLE"
	CodeNoSupportedFormat Code = "NO_SUPPORTED_FORMAT"
	CodeConnectionError   Code = "CONNECTION_ERROR"
	CodeProtocolError     Code = "PROTOCOL_ERROR"
	CodeBackendError      Code = "BACKEND_ERROR"

	// Lifecycle
	CodeTimeout      Code = "TIMEOUT"
	CodeInvalidState Code = "INVALID_STATE"
	CodeCanceled     Code = "CANCELED"

	// Generic codes
	CodeUnknown      Code = "UNKNOWN"
	CodeInternal     Code = "INTERNAL"
	CodeNotFound     Code = "NOT_FOUND"
	CodeInvalidInput Code = "INVALID_INPUT"
	CodeConfigError  Code = "CONFIG_ERROR"
	CodeStorageError Code = "STORAGE_ERROR"
)

var knownCodes = map[Code]struct{}{
	CodePermissionDenied:  {},
	CodeDeviceUnavailable: {},
	CodeNoSupportedFormat: {},
	CodeConnectionError:   {},
	CodeProtocolError:     {},
	CodeBackendError:      {},
	CodeTimeout:           {},
	CodeInvalidState:      {},
	CodeCanceled:          {},
	CodeUnknown:           {},
	CodeInternal:          {},
	CodeNotFound:          {},
	CodeInvalidInput:      {},
	CodeConfigError:       {},
	CodeStorageError:      {},
}

// String returns the string representation of the error code
func (c Code) String() string {
	return string(c)
}

// IsValid reports whether the code belongs to the known taxonomy
func (c Code) IsValid() bool {
	_, ok := knownCodes[c]
	return ok
}

// Category groups codes for log fields and status lines
func (c Code) Category() string {
	switch c {
	case CodePermissionDenied, CodeDeviceUnavailable:
		return "device"
	case CodeNoSupportedFormat:
		return "format"
	case CodeConnectionError, CodeTimeout:
		return "transport"
	case CodeProtocolError, CodeBackendError:
		return "backend"
	case CodeInvalidState, CodeCanceled:
		return "lifecycle"
	case CodeConfigError, CodeInvalidInput:
		return "config"
	case CodeStorageError:
		return "storage"
	default:
		return "general"
	}
}

// Retryable reports whether a fresh attempt can succeed without the user
// changing anything outside the application
func (c Code) Retryable() bool {
	switch c {
	case CodeConnectionError, CodeTimeout, CodeProtocolError, CodeBackendError, CodeCanceled:
		return true
	default:
		return false
	}
}
