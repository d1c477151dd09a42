// File: severity.go
// Title: Error Severity Levels
// Description: Severity levels used to pick the log level of a failure.
// Author: msto63
// Version: v0.2.0
// Created: 2025-01-24
// Modified: 2025-12-10

package error

// Severity represents the severity level of an error
type Severity int

const (
	// SeverityLow indicates an expected, user-recoverable failure
	// Examples: malformed backend message, canceled attempt
	SeverityLow Severity = iota

	// SeverityMedium indicates a failure of the current attempt
	// Examples: backend error, feedback timeout
	SeverityMedium

	// SeverityHigh indicates the practice session cannot continue as configured
	// Examples: no input device, no supported audio format
	SeverityHigh

	// SeverityCritical indicates a broken installation
	SeverityCritical
)

// String returns the string representation of the severity level
func (s Severity) String() string {
	switch s {
	case SeverityLow:
		return "low"
	case SeverityMedium:
		return "medium"
	case SeverityHigh:
		return "high"
	case SeverityCritical:
		return "critical"
	default:
		return "unknown"
	}
}

// ShouldAlert returns true if this severity level should be logged as an error
func (s Severity) ShouldAlert() bool {
	return s >= SeverityHigh
}

// GetSeverityFromCode returns the default severity for a code
func GetSeverityFromCode(code Code) Severity {
	switch code {
	case CodeProtocolError, CodeCanceled, CodeInvalidInput:
		return SeverityLow
	case CodePermissionDenied, CodeDeviceUnavailable, CodeNoSupportedFormat, CodeConfigError:
		return SeverityHigh
	case CodeInternal:
		return SeverityCritical
	default:
		return SeverityMedium
	}
}
