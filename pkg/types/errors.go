package types

import (
	"fmt"
	"net/http"
)

// ValidationReason classifies why a source image was rejected
type ValidationReason string

const (
	ReasonTooLarge        ValidationReason = "too_large"
	ReasonUnsupportedType ValidationReason = "unsupported_type"
	ReasonUndecodable     ValidationReason = "undecodable"
)

// ValidationError reports a source image that cannot be normalized
type ValidationError struct {
	Reason ValidationReason
	Detail string
	Err    error
}

func (e *ValidationError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("invalid image (%s): %s: %v", e.Reason, e.Detail, e.Err)
	}
	return fmt.Sprintf("invalid image (%s): %s", e.Reason, e.Detail)
}

func (e *ValidationError) Unwrap() error { return e.Err }

// ConfigurationError reports a credential that is missing or still the placeholder
// after the readiness wait.
type ConfigurationError struct {
	Detail string
}

func (e *ConfigurationError) Error() string {
	if e.Detail == "" {
		return "API credential is not configured"
	}
	return "API credential is not configured: " + e.Detail
}

// NoImageError reports an analysis attempted with nothing staged
type NoImageError struct{}

func (e *NoImageError) Error() string { return "no image to analyze" }

// NetworkError reports a transport failure or a non-success HTTP status.
// StatusCode is zero when no response was received.
type NetworkError struct {
	StatusCode int
	Status     string
	Message    string
	Err        error
}

func (e *NetworkError) Error() string {
	switch {
	case e.StatusCode != 0 && e.Message != "":
		return fmt.Sprintf("API request failed: %d %s: %s", e.StatusCode, e.statusText(), e.Message)
	case e.StatusCode != 0:
		return fmt.Sprintf("API request failed: %d %s", e.StatusCode, e.statusText())
	case e.Err != nil:
		return fmt.Sprintf("API request failed: %v", e.Err)
	default:
		return "API request failed"
	}
}

func (e *NetworkError) Unwrap() error { return e.Err }

func (e *NetworkError) statusText() string {
	if e.Status != "" {
		return e.Status
	}
	return http.StatusText(e.StatusCode)
}

// MalformedResponseError reports a successful response without usable content
type MalformedResponseError struct {
	Detail string
	Err    error
}

func (e *MalformedResponseError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("malformed API response: %s: %v", e.Detail, e.Err)
	}
	return "malformed API response: " + e.Detail
}

func (e *MalformedResponseError) Unwrap() error { return e.Err }
