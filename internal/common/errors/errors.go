// Package errors provides the standardized error taxonomy for research turns.
package errors

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// ==========================
// 1. Standard Error Types
// ==========================

// ErrorCode represents standardized internal error codes.
type ErrorCode string

// Configuration errors: a required credential or setting is missing.
const (
	ErrCodeSearchCredentialsMissing    ErrorCode = "SEARCH_CREDENTIALS_MISSING"
	ErrCodeReasoningCredentialsMissing ErrorCode = "REASONING_CREDENTIALS_MISSING"
	ErrCodeConfigInvalid               ErrorCode = "CONFIG_INVALID"
)

// Provider errors: the search or reasoning service failed.
const (
	ErrCodeSearchProviderFailed ErrorCode = "SEARCH_PROVIDER_FAILED"
	ErrCodeSearchTimeout        ErrorCode = "SEARCH_TIMEOUT"
	ErrCodeReasoningFailed      ErrorCode = "REASONING_FAILED"
	ErrCodeReasoningTimeout     ErrorCode = "REASONING_TIMEOUT"
	ErrCodeSynthesisFailed      ErrorCode = "SYNTHESIS_FAILED"
)

// Protocol errors: a remote agent misbehaved.
const (
	ErrCodeRemoteAgentUnavailable ErrorCode = "REMOTE_AGENT_UNAVAILABLE"
	ErrCodeRemoteAgentBadResponse ErrorCode = "REMOTE_AGENT_BAD_RESPONSE"
	ErrCodeCardResolutionFailed   ErrorCode = "CARD_RESOLUTION_FAILED"
)

// Parse errors: structured output could not be decoded.
const (
	ErrCodeDecisionParseFailed ErrorCode = "DECISION_PARSE_FAILED"
	ErrCodePayloadMalformed    ErrorCode = "PAYLOAD_MALFORMED"
)

// Request errors.
const (
	ErrCodeNoQuery        ErrorCode = "NO_QUERY"
	ErrCodeInvalidRequest ErrorCode = "INVALID_REQUEST"
	ErrCodeInternal       ErrorCode = "INTERNAL_ERROR"
)

// Categories returned by GetErrorCategory.
const (
	CategoryConfig   = "CONFIG"
	CategoryProvider = "PROVIDER"
	CategoryProtocol = "PROTOCOL"
	CategoryParse    = "PARSE"
	CategoryRequest  = "REQUEST"
	CategoryOther    = "OTHER"
)

// StandardError represents a structured application error.
type StandardError struct {
	Code      ErrorCode              `json:"code"`
	Message   string                 `json:"message"`
	Details   string                 `json:"details,omitempty"`
	Retryable bool                   `json:"retryable"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
	Timestamp time.Time              `json:"timestamp"`

	cause error
}

func (e *StandardError) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("StandardError[%s]: %s: %s", e.Code, e.Message, e.Details)
	}
	return fmt.Sprintf("StandardError[%s]: %s", e.Code, e.Message)
}

func (e *StandardError) Unwrap() error {
	return e.cause
}

// Is matches another StandardError by code.
func (e *StandardError) Is(target error) bool {
	var other *StandardError
	if errors.As(target, &other) {
		return other.Code == e.Code
	}
	return false
}

// WithMetadata attaches a key/value pair and returns the receiver.
func (e *StandardError) WithMetadata(key string, value interface{}) *StandardError {
	if e.Metadata == nil {
		e.Metadata = make(map[string]interface{})
	}
	e.Metadata[key] = value
	return e
}

// ==========================
// 2. Error Constructors
// ==========================

func newError(code ErrorCode, message, details string, retryable bool, cause error) *StandardError {
	return &StandardError{
		Code:      code,
		Message:   message,
		Details:   details,
		Retryable: retryable,
		Timestamp: time.Now().UTC(),
		cause:     cause,
	}
}

func causeDetails(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}

// NewSearchCredentialsMissingError reports a search provider without an API key.
func NewSearchCredentialsMissingError(envName string) *StandardError {
	return newError(ErrCodeSearchCredentialsMissing,
		fmt.Sprintf("%s not found in environment variables", envName), "", false, nil)
}

// NewReasoningCredentialsMissingError reports a reasoning service without an API key.
func NewReasoningCredentialsMissingError(envName string) *StandardError {
	return newError(ErrCodeReasoningCredentialsMissing,
		fmt.Sprintf("%s not found in environment variables", envName), "", false, nil)
}

func NewConfigInvalidError(details string) *StandardError {
	return newError(ErrCodeConfigInvalid, "Invalid configuration", details, false, nil)
}

// NewSearchProviderError wraps a failed search call.
func NewSearchProviderError(query string, err error) *StandardError {
	return newError(ErrCodeSearchProviderFailed, "Search provider error",
		fmt.Sprintf("query: %s, error: %s", query, causeDetails(err)), false, err)
}

func NewSearchTimeoutError(query string, err error) *StandardError {
	return newError(ErrCodeSearchTimeout, "Search provider timeout",
		fmt.Sprintf("query: %s", query), false, err)
}

// NewReasoningError wraps a failed reasoning call.
func NewReasoningError(err error) *StandardError {
	return newError(ErrCodeReasoningFailed, "Reasoning service error", causeDetails(err), false, err)
}

func NewReasoningTimeoutError(err error) *StandardError {
	return newError(ErrCodeReasoningTimeout, "Reasoning service timeout", causeDetails(err), false, err)
}

func NewSynthesisFailedError(err error) *StandardError {
	return newError(ErrCodeSynthesisFailed, "Answer synthesis failed", causeDetails(err), false, err)
}

// NewRemoteAgentUnavailableError reports an unknown or unreachable agent.
func NewRemoteAgentUnavailableError(agentName string, err error) *StandardError {
	return newError(ErrCodeRemoteAgentUnavailable, "Remote agent unavailable",
		fmt.Sprintf("agent: %s, error: %s", agentName, causeDetails(err)), false, err).
		WithMetadata("agent", agentName)
}

func NewRemoteAgentBadResponseError(agentName, details string) *StandardError {
	return newError(ErrCodeRemoteAgentBadResponse, "Remote agent returned an invalid response",
		fmt.Sprintf("agent: %s, %s", agentName, details), false, nil).
		WithMetadata("agent", agentName)
}

func NewCardResolutionError(endpoint string, err error) *StandardError {
	return newError(ErrCodeCardResolutionFailed, "Agent card resolution failed",
		fmt.Sprintf("endpoint: %s, error: %s", endpoint, causeDetails(err)), false, err).
		WithMetadata("endpoint", endpoint)
}

func NewDecisionParseError(details string) *StandardError {
	return newError(ErrCodeDecisionParseFailed, "Coordinator decision could not be parsed", details, false, nil)
}

func NewPayloadMalformedError(details string) *StandardError {
	return newError(ErrCodePayloadMalformed, "Malformed payload", details, false, nil)
}

func NewNoQueryError() *StandardError {
	return newError(ErrCodeNoQuery, "No human message in request", "", false, nil)
}

func NewInvalidRequestError(details string) *StandardError {
	return newError(ErrCodeInvalidRequest, "Invalid request", details, false, nil)
}

// ==========================
// 3. Utility Functions
// ==========================

// AsStandardError normalizes any error into a StandardError.
func AsStandardError(err error) *StandardError {
	if err == nil {
		return nil
	}
	var stdErr *StandardError
	if errors.As(err, &stdErr) {
		return stdErr
	}
	return newError(ErrCodeInternal, "Unexpected error", err.Error(), false, err)
}

// CodeOf returns the code of err, or INTERNAL_ERROR when err is not a StandardError.
func CodeOf(err error) ErrorCode {
	if stdErr := AsStandardError(err); stdErr != nil {
		return stdErr.Code
	}
	return ""
}

// GetErrorCategory returns the taxonomy category of the error code.
func GetErrorCategory(code ErrorCode) string {
	codeStr := string(code)
	switch {
	case strings.HasSuffix(codeStr, "_CREDENTIALS_MISSING") || strings.HasPrefix(codeStr, "CONFIG"):
		return CategoryConfig
	case strings.HasPrefix(codeStr, "SEARCH") || strings.HasPrefix(codeStr, "REASONING") ||
		strings.HasPrefix(codeStr, "SYNTHESIS"):
		return CategoryProvider
	case strings.HasPrefix(codeStr, "REMOTE_AGENT") || strings.HasPrefix(codeStr, "CARD"):
		return CategoryProtocol
	case strings.HasSuffix(codeStr, "_PARSE_FAILED") || strings.HasSuffix(codeStr, "_MALFORMED"):
		return CategoryParse
	case code == ErrCodeNoQuery || code == ErrCodeInvalidRequest:
		return CategoryRequest
	default:
		return CategoryOther
	}
}

// IsConfigError reports whether err belongs to the configuration category.
func IsConfigError(err error) bool {
	return err != nil && GetErrorCategory(CodeOf(err)) == CategoryConfig
}
