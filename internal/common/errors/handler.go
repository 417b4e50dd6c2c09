// internal/common/errors/handler.go
package errors

import (
	"research-agent/internal/common/messages"
	"research-agent/internal/common/metrics"
)

// TurnErrorHandler converts any failure of a conversation turn into a
// StandardError and the localized text shown to the user.
type TurnErrorHandler struct {
	logger Logger
}

type Logger interface {
	Error(msg string, fields map[string]interface{})
}

func NewTurnErrorHandler(logger Logger) *TurnErrorHandler {
	return &TurnErrorHandler{logger: logger}
}

// Handle logs err once, records it and returns the normalized error with its apology text.
func (h *TurnErrorHandler) Handle(err error, fields map[string]interface{}) (*StandardError, string) {
	stdErr := AsStandardError(err)
	if stdErr == nil {
		stdErr = newError(ErrCodeInternal, "Unexpected error", "nil error", false, nil)
	}
	category := GetErrorCategory(stdErr.Code)

	metrics.TurnErrors.WithLabelValues(string(stdErr.Code), category).Inc()
	h.logError(stdErr, category, fields)

	return stdErr, messages.TurnError(UserDetail(stdErr))
}

// UserDetail is the part of an error that is safe to show to the user.
func UserDetail(stdErr *StandardError) string {
	if GetErrorCategory(stdErr.Code) == CategoryConfig {
		return stdErr.Message
	}
	if stdErr.cause != nil {
		return stdErr.cause.Error()
	}
	if stdErr.Details != "" {
		return stdErr.Details
	}
	return stdErr.Message
}

func (h *TurnErrorHandler) logError(stdErr *StandardError, category string, fields map[string]interface{}) {
	if h.logger == nil {
		return
	}
	out := map[string]interface{}{
		"errorCode":     string(stdErr.Code),
		"message":       stdErr.Message,
		"details":       stdErr.Details,
		"retryable":     stdErr.Retryable,
		"errorCategory": category,
	}
	for k, v := range stdErr.Metadata {
		out[k] = v
	}
	for k, v := range fields {
		out[k] = v
	}
	h.logger.Error("turn failed", out)
}
