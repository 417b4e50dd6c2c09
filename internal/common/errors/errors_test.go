package errors

import (
	stderrors "errors"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type captureLogger struct {
	entries []map[string]interface{}
}

func (c *captureLogger) Error(msg string, fields map[string]interface{}) {
	c.entries = append(c.entries, fields)
}

func TestGetErrorCategory(t *testing.T) {
	tests := []struct {
		code     ErrorCode
		expected string
	}{
		{ErrCodeSearchCredentialsMissing, CategoryConfig},
		{ErrCodeReasoningCredentialsMissing, CategoryConfig},
		{ErrCodeConfigInvalid, CategoryConfig},
		{ErrCodeSearchProviderFailed, CategoryProvider},
		{ErrCodeSearchTimeout, CategoryProvider},
		{ErrCodeReasoningFailed, CategoryProvider},
		{ErrCodeSynthesisFailed, CategoryProvider},
		{ErrCodeRemoteAgentUnavailable, CategoryProtocol},
		{ErrCodeRemoteAgentBadResponse, CategoryProtocol},
		{ErrCodeCardResolutionFailed, CategoryProtocol},
		{ErrCodeDecisionParseFailed, CategoryParse},
		{ErrCodePayloadMalformed, CategoryParse},
		{ErrCodeNoQuery, CategoryRequest},
		{ErrCodeInternal, CategoryOther},
	}

	for _, tt := range tests {
		t.Run(string(tt.code), func(t *testing.T) {
			assert.Equal(t, tt.expected, GetErrorCategory(tt.code))
		})
	}
}

func TestStandardError_WrapsCause(t *testing.T) {
	cause := stderrors.New("connection refused")
	err := fmt.Errorf("dispatch: %w", NewRemoteAgentUnavailableError("weather", cause))

	assert.True(t, stderrors.Is(err, cause))
	assert.True(t, stderrors.Is(err, &StandardError{Code: ErrCodeRemoteAgentUnavailable}))
	assert.False(t, stderrors.Is(err, &StandardError{Code: ErrCodeSearchTimeout}))

	stdErr := AsStandardError(err)
	require.NotNil(t, stdErr)
	assert.Equal(t, "weather", stdErr.Metadata["agent"])
}

func TestAsStandardError_NormalizesPlainErrors(t *testing.T) {
	stdErr := AsStandardError(stderrors.New("boom"))
	require.NotNil(t, stdErr)
	assert.Equal(t, ErrCodeInternal, stdErr.Code)
	assert.Nil(t, AsStandardError(nil))
}

func TestTurnErrorHandler_Handle(t *testing.T) {
	log := &captureLogger{}
	h := NewTurnErrorHandler(log)

	stdErr, text := h.Handle(NewSearchCredentialsMissingError("TAVILY_API_KEY"), map[string]interface{}{"sessionId": "s-1"})

	assert.Equal(t, ErrCodeSearchCredentialsMissing, stdErr.Code)
	assert.True(t, strings.HasPrefix(text, "Xin lỗi, đã xảy ra lỗi khi tìm kiếm thông tin: "))
	assert.Contains(t, text, "TAVILY_API_KEY not found in environment variables")
	require.Len(t, log.entries, 1)
	assert.Equal(t, "s-1", log.entries[0]["sessionId"])
	assert.Equal(t, CategoryConfig, log.entries[0]["errorCategory"])
}

func TestTurnErrorHandler_ProviderErrorShowsCause(t *testing.T) {
	h := NewTurnErrorHandler(nil)
	_, text := h.Handle(NewReasoningError(stderrors.New("quota exceeded")), nil)
	assert.Contains(t, text, "quota exceeded")
}
