package reasoning

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"research-agent/internal/common/config"
	apperrors "research-agent/internal/common/errors"
	"research-agent/internal/common/logger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig() config.GenAIConfig {
	return config.GenAIConfig{
		APIKey:      "test-key",
		Model:       "gemini-test",
		Temperature: 0.2,
		Timeout:     5000,
	}
}

func TestNewGeminiClient_RequiresAPIKey(t *testing.T) {
	cfg := testConfig()
	cfg.APIKey = ""

	_, err := NewGeminiClient(context.Background(), cfg, logger.NewTestLogger(t))
	require.Error(t, err)
	assert.True(t, apperrors.IsConfigError(err))
	assert.Equal(t, apperrors.ErrCodeReasoningCredentialsMissing, apperrors.CodeOf(err))
}

func TestGeminiClient_GenerateParsesTextAndGrounding(t *testing.T) {
	var gotPath, gotBody string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		body, _ := io.ReadAll(r.Body)
		gotBody = string(body)

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"candidates": []map[string]interface{}{{
				"content": map[string]interface{}{
					"role":  "model",
					"parts": []map[string]interface{}{{"text": "  Hà Nội hôm nay 30°C  "}},
				},
				"groundingMetadata": map[string]interface{}{
					"groundingChunks": []map[string]interface{}{
						{"web": map[string]interface{}{"uri": "https://weather.example/hn", "title": "Weather"}},
						{"web": map[string]interface{}{"uri": "https://weather.example/hn", "title": "Dup"}},
						{"web": map[string]interface{}{"uri": "https://news.example/a"}},
					},
				},
			}},
		})
	}))
	defer server.Close()

	c, err := NewGeminiClient(context.Background(), testConfig(), logger.NewTestLogger(t), Options{BaseURL: server.URL})
	require.NoError(t, err)

	resp, err := c.Generate(context.Background(), &Request{Prompt: "Thời tiết Hà Nội", Model: "gemini-override", Grounded: true})
	require.NoError(t, err)

	assert.Equal(t, "Hà Nội hôm nay 30°C", resp.Text)
	assert.Equal(t, "gemini-override", resp.Model)
	assert.True(t, strings.Contains(gotPath, "gemini-override"), gotPath)
	assert.Contains(t, gotBody, "Thời tiết Hà Nội")
	assert.Contains(t, gotBody, "googleSearch")

	require.Len(t, resp.Sources, 2)
	assert.Equal(t, "Weather", resp.Sources[0].Title)
	assert.Equal(t, "https://news.example/a", resp.Sources[1].Title)
}

func TestGeminiClient_GenerateWrapsProviderFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":{"code":400,"message":"bad request","status":"INVALID_ARGUMENT"}}`))
	}))
	defer server.Close()

	c, err := NewGeminiClient(context.Background(), testConfig(), logger.NewTestLogger(t), Options{BaseURL: server.URL})
	require.NoError(t, err)

	_, err = c.Generate(context.Background(), &Request{Prompt: "hi"})
	require.Error(t, err)
	assert.Equal(t, apperrors.ErrCodeReasoningFailed, apperrors.CodeOf(err))
}

func TestReasonerFunc(t *testing.T) {
	var r Reasoner = ReasonerFunc(func(ctx context.Context, req *Request) (*Response, error) {
		return &Response{Text: "echo: " + req.Prompt}, nil
	})
	resp, err := r.Generate(context.Background(), &Request{Prompt: "x"})
	require.NoError(t, err)
	assert.Equal(t, "echo: x", resp.Text)
}
