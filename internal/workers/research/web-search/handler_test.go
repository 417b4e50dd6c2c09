// internal/workers/research/web-search/handler_test.go
package websearch

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"research-agent/internal/common/logger"
	"research-agent/internal/models"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redismock/v9"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ==========================
// Test Helper Functions
// ==========================

func createTestConfig(baseURL string) *Config {
	return &Config{
		BaseURL:     baseURL,
		APIKey:      "tvly-test",
		SearchDepth: "advanced",
		MaxResults:  5,
		Timeout:     2 * time.Second,
	}
}

func createProviderResponse(answer string, results ...searchResult) []byte {
	data, _ := json.Marshal(searchResponse{Answer: answer, Results: results})
	return data
}

func newProvider(t *testing.T, calls *int32, body []byte) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(calls, 1)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write(body)
	}))
	t.Cleanup(server.Close)
	return server
}

// ==========================
// Core Functionality Tests
// ==========================

func TestHandler_Search_Success(t *testing.T) {
	longContent := strings.Repeat("giá vàng ", 100)
	var got searchRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/search", r.URL.Path)
		assert.Equal(t, "Bearer tvly-test", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))

		_, _ = w.Write(createProviderResponse("Giá vàng SJC hôm nay tăng.",
			searchResult{Title: "SJC", URL: "https://sjc.example", Content: longContent},
			searchResult{Title: "", URL: "https://untitled.example", Content: "ngắn"},
			searchResult{Title: "Empty", URL: "https://empty.example"},
		))
	}))
	defer server.Close()

	handler := NewHandler(createTestConfig(server.URL), nil, nil, logger.NewTestLogger(t))
	result := handler.Search(context.Background(), "  Giá vàng hôm nay ")

	assert.Equal(t, "Giá vàng hôm nay", got.Query)
	assert.Equal(t, "tvly-test", got.APIKey)
	assert.Equal(t, "advanced", got.SearchDepth)
	assert.Equal(t, 5, got.MaxResults)
	assert.True(t, got.IncludeAnswer)
	assert.False(t, got.IncludeRawContent)

	require.True(t, result.Succeeded())
	assert.Equal(t, SearchEngine, result.SearchEngine)
	assert.Equal(t, "Giá vàng hôm nay", result.Query)
	assert.True(t, strings.HasPrefix(result.Content, "Giá vàng SJC hôm nay tăng."))
	assert.Contains(t, result.Content, "ngắn...")

	require.Len(t, result.Sources, 3)
	assert.Equal(t, 303, len([]rune(result.Sources[0].Snippet)))
	assert.Equal(t, "Không có tiêu đề", result.Sources[1].Title)
	assert.Equal(t, "ngắn...", result.Sources[1].Snippet)
	assert.Equal(t, "", result.Sources[2].Snippet)
	assert.False(t, result.Timestamp.IsZero())
}

func TestHandler_Search_FallbackSummary(t *testing.T) {
	var calls int32
	server := newProvider(t, &calls, createProviderResponse("",
		searchResult{Title: "A", URL: "https://a"},
		searchResult{Title: "B", URL: "https://b"},
		searchResult{Title: "C", URL: "https://c"},
		searchResult{Title: "D", URL: "https://d"},
	))

	handler := NewHandler(createTestConfig(server.URL), nil, nil, logger.NewTestLogger(t))
	result := handler.Search(context.Background(), "tin tức")

	require.True(t, result.Succeeded())
	assert.Equal(t, "Kết quả tìm kiếm cho 'tin tức':\n\n1. A: \n\n2. B: \n\n3. C: \n\n", result.Content)
}

func TestHandler_Search_MissingCredentials(t *testing.T) {
	var calls int32
	server := newProvider(t, &calls, createProviderResponse("x"))

	cfg := createTestConfig(server.URL)
	cfg.APIKey = ""
	handler := NewHandler(cfg, nil, nil, logger.NewTestLogger(t))

	result := handler.Search(context.Background(), "Giá vàng hôm nay")
	assert.Equal(t, models.ResearchError, result.Status)
	assert.Equal(t, "TAVILY_API_KEY not found in environment variables", result.Error)
	assert.Contains(t, result.Error, "not found")
	assert.Equal(t, int32(0), atomic.LoadInt32(&calls))
}

// ==========================
// Error Handling Tests
// ==========================

func TestHandler_Search_ProviderErrors(t *testing.T) {
	tests := []struct {
		name    string
		handler http.HandlerFunc
		timeout time.Duration
	}{
		{
			name: "server error",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusInternalServerError)
			},
		},
		{
			name: "unauthorized",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusUnauthorized)
			},
		},
		{
			name: "malformed body",
			handler: func(w http.ResponseWriter, r *http.Request) {
				_, _ = w.Write([]byte(`{"results": [`))
			},
		},
		{
			name: "timeout",
			handler: func(w http.ResponseWriter, r *http.Request) {
				select {
				case <-time.After(500 * time.Millisecond):
				case <-r.Context().Done():
				}
			},
			timeout: 50 * time.Millisecond,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(tt.handler)
			defer server.Close()

			cfg := createTestConfig(server.URL)
			if tt.timeout > 0 {
				cfg.Timeout = tt.timeout
			}
			handler := NewHandler(cfg, nil, nil, logger.NewTestLogger(t))

			result := handler.Search(context.Background(), "query")
			assert.Equal(t, models.ResearchError, result.Status)
			assert.NotEmpty(t, result.Error)
			assert.Empty(t, result.Sources)
		})
	}
}

func TestHandler_Search_EmptyQuery(t *testing.T) {
	handler := NewHandler(createTestConfig("http://127.0.0.1:1"), nil, nil, logger.NewTestLogger(t))
	result := handler.Search(context.Background(), "   ")
	assert.Equal(t, models.ResearchError, result.Status)
}

// ==========================
// Cache Tests
// ==========================

func TestHandler_Search_CachesSuccessfulResults(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	var calls int32
	server := newProvider(t, &calls, createProviderResponse("answer",
		searchResult{Title: "A", URL: "https://a", Content: "content"},
	))

	cfg := createTestConfig(server.URL)
	cfg.CacheTTL = 10 * time.Minute
	handler := NewHandler(cfg, client, nil, logger.NewTestLogger(t))

	first := handler.Search(context.Background(), "Weather Hanoi")
	require.True(t, first.Succeeded())
	assert.True(t, mr.Exists(CacheKey("weather hanoi")))
	assert.Equal(t, 10*time.Minute, mr.TTL(CacheKey("Weather Hanoi")))

	second := handler.Search(context.Background(), "weather hanoi")
	require.True(t, second.Succeeded())
	assert.Equal(t, first.Content, second.Content)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestHandler_Search_ServesFromCache(t *testing.T) {
	db, mock := redismock.NewClientMock()

	cachedResult := models.ResearchResult{
		Status:  models.ResearchSuccess,
		Query:   "cached query",
		Content: "from cache",
		Sources: []models.Source{{Title: "C", URL: "https://cached"}},
	}
	data, _ := json.Marshal(cachedResult)
	mock.ExpectGet(CacheKey("cached query")).SetVal(string(data))

	var calls int32
	server := newProvider(t, &calls, createProviderResponse("fresh"))

	cfg := createTestConfig(server.URL)
	cfg.CacheTTL = time.Minute
	handler := NewHandler(cfg, db, nil, logger.NewTestLogger(t))

	result := handler.Search(context.Background(), "cached query")
	assert.Equal(t, "from cache", result.Content)
	assert.Equal(t, int32(0), atomic.LoadInt32(&calls))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestHandler_Search_CacheFailureFallsThrough(t *testing.T) {
	db, mock := redismock.NewClientMock()
	mock.ExpectGet(CacheKey("query")).SetErr(errors.New("connection refused"))

	var calls int32
	server := newProvider(t, &calls, createProviderResponse("fresh answer"))

	cfg := createTestConfig(server.URL)
	cfg.CacheTTL = time.Minute
	handler := NewHandler(cfg, db, nil, logger.NewTestLogger(t))

	result := handler.Search(context.Background(), "query")
	require.True(t, result.Succeeded())
	assert.Equal(t, "fresh answer", result.Content)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestHandler_Search_BreakerOpensAfterRepeatedFailures(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	cfg := createTestConfig(server.URL)
	cfg.BreakerFailures = 2
	cfg.BreakerOpenDelay = time.Minute
	handler := NewHandler(cfg, nil, nil, logger.NewTestLogger(t))

	for i := 0; i < 4; i++ {
		result := handler.Search(context.Background(), "query")
		assert.Equal(t, models.ResearchError, result.Status)
	}
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
}
