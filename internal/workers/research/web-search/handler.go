// internal/workers/research/web-search/handler.go
package websearch

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	apperrors "research-agent/internal/common/errors"
	apphttp "research-agent/internal/common/http"
	"research-agent/internal/common/logger"
	"research-agent/internal/common/messages"
	"research-agent/internal/common/metrics"
	"research-agent/internal/common/observability"
	"research-agent/internal/models"

	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel/attribute"
)

const (
	TaskType     = "web-search"
	SearchEngine = "Tavily"

	snippetLimit  = 300
	contentLimit  = 500
	summarySource = 3
	cachePrefix   = "search:"
)

var (
	ErrSearchTimeout = errors.New("SEARCH_TIMEOUT")
	ErrSearchFailed  = errors.New("SEARCH_PROVIDER_FAILED")
)

// Handler is the search gateway. Search never returns an error: failures
// become ResearchResults with status error.
type Handler struct {
	config *Config
	client *apphttp.Client
	cache  *redis.Client
	obs    *observability.Observability
	logger logger.Logger
	now    func() time.Time
}

// NewHandler builds the gateway. A nil cache disables result caching.
func NewHandler(config *Config, cache *redis.Client, obs *observability.Observability, log logger.Logger) *Handler {
	h := &Handler{
		config: config,
		cache:  cache,
		obs:    obs,
		logger: log.With(map[string]interface{}{
			"taskType": TaskType,
		}),
		now: time.Now,
	}
	h.client = apphttp.NewResilientClient(apphttp.Options{
		Name:        TaskType,
		Timeout:     config.Timeout,
		MaxFailures: config.BreakerFailures,
		OpenTimeout: config.BreakerOpenDelay,
		OnStateChange: func(name, from, to string) {
			h.logger.Warn("search circuit breaker changed state", map[string]interface{}{
				"breaker": name,
				"from":    from,
				"to":      to,
			})
		},
	})
	return h
}

func (h *Handler) Search(ctx context.Context, query string) models.ResearchResult {
	ctx, span := h.obs.StartSpan(ctx, "websearch.search", attribute.String("query", query))
	defer span.End()

	query = strings.TrimSpace(query)
	if h.config.APIKey == "" {
		metrics.SearchRequests.WithLabelValues("error").Inc()
		return h.errorResult(query, apperrors.NewSearchCredentialsMissingError("TAVILY_API_KEY"))
	}
	if query == "" {
		metrics.SearchRequests.WithLabelValues("error").Inc()
		return h.errorResult(query, apperrors.NewInvalidRequestError("empty search query"))
	}

	if cached, ok := h.cached(ctx, query); ok {
		metrics.SearchRequests.WithLabelValues("cached").Inc()
		return cached
	}

	start := h.now()
	result, err := h.execute(ctx, query)
	metrics.SearchDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.SearchRequests.WithLabelValues("error").Inc()
		span.RecordError(err)
		if errors.Is(err, ErrSearchTimeout) {
			return h.errorResult(query, apperrors.NewSearchTimeoutError(query, err))
		}
		return h.errorResult(query, apperrors.NewSearchProviderError(query, err))
	}

	metrics.SearchRequests.WithLabelValues("success").Inc()
	h.store(ctx, query, result)

	h.logger.Info("web search completed", map[string]interface{}{
		"query":       query,
		"resultCount": len(result.Sources),
	})
	return result
}

func (h *Handler) execute(ctx context.Context, query string) (models.ResearchResult, error) {
	body, _ := json.Marshal(searchRequest{
		APIKey:            h.config.APIKey,
		Query:             query,
		SearchDepth:       h.config.SearchDepth,
		MaxResults:        h.config.MaxResults,
		IncludeAnswer:     true,
		IncludeRawContent: false,
	})

	endpoint := strings.TrimRight(h.config.BaseURL, "/") + "/search"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return models.ResearchResult{}, fmt.Errorf("%w: %v", ErrSearchFailed, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+h.config.APIKey)

	resp, err := h.client.Do(req)
	if err != nil {
		if ctx.Err() == context.DeadlineExceeded ||
			strings.Contains(err.Error(), "deadline") ||
			strings.Contains(err.Error(), "Client.Timeout") {
			return models.ResearchResult{}, fmt.Errorf("%w: %v", ErrSearchTimeout, err)
		}
		return models.ResearchResult{}, fmt.Errorf("%w: %v", ErrSearchFailed, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return models.ResearchResult{}, fmt.Errorf("%w: search API returned %d", ErrSearchFailed, resp.StatusCode)
	}

	var apiResponse searchResponse
	if err := json.NewDecoder(resp.Body).Decode(&apiResponse); err != nil {
		return models.ResearchResult{}, fmt.Errorf("%w: decode response: %v", ErrSearchFailed, err)
	}

	return h.normalize(query, &apiResponse), nil
}

// normalize converts the provider payload into a ResearchResult.
func (h *Handler) normalize(query string, resp *searchResponse) models.ResearchResult {
	var parts []string
	if answer := strings.TrimSpace(resp.Answer); answer != "" {
		parts = append(parts, answer)
	}

	sources := make([]models.Source, 0, len(resp.Results))
	for _, item := range resp.Results {
		title := item.Title
		if title == "" {
			title = messages.UntitledSource
		}
		snippet := ""
		if item.Content != "" {
			snippet = truncate(item.Content, snippetLimit) + "..."
			parts = append(parts, truncate(item.Content, contentLimit)+"...")
		}
		sources = append(sources, models.Source{Title: title, URL: item.URL, Snippet: snippet})
	}

	content := strings.Join(parts, "\n\n")
	if content == "" && len(sources) > 0 {
		content = fallbackSummary(query, sources)
	}

	return models.ResearchResult{
		Status:       models.ResearchSuccess,
		Query:        query,
		Content:      content,
		Sources:      sources,
		Timestamp:    h.now().UTC(),
		SearchEngine: SearchEngine,
	}
}

func fallbackSummary(query string, sources []models.Source) string {
	var b strings.Builder
	b.WriteString(messages.SearchFallbackHeader(query))
	for i, s := range sources {
		if i == summarySource {
			break
		}
		fmt.Fprintf(&b, "%d. %s: %s\n\n", i+1, s.Title, s.Snippet)
	}
	return b.String()
}

func (h *Handler) errorResult(query string, stdErr *apperrors.StandardError) models.ResearchResult {
	h.logger.Warn("web search failed", map[string]interface{}{
		"query":     query,
		"errorCode": string(stdErr.Code),
		"error":     stdErr.Error(),
	})
	return models.ResearchResult{
		Status:       models.ResearchError,
		Query:        query,
		Error:        apperrors.UserDetail(stdErr),
		Timestamp:    h.now().UTC(),
		SearchEngine: SearchEngine,
	}
}

// CacheKey is the Redis key under which results for query are cached.
func CacheKey(query string) string {
	sum := sha256.Sum256([]byte(strings.ToLower(strings.TrimSpace(query))))
	return cachePrefix + hex.EncodeToString(sum[:])
}

func (h *Handler) cached(ctx context.Context, query string) (models.ResearchResult, bool) {
	if h.cache == nil || h.config.CacheTTL <= 0 {
		return models.ResearchResult{}, false
	}
	data, err := h.cache.Get(ctx, CacheKey(query)).Bytes()
	if err != nil {
		if err != redis.Nil {
			h.logger.Warn("search cache read failed", map[string]interface{}{"error": err.Error()})
		}
		return models.ResearchResult{}, false
	}
	var result models.ResearchResult
	if err := json.Unmarshal(data, &result); err != nil || !result.Succeeded() {
		return models.ResearchResult{}, false
	}
	return result, true
}

func (h *Handler) store(ctx context.Context, query string, result models.ResearchResult) {
	if h.cache == nil || h.config.CacheTTL <= 0 {
		return
	}
	data, err := json.Marshal(result)
	if err != nil {
		return
	}
	if err := h.cache.Set(ctx, CacheKey(query), data, h.config.CacheTTL).Err(); err != nil {
		h.logger.Warn("search cache write failed", map[string]interface{}{"error": err.Error()})
	}
}

func truncate(s string, limit int) string {
	r := []rune(s)
	if len(r) <= limit {
		return s
	}
	return string(r[:limit])
}
