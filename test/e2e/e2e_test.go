// test/e2e/e2e_test.go
package e2e

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"research-agent/internal/api"
	"research-agent/internal/common/config"
	"research-agent/internal/common/database"
	"research-agent/internal/common/logger"
	"research-agent/internal/common/messages"
	"research-agent/internal/common/reasoning"
	"research-agent/internal/models"
	"research-agent/internal/session"
	"research-agent/pkg/a2a"

	as "research-agent/internal/workers/research/answer-synthesis"
	qg "research-agent/internal/workers/research/quality-gate"
	qp "research-agent/internal/workers/research/query-planner"
	rl "research-agent/internal/workers/research/research-loop"
	ws "research-agent/internal/workers/research/web-search"
	"research-agent/internal/workers/routing/coordinator"
	ra "research-agent/internal/workers/routing/remote-agent"
)

// ==========================
// In-process stack
// ==========================

type stack struct {
	server   *httptest.Server
	sessions *session.Manager
	searches *int32
}

type stackOptions struct {
	mode         string
	searchKey    string
	agentURLs    []string
	decide       func(prompt string) (string, error)
	synthesized  string
	searchServer *httptest.Server
}

// tavily answers every query with five distinct sources derived from the query.
func tavily(t *testing.T, calls *int32) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/search" {
			http.NotFound(w, r)
			return
		}
		atomic.AddInt32(calls, 1)
		var req struct {
			Query string `json:"query"`
		}
		_ = json.NewDecoder(r.Body).Decode(&req)

		results := make([]map[string]interface{}, 0, 5)
		for i := 1; i <= 5; i++ {
			results = append(results, map[string]interface{}{
				"title":   fmt.Sprintf("%s %d", req.Query, i),
				"url":     fmt.Sprintf("https://news.example/%s/%d", url.PathEscape(req.Query), i),
				"content": strings.Repeat("Giá vàng SJC tăng mạnh trong phiên sáng. ", 10),
			})
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"query":   req.Query,
			"answer":  "Giá vàng SJC hôm nay quanh mức 120 triệu đồng/lượng.",
			"results": results,
		})
	}))
	t.Cleanup(server.Close)
	return server
}

func writeConfig(t *testing.T, opts stackOptions, redisAddr string) *config.Config {
	t.Helper()
	t.Setenv("TAVILY_API_KEY", "")
	t.Setenv("GEMINI_API_KEY", "")
	t.Setenv("REMOTE_AGENT_URLS", "")

	var b strings.Builder
	fmt.Fprintf(&b, "database:\n  redis:\n    address: %q\n", redisAddr)
	fmt.Fprintf(&b, "apis:\n  web_search:\n    base_url: %q\n    api_key: %q\n    cache_ttl: 60\n", opts.searchServer.URL, opts.searchKey)
	fmt.Fprintf(&b, "coordinator:\n  mode: %s\n", opts.mode)
	fmt.Fprintf(&b, "server:\n  stream_heartbeat: -1\n")
	if len(opts.agentURLs) > 0 {
		b.WriteString("remote_agents:\n  card_timeout: 2000\n  dispatch_timeout: 2000\n  endpoints:\n")
		for _, u := range opts.agentURLs {
			fmt.Fprintf(&b, "    - %q\n", u)
		}
	}

	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(b.String()), 0o600))
	cfg, err := config.LoadFromFile(path)
	require.NoError(t, err)
	return cfg
}

// newStack wires the same components as cmd/research-server with a scripted reasoning service.
func newStack(t *testing.T, opts stackOptions) *stack {
	t.Helper()
	var searches int32
	if opts.searchServer == nil {
		opts.searchServer = tavily(t, &searches)
	}

	mr := miniredis.RunT(t)
	cfg := writeConfig(t, opts, mr.Addr())
	log := logger.NewTestLogger(t)

	rc, err := database.NewRedis(cfg.Database.Redis)
	require.NoError(t, err)
	t.Cleanup(func() { rc.Close() })

	reasoner := reasoning.ReasonerFunc(func(ctx context.Context, req *reasoning.Request) (*reasoning.Response, error) {
		if req.System == "" {
			return &reasoning.Response{Text: opts.synthesized}, nil
		}
		text, err := opts.decide(req.Prompt)
		if err != nil {
			return nil, err
		}
		return &reasoning.Response{Text: text}, nil
	})

	planner := qp.NewPlanner(nil, log)
	searcher := ws.NewHandler(ws.LoadConfig(cfg.APIs.WebSearch), rc.GetClient(), nil, log)
	gate := qg.NewGate(qg.LoadConfig(cfg.Research), log)
	synthesizer := as.NewHandler(as.LoadConfig(cfg.Research), reasoner, nil, log)
	loop := rl.NewLoop(planner, searcher, gate, synthesizer, rl.LoadConfig(cfg.Research), nil, log)

	agentCfg := ra.LoadConfig(cfg.RemoteAgents)
	registry := ra.Initialize(context.Background(), agentCfg, log)
	router := ra.NewRouter(registry, agentCfg, nil, log)

	sessions := session.NewManager(
		session.NewRedisStore(rc.GetClient(), cfg.Session.KeyPrefix, 0),
		cfg.Server.ContextWindow, log,
	)
	server := api.NewServer(api.Dependencies{
		Config:      cfg,
		Coordinator: coordinator.New(cfg.Coordinator.Mode, reasoner, loop, router, nil, log),
		Sessions:    sessions,
		Agents:      registry,
		Redis:       rc,
		Logger:      log,
	})

	httpServer := httptest.NewServer(server.Engine)
	t.Cleanup(httpServer.Close)
	return &stack{server: httpServer, sessions: sessions, searches: &searches}
}

func (s *stack) run(t *testing.T, body map[string]interface{}) []models.StreamEvent {
	t.Helper()
	payload, err := json.Marshal(body)
	require.NoError(t, err)

	resp, err := http.Post(s.server.URL+"/assistants/agent/runs", "application/json", strings.NewReader(string(payload)))
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	require.True(t, strings.HasSuffix(string(raw), "event: end\ndata: [DONE]\n\n"), "stream must end with the end marker")

	var events []models.StreamEvent
	scanner := bufio.NewScanner(strings.NewReader(string(raw)))
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for scanner.Scan() {
		line := scanner.Text()
		if !strings.HasPrefix(line, "data: ") || line == "data: [DONE]" {
			continue
		}
		var ev models.StreamEvent
		require.NoError(t, json.Unmarshal([]byte(strings.TrimPrefix(line, "data: ")), &ev))
		events = append(events, ev)
	}
	assertTerminal(t, events)
	return events
}

func human(content string) map[string]interface{} {
	return map[string]interface{}{"type": "human", "content": content}
}

func ofType(events []models.StreamEvent, eventType models.EventType) []models.StreamEvent {
	var out []models.StreamEvent
	for _, ev := range events {
		if ev.EventType == eventType {
			out = append(out, ev)
		}
	}
	return out
}

// assertTerminal checks the turn ends with one completed finalize_answer followed by one message.
func assertTerminal(t *testing.T, events []models.StreamEvent) {
	t.Helper()
	require.GreaterOrEqual(t, len(events), 2)
	last := events[len(events)-1]
	assert.Equal(t, models.EventMessage, last.EventType)
	assert.Len(t, ofType(events, models.EventMessage), 1)

	prev := events[len(events)-2]
	assert.Equal(t, models.EventFinalizeAnswer, prev.EventType)
	assert.Equal(t, models.StatusCompleted, prev.Data["status"])
	assert.NotEmpty(t, last.Data["content"])
}

// ==========================
// Scenarios
// ==========================

func researchDecision(prompt string) (string, error) {
	if strings.Contains(prompt, "2 + 2") {
		return "2 + 2 = 4", nil
	}
	return `{"action": "web_research_needed", "query": "Giá vàng hôm nay", "reasoning": "giá thay đổi hằng ngày"}`, nil
}

func TestE2E_DirectAnswer(t *testing.T) {
	s := newStack(t, stackOptions{
		mode:      config.CoordinatorModeReasoning,
		searchKey: "tvly-test",
		decide:    researchDecision,
	})

	events := s.run(t, map[string]interface{}{"messages": []interface{}{human("2 + 2 = ?")}})

	assert.Empty(t, ofType(events, models.EventWebResearch))
	assert.Len(t, events, 2)
	assert.Equal(t, "2 + 2 = 4", events[1].Data["content"])
	assert.Equal(t, int32(0), atomic.LoadInt32(s.searches))
}

func TestE2E_TimeSensitiveResearch(t *testing.T) {
	s := newStack(t, stackOptions{
		mode:        config.CoordinatorModeReasoning,
		searchKey:   "tvly-test",
		decide:      researchDecision,
		synthesized: "Giá vàng SJC hôm nay khoảng 120 triệu đồng/lượng.",
	})
	body := map[string]interface{}{"messages": []interface{}{human("Giá vàng hôm nay")}}

	events := s.run(t, body)

	plans := ofType(events, models.EventGenerateQuery)
	require.Len(t, plans, 1)
	queries := plans[0].Data["query_list"].([]interface{})
	assert.Len(t, queries, 3)

	searches := ofType(events, models.EventWebResearch)
	assert.Len(t, searches, 6)

	reflections := ofType(events, models.EventReflection)
	require.Len(t, reflections, 1, "a sufficient first round finalizes immediately")
	assert.Equal(t, true, reflections[0].Data["is_sufficient"])
	assert.Equal(t, 1.0, reflections[0].Data["confidence"])

	finals := ofType(events, models.EventFinalizeAnswer)
	require.Len(t, finals, 2)
	assert.Equal(t, models.StatusSynthesizing, finals[0].Data["status"])

	message := events[len(events)-1]
	content := message.Data["content"].(string)
	assert.True(t, strings.HasPrefix(content, "Giá vàng SJC hôm nay khoảng 120 triệu đồng/lượng."))
	assert.Contains(t, content, "**Nguồn tham khảo:**")

	sources := message.Data["sources"].([]interface{})
	assert.Len(t, sources, 10)
	seen := map[string]bool{}
	for _, raw := range sources {
		u := raw.(map[string]interface{})["url"].(string)
		assert.False(t, seen[u], "duplicate source %s", u)
		seen[u] = true
	}
	assert.Equal(t, int32(3), atomic.LoadInt32(s.searches))

	// The same plan is served from the search cache.
	s.run(t, body)
	assert.Equal(t, int32(3), atomic.LoadInt32(s.searches))
}

func TestE2E_MissingSearchCredentials(t *testing.T) {
	s := newStack(t, stackOptions{
		mode:   config.CoordinatorModeReasoning,
		decide: researchDecision,
	})

	events := s.run(t, map[string]interface{}{
		"messages":           []interface{}{human("Giá vàng hôm nay")},
		"max_research_loops": 2,
	})

	searches := ofType(events, models.EventWebResearch)
	require.NotEmpty(t, searches)
	for _, ev := range searches {
		if ev.Data["status"] == models.StatusFailed {
			assert.Contains(t, ev.Data["error"], "TAVILY_API_KEY not found in environment variables")
		}
	}

	reflections := ofType(events, models.EventReflection)
	require.Len(t, reflections, 2, "insufficient results run every round")
	assert.Equal(t, false, reflections[1].Data["is_sufficient"])

	assert.Empty(t, ofType(events, models.EventError))
	assert.Equal(t, messages.NoResearchFound, events[len(events)-1].Data["content"])
	assert.Equal(t, int32(0), atomic.LoadInt32(s.searches))
}

func TestE2E_ReasoningNotConfigured(t *testing.T) {
	var searches int32
	mr := miniredis.RunT(t)
	opts := stackOptions{mode: config.CoordinatorModeReasoning, searchServer: tavily(t, &searches)}
	cfg := writeConfig(t, opts, mr.Addr())
	log := logger.NewTestLogger(t)

	server := api.NewServer(api.Dependencies{
		Config:      cfg,
		Coordinator: coordinator.New(cfg.Coordinator.Mode, nil, nil, nil, nil, log),
		Sessions:    session.NewManager(session.NewMemoryStore(), 10, log),
		Logger:      log,
	})
	httpServer := httptest.NewServer(server.Engine)
	defer httpServer.Close()

	resp, err := http.Post(httpServer.URL+"/assistants/agent/runs", "application/json",
		strings.NewReader(`{"messages": [{"type": "human", "content": "hi"}]}`))
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)

	health, err := http.Get(httpServer.URL + "/health")
	require.NoError(t, err)
	defer health.Body.Close()
	var body map[string]interface{}
	require.NoError(t, json.NewDecoder(health.Body).Decode(&body))
	assert.Equal(t, false, body["api_key_configured"])
}

// ==========================
// Delegation
// ==========================

type seenMessage struct {
	ContextID string `json:"contextId"`
	Parts     []struct {
		Text string `json:"text"`
	} `json:"parts"`
}

type weatherAgent struct {
	server *httptest.Server
	mu     sync.Mutex
	seen   []seenMessage
}

func newWeatherAgent(t *testing.T) *weatherAgent {
	t.Helper()
	a := &weatherAgent{}
	a.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if r.URL.Path == a2a.WellKnownCardPath {
			_ = json.NewEncoder(w).Encode(map[string]interface{}{
				"name":        "weather_agent",
				"description": "Dự báo thời tiết",
				"url":         a.server.URL + "/rpc",
				"version":     "1.0.0",
			})
			return
		}
		var req struct {
			ID     json.RawMessage `json:"id"`
			Params struct {
				Message seenMessage `json:"message"`
			} `json:"params"`
		}
		_ = json.NewDecoder(r.Body).Decode(&req)
		a.mu.Lock()
		a.seen = append(a.seen, req.Params.Message)
		a.mu.Unlock()

		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"jsonrpc": "2.0",
			"id":      req.ID,
			"result": map[string]interface{}{
				"id":        "remote-task",
				"contextId": "ctx-1",
				"kind":      "task",
				"status":    map[string]interface{}{"state": "completed"},
				"artifacts": []interface{}{
					map[string]interface{}{
						"artifactId": "forecast",
						"parts":      []interface{}{map[string]interface{}{"kind": "text", "text": "Hà Nội nắng, 32°C."}},
					},
				},
			},
		})
	}))
	t.Cleanup(a.server.Close)
	return a
}

func TestE2E_DelegationIsSticky(t *testing.T) {
	agent := newWeatherAgent(t)
	s := newStack(t, stackOptions{
		mode:      config.CoordinatorModeDelegation,
		searchKey: "tvly-test",
		agentURLs: []string{agent.server.URL},
		decide: func(prompt string) (string, error) {
			if strings.Contains(prompt, "ngày mai") {
				return "", errors.New("reasoning service unavailable")
			}
			return `{"action": "send_message", "agent": "weather_agent", "task": "Dự báo thời tiết Hà Nội hôm nay"}`, nil
		},
	})

	first := s.run(t, map[string]interface{}{
		"messages":  []interface{}{human("Thời tiết Hà Nội hôm nay?")},
		"thread_id": "thread-weather",
	})
	calls := ofType(first, models.EventRemoteAgentCall)
	require.Len(t, calls, 2)
	assert.Equal(t, models.StatusSearching, calls[0].Data["status"])
	assert.Equal(t, models.StatusSuccess, calls[1].Data["status"])
	assert.Equal(t, "Hà Nội nắng, 32°C.", first[len(first)-1].Data["content"])

	sess, err := s.sessions.Get(context.Background(), "thread-weather")
	require.NoError(t, err)
	assert.Equal(t, "weather_agent", sess.ActiveAgent)
	assert.Equal(t, "ctx-1", sess.ContextID)
	assert.Empty(t, sess.TaskID, "a completed remote task is not resumed")

	second := s.run(t, map[string]interface{}{
		"messages":  []interface{}{human("Còn ngày mai?")},
		"thread_id": "thread-weather",
	})
	assert.Len(t, ofType(second, models.EventRemoteAgentCall), 2)

	agent.mu.Lock()
	defer agent.mu.Unlock()
	require.Len(t, agent.seen, 2)
	assert.Equal(t, "Còn ngày mai?", agent.seen[1].Parts[0].Text)
	assert.Equal(t, "ctx-1", agent.seen[1].ContextID)
}
