package a2a

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type rpcRequest struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id"`
	Method  string          `json:"method"`
	Params  struct {
		Message struct {
			Role      string `json:"role"`
			TaskID    string `json:"taskId"`
			ContextID string `json:"contextId"`
			Parts     []struct {
				Kind string `json:"kind"`
				Text string `json:"text"`
			} `json:"parts"`
		} `json:"message"`
	} `json:"params"`
}

// agentServer answers message/send with the envelope built by respond.
func agentServer(t *testing.T, respond func(req rpcRequest) map[string]interface{}) (*httptest.Server, *rpcRequest) {
	t.Helper()
	var last rpcRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req rpcRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		last = req
		envelope := respond(req)
		envelope["jsonrpc"] = "2.0"
		envelope["id"] = req.ID
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(envelope)
	}))
	t.Cleanup(server.Close)
	return server, &last
}

func result(v map[string]interface{}) func(rpcRequest) map[string]interface{} {
	return func(rpcRequest) map[string]interface{} {
		return map[string]interface{}{"result": v}
	}
}

func textParts(text string) []interface{} {
	return []interface{}{map[string]interface{}{"kind": "text", "text": text}}
}

func TestCardResolver_Resolve(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, WellKnownCardPath, r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"name":"weather_agent","description":"Weather forecasts","skills":[{"id":"forecast","name":"Forecast"}]}`))
	}))
	defer server.Close()

	card, err := NewCardResolver(http.DefaultClient).Resolve(context.Background(), server.URL+"/")
	require.NoError(t, err)
	assert.Equal(t, "weather_agent", card.Name)
	assert.Equal(t, server.URL+"/", card.URL, "missing url falls back to the base address")
	require.Len(t, card.Skills, 1)
	assert.Equal(t, "Forecast", card.Skills[0].Name)

	raw, err := Document(card)
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"weather_agent"`)
}

func TestCardResolver_NonOK(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	_, err := NewCardResolver(http.DefaultClient).Resolve(context.Background(), server.URL)
	assert.Error(t, err)
}

func TestClient_Send(t *testing.T) {
	tests := []struct {
		name    string
		respond func(rpcRequest) map[string]interface{}
		want    Reply
	}{
		{
			name: "task with artifact",
			respond: result(map[string]interface{}{
				"kind": "task", "id": "task-9", "contextId": "ctx-9",
				"status":    map[string]interface{}{"state": "completed"},
				"artifacts": []interface{}{map[string]interface{}{"artifactId": "a1", "parts": textParts("Hà Nội: 31°C, nắng")}},
			}),
			want: Reply{TaskID: "task-9", ContextID: "ctx-9", State: TaskStateCompleted, Text: "Hà Nội: 31°C, nắng"},
		},
		{
			name: "task text from status message",
			respond: result(map[string]interface{}{
				"kind": "task", "id": "task-2", "contextId": "ctx-2",
				"status": map[string]interface{}{
					"state": "input-required",
					"message": map[string]interface{}{
						"kind": "message", "messageId": "m-2", "role": "agent",
						"parts": textParts("Bạn muốn xem thời tiết ở đâu?"),
					},
				},
			}),
			want: Reply{TaskID: "task-2", ContextID: "ctx-2", State: TaskStateInputRequired, Text: "Bạn muốn xem thời tiết ở đâu?"},
		},
		{
			name: "plain message",
			respond: result(map[string]interface{}{
				"kind": "message", "messageId": "m-3", "role": "agent", "contextId": "ctx-3",
				"parts": textParts("Xin chào"),
			}),
			want: Reply{ContextID: "ctx-3", Text: "Xin chào"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server, last := agentServer(t, tt.respond)
			c, err := NewClient(context.Background(), server.URL, http.DefaultClient)
			require.NoError(t, err)

			reply, err := c.Send(context.Background(), "weather in Hanoi", "task-9", "ctx-9")
			require.NoError(t, err)
			assert.Equal(t, tt.want, *reply)

			assert.Equal(t, "2.0", last.JSONRPC)
			assert.Equal(t, "message/send", last.Method)
			assert.Equal(t, "user", last.Params.Message.Role)
			assert.Equal(t, "task-9", last.Params.Message.TaskID)
			assert.Equal(t, "ctx-9", last.Params.Message.ContextID)
			require.Len(t, last.Params.Message.Parts, 1)
			assert.Equal(t, "weather in Hanoi", last.Params.Message.Parts[0].Text)
		})
	}
}

func TestClient_SendRPCError(t *testing.T) {
	server, _ := agentServer(t, func(rpcRequest) map[string]interface{} {
		return map[string]interface{}{"error": map[string]interface{}{"code": -32601, "message": "method not found"}}
	})
	c, err := NewClient(context.Background(), server.URL, http.DefaultClient)
	require.NoError(t, err)

	_, err = c.Send(context.Background(), "hi", "", "")
	assert.Error(t, err)
}
