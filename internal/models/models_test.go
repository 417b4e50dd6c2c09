package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDedupeSources(t *testing.T) {
	in := []Source{
		{Title: "a", URL: "https://a"},
		{Title: "b", URL: "https://b"},
		{Title: "a2", URL: "https://a"},
		{Title: "c", URL: "https://c"},
	}

	tests := []struct {
		name  string
		limit int
		want  []string
	}{
		{"no limit", 0, []string{"https://a", "https://b", "https://c"}},
		{"capped", 2, []string{"https://a", "https://b"}},
		{"limit above size", 10, []string{"https://a", "https://b", "https://c"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := DedupeSources(in, tt.limit)
			var urls []string
			for _, s := range out {
				urls = append(urls, s.URL)
			}
			assert.Equal(t, tt.want, urls)
		})
	}

	assert.Equal(t, "a", DedupeSources(in, 0)[0].Title, "first occurrence wins")
}

func TestDedupeSources_Idempotent(t *testing.T) {
	once := DedupeSources([]Source{
		{URL: "https://x"}, {URL: "https://y"}, {URL: "https://x"}, {URL: "https://z"},
	}, 0)
	assert.Equal(t, once, DedupeSources(once, 0))
}

func TestCollectSources_SkipsFailedResults(t *testing.T) {
	results := []ResearchResult{
		{Status: ResearchSuccess, Sources: []Source{{URL: "https://a"}}},
		{Status: ResearchError, Sources: []Source{{URL: "https://bad"}}},
		{Status: ResearchSuccess, Sources: []Source{{URL: "https://b"}}},
	}
	out := CollectSources(results)
	assert.Len(t, out, 2)
	assert.Equal(t, "https://b", out[1].URL)
}

func TestConversationSession_AppendHistoryKeepsNewest(t *testing.T) {
	s := NewConversationSession("s1", "u1")
	s.AppendHistory(2,
		Message{Type: MessageTypeHuman, Content: "1"},
		Message{Type: MessageTypeAI, Content: "2"},
		Message{Type: MessageTypeHuman, Content: "3"},
	)
	assert.Equal(t, []Message{
		{Type: MessageTypeAI, Content: "2"},
		{Type: MessageTypeHuman, Content: "3"},
	}, s.History)
	assert.False(t, s.CreatedAt.IsZero())
}

func TestNewStreamEvent_DefaultsData(t *testing.T) {
	ev := NewStreamEvent(EventMessage, nil, "")
	assert.NotNil(t, ev.Data)
	assert.NotEmpty(t, ev.Timestamp)
}
