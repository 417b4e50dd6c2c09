package reasoning

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStripCodeFence(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"plain text", "  Xin chào!  ", "Xin chào!"},
		{"json fence", "```json\n{\"action\":\"web_research_needed\"}\n```", `{"action":"web_research_needed"}`},
		{"bare fence", "```\n[\"a\"]\n```", `["a"]`},
		{"inline fence", "```{\"a\":1}```", `{"a":1}`},
		{"unterminated", "```json\n{\"a\":1}", `{"a":1}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, StripCodeFence(tt.in))
		})
	}
}
