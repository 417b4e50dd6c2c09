// Package messages holds the user-facing (Vietnamese) strings and static
// descriptors returned by the assistant.
package messages

import (
	"fmt"
	"time"
)

const (
	NoQuery         = "Xin lỗi, tôi không nhận được câu hỏi nào từ bạn. Vui lòng đặt câu hỏi để tôi có thể giúp đỡ."
	NoResearchFound = "Xin lỗi, tôi không thể tìm được thông tin để trả lời câu hỏi của bạn."
	UntitledSource  = "Không có tiêu đề"
	SourcesHeading  = "Nguồn tham khảo"
)

const (
	AgentName    = "gemini_research_agent"
	AgentVersion = "1.0.0"
	Framework    = "go_research_agent"
)

// TurnError is the apology sent when a turn aborts.
func TurnError(detail string) string {
	return fmt.Sprintf("Xin lỗi, đã xảy ra lỗi khi tìm kiếm thông tin: %s", detail)
}

// SynthesisFailed is the apology sent when the final answer cannot be generated.
func SynthesisFailed(detail string) string {
	return fmt.Sprintf("Xin lỗi, đã có lỗi xảy ra khi tổng hợp thông tin: %s", detail)
}

// SearchFallbackHeader introduces the summary built from raw search results.
func SearchFallbackHeader(query string) string {
	return fmt.Sprintf("Kết quả tìm kiếm cho '%s':\n\n", query)
}

func AgentUnavailable(agent string) string {
	return fmt.Sprintf("Xin lỗi, agent %s không khả dụng hiện tại. Tôi sẽ cố gắng trả lời câu hỏi của bạn dựa trên kiến thức có sẵn.", agent)
}

func AgentUnreachable(agent string) string {
	return fmt.Sprintf("Xin lỗi, không thể kết nối đến agent %s. Tôi sẽ cố gắng trả lời câu hỏi của bạn dựa trên kiến thức có sẵn.", agent)
}

func AgentRejected(agent string) string {
	return fmt.Sprintf("Xin lỗi, agent %s không thể xử lý yêu cầu. Tôi sẽ cố gắng trả lời câu hỏi của bạn dựa trên kiến thức có sẵn.", agent)
}

func AgentInvalidResponse(agent string) string {
	return fmt.Sprintf("Xin lỗi, agent %s trả về phản hồi không hợp lệ. Tôi sẽ cố gắng trả lời câu hỏi của bạn dựa trên kiến thức có sẵn.", agent)
}

func AgentDispatchError(agent, detail string) string {
	return fmt.Sprintf("Xin lỗi, đã xảy ra lỗi khi kết nối đến agent %s: %s. Tôi sẽ cố gắng trả lời câu hỏi của bạn dựa trên kiến thức có sẵn.", agent, detail)
}

// Capabilities advertised by /health.
var Capabilities = []string{
	"web_search",
	"vietnamese_responses",
	"real_time_information",
	"source_citation",
	"streaming_responses",
}

// Health returns the base health descriptor.
func Health(now time.Time) map[string]interface{} {
	return map[string]interface{}{
		"status":       "healthy",
		"timestamp":    now.Format(time.RFC3339),
		"agent":        AgentName,
		"version":      AgentVersion,
		"framework":    Framework,
		"capabilities": Capabilities,
	}
}

// APIDescription returns the root descriptor.
func APIDescription() map[string]interface{} {
	return map[string]interface{}{
		"name":        "Gemini Research Agent API",
		"description": "AI research assistant with web research, quality-gated refinement and remote agent delegation",
		"version":     AgentVersion,
		"framework":   "Go + Gemini API",
		"features": []string{
			"Real-time web search integration",
			"Vietnamese language support",
			"Streaming responses",
			"Source attribution",
			"Weather and news queries",
			"General knowledge Q&A",
		},
		"endpoints": map[string]string{
			"/assistants/{id}/runs": "Create and stream research responses",
			"/health":               "Health check",
			"/ready":                "Readiness check",
			"/metrics":              "Prometheus metrics",
		},
	}
}

// CurrentDate formats the date the way prompts present it, e.g. "January 2, 2006".
func CurrentDate(now time.Time) string {
	return now.Format("January 2, 2006")
}
