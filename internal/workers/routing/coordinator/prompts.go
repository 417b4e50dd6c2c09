// internal/workers/routing/coordinator/prompts.go
package coordinator

import (
	"fmt"
	"strings"
	"time"

	"research-agent/internal/common/messages"
	"research-agent/internal/models"
)

const reasoningInstruction = `Bạn là một AI coordinator. Hãy phân tích câu hỏi của người dùng và quyết định cách trả lời phù hợp nhất.

Trả lời trực tiếp bằng văn bản tự nhiên (tiếng Việt) khi thông tin không thay đổi theo thời gian: chào hỏi, thông tin cá nhân người dùng đã cung cấp, toán cơ bản, kiến thức ổn định.

Khi câu hỏi cần thông tin thời gian thực hoặc mới nhất (thời tiết, giá cả, tin tức, sự kiện hiện tại), chỉ trả về JSON:
{"action": "web_research_needed", "query": "câu hỏi gốc của người dùng", "reasoning": "lý do ngắn gọn"}

Ví dụ:
- "2 + 2 bằng mấy?" -> trả lời trực tiếp
- "Thủ đô của Việt Nam là gì?" -> trả lời trực tiếp
- "Thời tiết Hà Nội hôm nay như thế nào?" -> JSON
- "Giá vàng hiện tại" -> JSON

Ngày hiện tại: %s`

const delegationInstruction = `Bạn là trợ lý AI có thể tự trả lời hoặc giao việc cho các agent chuyên biệt.

Tự trả lời trực tiếp bằng văn bản tự nhiên (tiếng Việt) khi câu hỏi có thể trả lời bằng kiến thức sẵn có.
Khi một agent phù hợp hơn, chỉ trả về JSON:
{"action": "send_message", "agent": "tên agent", "task": "mô tả đầy đủ nhiệm vụ kèm ngữ cảnh cần thiết"}

Nếu đã có agent đang hoạt động, tiếp tục gửi các yêu cầu liên quan cho agent đó.

Các agent khả dụng:
%s
Agent đang hoạt động: %s
Ngày hiện tại: %s`

const directInstruction = `Bạn là trợ lý AI hữu ích. Trả lời câu hỏi của người dùng bằng tiếng Việt, rõ ràng và chính xác, dựa trên kiến thức sẵn có.
Ngày hiện tại: %s`

func reasoningSystem(now time.Time) string {
	return fmt.Sprintf(reasoningInstruction, messages.CurrentDate(now))
}

func delegationSystem(agents []models.AgentDescriptor, active string, now time.Time) string {
	var roster strings.Builder
	for _, a := range agents {
		fmt.Fprintf(&roster, "- %s: %s\n", a.Name, a.Description)
	}
	if active == "" {
		active = "None"
	}
	return fmt.Sprintf(delegationInstruction, roster.String(), active, messages.CurrentDate(now))
}

func directSystem(now time.Time) string {
	return fmt.Sprintf(directInstruction, messages.CurrentDate(now))
}

// conversation renders prior messages followed by the question.
func conversation(history []models.Message, question string) string {
	if len(history) == 0 {
		return question
	}
	var b strings.Builder
	b.WriteString("Lịch sử hội thoại:\n")
	for _, m := range history {
		role := "Người dùng"
		if m.Type == models.MessageTypeAI {
			role = "Trợ lý"
		}
		fmt.Fprintf(&b, "%s: %s\n", role, m.Content)
	}
	b.WriteString("\nCâu hỏi hiện tại: ")
	b.WriteString(question)
	return b.String()
}
