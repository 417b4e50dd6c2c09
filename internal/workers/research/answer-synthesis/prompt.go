// internal/workers/research/answer-synthesis/prompt.go
package answersynthesis

import (
	"fmt"
	"strings"
	"time"

	"research-agent/internal/common/messages"
	"research-agent/internal/models"
)

const synthesisTemplate = `Based on the research findings below, provide a comprehensive answer to the user's question.

User Question: %s
Current Date: %s

Research Findings:
%s

Instructions:
- Provide a clear, accurate answer in Vietnamese
- Include relevant details and context
- Cite sources when possible
- Be informative but concise
- If the question is about current events or weather, emphasize the most recent information`

func buildPrompt(question, content string, now time.Time) string {
	return fmt.Sprintf(synthesisTemplate, question, messages.CurrentDate(now), content)
}

// CombineContent joins the content of successful results, one per line.
func CombineContent(results []models.ResearchResult) string {
	parts := make([]string, 0, len(results))
	for _, r := range results {
		if r.Succeeded() && strings.TrimSpace(r.Content) != "" {
			parts = append(parts, r.Content)
		}
	}
	return strings.Join(parts, "\n")
}

// SourcesFooter renders sources as a numbered markdown link list.
func SourcesFooter(sources []models.Source) string {
	if len(sources) == 0 {
		return ""
	}
	var b strings.Builder
	b.WriteString("\n\n**")
	b.WriteString(messages.SourcesHeading)
	b.WriteString(":**\n")
	for i, s := range sources {
		title := s.Title
		if title == "" {
			title = messages.UntitledSource
		}
		fmt.Fprintf(&b, "%d. [%s](%s)\n", i+1, title, s.URL)
	}
	return b.String()
}
