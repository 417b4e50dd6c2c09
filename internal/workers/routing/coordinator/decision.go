// internal/workers/routing/coordinator/decision.go
package coordinator

import (
	"encoding/json"
	"strings"

	"research-agent/internal/common/reasoning"
	"research-agent/internal/models"
)

// Actions recognised in structured coordinator output.
const (
	ActionWebResearch = "web_research_needed"
	ActionDelegate    = "send_message"
	ActionDirect      = "direct_answer"
)

// Decision is the coordinator's routing choice for one turn.
type Decision interface {
	Kind() string
}

// DirectAnswer answers from the reasoning service's own knowledge.
type DirectAnswer struct {
	Text    string
	Sources []models.Source
}

// ResearchDecision runs the research loop for Query.
type ResearchDecision struct {
	Query     string
	Reasoning string
}

// DelegateDecision forwards Task to a remote agent.
type DelegateDecision struct {
	Agent string
	Task  string
}

func (DirectAnswer) Kind() string     { return "direct" }
func (ResearchDecision) Kind() string { return "research" }
func (DelegateDecision) Kind() string { return "delegate" }

type structuredDecision struct {
	Action    string `json:"action"`
	Query     string `json:"query"`
	Reasoning string `json:"reasoning"`
	Agent     string `json:"agent"`
	AgentName string `json:"agent_name"`
	Task      string `json:"task"`
	Answer    string `json:"answer"`
}

// ParseDecision classifies reasoning output. Anything that is not a
// recognised structured decision is a direct answer carrying the raw text.
func ParseDecision(text string) Decision {
	trimmed := strings.TrimSpace(text)
	direct := DirectAnswer{Text: trimmed}

	candidate := reasoning.StripCodeFence(trimmed)
	if !strings.HasPrefix(candidate, "{") {
		start, end := strings.Index(candidate, "{"), strings.LastIndex(candidate, "}")
		if start < 0 || end <= start {
			return direct
		}
		candidate = candidate[start : end+1]
	}

	var sd structuredDecision
	if err := json.Unmarshal([]byte(candidate), &sd); err != nil {
		return direct
	}

	switch strings.TrimSpace(sd.Action) {
	case ActionWebResearch:
		return ResearchDecision{Query: strings.TrimSpace(sd.Query), Reasoning: sd.Reasoning}
	case ActionDelegate, "delegate":
		agent := sd.Agent
		if agent == "" {
			agent = sd.AgentName
		}
		return DelegateDecision{Agent: strings.TrimSpace(agent), Task: strings.TrimSpace(sd.Task)}
	case ActionDirect:
		if strings.TrimSpace(sd.Answer) != "" {
			return DirectAnswer{Text: strings.TrimSpace(sd.Answer)}
		}
	}
	return direct
}
