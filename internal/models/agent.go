package models

// AgentDescriptor identifies a remote agent resolved at startup. Read-only afterwards.
type AgentDescriptor struct {
	Name        string   `json:"name"`
	Description string   `json:"description"`
	Endpoint    string   `json:"endpoint"`
	Version     string   `json:"version,omitempty"`
	Skills      []string `json:"skills,omitempty"`
}

// DispatchResult is the outcome of forwarding a task to a remote agent.
// Text always holds something presentable: the agent's reply or a localized fallback.
type DispatchResult struct {
	Agent     string `json:"agent"`
	Succeeded bool   `json:"succeeded"`
	Text      string `json:"text"`
	TaskID    string `json:"task_id,omitempty"`
	ContextID string `json:"context_id,omitempty"`
}
