package models

import "time"

// EventType is the client-facing stream vocabulary.
type EventType string

const (
	EventGenerateQuery   EventType = "generate_query"
	EventWebResearch     EventType = "web_research"
	EventReflection      EventType = "reflection"
	EventFinalizeAnswer  EventType = "finalize_answer"
	EventRemoteAgentCall EventType = "remote_agent_call"
	EventMessage         EventType = "message"
	EventError           EventType = "error"
)

// Status values carried in event data.
const (
	StatusSearching    = "searching"
	StatusSuccess      = "success"
	StatusCompleted    = "completed"
	StatusSynthesizing = "synthesizing"
	StatusFailed       = "failed"
)

// StreamEvent is the only unit sent to clients.
type StreamEvent struct {
	EventType EventType              `json:"event_type"`
	Data      map[string]interface{} `json:"data"`
	MessageID string                 `json:"message_id,omitempty"`
	Timestamp string                 `json:"timestamp"`
}

// NewStreamEvent stamps an event with the current time.
func NewStreamEvent(eventType EventType, data map[string]interface{}, messageID string) StreamEvent {
	if data == nil {
		data = map[string]interface{}{}
	}
	return StreamEvent{
		EventType: eventType,
		Data:      data,
		MessageID: messageID,
		Timestamp: time.Now().UTC().Format(time.RFC3339Nano),
	}
}
