// Package streaming turns the events produced while a turn runs into the
// client-facing StreamEvent vocabulary and writes them as server-sent events.
package streaming

import (
	"context"

	"research-agent/internal/models"
)

// Tool names used by producers in ToolCall and ToolResult events.
const (
	ToolPlanQueries   = "plan_queries"
	ToolWebResearch   = "web_research"
	ToolAssessQuality = "assess_quality"
	ToolSynthesize    = "synthesize"
	ToolSendMessage   = "send_message"
)

// Event is an upstream event emitted by the coordinator, the research loop or
// the remote agent router.
type Event interface {
	isEvent()
}

// TextDelta is a chunk of directly generated answer text.
type TextDelta struct {
	Text string
}

// ToolCall announces a tool invocation. Args depend on Name:
// web_research takes {"query"}, send_message takes {"agent", "task"}.
type ToolCall struct {
	ID   string
	Name string
	Args map[string]interface{}
}

// ToolResult carries the typed output of a tool:
//
//	plan_queries   []string
//	web_research   models.ResearchResult
//	assess_quality models.Reflection
//	synthesize     models.Answer
//	send_message   models.DispatchResult
type ToolResult struct {
	ID     string
	Name   string
	Output interface{}
}

// Escalation aborts the turn. Message is the localized text shown to the user.
type Escalation struct {
	Err     error
	Message string
}

// FinalResponse closes a successful turn. An empty Text falls back to the
// accumulated TextDelta chunks.
type FinalResponse struct {
	Text       string
	Sources    []models.Source
	Confidence float64
}

func (TextDelta) isEvent()     {}
func (ToolCall) isEvent()      {}
func (ToolResult) isEvent()    {}
func (Escalation) isEvent()    {}
func (FinalResponse) isEvent() {}

// Sink receives upstream events in order.
type Sink interface {
	Send(ctx context.Context, event Event) error
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(ctx context.Context, event Event) error

func (f SinkFunc) Send(ctx context.Context, event Event) error {
	return f(ctx, event)
}

// Discard drops every event.
var Discard Sink = SinkFunc(func(context.Context, Event) error { return nil })

// Recorder keeps every event it receives. Not safe for concurrent use.
type Recorder struct {
	Events []Event
}

func (r *Recorder) Send(_ context.Context, event Event) error {
	r.Events = append(r.Events, event)
	return nil
}
