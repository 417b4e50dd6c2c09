// internal/streaming/normalizer.go
package streaming

import (
	"context"
	"fmt"
	"strings"
	"sync"

	apperrors "research-agent/internal/common/errors"
	"research-agent/internal/common/logger"
	"research-agent/internal/common/messages"
	"research-agent/internal/models"

	"github.com/google/uuid"
)

// Emitter delivers client-facing events, e.g. an SSE connection.
type Emitter interface {
	Emit(ctx context.Context, event models.StreamEvent) error
}

// EmitterFunc adapts a function to Emitter.
type EmitterFunc func(ctx context.Context, event models.StreamEvent) error

func (f EmitterFunc) Emit(ctx context.Context, event models.StreamEvent) error {
	return f(ctx, event)
}

// Normalizer maps the upstream events of one turn onto the client vocabulary.
// It guarantees the turn ends with exactly one terminal message, preceded by
// a completed finalize_answer. Terminal events ignore the cancellation of the
// producer's context. Events arriving after the terminal message and payloads
// of the wrong shape are dropped.
type Normalizer struct {
	mu           sync.Mutex
	out          Emitter
	logger       logger.Logger
	messageID    string
	text         strings.Builder
	sources      []models.Source
	answer       *models.Answer
	synthesizing bool
	done         bool
}

func NewNormalizer(out Emitter, log logger.Logger) *Normalizer {
	return &Normalizer{
		out:       out,
		logger:    logger.ForComponent(log, "stream-normalizer"),
		messageID: "msg_" + uuid.NewString(),
	}
}

// MessageID identifies the assistant message of this turn.
func (n *Normalizer) MessageID() string {
	return n.messageID
}

// Done reports whether the terminal message has been emitted.
func (n *Normalizer) Done() bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.done
}

// Send implements Sink.
func (n *Normalizer) Send(ctx context.Context, event Event) error {
	n.mu.Lock()
	defer n.mu.Unlock()

	if n.done {
		n.logger.Debug("dropping event after terminal message", map[string]interface{}{
			"event": fmt.Sprintf("%T", event),
		})
		return nil
	}

	switch ev := event.(type) {
	case TextDelta:
		n.text.WriteString(ev.Text)
		return nil
	case ToolCall:
		return n.toolCall(ctx, ev)
	case ToolResult:
		return n.toolResult(ctx, ev)
	case Escalation:
		return n.fail(ctx, ev.Message)
	case FinalResponse:
		return n.complete(ctx, ev)
	default:
		n.ignore("unknown event", fmt.Sprintf("%T", event))
		return nil
	}
}

// Finish terminates the turn if no producer did. A non-nil err takes the
// error path with a localized apology.
func (n *Normalizer) Finish(ctx context.Context, err error) error {
	n.mu.Lock()
	defer n.mu.Unlock()

	if n.done {
		return nil
	}
	if err != nil {
		return n.fail(ctx, messages.TurnError(apperrors.UserDetail(apperrors.AsStandardError(err))))
	}
	return n.complete(ctx, FinalResponse{})
}

func (n *Normalizer) toolCall(ctx context.Context, ev ToolCall) error {
	switch ev.Name {
	case ToolWebResearch:
		query, ok := ev.Args["query"].(string)
		if !ok {
			n.ignore("web_research call without query", ev.ID)
			return nil
		}
		return n.emit(ctx, models.EventWebResearch, map[string]interface{}{
			"query":            query,
			"sources_gathered": []models.Source{},
			"status":           models.StatusSearching,
		})
	case ToolSendMessage:
		agent, ok := ev.Args["agent"].(string)
		if !ok {
			n.ignore("send_message call without agent", ev.ID)
			return nil
		}
		return n.emit(ctx, models.EventRemoteAgentCall, map[string]interface{}{
			"agent":  agent,
			"status": models.StatusSearching,
		})
	case ToolSynthesize:
		if n.synthesizing {
			return nil
		}
		n.synthesizing = true
		return n.emit(ctx, models.EventFinalizeAnswer, map[string]interface{}{
			"status": models.StatusSynthesizing,
		})
	case ToolPlanQueries, ToolAssessQuality:
		return nil
	default:
		n.ignore("unknown tool call", ev.Name)
		return nil
	}
}

func (n *Normalizer) toolResult(ctx context.Context, ev ToolResult) error {
	switch out := ev.Output.(type) {
	case []string:
		if ev.Name != ToolPlanQueries {
			break
		}
		return n.emit(ctx, models.EventGenerateQuery, map[string]interface{}{
			"query_list": out,
		})
	case models.ResearchResult:
		if ev.Name != ToolWebResearch {
			break
		}
		data := map[string]interface{}{
			"query":            out.Query,
			"sources_gathered": nonNil(out.Sources),
			"status":           models.StatusSuccess,
		}
		if out.Succeeded() {
			n.sources = append(n.sources, out.Sources...)
		} else {
			data["status"] = models.StatusFailed
			data["error"] = out.Error
		}
		return n.emit(ctx, models.EventWebResearch, data)
	case models.Reflection:
		if ev.Name != ToolAssessQuality {
			break
		}
		a := out.Assessment
		followUps := out.FollowUpQueries
		if followUps == nil {
			followUps = []string{}
		}
		return n.emit(ctx, models.EventReflection, map[string]interface{}{
			"is_sufficient":     a.Status == models.QualitySufficient,
			"confidence":        a.Confidence,
			"recommendation":    a.Recommendation,
			"total_sources":     a.TotalSources,
			"research_loop":     out.Round,
			"follow_up_queries": followUps,
		})
	case models.Answer:
		if ev.Name != ToolSynthesize {
			break
		}
		n.answer = &out
		return nil
	case models.DispatchResult:
		if ev.Name != ToolSendMessage {
			break
		}
		status := models.StatusSuccess
		if !out.Succeeded {
			status = models.StatusFailed
		}
		return n.emit(ctx, models.EventRemoteAgentCall, map[string]interface{}{
			"agent":      out.Agent,
			"status":     status,
			"task_id":    out.TaskID,
			"context_id": out.ContextID,
		})
	}
	n.ignore("unexpected tool result", fmt.Sprintf("%s/%T", ev.Name, ev.Output))
	return nil
}

func (n *Normalizer) complete(ctx context.Context, ev FinalResponse) error {
	ctx = context.WithoutCancel(ctx)
	text := ev.Text
	if text == "" {
		text = n.text.String()
	}
	sources := ev.Sources
	confidence := ev.Confidence
	if n.answer != nil {
		if text == "" {
			text = n.answer.Text
		}
		if len(sources) == 0 {
			sources = n.answer.Sources
		}
		if confidence == 0 {
			confidence = n.answer.Confidence
		}
	} else if len(sources) == 0 {
		sources = models.DedupeSources(n.sources, 0)
	}
	if strings.TrimSpace(text) == "" {
		text = messages.NoResearchFound
	}

	n.done = true
	if err := n.emit(ctx, models.EventFinalizeAnswer, map[string]interface{}{
		"answer":     text,
		"sources":    nonNil(sources),
		"confidence": confidence,
		"status":     models.StatusCompleted,
	}); err != nil {
		return err
	}
	return n.message(ctx, text, sources)
}

func (n *Normalizer) fail(ctx context.Context, message string) error {
	ctx = context.WithoutCancel(ctx)
	n.done = true
	if err := n.emit(ctx, models.EventError, map[string]interface{}{
		"message": message,
	}); err != nil {
		return err
	}
	if err := n.emit(ctx, models.EventFinalizeAnswer, map[string]interface{}{
		"answer":     message,
		"sources":    []models.Source{},
		"confidence": 0.0,
		"status":     models.StatusCompleted,
	}); err != nil {
		return err
	}
	return n.message(ctx, message, nil)
}

func (n *Normalizer) message(ctx context.Context, content string, sources []models.Source) error {
	return n.emit(ctx, models.EventMessage, map[string]interface{}{
		"type":    models.MessageTypeAI,
		"content": content,
		"id":      n.messageID,
		"sources": nonNil(sources),
	})
}

func (n *Normalizer) emit(ctx context.Context, eventType models.EventType, data map[string]interface{}) error {
	return n.out.Emit(ctx, models.NewStreamEvent(eventType, data, n.messageID))
}

func (n *Normalizer) ignore(reason, detail string) {
	n.logger.Debug("ignoring upstream payload", map[string]interface{}{
		"reason": reason,
		"detail": detail,
	})
}

func nonNil(sources []models.Source) []models.Source {
	if sources == nil {
		return []models.Source{}
	}
	return sources
}
