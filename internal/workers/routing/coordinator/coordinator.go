// internal/workers/routing/coordinator/coordinator.go
package coordinator

import (
	"context"
	"errors"
	"strings"
	"time"

	"research-agent/internal/common/config"
	apperrors "research-agent/internal/common/errors"
	"research-agent/internal/common/logger"
	"research-agent/internal/common/metrics"
	"research-agent/internal/common/observability"
	"research-agent/internal/common/reasoning"
	"research-agent/internal/models"
	"research-agent/internal/streaming"
	researchloop "research-agent/internal/workers/research/research-loop"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
)

const TaskType = "coordinator"

var errEmptyReply = errors.New("reasoning service returned no text")

type Researcher interface {
	RunWithConfig(ctx context.Context, question string, cfg researchloop.Config, sink streaming.Sink) (*researchloop.Outcome, error)
}

type Dispatcher interface {
	Dispatch(ctx context.Context, agentName, task string, session *models.ConversationSession) models.DispatchResult
	Agents() []models.AgentDescriptor
}

// Turn is one user question with its context.
type Turn struct {
	Question string
	// History is the prior conversation, oldest first.
	History []models.Message
	Session *models.ConversationSession
	Effort  researchloop.Config
	// Model overrides the reasoning model for this turn.
	Model string
}

// Coordinator decides per turn between a direct answer, research and
// delegation, then drives the chosen path into a Sink. Only one strategy is
// active: reasoning (direct or research) or delegation (direct or remote agent).
type Coordinator struct {
	mode       string
	reasoner   reasoning.Reasoner
	researcher Researcher
	dispatcher Dispatcher
	obs        *observability.Observability
	logger     logger.Logger
	now        func() time.Time
}

// New resolves mode: delegation needs at least one registered agent, auto
// picks delegation when agents exist.
func New(mode string, reasoner reasoning.Reasoner, researcher Researcher, dispatcher Dispatcher, obs *observability.Observability, log logger.Logger) *Coordinator {
	c := &Coordinator{
		reasoner:   reasoner,
		researcher: researcher,
		dispatcher: dispatcher,
		obs:        obs,
		logger: log.With(map[string]interface{}{
			"taskType": TaskType,
		}),
		now: time.Now,
	}

	hasAgents := dispatcher != nil && len(dispatcher.Agents()) > 0
	switch {
	case mode == config.CoordinatorModeDelegation && !hasAgents:
		c.logger.Warn("delegation mode without registered agents, using reasoning mode", nil)
		c.mode = config.CoordinatorModeReasoning
	case mode == config.CoordinatorModeAuto && hasAgents, mode == config.CoordinatorModeDelegation:
		c.mode = config.CoordinatorModeDelegation
	default:
		c.mode = config.CoordinatorModeReasoning
	}
	return c
}

func (c *Coordinator) Mode() string {
	return c.mode
}

// Ready reports whether turns can be served.
func (c *Coordinator) Ready() bool {
	return c.reasoner != nil
}

// Decide classifies the turn. Reasoning mode only researches and delegation
// mode only delegates; anything else is answered directly. In delegation mode
// a reasoning failure falls back to the session's active agent when there is one.
func (c *Coordinator) Decide(ctx context.Context, turn Turn) (Decision, error) {
	if c.reasoner == nil {
		return nil, apperrors.NewReasoningCredentialsMissingError("GEMINI_API_KEY")
	}

	system := reasoningSystem(c.now())
	active := c.activeAgent(turn.Session)
	if c.mode == config.CoordinatorModeDelegation {
		system = delegationSystem(c.dispatcher.Agents(), active, c.now())
	}

	resp, err := c.reasoner.Generate(ctx, &reasoning.Request{
		Prompt: conversation(turn.History, turn.Question),
		System: system,
		Model:  turn.Model,
	})
	if err != nil {
		if active != "" {
			c.logger.Warn("decision failed, staying with active agent", map[string]interface{}{
				"agent": active,
				"error": err.Error(),
			})
			return DelegateDecision{Agent: active, Task: turn.Question}, nil
		}
		return nil, err
	}

	decision := ParseDecision(resp.Text)
	switch d := decision.(type) {
	case DirectAnswer:
		d.Sources = resp.Sources
		decision = d
	case DelegateDecision:
		if d.Agent == "" {
			d.Agent = active
		}
		if d.Task == "" {
			d.Task = turn.Question
		}
		decision = d
	case ResearchDecision:
		if d.Query == "" {
			d.Query = turn.Question
		}
		decision = d
	}
	return c.withinMode(decision), nil
}

// withinMode turns a decision the active strategy cannot take into a direct answer.
func (c *Coordinator) withinMode(decision Decision) Decision {
	switch decision.(type) {
	case ResearchDecision:
		if c.mode != config.CoordinatorModeDelegation {
			return decision
		}
	case DelegateDecision:
		if c.mode == config.CoordinatorModeDelegation {
			return decision
		}
	default:
		return decision
	}
	c.logger.Warn("decision not available in coordinator mode, answering directly", map[string]interface{}{
		"decision": decision.Kind(),
		"mode":     c.mode,
	})
	return DirectAnswer{}
}

// Handle runs one turn. It returns an error only when the turn must abort;
// degraded outcomes are delivered as the final response.
func (c *Coordinator) Handle(ctx context.Context, turn Turn, sink streaming.Sink) error {
	ctx, span := c.obs.StartSpan(ctx, "coordinator.handle", attribute.String("mode", c.mode))
	defer span.End()

	decision, err := c.Decide(ctx, turn)
	if err != nil {
		span.RecordError(err)
		return err
	}
	// Delegating to nobody means answering directly.
	if d, ok := decision.(DelegateDecision); ok && (d.Agent == "" || c.dispatcher == nil) {
		decision = DirectAnswer{}
	}
	if d, ok := decision.(ResearchDecision); ok && c.researcher == nil {
		c.logger.Warn("research requested but no research loop configured", map[string]interface{}{
			"query": d.Query,
		})
		decision = DirectAnswer{}
	}

	metrics.CoordinatorDecisions.WithLabelValues(decision.Kind()).Inc()
	span.SetAttributes(attribute.String("decision", decision.Kind()))
	c.logger.Info("coordinator decided", map[string]interface{}{
		"decision": decision.Kind(),
		"session":  sessionID(turn.Session),
	})

	switch d := decision.(type) {
	case ResearchDecision:
		return c.research(ctx, turn, d, sink)
	case DelegateDecision:
		return c.delegate(ctx, turn, d, sink)
	case DirectAnswer:
		if strings.TrimSpace(d.Text) == "" {
			text, sources, err := c.answerDirectly(ctx, turn)
			if err != nil {
				return err
			}
			d = DirectAnswer{Text: text, Sources: sources}
		}
		if err := sink.Send(ctx, streaming.TextDelta{Text: d.Text}); err != nil {
			return err
		}
		return sink.Send(ctx, streaming.FinalResponse{Sources: d.Sources})
	}
	return nil
}

func (c *Coordinator) research(ctx context.Context, turn Turn, d ResearchDecision, sink streaming.Sink) error {
	outcome, err := c.researcher.RunWithConfig(ctx, d.Query, turn.Effort, sink)
	if err != nil {
		return err
	}
	return sink.Send(ctx, streaming.FinalResponse{
		Text:       outcome.Answer.Text,
		Sources:    outcome.Answer.Sources,
		Confidence: outcome.Answer.Confidence,
	})
}

func (c *Coordinator) delegate(ctx context.Context, turn Turn, d DelegateDecision, sink streaming.Sink) error {
	id := uuid.NewString()
	if err := sink.Send(ctx, streaming.ToolCall{
		ID:   id,
		Name: streaming.ToolSendMessage,
		Args: map[string]interface{}{"agent": d.Agent, "task": d.Task},
	}); err != nil {
		return err
	}

	session := turn.Session
	if session == nil {
		session = models.NewConversationSession(uuid.NewString(), "")
	}
	result := c.dispatcher.Dispatch(ctx, d.Agent, d.Task, session)
	if err := sink.Send(ctx, streaming.ToolResult{ID: id, Name: streaming.ToolSendMessage, Output: result}); err != nil {
		return err
	}

	text := result.Text
	if !result.Succeeded {
		// The fallback tells the user we answer from our own knowledge; do so.
		if answer, _, err := c.answerDirectly(ctx, turn); err == nil {
			text = result.Text + "\n\n" + answer
		} else {
			c.logger.Warn("direct answer after failed delegation failed", map[string]interface{}{
				"agent": d.Agent,
				"error": err.Error(),
			})
		}
	}
	return sink.Send(ctx, streaming.FinalResponse{Text: text})
}

func (c *Coordinator) answerDirectly(ctx context.Context, turn Turn) (string, []models.Source, error) {
	resp, err := c.reasoner.Generate(ctx, &reasoning.Request{
		Prompt: conversation(turn.History, turn.Question),
		System: directSystem(c.now()),
		Model:  turn.Model,
	})
	if err != nil {
		return "", nil, err
	}
	if strings.TrimSpace(resp.Text) == "" {
		return "", nil, apperrors.NewReasoningError(errEmptyReply)
	}
	return resp.Text, resp.Sources, nil
}

func (c *Coordinator) activeAgent(session *models.ConversationSession) string {
	if session == nil || session.ActiveAgent == "" || c.mode != config.CoordinatorModeDelegation {
		return ""
	}
	for _, a := range c.dispatcher.Agents() {
		if a.Name == session.ActiveAgent {
			return a.Name
		}
	}
	return ""
}

func sessionID(s *models.ConversationSession) string {
	if s == nil {
		return ""
	}
	return s.SessionID
}
