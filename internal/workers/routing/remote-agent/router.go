// internal/workers/routing/remote-agent/router.go
package remoteagent

import (
	"context"
	"errors"
	"strings"
	"time"

	apperrors "research-agent/internal/common/errors"
	"research-agent/internal/common/logger"
	"research-agent/internal/common/messages"
	"research-agent/internal/common/metrics"
	"research-agent/internal/common/observability"
	"research-agent/internal/models"
	"research-agent/pkg/a2a"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
)

const TaskType = "remote-agent"

// Dispatch outcomes, used as metric labels.
const (
	OutcomeSuccess     = "success"
	OutcomeUnknown     = "unknown_agent"
	OutcomeUnreachable = "unreachable"
	OutcomeError       = "error"
	OutcomeRejected    = "rejected"
	OutcomeInvalid     = "invalid_response"
)

// Router forwards tasks to registered remote agents. Dispatch is at most
// once: failures become a localized fallback text and are never retried.
type Router struct {
	registry *Registry
	timeout  time.Duration
	obs      *observability.Observability
	logger   logger.Logger
}

func NewRouter(registry *Registry, cfg *Config, obs *observability.Observability, log logger.Logger) *Router {
	return &Router{
		registry: registry,
		timeout:  cfg.DispatchTimeout,
		obs:      obs,
		logger: log.With(map[string]interface{}{
			"taskType": TaskType,
		}),
	}
}

// Dispatch sends task to agentName within the session's task and context.
// It marks the agent active on session, then stores the identifiers the
// agent answered with. The caller must hold the session lock.
func (r *Router) Dispatch(ctx context.Context, agentName, task string, session *models.ConversationSession) models.DispatchResult {
	ctx, span := r.obs.StartSpan(ctx, "remoteagent.dispatch", attribute.String("agent", agentName))
	defer span.End()

	result := models.DispatchResult{Agent: agentName}
	conn, ok := r.registry.connection(agentName)
	if !ok {
		return r.fallback(result, OutcomeUnknown, messages.AgentUnavailable(agentName), nil)
	}

	session.ActiveAgent = agentName
	if conn.client == nil || conn.descriptor.Endpoint == "" {
		return r.fallback(result, OutcomeUnreachable, messages.AgentUnreachable(agentName), nil)
	}

	if session.TaskID == "" {
		session.TaskID = uuid.NewString()
	}
	if session.ContextID == "" {
		session.ContextID = uuid.NewString()
	}

	if r.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}

	start := time.Now()
	reply, err := conn.client.Send(ctx, task, session.TaskID, session.ContextID)
	if err != nil {
		span.RecordError(err)
		stdErr := apperrors.NewRemoteAgentUnavailableError(agentName, err)
		return r.fallback(result, OutcomeError, messages.AgentDispatchError(agentName, err.Error()), stdErr)
	}
	if reply.State == a2a.TaskStateRejected {
		r.track(session, reply)
		return r.fallback(result, OutcomeRejected, messages.AgentRejected(agentName),
			apperrors.NewRemoteAgentBadResponseError(agentName, "task rejected"))
	}

	text := strings.TrimSpace(reply.Text)
	if text == "" {
		return r.fallback(result, OutcomeInvalid, messages.AgentInvalidResponse(agentName),
			apperrors.NewRemoteAgentBadResponseError(agentName, "reply has no text output"))
	}

	r.track(session, reply)
	metrics.RemoteDispatches.WithLabelValues(agentName, OutcomeSuccess).Inc()
	r.logger.Info("remote agent replied", map[string]interface{}{
		"agent":     agentName,
		"taskId":    reply.TaskID,
		"state":     string(reply.State),
		"latencyMs": time.Since(start).Milliseconds(),
	})

	result.Succeeded = true
	result.Text = text
	result.TaskID = reply.TaskID
	result.ContextID = reply.ContextID
	return result
}

// track keeps the remote identifiers for the next turn. A finished task is
// not continued: the next dispatch opens a new task in the same context.
func (r *Router) track(session *models.ConversationSession, reply *a2a.Reply) {
	if reply.ContextID != "" {
		session.ContextID = reply.ContextID
	}
	switch reply.State {
	case a2a.TaskStateCompleted, a2a.TaskStateCanceled, a2a.TaskStateFailed, a2a.TaskStateRejected, "":
		session.TaskID = ""
	default:
		session.TaskID = reply.TaskID
	}
}

func (r *Router) fallback(result models.DispatchResult, outcome, text string, err error) models.DispatchResult {
	metrics.RemoteDispatches.WithLabelValues(result.Agent, outcome).Inc()
	fields := map[string]interface{}{
		"agent":   result.Agent,
		"outcome": outcome,
	}
	var stdErr *apperrors.StandardError
	if errors.As(err, &stdErr) {
		fields["errorCode"] = string(stdErr.Code)
		fields["details"] = stdErr.Details
	}
	r.logger.Warn("remote agent dispatch fell back", fields)

	result.Text = text
	return result
}

// Agents lists the registered agents.
func (r *Router) Agents() []models.AgentDescriptor {
	return r.registry.Descriptors()
}
