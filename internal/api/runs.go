// internal/api/runs.go
package api

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	apperrors "research-agent/internal/common/errors"
	"research-agent/internal/common/messages"
	"research-agent/internal/common/metrics"
	"research-agent/internal/common/validation"
	"research-agent/internal/models"
	"research-agent/internal/streaming"
	researchloop "research-agent/internal/workers/research/research-loop"
	"research-agent/internal/workers/routing/coordinator"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
)

// SessionHeader selects the conversation session when the body has no thread_id.
const SessionHeader = "X-Session-ID"

// RunRequest is the body of POST /assistants/{id}/runs.
type RunRequest struct {
	Messages                []models.Message `json:"messages"`
	InitialSearchQueryCount int              `json:"initial_search_query_count,omitempty"`
	MaxResearchLoops        int              `json:"max_research_loops,omitempty"`
	ReasoningModel          string           `json:"reasoning_model,omitempty"`
	ThreadID                string           `json:"thread_id,omitempty"`
	UserID                  string           `json:"user_id,omitempty"`
}

// Question returns the content of the last human message and the messages
// before it, capped to the newest window entries.
func (r RunRequest) Question(window int) (string, []models.Message) {
	for i := len(r.Messages) - 1; i >= 0; i-- {
		m := r.Messages[i]
		if m.Type != models.MessageTypeHuman || strings.TrimSpace(m.Content) == "" {
			continue
		}
		history := r.Messages[:i]
		if window > 0 && len(history) > window {
			history = history[len(history)-window:]
		}
		return strings.TrimSpace(m.Content), append([]models.Message(nil), history...)
	}
	return "", nil
}

func (s *Server) createRun(c *gin.Context) {
	body, err := c.GetRawData()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": messages.NoQuery})
		return
	}
	if len(strings.TrimSpace(string(body))) == 0 {
		body = []byte("{}")
	}

	if result := validation.ValidateRunRequest(body); !result.Valid {
		stdErr := apperrors.NewInvalidRequestError(result.Summary())
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   stdErr.Message,
			"code":    stdErr.Code,
			"details": result.Errors,
		})
		return
	}

	var req RunRequest
	if err := json.Unmarshal(body, &req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": messages.NoQuery})
		return
	}

	question, history := req.Question(s.cfg.Server.ContextWindow)
	if question == "" {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": messages.NoQuery,
			"code":  apperrors.ErrCodeNoQuery,
		})
		return
	}

	if !s.coordinator.Ready() {
		stdErr := apperrors.NewReasoningCredentialsMissingError("GEMINI_API_KEY")
		s.logger.Error("run rejected: reasoning service not configured", map[string]interface{}{
			"code": stdErr.Code,
		})
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"error": messages.TurnError(apperrors.UserDetail(stdErr)),
			"code":  stdErr.Code,
		})
		return
	}

	sessionID := req.ThreadID
	if sessionID == "" {
		sessionID = c.GetHeader(SessionHeader)
	}
	if sessionID == "" {
		sessionID = uuid.NewString()
	}

	out, err := streaming.NewSSEWriter(c.Writer)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.Header(SessionHeader, sessionID)

	s.stream(c.Request.Context(), out, req, question, history, sessionID)
}

// stream runs the turn under the session lock and always terminates the SSE body.
func (s *Server) stream(ctx context.Context, out *streaming.SSEWriter, req RunRequest, question string, history []models.Message, sessionID string) {
	start := time.Now()
	metrics.TurnsActive.Inc()
	defer metrics.TurnsActive.Dec()

	ctx, span := s.obs.StartSpan(ctx, "api.run",
		attribute.String("session_id", sessionID),
		attribute.String("mode", s.coordinator.Mode()),
	)
	defer span.End()

	if timeout := s.cfg.Server.TurnTimeout; timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, time.Duration(timeout)*time.Millisecond)
		defer cancel()
	}

	if err := out.Open(); err != nil {
		s.logger.Warn("failed to open stream", map[string]interface{}{"error": err.Error()})
		return
	}

	pingCtx, stopPing := context.WithCancel(ctx)
	defer stopPing()
	go out.KeepAlive(pingCtx, time.Duration(s.cfg.Server.StreamHeartbeat)*time.Millisecond)

	capture := &answerCapture{next: out}
	normalizer := streaming.NewNormalizer(capture, s.logger)
	fields := map[string]interface{}{
		"session_id": sessionID,
		"message_id": normalizer.MessageID(),
	}

	// Terminal events are delivered even after the turn deadline.
	tail := context.WithoutCancel(ctx)
	status := "success"
	err := s.sessions.WithSession(ctx, sessionID, req.UserID, func(sess *models.ConversationSession) error {
		if len(history) == 0 {
			history = sess.History
		}
		effort := researchloop.LoadConfig(s.cfg.Research.WithEffort(req.InitialSearchQueryCount, req.MaxResearchLoops))

		turnErr := s.coordinator.Handle(ctx, coordinator.Turn{
			Question: question,
			History:  history,
			Session:  sess,
			Effort:   effort,
			Model:    req.ReasoningModel,
		}, normalizer)
		if turnErr != nil {
			status = "error"
			s.escalate(tail, normalizer, turnErr, fields)
		}
		if err := normalizer.Finish(tail, nil); err != nil {
			return err
		}

		sess.AppendHistory(s.sessions.HistoryLimit(),
			models.Message{Type: models.MessageTypeHuman, Content: question},
			models.Message{Type: models.MessageTypeAI, Content: capture.answer, ID: normalizer.MessageID()},
		)
		return nil
	})
	if err != nil && !normalizer.Done() {
		status = "error"
		s.escalate(tail, normalizer, err, fields)
	} else if err != nil {
		s.logger.Warn("turn finished with stream error", map[string]interface{}{
			"session_id": sessionID,
			"error":      err.Error(),
		})
	}

	stopPing()
	if err := out.Close(); err != nil {
		s.logger.Debug("failed to close stream", map[string]interface{}{"error": err.Error()})
	}

	route := s.coordinator.Mode()
	metrics.TurnsCompleted.WithLabelValues(route).Inc()
	metrics.TurnDuration.WithLabelValues(route).Observe(time.Since(start).Seconds())
	s.obs.RecordTurn(ctx, route, status, time.Since(start))
}

func (s *Server) escalate(ctx context.Context, n *streaming.Normalizer, err error, fields map[string]interface{}) {
	stdErr, message := s.errors.Handle(err, fields)
	if sendErr := n.Send(ctx, streaming.Escalation{Err: stdErr, Message: message}); sendErr != nil {
		s.logger.Debug("failed to deliver error event", map[string]interface{}{"error": sendErr.Error()})
	}
}

func (s *Server) getRun(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"run_id":       c.Param("run_id"),
		"assistant_id": c.Param("assistant_id"),
		"status":       "completed",
		"created_at":   s.now().UTC().Format(time.RFC3339),
	})
}

func (s *Server) cancelRun(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"run_id":       c.Param("run_id"),
		"status":       "cancelled",
		"cancelled_at": s.now().UTC().Format(time.RFC3339),
	})
}

// answerCapture records the terminal message text for the session history.
type answerCapture struct {
	next   streaming.Emitter
	answer string
}

func (a *answerCapture) Emit(ctx context.Context, event models.StreamEvent) error {
	if event.EventType == models.EventMessage {
		if content, ok := event.Data["content"].(string); ok {
			a.answer = content
		}
	}
	return a.next.Emit(ctx, event)
}
