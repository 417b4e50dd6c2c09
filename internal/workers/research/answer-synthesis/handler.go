// internal/workers/research/answer-synthesis/handler.go
package answersynthesis

import (
	"context"
	"errors"
	"math"
	"strings"
	"time"

	apperrors "research-agent/internal/common/errors"
	"research-agent/internal/common/logger"
	"research-agent/internal/common/messages"
	"research-agent/internal/common/metrics"
	"research-agent/internal/common/observability"
	"research-agent/internal/common/reasoning"
	"research-agent/internal/models"

	"go.opentelemetry.io/otel/attribute"
)

const TaskType = "answer-synthesis"

var ErrEmptyAnswer = errors.New("reasoning service returned an empty answer")

// Handler turns accumulated research into one cited answer.
// Synthesize never returns an error; failures become an apology with confidence 0.
type Handler struct {
	config   *Config
	reasoner reasoning.Reasoner
	obs      *observability.Observability
	logger   logger.Logger
	now      func() time.Time
}

func NewHandler(config *Config, reasoner reasoning.Reasoner, obs *observability.Observability, log logger.Logger) *Handler {
	return &Handler{
		config:   config,
		reasoner: reasoner,
		obs:      obs,
		logger: log.With(map[string]interface{}{
			"taskType": TaskType,
		}),
		now: time.Now,
	}
}

// SynthesizeResults synthesizes over the successful results only.
func (h *Handler) SynthesizeResults(ctx context.Context, question string, results []models.ResearchResult) models.Answer {
	return h.Synthesize(ctx, question, CombineContent(results), models.CollectSources(results))
}

func (h *Handler) Synthesize(ctx context.Context, question, content string, sources []models.Source) models.Answer {
	ctx, span := h.obs.StartSpan(ctx, "answersynthesis.synthesize", attribute.Int("sources", len(sources)))
	defer span.End()

	if strings.TrimSpace(content) == "" {
		metrics.Syntheses.WithLabelValues("no_content").Inc()
		return models.Answer{
			Status:  models.ResearchError,
			Text:    messages.NoResearchFound,
			Sources: []models.Source{},
		}
	}

	text, err := h.generate(ctx, question, content)
	if err != nil {
		metrics.Syntheses.WithLabelValues("error").Inc()
		span.RecordError(err)
		h.logger.Error("answer synthesis failed", map[string]interface{}{
			"error": err.Error(),
		})
		return models.Answer{
			Status:  models.ResearchError,
			Text:    messages.SynthesisFailed(apperrors.UserDetail(apperrors.AsStandardError(err))),
			Sources: []models.Source{},
		}
	}

	unique := models.DedupeSources(sources, 0)
	capped := unique
	if len(capped) > h.config.MaxSources {
		capped = capped[:h.config.MaxSources]
	}

	metrics.Syntheses.WithLabelValues("success").Inc()
	h.logger.Info("answer synthesized", map[string]interface{}{
		"uniqueSources": len(unique),
		"answerLength":  len(text),
	})

	return models.Answer{
		Status:     models.ResearchSuccess,
		Text:       text + SourcesFooter(capped),
		Sources:    capped,
		Confidence: Confidence(len(unique)),
	}
}

// Confidence is the presentation confidence for a number of unique sources.
func Confidence(uniqueSources int) float64 {
	return math.Min(1.0, float64(uniqueSources)*0.15+0.4)
}

func (h *Handler) generate(ctx context.Context, question, content string) (string, error) {
	if h.reasoner == nil {
		return "", apperrors.NewReasoningCredentialsMissingError("GEMINI_API_KEY")
	}
	temperature := h.config.Temperature
	resp, err := h.reasoner.Generate(ctx, &reasoning.Request{
		Prompt:      buildPrompt(question, content, h.now()),
		Model:       h.config.Model,
		Temperature: &temperature,
	})
	if err != nil {
		return "", err
	}
	text := strings.TrimSpace(resp.Text)
	if text == "" {
		return "", apperrors.NewSynthesisFailedError(ErrEmptyAnswer)
	}
	return text, nil
}
