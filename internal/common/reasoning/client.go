// internal/common/reasoning/client.go
package reasoning

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"research-agent/internal/common/config"
	apperrors "research-agent/internal/common/errors"
	"research-agent/internal/common/logger"
	"research-agent/internal/models"

	"google.golang.org/genai"
)

// Request is one generation call.
type Request struct {
	Prompt string
	System string
	// Model overrides the configured model when set.
	Model       string
	Temperature *float32
	// Grounded enables the provider's own web search tool.
	Grounded bool
}

// Response is the generated text plus any grounding citations.
type Response struct {
	Text    string
	Sources []models.Source
	Model   string
}

// Reasoner is the reasoning/completion service boundary.
type Reasoner interface {
	Generate(ctx context.Context, req *Request) (*Response, error)
}

// ReasonerFunc adapts a function to Reasoner.
type ReasonerFunc func(ctx context.Context, req *Request) (*Response, error)

func (f ReasonerFunc) Generate(ctx context.Context, req *Request) (*Response, error) {
	return f(ctx, req)
}

// GeminiClient implements Reasoner over the Gemini API.
type GeminiClient struct {
	client      *genai.Client
	model       string
	temperature float32
	timeout     time.Duration
	logger      logger.Logger
}

// Options tweak client construction. BaseURL points the SDK at a different host.
type Options struct {
	BaseURL string
}

func NewGeminiClient(ctx context.Context, cfg config.GenAIConfig, log logger.Logger, opts ...Options) (*GeminiClient, error) {
	if cfg.APIKey == "" {
		return nil, apperrors.NewReasoningCredentialsMissingError("GEMINI_API_KEY")
	}

	clientCfg := &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	}
	for _, o := range opts {
		if o.BaseURL != "" {
			clientCfg.HTTPOptions = genai.HTTPOptions{BaseURL: o.BaseURL}
		}
	}

	client, err := genai.NewClient(ctx, clientCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}

	log.Info("reasoning client initialized", map[string]interface{}{
		"model":       cfg.Model,
		"temperature": cfg.Temperature,
	})

	return &GeminiClient{
		client:      client,
		model:       cfg.Model,
		temperature: float32(cfg.Temperature),
		timeout:     config.GetDuration(cfg.Timeout),
		logger:      logger.ForComponent(log, "reasoning"),
	}, nil
}

func (c *GeminiClient) Generate(ctx context.Context, req *Request) (*Response, error) {
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	model := c.model
	if req.Model != "" {
		model = req.Model
	}

	genCfg := &genai.GenerateContentConfig{}
	if req.Temperature != nil {
		genCfg.Temperature = req.Temperature
	} else {
		temp := c.temperature
		genCfg.Temperature = &temp
	}
	if req.System != "" {
		genCfg.SystemInstruction = genai.NewContentFromText(req.System, genai.RoleUser)
	}
	if req.Grounded {
		genCfg.Tools = []*genai.Tool{{GoogleSearch: &genai.GoogleSearch{}}}
	}

	start := time.Now()
	result, err := c.client.Models.GenerateContent(ctx, model, genai.Text(req.Prompt), genCfg)
	if err != nil {
		c.logger.Warn("generation failed", map[string]interface{}{
			"model": model,
			"error": err.Error(),
		})
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil, apperrors.NewReasoningTimeoutError(err)
		}
		return nil, apperrors.NewReasoningError(err)
	}

	resp := &Response{
		Text:    strings.TrimSpace(result.Text()),
		Sources: groundingSources(result),
		Model:   model,
	}

	c.logger.Debug("generation completed", map[string]interface{}{
		"model":           model,
		"response_length": len(resp.Text),
		"sources":         len(resp.Sources),
		"duration_ms":     time.Since(start).Milliseconds(),
	})
	return resp, nil
}

func groundingSources(result *genai.GenerateContentResponse) []models.Source {
	if result == nil || len(result.Candidates) == 0 {
		return nil
	}
	meta := result.Candidates[0].GroundingMetadata
	if meta == nil {
		return nil
	}

	var sources []models.Source
	for _, chunk := range meta.GroundingChunks {
		if chunk == nil || chunk.Web == nil || chunk.Web.URI == "" {
			continue
		}
		title := chunk.Web.Title
		if title == "" {
			title = chunk.Web.URI
		}
		sources = append(sources, models.Source{Title: title, URL: chunk.Web.URI})
	}
	return models.DedupeSources(sources, 0)
}
