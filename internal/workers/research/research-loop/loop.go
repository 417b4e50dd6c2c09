// internal/workers/research/research-loop/loop.go
package researchloop

import (
	"context"
	"strings"
	"time"

	"research-agent/internal/common/logger"
	"research-agent/internal/common/metrics"
	"research-agent/internal/common/observability"
	"research-agent/internal/models"
	"research-agent/internal/streaming"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
)

const TaskType = "research-loop"

// State is a step of the research state machine.
type State string

const (
	StateInit       State = "INIT"
	StatePlanning   State = "PLANNING"
	StateSearching  State = "SEARCHING"
	StateAssessing  State = "ASSESSING"
	StateRefining   State = "REFINING"
	StateFinalizing State = "FINALIZING"
	StateDone       State = "DONE"
)

type Planner interface {
	InitialQueries(ctx context.Context, question string, count int) []string
	RefinementQueries(ctx context.Context, previous, gaps []string, maxCount int) []string
}

type Searcher interface {
	Search(ctx context.Context, query string) models.ResearchResult
}

type Assessor interface {
	Assess(results []models.ResearchResult) models.QualityAssessment
}

type Synthesizer interface {
	SynthesizeResults(ctx context.Context, question string, results []models.ResearchResult) models.Answer
}

// Outcome is everything a finished run produced.
type Outcome struct {
	Answer     models.Answer
	Results    []models.ResearchResult
	Assessment models.QualityAssessment
	Rounds     int
	Queries    []string
	Trace      []State
}

// Loop runs bounded plan, search, assess and refine rounds, then synthesizes
// over every result gathered. Results only accumulate between rounds.
type Loop struct {
	planner     Planner
	searcher    Searcher
	assessor    Assessor
	synthesizer Synthesizer
	config      Config
	obs         *observability.Observability
	logger      logger.Logger
}

func NewLoop(planner Planner, searcher Searcher, assessor Assessor, synthesizer Synthesizer, config Config, obs *observability.Observability, log logger.Logger) *Loop {
	return &Loop{
		planner:     planner,
		searcher:    searcher,
		assessor:    assessor,
		synthesizer: synthesizer,
		config:      config,
		obs:         obs,
		logger: log.With(map[string]interface{}{
			"taskType": TaskType,
		}),
	}
}

// Config returns the default effort settings.
func (l *Loop) Config() Config {
	return l.config
}

type run struct {
	*Loop
	cfg     Config
	sink    streaming.Sink
	outcome *Outcome
}

// Run researches question with the loop's default effort.
func (l *Loop) Run(ctx context.Context, question string, sink streaming.Sink) (*Outcome, error) {
	return l.RunWithConfig(ctx, question, l.config, sink)
}

// RunWithConfig researches question with per-request effort settings. It only
// fails when ctx is cancelled or sink rejects an event.
func (l *Loop) RunWithConfig(ctx context.Context, question string, cfg Config, sink streaming.Sink) (*Outcome, error) {
	if cfg.MaxLoops <= 0 {
		cfg.MaxLoops = l.config.MaxLoops
	}
	if cfg.QueriesPerRound <= 0 {
		cfg.QueriesPerRound = l.config.QueriesPerRound
	}
	if sink == nil {
		sink = streaming.Discard
	}

	ctx, span := l.obs.StartSpan(ctx, "researchloop.run",
		attribute.Int("max_loops", cfg.MaxLoops),
		attribute.Int("queries_per_round", cfg.QueriesPerRound),
	)
	defer span.End()

	start := time.Now()
	r := &run{Loop: l, cfg: cfg, sink: sink, outcome: &Outcome{}}
	r.enter(StateInit)
	err := r.execute(ctx, strings.TrimSpace(question))
	if err != nil {
		span.RecordError(err)
		return r.outcome, err
	}

	metrics.ResearchRounds.Observe(float64(r.outcome.Rounds))
	l.logger.Info("research completed", map[string]interface{}{
		"rounds":     r.outcome.Rounds,
		"results":    len(r.outcome.Results),
		"quality":    r.outcome.Assessment.Status,
		"confidence": r.outcome.Assessment.Confidence,
		"duration":   time.Since(start).String(),
	})
	return r.outcome, nil
}

func (r *run) execute(ctx context.Context, question string) error {
	r.enter(StatePlanning)
	queries, err := r.plan(ctx, question)
	if err != nil {
		return err
	}

	for {
		r.outcome.Rounds++
		r.enter(StateSearching)
		if err := r.search(ctx, queries); err != nil {
			return err
		}

		r.enter(StateAssessing)
		assessment := r.assessor.Assess(r.outcome.Results)
		r.outcome.Assessment = assessment
		reflection := models.Reflection{Round: r.outcome.Rounds, Assessment: assessment}

		if assessment.Recommendation == models.RecommendFinalize || r.outcome.Rounds >= r.cfg.MaxLoops {
			if err := r.emitResult(ctx, streaming.ToolAssessQuality, reflection); err != nil {
				return err
			}
			break
		}

		r.enter(StateRefining)
		followUps := r.planner.RefinementQueries(ctx, r.outcome.Queries, assessment.Gaps, r.cfg.QueriesPerRound)
		reflection.FollowUpQueries = followUps
		if err := r.emitResult(ctx, streaming.ToolAssessQuality, reflection); err != nil {
			return err
		}
		if len(followUps) == 0 {
			r.logger.Warn("no follow-up queries, finalizing early", map[string]interface{}{
				"round": r.outcome.Rounds,
			})
			break
		}
		if err := r.emitResult(ctx, streaming.ToolPlanQueries, followUps); err != nil {
			return err
		}
		queries = followUps
	}

	r.enter(StateFinalizing)
	id := uuid.NewString()
	if err := r.sink.Send(ctx, streaming.ToolCall{ID: id, Name: streaming.ToolSynthesize}); err != nil {
		return err
	}
	r.outcome.Answer = r.synthesizer.SynthesizeResults(ctx, question, r.outcome.Results)
	if err := r.sink.Send(ctx, streaming.ToolResult{ID: id, Name: streaming.ToolSynthesize, Output: r.outcome.Answer}); err != nil {
		return err
	}

	r.enter(StateDone)
	return nil
}

func (r *run) plan(ctx context.Context, question string) ([]string, error) {
	id := uuid.NewString()
	if err := r.sink.Send(ctx, streaming.ToolCall{
		ID:   id,
		Name: streaming.ToolPlanQueries,
		Args: map[string]interface{}{"question": question},
	}); err != nil {
		return nil, err
	}

	queries := r.planner.InitialQueries(ctx, question, r.cfg.QueriesPerRound)
	if len(queries) == 0 && question != "" {
		queries = []string{question}
	}
	if err := r.sink.Send(ctx, streaming.ToolResult{ID: id, Name: streaming.ToolPlanQueries, Output: queries}); err != nil {
		return nil, err
	}
	return queries, nil
}

func (r *run) search(ctx context.Context, queries []string) error {
	for _, q := range queries {
		if err := ctx.Err(); err != nil {
			return err
		}
		id := uuid.NewString()
		if err := r.sink.Send(ctx, streaming.ToolCall{
			ID:   id,
			Name: streaming.ToolWebResearch,
			Args: map[string]interface{}{"query": q},
		}); err != nil {
			return err
		}

		result := r.searcher.Search(ctx, q)
		r.outcome.Queries = append(r.outcome.Queries, q)
		r.outcome.Results = append(r.outcome.Results, result)

		if err := r.sink.Send(ctx, streaming.ToolResult{ID: id, Name: streaming.ToolWebResearch, Output: result}); err != nil {
			return err
		}
	}
	return nil
}

func (r *run) emitResult(ctx context.Context, tool string, output interface{}) error {
	return r.sink.Send(ctx, streaming.ToolResult{ID: uuid.NewString(), Name: tool, Output: output})
}

func (r *run) enter(s State) {
	r.outcome.Trace = append(r.outcome.Trace, s)
	r.logger.Debug("research state", map[string]interface{}{
		"state": string(s),
		"round": r.outcome.Rounds,
	})
}
