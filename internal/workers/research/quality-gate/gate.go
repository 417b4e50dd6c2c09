// internal/workers/research/quality-gate/gate.go
package qualitygate

import (
	"math"
	"unicode/utf8"

	"research-agent/internal/common/logger"
	"research-agent/internal/common/metrics"
	"research-agent/internal/models"
)

const (
	TaskType = "quality-gate"

	sourceWeight = 0.2
	contentScale = 1000.0
)

// Assess scores accumulated research results. It performs no I/O.
func Assess(results []models.ResearchResult, cfg Config) models.QualityAssessment {
	if len(results) == 0 {
		return models.QualityAssessment{
			Status:         models.QualityInsufficient,
			Confidence:     0,
			Recommendation: models.RecommendNeedMoreResearch,
			Reason:         "No research results available",
			Gaps:           []string{models.GapMoreSources},
		}
	}

	var (
		successful   int
		totalSources int
		totalContent int
		failed       []string
	)
	for _, r := range results {
		if !r.Succeeded() {
			failed = append(failed, r.Query)
			continue
		}
		successful++
		totalSources += len(r.Sources)
		totalContent += utf8.RuneCountInString(r.Content)
	}

	if successful == 0 {
		return models.QualityAssessment{
			Status:         models.QualityInsufficient,
			Confidence:     0,
			Recommendation: models.RecommendNeedMoreResearch,
			ResearchCount:  0,
			Reason:         "All research attempts failed",
			Gaps:           retryGaps(failed),
		}
	}

	avgContent := float64(totalContent) / float64(successful)
	confidence := math.Min(1.0, float64(totalSources)*sourceWeight+avgContent/contentScale)

	out := models.QualityAssessment{
		Confidence:       confidence,
		TotalSources:     totalSources,
		ResearchCount:    successful,
		AvgContentLength: int(avgContent),
	}

	switch {
	case confidence >= cfg.SufficientScore && totalSources >= cfg.MinSources:
		out.Status = models.QualitySufficient
		out.Recommendation = models.RecommendFinalize
		out.Reason = "Enough sources and content to answer"
		return out
	case confidence >= cfg.PartialScore:
		out.Status = models.QualityPartial
		out.Recommendation = models.RecommendAdditional
		out.Reason = "Partial coverage, more research may help"
	default:
		out.Status = models.QualityInsufficient
		out.Recommendation = models.RecommendNeedMoreResearch
		out.Reason = "Too little information gathered"
	}

	if totalSources < cfg.MinSources {
		out.Gaps = append(out.Gaps, models.GapMoreSources)
	}
	if int(avgContent) < cfg.DetailLength {
		out.Gaps = append(out.Gaps, models.GapMoreDetail)
	}
	out.Gaps = append(out.Gaps, retryGaps(failed)...)
	if len(out.Gaps) == 0 {
		out.Gaps = []string{models.GapMoreDetail}
	}
	return out
}

func retryGaps(queries []string) []string {
	var gaps []string
	for _, q := range queries {
		if q != "" {
			gaps = append(gaps, models.GapRetryPrefix+q)
		}
	}
	if len(gaps) == 0 {
		gaps = []string{models.GapMoreSources}
	}
	return gaps
}

// Gate wraps Assess with logging and metrics.
type Gate struct {
	config Config
	logger logger.Logger
}

func NewGate(cfg Config, log logger.Logger) *Gate {
	return &Gate{
		config: cfg,
		logger: log.WithFields(map[string]interface{}{"taskType": TaskType}),
	}
}

func (g *Gate) Assess(results []models.ResearchResult) models.QualityAssessment {
	a := Assess(results, g.config)
	metrics.QualityAssessments.WithLabelValues(string(a.Status)).Inc()
	g.logger.Debug("research assessed", map[string]interface{}{
		"status":       a.Status,
		"confidence":   a.Confidence,
		"totalSources": a.TotalSources,
		"results":      len(results),
	})
	return a
}
