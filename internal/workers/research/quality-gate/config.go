// internal/workers/research/quality-gate/config.go
package qualitygate

import "research-agent/internal/common/config"

// Config holds the policy thresholds. Defaults match config.DefaultResearchConfig.
type Config struct {
	SufficientScore float64
	PartialScore    float64
	MinSources      int
	// DetailLength is the average content length below which a detail gap is reported.
	DetailLength int
}

func LoadConfig(cfg config.ResearchConfig) Config {
	return Config{
		SufficientScore: cfg.SufficientScore,
		PartialScore:    cfg.PartialScore,
		MinSources:      cfg.MinSources,
		DetailLength:    300,
	}
}

func DefaultConfig() Config {
	return LoadConfig(config.DefaultResearchConfig())
}
