// internal/workers/research/answer-synthesis/config.go
package answersynthesis

import "research-agent/internal/common/config"

type Config struct {
	MaxSources  int
	Temperature float32
	// Model overrides the reasoning client's default model when set.
	Model string
}

func LoadConfig(cfg config.ResearchConfig) *Config {
	maxSources := cfg.MaxAnswerSources
	if maxSources <= 0 {
		maxSources = 10
	}
	return &Config{
		MaxSources:  maxSources,
		Temperature: 0.2,
	}
}
