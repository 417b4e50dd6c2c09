// internal/workers/research/research-loop/config.go
package researchloop

import "research-agent/internal/common/config"

type Config struct {
	MaxLoops        int
	QueriesPerRound int
}

// LoadConfig reads the effort settings; non-positive values fall back to 3.
func LoadConfig(cfg config.ResearchConfig) Config {
	out := Config{MaxLoops: cfg.MaxLoops, QueriesPerRound: cfg.InitialQueryCount}
	if out.MaxLoops <= 0 {
		out.MaxLoops = 3
	}
	if out.QueriesPerRound <= 0 {
		out.QueriesPerRound = 3
	}
	return out
}
