package researchloop

import "research-agent/internal/common/config"

func configWith(queries, loops int) config.ResearchConfig {
	cfg := config.DefaultResearchConfig()
	cfg.InitialQueryCount = queries
	cfg.MaxLoops = loops
	return cfg
}
