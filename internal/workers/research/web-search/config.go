// internal/workers/research/web-search/config.go
package websearch

import (
	"time"

	"research-agent/internal/common/config"
)

type Config struct {
	BaseURL          string
	APIKey           string
	SearchDepth      string
	MaxResults       int
	Timeout          time.Duration
	CacheTTL         time.Duration
	BreakerFailures  int
	BreakerOpenDelay time.Duration
}

func LoadConfig(cfg config.WebSearchConfig) *Config {
	return &Config{
		BaseURL:          cfg.BaseURL,
		APIKey:           cfg.APIKey,
		SearchDepth:      cfg.SearchDepth,
		MaxResults:       cfg.MaxResults,
		Timeout:          config.GetDuration(cfg.Timeout),
		CacheTTL:         time.Duration(cfg.CacheTTL) * time.Second,
		BreakerFailures:  cfg.BreakerFailures,
		BreakerOpenDelay: config.GetDuration(cfg.BreakerOpenDelay),
	}
}
