// internal/workers/routing/remote-agent/config.go
package remoteagent

import (
	"time"

	"research-agent/internal/common/config"
)

type Config struct {
	Endpoints       []string
	CardTimeout     time.Duration
	DispatchTimeout time.Duration
	// Per-agent breaker: consecutive failures before dispatches short-circuit.
	BreakerFailures  int
	BreakerOpenDelay time.Duration
}

func LoadConfig(cfg config.RemoteAgentsConfig) *Config {
	return &Config{
		Endpoints:        cfg.Endpoints,
		CardTimeout:      config.GetDuration(cfg.CardTimeout),
		DispatchTimeout:  config.GetDuration(cfg.DispatchTimeout),
		BreakerFailures:  5,
		BreakerOpenDelay: 30 * time.Second,
	}
}
