// internal/workers/routing/remote-agent/registry.go
package remoteagent

import (
	"context"
	"sort"

	apperrors "research-agent/internal/common/errors"
	apphttp "research-agent/internal/common/http"
	"research-agent/internal/common/logger"
	"research-agent/internal/common/metrics"
	"research-agent/internal/common/validation"
	"research-agent/internal/models"
	"research-agent/pkg/a2a"
)

type connection struct {
	descriptor models.AgentDescriptor
	client     *a2a.Client
	http       *apphttp.Client
}

// Registry holds the remote agents whose cards resolved at startup.
// It is never modified after Initialize returns.
type Registry struct {
	agents map[string]*connection
	names  []string
}

// Initialize resolves every endpoint's card. Endpoints that fail to resolve
// or publish an invalid card are logged and skipped.
func Initialize(ctx context.Context, cfg *Config, log logger.Logger) *Registry {
	log = logger.ForComponent(log, "remote-agent-registry")
	resolver := a2a.NewCardResolver(apphttp.NewClient(cfg.CardTimeout).Standard())

	reg := &Registry{agents: make(map[string]*connection)}
	for _, endpoint := range cfg.Endpoints {
		card, err := resolveCard(ctx, resolver, endpoint)
		if err != nil {
			log.Error("failed to resolve agent card", map[string]interface{}{
				"endpoint": endpoint,
				"error":    err.Error(),
			})
			continue
		}
		if _, dup := reg.agents[card.Name]; dup {
			log.Warn("duplicate agent name, keeping first", map[string]interface{}{
				"agent":    card.Name,
				"endpoint": endpoint,
			})
			continue
		}

		httpClient := apphttp.NewResilientClient(apphttp.Options{
			Name:        card.Name,
			Timeout:     cfg.DispatchTimeout,
			MaxFailures: cfg.BreakerFailures,
			OpenTimeout: cfg.BreakerOpenDelay,
			OnStateChange: func(name, from, to string) {
				log.Warn("remote agent circuit breaker changed state", map[string]interface{}{
					"agent": name,
					"from":  from,
					"to":    to,
				})
			},
		})
		descriptor := describe(card, endpoint)
		client, err := a2a.NewClient(ctx, descriptor.Endpoint, httpClient.Standard())
		if err != nil {
			log.Error("failed to create agent client", map[string]interface{}{
				"agent":    card.Name,
				"endpoint": descriptor.Endpoint,
				"error":    err.Error(),
			})
			continue
		}
		reg.agents[card.Name] = &connection{
			descriptor: descriptor,
			client:     client,
			http:       httpClient,
		}
		reg.names = append(reg.names, card.Name)
		log.Info("registered remote agent", map[string]interface{}{
			"agent":    card.Name,
			"endpoint": card.URL,
		})
	}

	sort.Strings(reg.names)
	metrics.RemoteAgentsRegistered.Set(float64(len(reg.names)))
	return reg
}

func resolveCard(ctx context.Context, resolver *a2a.CardResolver, endpoint string) (*a2a.AgentCard, error) {
	card, err := resolver.Resolve(ctx, endpoint)
	if err != nil {
		return nil, apperrors.NewCardResolutionError(endpoint, err)
	}
	raw, err := a2a.Document(card)
	if err != nil {
		return nil, apperrors.NewCardResolutionError(endpoint, err)
	}
	if result := validation.ValidateAgentCard(raw); !result.Valid {
		return nil, apperrors.NewCardResolutionError(endpoint, apperrors.NewPayloadMalformedError(result.Summary()))
	}
	return card, nil
}

func describe(card *a2a.AgentCard, endpoint string) models.AgentDescriptor {
	d := models.AgentDescriptor{
		Name:        card.Name,
		Description: card.Description,
		Endpoint:    card.URL,
		Version:     card.Version,
	}
	if d.Endpoint == "" {
		d.Endpoint = endpoint
	}
	for _, s := range card.Skills {
		d.Skills = append(d.Skills, s.Name)
	}
	return d
}

// Len returns the number of registered agents.
func (r *Registry) Len() int {
	if r == nil {
		return 0
	}
	return len(r.names)
}

// Names returns the registered agent names, sorted.
func (r *Registry) Names() []string {
	if r == nil {
		return []string{}
	}
	return append([]string{}, r.names...)
}

// Descriptors returns the registered agents, sorted by name.
func (r *Registry) Descriptors() []models.AgentDescriptor {
	out := make([]models.AgentDescriptor, 0, r.Len())
	for _, name := range r.Names() {
		out = append(out, r.agents[name].descriptor)
	}
	return out
}

func (r *Registry) Lookup(name string) (models.AgentDescriptor, bool) {
	conn, ok := r.connection(name)
	if !ok {
		return models.AgentDescriptor{}, false
	}
	return conn.descriptor, true
}

// BreakerState reports the dispatch circuit breaker state of an agent.
func (r *Registry) BreakerState(name string) string {
	conn, ok := r.connection(name)
	if !ok || conn.http == nil {
		return ""
	}
	return conn.http.State()
}

func (r *Registry) connection(name string) (*connection, bool) {
	if r == nil {
		return nil, false
	}
	conn, ok := r.agents[name]
	return conn, ok
}
