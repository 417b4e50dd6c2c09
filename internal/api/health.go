package api

import (
	"context"
	"net/http"
	"time"

	"research-agent/internal/common/messages"

	"github.com/gin-gonic/gin"
)

func (s *Server) root(c *gin.Context) {
	c.JSON(http.StatusOK, messages.APIDescription())
}

func (s *Server) health(c *gin.Context) {
	body := messages.Health(s.now())
	body["api_key_configured"] = s.cfg.APIs.GenAI.APIKey != ""
	body["search_api_key_configured"] = s.cfg.APIs.WebSearch.APIKey != ""
	body["remote_agents"] = s.agentNames()
	body["coordinator_mode"] = s.coordinator.Mode()
	c.JSON(http.StatusOK, body)
}

// ready reports whether the session store is reachable.
func (s *Server) ready(c *gin.Context) {
	if s.redis != nil {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()
		if err := s.redis.Ping(ctx); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"status": "not_ready",
				"error":  err.Error(),
				"time":   s.now().Format(time.RFC3339),
			})
			return
		}
	}
	c.JSON(http.StatusOK, gin.H{
		"status": "ready",
		"time":   s.now().Format(time.RFC3339),
	})
}

func (s *Server) agentNames() []string {
	if s.agents == nil {
		return []string{}
	}
	names := s.agents.Names()
	if names == nil {
		return []string{}
	}
	return names
}
