// internal/api/server.go
package api

import (
	"context"
	"net/http"
	"time"

	"research-agent/internal/common/config"
	apperrors "research-agent/internal/common/errors"
	"research-agent/internal/common/logger"
	"research-agent/internal/common/observability"
	"research-agent/internal/session"
	"research-agent/internal/streaming"
	"research-agent/internal/workers/routing/coordinator"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// TurnHandler runs one conversation turn into a sink.
type TurnHandler interface {
	Handle(ctx context.Context, turn coordinator.Turn, sink streaming.Sink) error
	Ready() bool
	Mode() string
}

// AgentDirectory lists the remote agents available for delegation.
type AgentDirectory interface {
	Names() []string
}

type Pinger interface {
	Ping(ctx context.Context) error
}

// Dependencies are the collaborators of the HTTP surface. Agents and Redis may be nil.
type Dependencies struct {
	Config      *config.Config
	Coordinator TurnHandler
	Sessions    *session.Manager
	Agents      AgentDirectory
	Redis       Pinger
	Obs         *observability.Observability
	Logger      logger.Logger
}

type Server struct {
	Engine *gin.Engine

	cfg         *config.Config
	coordinator TurnHandler
	sessions    *session.Manager
	agents      AgentDirectory
	redis       Pinger
	obs         *observability.Observability
	errors      *apperrors.TurnErrorHandler
	logger      logger.Logger
	now         func() time.Time
}

func NewServer(deps Dependencies) *Server {
	gin.SetMode(gin.ReleaseMode)
	log := logger.ForComponent(deps.Logger, "api")

	s := &Server{
		Engine:      gin.New(),
		cfg:         deps.Config,
		coordinator: deps.Coordinator,
		sessions:    deps.Sessions,
		agents:      deps.Agents,
		redis:       deps.Redis,
		obs:         deps.Obs,
		errors:      apperrors.NewTurnErrorHandler(log),
		logger:      log,
		now:         time.Now,
	}

	s.Engine.Use(gin.Recovery(), requestLogger(log), cors(deps.Config.Server.AllowedOrigins))
	s.routes()
	return s
}

func (s *Server) routes() {
	s.Engine.GET("/", s.root)
	s.Engine.GET("/health", s.health)
	s.Engine.GET("/ready", s.ready)
	s.Engine.GET("/metrics", gin.WrapH(promhttp.Handler()))

	runs := s.Engine.Group("/assistants/:assistant_id/runs")
	runs.POST("", s.createRun)
	runs.GET("/:run_id", s.getRun)
	runs.POST("/:run_id/cancel", s.cancelRun)
}

// HTTPServer wraps the engine with the configured timeouts. WriteTimeout is
// left unset so streams are bounded by the turn timeout instead.
func (s *Server) HTTPServer() *http.Server {
	return &http.Server{
		Addr:              s.cfg.Server.Address,
		Handler:           s.Engine,
		ReadHeaderTimeout: config.GetDuration(s.cfg.Server.ReadTimeout),
	}
}
