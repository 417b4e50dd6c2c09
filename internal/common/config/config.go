// internal/common/config/config.go
package config

// Config is the main application configuration struct.
type Config struct {
	App           AppConfig           `mapstructure:"app"`
	Server        ServerConfig        `mapstructure:"server"`
	Database      DatabaseConfig      `mapstructure:"database"`
	Session       SessionConfig       `mapstructure:"session"`
	APIs          APIsConfig          `mapstructure:"apis"`
	RemoteAgents  RemoteAgentsConfig  `mapstructure:"remote_agents"`
	Research      ResearchConfig      `mapstructure:"research"`
	Coordinator   CoordinatorConfig   `mapstructure:"coordinator"`
	Logging       LoggingConfig       `mapstructure:"logging"`
	Observability ObservabilityConfig `mapstructure:"observability"`
}

// --- Core App/Infrastructure Config ---
type AppConfig struct {
	Name        string `mapstructure:"name"`
	Version     string `mapstructure:"version"`
	Environment string `mapstructure:"environment"`
}

// ServerConfig holds the HTTP surface settings. Durations are in milliseconds.
type ServerConfig struct {
	Address          string   `mapstructure:"address"`
	MetricsAddress   string   `mapstructure:"metrics_address"`
	AllowedOrigins   []string `mapstructure:"allowed_origins"`
	ReadTimeout      int      `mapstructure:"read_timeout"`
	ShutdownTimeout  int      `mapstructure:"shutdown_timeout"`
	StreamHeartbeat  int      `mapstructure:"stream_heartbeat"`
	TurnTimeout      int      `mapstructure:"turn_timeout"`
	ContextWindow    int      `mapstructure:"context_window"`
	DefaultAssistant string   `mapstructure:"default_assistant"`
}

type DatabaseConfig struct {
	Redis RedisConfig `mapstructure:"redis"`
}

type RedisConfig struct {
	Address  string `mapstructure:"address"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// SessionConfig controls conversation session persistence.
type SessionConfig struct {
	TTL       int    `mapstructure:"ttl"` // seconds
	KeyPrefix string `mapstructure:"key_prefix"`
}

// APIsConfig holds settings for external API integrations.
type APIsConfig struct {
	GenAI     GenAIConfig     `mapstructure:"genai"`
	WebSearch WebSearchConfig `mapstructure:"web_search"`
}

// GenAIConfig configures the reasoning service. Timeout is in milliseconds.
type GenAIConfig struct {
	APIKey      string  `mapstructure:"api_key"`
	Model       string  `mapstructure:"model"`
	Temperature float64 `mapstructure:"temperature"`
	Timeout     int     `mapstructure:"timeout"`
}

// WebSearchConfig configures the search provider. Timeouts are in milliseconds,
// CacheTTL in seconds (0 disables caching).
type WebSearchConfig struct {
	BaseURL          string `mapstructure:"base_url"`
	APIKey           string `mapstructure:"api_key"`
	SearchDepth      string `mapstructure:"search_depth"`
	MaxResults       int    `mapstructure:"max_results"`
	Timeout          int    `mapstructure:"timeout"`
	CacheTTL         int    `mapstructure:"cache_ttl"`
	BreakerFailures  int    `mapstructure:"breaker_failures"`
	BreakerOpenDelay int    `mapstructure:"breaker_open_delay"`
}

// RemoteAgentsConfig lists the remote specialized agents discovered at startup.
type RemoteAgentsConfig struct {
	Endpoints       []string `mapstructure:"endpoints"`
	CardTimeout     int      `mapstructure:"card_timeout"`     // milliseconds
	DispatchTimeout int      `mapstructure:"dispatch_timeout"` // milliseconds
}

// ResearchConfig is the effort and quality policy of the research loop.
// It is passed by value; request overrides produce a modified copy.
type ResearchConfig struct {
	InitialQueryCount int     `mapstructure:"initial_search_query_count"`
	MaxLoops          int     `mapstructure:"max_research_loops"`
	SufficientScore   float64 `mapstructure:"sufficient_score"`
	PartialScore      float64 `mapstructure:"partial_score"`
	MinSources        int     `mapstructure:"min_sources"`
	MaxAnswerSources  int     `mapstructure:"max_answer_sources"`

	// ReasoningPlanner asks the reasoning service for search queries before
	// falling back to keyword expansion.
	ReasoningPlanner bool `mapstructure:"reasoning_planner"`
}

// WithEffort returns a copy with the given effort overrides; non-positive values keep the current setting.
func (r ResearchConfig) WithEffort(initialQueryCount, maxLoops int) ResearchConfig {
	out := r
	if initialQueryCount > 0 {
		out.InitialQueryCount = initialQueryCount
	}
	if maxLoops > 0 {
		out.MaxLoops = maxLoops
	}
	return out
}

const (
	CoordinatorModeReasoning  = "reasoning"
	CoordinatorModeDelegation = "delegation"
	CoordinatorModeAuto       = "auto"
)

type CoordinatorConfig struct {
	Mode string `mapstructure:"mode"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
	Output string `mapstructure:"output"`
}

type ObservabilityConfig struct {
	ServiceName    string `mapstructure:"service_name"`
	JaegerEndpoint string `mapstructure:"jaeger_endpoint"`
}

// DefaultResearchConfig returns the policy defaults.
func DefaultResearchConfig() ResearchConfig {
	return ResearchConfig{
		InitialQueryCount: 3,
		MaxLoops:          3,
		SufficientScore:   0.7,
		PartialScore:      0.5,
		MinSources:        3,
		MaxAnswerSources:  10,
	}
}
