// internal/common/config/loader.go
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

func Load() (*Config, error) {
	loadEnvFile()

	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath("./configs")
	v.AddConfigPath("../../configs")
	v.AddConfigPath(".")

	// ENV override, e.g. APIS_WEB_SEARCH_API_KEY
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	env := os.Getenv("APP_ENVIRONMENT")
	if env == "" {
		env = "development"
	}

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading base config: %w", err)
		}
	}

	v.SetConfigName(fmt.Sprintf("config.%s", env))
	_ = v.MergeInConfig() // optional

	return finish(v)
}

// LoadFromFile loads configuration from a specific file path
func LoadFromFile(path string) (*Config, error) {
	loadEnvFile()

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	return finish(v)
}

func finish(v *viper.Viper) (*Config, error) {
	expandEnvVars(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	overrideEmptyConfig(&cfg)
	applyDefaults(&cfg)

	if err := validateConfig(&cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// loadEnvFile loads .env from the first location that has one.
func loadEnvFile() {
	possiblePaths := []string{
		".env",
		"../.env",
		"../../.env",
		"../../../.env",
	}

	if rootDir := findProjectRoot(); rootDir != "" {
		possiblePaths = append(possiblePaths, filepath.Join(rootDir, ".env"))
	}

	for _, path := range possiblePaths {
		if _, err := os.Stat(path); err == nil {
			if err := godotenv.Load(path); err == nil {
				return
			}
		}
	}
}

// findProjectRoot walks up from the working directory looking for go.mod.
func findProjectRoot() string {
	dir, err := os.Getwd()
	if err != nil {
		return ""
	}

	for {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return dir
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}

	return ""
}

func expandEnvVars(v *viper.Viper) {
	for _, key := range v.AllKeys() {
		strVal, ok := v.Get(key).(string)
		if !ok {
			continue
		}
		if strings.Contains(strVal, "${") || (strings.HasPrefix(strVal, "$") && len(strVal) > 1) {
			if expanded := os.ExpandEnv(strVal); expanded != strVal && expanded != "" {
				v.Set(key, expanded)
			}
		}
	}
}

// overrideEmptyConfig fills secrets and endpoints from their conventional env names.
func overrideEmptyConfig(cfg *Config) {
	if cfg.APIs.GenAI.APIKey == "" {
		cfg.APIs.GenAI.APIKey = os.Getenv("GEMINI_API_KEY")
	}
	if cfg.APIs.WebSearch.APIKey == "" {
		cfg.APIs.WebSearch.APIKey = os.Getenv("TAVILY_API_KEY")
	}
	if cfg.Database.Redis.Address == "" {
		cfg.Database.Redis.Address = os.Getenv("REDIS_ADDRESS")
	}
	if len(cfg.RemoteAgents.Endpoints) == 0 {
		if val := os.Getenv("REMOTE_AGENT_URLS"); val != "" {
			for _, u := range strings.Split(val, ",") {
				if u = strings.TrimSpace(u); u != "" {
					cfg.RemoteAgents.Endpoints = append(cfg.RemoteAgents.Endpoints, u)
				}
			}
		}
	}
	if val := os.Getenv("PORT"); val != "" && cfg.Server.Address == "" {
		cfg.Server.Address = ":" + val
	}
}

// applyDefaults sets default values for optional configuration fields
func applyDefaults(cfg *Config) {
	if cfg.App.Name == "" {
		cfg.App.Name = "research-agent"
	}
	if cfg.App.Version == "" {
		cfg.App.Version = "1.0.0"
	}

	if cfg.Server.Address == "" {
		cfg.Server.Address = ":2024"
	}
	if cfg.Server.MetricsAddress == "" {
		cfg.Server.MetricsAddress = ":8080"
	}
	if len(cfg.Server.AllowedOrigins) == 0 {
		cfg.Server.AllowedOrigins = []string{"*"}
	}
	if cfg.Server.ReadTimeout == 0 {
		cfg.Server.ReadTimeout = 15000
	}
	if cfg.Server.ShutdownTimeout == 0 {
		cfg.Server.ShutdownTimeout = 30000
	}
	if cfg.Server.StreamHeartbeat == 0 {
		cfg.Server.StreamHeartbeat = 15000
	}
	if cfg.Server.TurnTimeout == 0 {
		cfg.Server.TurnTimeout = 180000
	}
	if cfg.Server.ContextWindow == 0 {
		cfg.Server.ContextWindow = 10
	}
	if cfg.Server.DefaultAssistant == "" {
		cfg.Server.DefaultAssistant = "agent"
	}

	if cfg.Session.TTL == 0 {
		cfg.Session.TTL = 86400
	}
	if cfg.Session.KeyPrefix == "" {
		cfg.Session.KeyPrefix = "session:"
	}

	if cfg.APIs.GenAI.Model == "" {
		cfg.APIs.GenAI.Model = "gemini-2.0-flash"
	}
	if cfg.APIs.GenAI.Temperature == 0 {
		cfg.APIs.GenAI.Temperature = 0.2
	}
	if cfg.APIs.GenAI.Timeout == 0 {
		cfg.APIs.GenAI.Timeout = 60000
	}

	if cfg.APIs.WebSearch.BaseURL == "" {
		cfg.APIs.WebSearch.BaseURL = "https://api.tavily.com"
	}
	if cfg.APIs.WebSearch.SearchDepth == "" {
		cfg.APIs.WebSearch.SearchDepth = "advanced"
	}
	if cfg.APIs.WebSearch.MaxResults == 0 {
		cfg.APIs.WebSearch.MaxResults = 5
	}
	if cfg.APIs.WebSearch.Timeout == 0 {
		cfg.APIs.WebSearch.Timeout = 20000
	}
	if cfg.APIs.WebSearch.BreakerFailures == 0 {
		cfg.APIs.WebSearch.BreakerFailures = 5
	}
	if cfg.APIs.WebSearch.BreakerOpenDelay == 0 {
		cfg.APIs.WebSearch.BreakerOpenDelay = 30000
	}

	if cfg.RemoteAgents.CardTimeout == 0 {
		cfg.RemoteAgents.CardTimeout = 30000
	}
	if cfg.RemoteAgents.DispatchTimeout == 0 {
		cfg.RemoteAgents.DispatchTimeout = 60000
	}

	defaults := DefaultResearchConfig()
	if cfg.Research.InitialQueryCount == 0 {
		cfg.Research.InitialQueryCount = defaults.InitialQueryCount
	}
	if cfg.Research.MaxLoops == 0 {
		cfg.Research.MaxLoops = defaults.MaxLoops
	}
	if cfg.Research.SufficientScore == 0 {
		cfg.Research.SufficientScore = defaults.SufficientScore
	}
	if cfg.Research.PartialScore == 0 {
		cfg.Research.PartialScore = defaults.PartialScore
	}
	if cfg.Research.MinSources == 0 {
		cfg.Research.MinSources = defaults.MinSources
	}
	if cfg.Research.MaxAnswerSources == 0 {
		cfg.Research.MaxAnswerSources = defaults.MaxAnswerSources
	}

	if cfg.Coordinator.Mode == "" {
		cfg.Coordinator.Mode = CoordinatorModeAuto
	}

	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "json"
	}
	if cfg.Logging.Output == "" {
		cfg.Logging.Output = "stdout"
	}

	if cfg.Observability.ServiceName == "" {
		cfg.Observability.ServiceName = cfg.App.Name
	}
}

// validateConfig validates critical configuration fields. Missing API keys are
// not fatal: they surface per request as configuration errors.
func validateConfig(cfg *Config) error {
	switch cfg.Coordinator.Mode {
	case CoordinatorModeAuto, CoordinatorModeReasoning, CoordinatorModeDelegation:
	default:
		return fmt.Errorf("coordinator.mode must be one of auto, reasoning, delegation; got %q", cfg.Coordinator.Mode)
	}

	if cfg.Research.PartialScore > cfg.Research.SufficientScore {
		return fmt.Errorf("research.partial_score (%.2f) must not exceed research.sufficient_score (%.2f)",
			cfg.Research.PartialScore, cfg.Research.SufficientScore)
	}
	if cfg.Research.InitialQueryCount < 0 || cfg.Research.MaxLoops < 0 {
		return fmt.Errorf("research effort settings must be positive")
	}

	if cfg.Coordinator.Mode == CoordinatorModeDelegation && len(cfg.RemoteAgents.Endpoints) == 0 {
		return fmt.Errorf("remote_agents.endpoints is required when coordinator.mode is delegation")
	}

	return nil
}

// GetDuration converts milliseconds from config to time.Duration
func GetDuration(milliseconds int) time.Duration {
	return time.Duration(milliseconds) * time.Millisecond
}
