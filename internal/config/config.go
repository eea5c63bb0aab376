package config

import (
	"fmt"

	"github.com/soyeahso/crewbuilder/internal/domain"
)

// ConfigError represents a configuration error.
type ConfigError struct {
	Message string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("config: %s", e.Message)
}

// Defaults returns a Config with sensible defaults applied.
func Defaults() Config {
	temp := 0.7
	return Config{
		Gateway: GatewayConfig{
			Port: 18790,
			Bind: "loopback",
			Auth: GatewayAuth{
				Mode: "token",
			},
			ExecuteRate: RateConfig{PerMinute: 6, Burst: 2},
		},
		LLM: LLMConfig{
			Provider:       "groq",
			TimeoutSeconds: 120,
		},
		Model: ModelConfig{
			Name:        "mixtral-8x7b-32768",
			Temperature: &temp,
			MaxTokens:   4096,
		},
		Crew: CrewConfig{
			ResolutionMode: "lenient",
		},
		Session: SessionConfig{
			Store:       "memory",
			IdleMinutes: 30,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "pretty",
		},
		Metrics: MetricsConfig{
			Enabled: true,
			Path:    "/metrics",
		},
	}
}

// Settings returns the session model settings the section describes.
// Unset fields keep their defaults.
func (m ModelConfig) Settings() domain.ModelConfig {
	out := domain.DefaultModelConfig()
	if m.Name != "" {
		out.Model = domain.ModelName(m.Name)
	}
	if m.Temperature != nil {
		out.Temperature = *m.Temperature
	}
	if m.MaxTokens > 0 {
		out.MaxTokens = m.MaxTokens
	}
	return out
}
