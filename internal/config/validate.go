package config

import (
	"fmt"
	"slices"
	"strings"

	"github.com/soyeahso/crewbuilder/internal/domain"
)

// ValidationIssue describes a problem with a config value.
type ValidationIssue struct {
	Path    string
	Message string
}

func (v ValidationIssue) String() string {
	return fmt.Sprintf("%s: %s", v.Path, v.Message)
}

// Validate checks a Config for issues. Returns nil if valid.
func Validate(cfg *Config) []ValidationIssue {
	var issues []ValidationIssue
	oneOf := func(path, value string, valid []string) {
		if value != "" && !slices.Contains(valid, value) {
			issues = append(issues, ValidationIssue{
				Path:    path,
				Message: fmt.Sprintf("must be one of %v, got %q", valid, value),
			})
		}
	}
	nonNegative := func(path string, value int) {
		if value < 0 {
			issues = append(issues, ValidationIssue{
				Path:    path,
				Message: fmt.Sprintf("must not be negative, got %d", value),
			})
		}
	}

	// Gateway validation
	if cfg.Gateway.Port < 0 || cfg.Gateway.Port > 65535 {
		issues = append(issues, ValidationIssue{
			Path:    "gateway.port",
			Message: fmt.Sprintf("port must be 0-65535, got %d", cfg.Gateway.Port),
		})
	}
	oneOf("gateway.bind", cfg.Gateway.Bind, []string{"loopback", "lan", "custom"})
	if cfg.Gateway.Bind == "custom" && cfg.Gateway.CustomBindHost == "" {
		issues = append(issues, ValidationIssue{
			Path:    "gateway.customBindHost",
			Message: "required when bind is custom",
		})
	}
	oneOf("gateway.auth.mode", cfg.Gateway.Auth.Mode, []string{"token", "password", "none"})
	nonNegative("gateway.executeRate.perMinute", cfg.Gateway.ExecuteRate.PerMinute)
	nonNegative("gateway.executeRate.burst", cfg.Gateway.ExecuteRate.Burst)

	// LLM validation
	oneOf("llm.provider", cfg.LLM.Provider, []string{"groq", "ollama"})
	nonNegative("llm.timeoutSeconds", cfg.LLM.TimeoutSeconds)

	// Model validation
	models := make([]string, len(domain.Models))
	for i, m := range domain.Models {
		models[i] = string(m)
	}
	oneOf("model.name", cfg.Model.Name, models)
	if t := cfg.Model.Temperature; t != nil && (*t < 0 || *t > 1) {
		issues = append(issues, ValidationIssue{
			Path:    "model.temperature",
			Message: fmt.Sprintf("must be between 0 and 1, got %g", *t),
		})
	}
	if n := cfg.Model.MaxTokens; n != 0 && (n < domain.MinMaxTokens || n > domain.MaxMaxTokens) {
		issues = append(issues, ValidationIssue{
			Path:    "model.maxTokens",
			Message: fmt.Sprintf("must be %d-%d, got %d", domain.MinMaxTokens, domain.MaxMaxTokens, n),
		})
	}

	// Crew and execution validation
	oneOf("crew.resolutionMode", cfg.Crew.ResolutionMode, []string{"lenient", "strict"})
	nonNegative("execution.timeoutSeconds", cfg.Execution.TimeoutSeconds)

	// Session validation
	oneOf("session.store", cfg.Session.Store, []string{"memory", "sqlite"})
	nonNegative("session.idleMinutes", cfg.Session.IdleMinutes)

	// Logging validation
	oneOf("logging.level", cfg.Logging.Level, []string{"silent", "fatal", "error", "warn", "info", "debug", "trace"})
	oneOf("logging.format", cfg.Logging.Format, []string{"pretty", "json"})

	// Hooks validation
	for event, entries := range cfg.Hooks.ByEvent() {
		for i, h := range entries {
			if strings.TrimSpace(h.Command) == "" {
				issues = append(issues, ValidationIssue{
					Path:    fmt.Sprintf("hooks.%s[%d].command", event, i),
					Message: "command is required",
				})
			}
			nonNegative(fmt.Sprintf("hooks.%s[%d].timeout", event, i), h.Timeout)
		}
	}

	// Metrics validation
	if cfg.Metrics.Path != "" && !strings.HasPrefix(cfg.Metrics.Path, "/") {
		issues = append(issues, ValidationIssue{
			Path:    "metrics.path",
			Message: fmt.Sprintf("must start with /, got %q", cfg.Metrics.Path),
		})
	}

	slices.SortStableFunc(issues, func(a, b ValidationIssue) int {
		return strings.Compare(a.Path, b.Path)
	})
	return issues
}

// ByEvent returns the configured hook entries keyed by their YAML name.
func (h HooksConfig) ByEvent() map[string][]HookEntry {
	return map[string][]HookEntry{
		"sessionStart":   h.SessionStart,
		"sessionEnd":     h.SessionEnd,
		"templateLoaded": h.TemplateLoaded,
		"codeGenerated":  h.CodeGenerated,
		"beforeCrewRun":  h.BeforeCrewRun,
		"afterCrewRun":   h.AfterCrewRun,
		"gatewayStart":   h.GatewayStart,
		"gatewayStop":    h.GatewayStop,
	}
}
