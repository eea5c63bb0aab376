package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func issuePaths(issues []ValidationIssue) []string {
	var out []string
	for _, i := range issues {
		out = append(out, i.Path)
	}
	return out
}

func TestValidate_ValidDefaults(t *testing.T) {
	cfg := Defaults()
	assert.Empty(t, Validate(&cfg))
}

func TestValidate_InvalidPort(t *testing.T) {
	cfg := Defaults()

	cfg.Gateway.Port = -1
	issues := Validate(&cfg)
	require.Len(t, issues, 1)
	assert.Equal(t, "gateway.port", issues[0].Path)

	cfg.Gateway.Port = 70000
	assert.NotEmpty(t, Validate(&cfg))
}

func TestValidate_CustomBindNeedsHost(t *testing.T) {
	cfg := Defaults()
	cfg.Gateway.Bind = "custom"
	assert.Equal(t, []string{"gateway.customBindHost"}, issuePaths(Validate(&cfg)))

	cfg.Gateway.CustomBindHost = "10.0.0.5"
	assert.Empty(t, Validate(&cfg))
}

func TestValidate_Enums(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		path   string
	}{
		{"bind", func(c *Config) { c.Gateway.Bind = "tailnet" }, "gateway.bind"},
		{"auth mode", func(c *Config) { c.Gateway.Auth.Mode = "oauth" }, "gateway.auth.mode"},
		{"provider", func(c *Config) { c.LLM.Provider = "openai" }, "llm.provider"},
		{"model", func(c *Config) { c.Model.Name = "gpt-4o" }, "model.name"},
		{"resolution", func(c *Config) { c.Crew.ResolutionMode = "loose" }, "crew.resolutionMode"},
		{"store", func(c *Config) { c.Session.Store = "redis" }, "session.store"},
		{"level", func(c *Config) { c.Logging.Level = "verbose" }, "logging.level"},
		{"format", func(c *Config) { c.Logging.Format = "compact" }, "logging.format"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Defaults()
			tt.mutate(&cfg)
			assert.Equal(t, []string{tt.path}, issuePaths(Validate(&cfg)))
		})
	}
}

func TestValidate_ModelRanges(t *testing.T) {
	cfg := Defaults()
	hot := 1.2
	cfg.Model.Temperature = &hot
	cfg.Model.MaxTokens = 100
	assert.Equal(t, []string{"model.maxTokens", "model.temperature"}, issuePaths(Validate(&cfg)))
}

func TestValidate_NegativeDurations(t *testing.T) {
	cfg := Defaults()
	cfg.Execution.TimeoutSeconds = -5
	cfg.Session.IdleMinutes = -1
	assert.Equal(t, []string{"execution.timeoutSeconds", "session.idleMinutes"}, issuePaths(Validate(&cfg)))
}

func TestValidate_Hooks(t *testing.T) {
	cfg := Defaults()
	cfg.Hooks.BeforeCrewRun = []HookEntry{{Command: "  "}, {Command: "true", Timeout: -1}}
	assert.Equal(t, []string{
		"hooks.beforeCrewRun[0].command",
		"hooks.beforeCrewRun[1].timeout",
	}, issuePaths(Validate(&cfg)))
}

func TestValidate_MetricsPath(t *testing.T) {
	cfg := Defaults()
	cfg.Metrics.Path = "metrics"
	assert.Equal(t, []string{"metrics.path"}, issuePaths(Validate(&cfg)))
}

func TestValidationIssueString(t *testing.T) {
	issue := ValidationIssue{Path: "gateway.port", Message: "bad"}
	assert.Equal(t, "gateway.port: bad", issue.String())
}
