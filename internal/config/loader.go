package config

import (
	"errors"
	"io/fs"
	"os"
	"regexp"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// secretRef matches ${NAME} references in credential fields.
var secretRef = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)\}`)

// expandEnvVars substitutes ${NAME} references. Unset names are kept verbatim.
func expandEnvVars(s string) string {
	return secretRef.ReplaceAllStringFunc(s, func(ref string) string {
		if v, ok := os.LookupEnv(secretRef.FindStringSubmatch(ref)[1]); ok {
			return v
		}
		return ref
	})
}

// Load builds the effective config: defaults, then the YAML file at path
// (a missing file is fine), then CREWBUILDER_* variables, then ${VAR}
// references in secrets.
func Load(path string) (Config, error) {
	cfg := Defaults()
	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
	case err != nil:
		return cfg, err
	default:
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, &ConfigError{Message: "failed to parse config: " + err.Error()}
		}
		fillDefaults(&cfg, Defaults())
	}
	applyEnvOverrides(&cfg)
	resolveSecrets(&cfg)
	return cfg, nil
}

// LoadRaw reads the config file as a generic tree for KeyPath edits.
func LoadRaw(path string) (map[string]any, error) {
	raw := map[string]any{}
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return raw, nil
	}
	if err != nil {
		return nil, err
	}
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, &ConfigError{Message: "failed to parse config: " + err.Error()}
	}
	if raw == nil {
		raw = map[string]any{}
	}
	return raw, nil
}

// SaveRaw writes a generic tree back as YAML, readable by the owner only.
func SaveRaw(path string, raw map[string]any) error {
	data, err := yaml.Marshal(raw)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o600)
}

func orDefault[T comparable](field *T, def T) {
	var zero T
	if *field == zero {
		*field = def
	}
}

// fillDefaults restores defaults a partial file left zero.
func fillDefaults(cfg *Config, d Config) {
	orDefault(&cfg.Gateway.Port, d.Gateway.Port)
	orDefault(&cfg.Gateway.Bind, d.Gateway.Bind)
	orDefault(&cfg.Gateway.Auth.Mode, d.Gateway.Auth.Mode)
	orDefault(&cfg.Gateway.ExecuteRate.PerMinute, d.Gateway.ExecuteRate.PerMinute)
	orDefault(&cfg.Gateway.ExecuteRate.Burst, d.Gateway.ExecuteRate.Burst)
	orDefault(&cfg.LLM.Provider, d.LLM.Provider)
	orDefault(&cfg.LLM.TimeoutSeconds, d.LLM.TimeoutSeconds)
	orDefault(&cfg.Model.Name, d.Model.Name)
	orDefault(&cfg.Model.Temperature, d.Model.Temperature)
	orDefault(&cfg.Model.MaxTokens, d.Model.MaxTokens)
	orDefault(&cfg.Crew.ResolutionMode, d.Crew.ResolutionMode)
	orDefault(&cfg.Session.Store, d.Session.Store)
	orDefault(&cfg.Session.IdleMinutes, d.Session.IdleMinutes)
	orDefault(&cfg.Logging.Level, d.Logging.Level)
	orDefault(&cfg.Logging.Format, d.Logging.Format)
	orDefault(&cfg.Metrics.Path, d.Metrics.Path)
}

// envOverrides maps CREWBUILDER_* variables onto config fields. Enum-like
// values are lowercased.
var envOverrides = []struct {
	name  string
	apply func(*Config, string)
}{
	{"CREWBUILDER_GATEWAY_PORT", func(c *Config, v string) {
		if port, err := strconv.Atoi(v); err == nil {
			c.Gateway.Port = port
		}
	}},
	{"CREWBUILDER_GATEWAY_BIND", func(c *Config, v string) { c.Gateway.Bind = v }},
	{"CREWBUILDER_LOG_LEVEL", func(c *Config, v string) { c.Logging.Level = strings.ToLower(v) }},
	{"CREWBUILDER_LLM_PROVIDER", func(c *Config, v string) { c.LLM.Provider = strings.ToLower(v) }},
	{"CREWBUILDER_MODEL", func(c *Config, v string) { c.Model.Name = v }},
	{"CREWBUILDER_RESOLUTION_MODE", func(c *Config, v string) { c.Crew.ResolutionMode = strings.ToLower(v) }},
	{"CREWBUILDER_SESSION_STORE", func(c *Config, v string) { c.Session.Store = strings.ToLower(v) }},
}

func applyEnvOverrides(cfg *Config) {
	for _, o := range envOverrides {
		if v := os.Getenv(o.name); v != "" {
			o.apply(cfg, v)
		}
	}
}

// resolveSecrets expands ${VAR} in credential fields. The LLM key falls
// back to GROQ_API_KEY.
func resolveSecrets(cfg *Config) {
	for _, f := range []*string{&cfg.Gateway.Auth.Token, &cfg.Gateway.Auth.Password, &cfg.LLM.APIKey} {
		*f = expandEnvVars(*f)
	}
	orDefault(&cfg.LLM.APIKey, os.Getenv("GROQ_API_KEY"))
}
