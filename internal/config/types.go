package config

// Config is the root configuration for crewbuilder.
type Config struct {
	Gateway   GatewayConfig   `yaml:"gateway,omitempty"`
	LLM       LLMConfig       `yaml:"llm,omitempty"`
	Model     ModelConfig     `yaml:"model,omitempty"`
	Crew      CrewConfig      `yaml:"crew,omitempty"`
	Execution ExecutionConfig `yaml:"execution,omitempty"`
	Session   SessionConfig   `yaml:"session,omitempty"`
	Logging   LoggingConfig   `yaml:"logging,omitempty"`
	Hooks     HooksConfig     `yaml:"hooks,omitempty"`
	Metrics   MetricsConfig   `yaml:"metrics,omitempty"`
}

// GatewayConfig controls the gateway HTTP/WebSocket server.
type GatewayConfig struct {
	Port           int         `yaml:"port,omitempty"`
	Bind           string      `yaml:"bind,omitempty"` // "loopback" | "lan" | "custom"
	CustomBindHost string      `yaml:"customBindHost,omitempty"`
	Auth           GatewayAuth `yaml:"auth,omitempty"`
	AllowedOrigins []string    `yaml:"allowedOrigins,omitempty"`
	ExecuteRate    RateConfig  `yaml:"executeRate,omitempty"`
}

// GatewayAuth configures gateway authentication.
type GatewayAuth struct {
	Mode     string `yaml:"mode,omitempty"` // "token" | "password" | "none"
	Token    string `yaml:"token,omitempty"`
	Password string `yaml:"password,omitempty"`
}

// RateConfig is a token bucket: PerMinute refill with Burst capacity.
type RateConfig struct {
	PerMinute int `yaml:"perMinute,omitempty"`
	Burst     int `yaml:"burst,omitempty"`
}

// LLMConfig selects the provider that executes crews.
type LLMConfig struct {
	Provider       string `yaml:"provider,omitempty"` // "groq" | "ollama"
	APIKey         string `yaml:"apiKey,omitempty"`
	BaseURL        string `yaml:"baseUrl,omitempty"`
	OllamaModel    string `yaml:"ollamaModel,omitempty"`
	TimeoutSeconds int    `yaml:"timeoutSeconds,omitempty"`
}

// ModelConfig seeds the model settings of every new session.
type ModelConfig struct {
	Name        string   `yaml:"name,omitempty"`
	Temperature *float64 `yaml:"temperature,omitempty"`
	MaxTokens   int      `yaml:"maxTokens,omitempty"`
}

// CrewConfig controls catalog resolution and templates.
type CrewConfig struct {
	ResolutionMode string `yaml:"resolutionMode,omitempty"` // "lenient" | "strict"
	TemplatesFile  string `yaml:"templatesFile,omitempty"`
	WatchTemplates bool   `yaml:"watchTemplates,omitempty"`
}

// ExecutionConfig bounds crew runs.
type ExecutionConfig struct {
	TimeoutSeconds int  `yaml:"timeoutSeconds,omitempty"` // 0 = no timeout
	Verbose        bool `yaml:"verbose,omitempty"`
}

// SessionConfig defines where builder sessions live.
type SessionConfig struct {
	Store       string `yaml:"store,omitempty"` // "memory" | "sqlite"
	IdleMinutes int    `yaml:"idleMinutes,omitempty"`
	DBPath      string `yaml:"dbPath,omitempty"`
}

// LoggingConfig controls logging behavior.
type LoggingConfig struct {
	Level  string `yaml:"level,omitempty"` // "silent" | "fatal" | "error" | "warn" | "info" | "debug" | "trace"
	File   string `yaml:"file,omitempty"`
	Format string `yaml:"format,omitempty"` // "pretty" | "json"
}

// HooksConfig defines shell commands run on lifecycle events.
type HooksConfig struct {
	SessionStart   []HookEntry `yaml:"sessionStart,omitempty"`
	SessionEnd     []HookEntry `yaml:"sessionEnd,omitempty"`
	TemplateLoaded []HookEntry `yaml:"templateLoaded,omitempty"`
	CodeGenerated  []HookEntry `yaml:"codeGenerated,omitempty"`
	BeforeCrewRun  []HookEntry `yaml:"beforeCrewRun,omitempty"`
	AfterCrewRun   []HookEntry `yaml:"afterCrewRun,omitempty"`
	GatewayStart   []HookEntry `yaml:"gatewayStart,omitempty"`
	GatewayStop    []HookEntry `yaml:"gatewayStop,omitempty"`
}

// HookEntry defines a single hook action.
type HookEntry struct {
	Command string `yaml:"command"`
	Timeout int    `yaml:"timeout,omitempty"` // milliseconds
}

// MetricsConfig controls the Prometheus endpoint.
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled,omitempty"`
	Path    string `yaml:"path,omitempty"`
}
