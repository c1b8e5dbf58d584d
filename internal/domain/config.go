package domain

import "time"

// Config holds the complete Kestrel configuration.
type Config struct {
	Server ServerConfig `yaml:"server"`

	Store    StoreConfig    `yaml:"store"`
	Cache    CacheConfig    `yaml:"cache"`
	EventBus EventBusConfig `yaml:"eventBus"`

	Rules   RulesConfig   `yaml:"rules"`
	Scoring ScoringConfig `yaml:"scoring"`
	Worker  WorkerConfig  `yaml:"worker"`

	Logging LoggingConfig `yaml:"logging"`
	Tracing TracingConfig `yaml:"tracing"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host         string `yaml:"host"`
	Port         int    `yaml:"port"`
	ReadTimeout  int    `yaml:"readTimeout"`  // seconds
	WriteTimeout int    `yaml:"writeTimeout"` // seconds

	// RequestTimeout wraps the whole verification pipeline; on expiry a
	// best-effort partial response is produced.
	RequestTimeout time.Duration `yaml:"requestTimeout"`

	// RateLimitPerMinute caps verification requests per tenant. Zero
	// disables the limiter.
	RateLimitPerMinute int `yaml:"rateLimitPerMinute"`
}

// RulesConfig holds rule evaluation settings.
type RulesConfig struct {
	// EvalTimeout bounds a single rule's condition evaluation.
	EvalTimeout time.Duration `yaml:"evalTimeout"`
}

// ScoringConfig holds the configurable parts of the risk model. The weight
// table itself is fixed; only the heuristic-provider policy is tunable.
type ScoringConfig struct {
	// HeuristicProviders are address providers whose non-deliverable
	// verdicts are low-confidence and carry the reduced weight.
	HeuristicProviders []string `yaml:"heuristicProviders"`

	// NonDeliverableHeuristicWeight replaces the standard non-deliverable
	// weight when the verdict came from a heuristic provider.
	NonDeliverableHeuristicWeight int `yaml:"nonDeliverableHeuristicWeight"`
}

// IsHeuristicProvider reports whether provider verdicts are heuristic.
func (c ScoringConfig) IsHeuristicProvider(provider string) bool {
	for _, p := range c.HeuristicProviders {
		if p == provider {
			return true
		}
	}
	return false
}

// WorkerConfig holds the async verification worker settings.
type WorkerConfig struct {
	// Tenants to consume verification requests for. Empty disables the
	// worker.
	Tenants []string `yaml:"tenants"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // json, text
}

// TracingConfig holds OpenTelemetry settings.
type TracingConfig struct {
	Enabled     bool   `yaml:"enabled"`
	ServiceName string `yaml:"serviceName"`
	Endpoint    string `yaml:"endpoint"`
}

// DefaultConfig returns the default single-node configuration.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host:               "0.0.0.0",
			Port:               8080,
			ReadTimeout:        30,
			WriteTimeout:       35,
			RequestTimeout:     30 * time.Second,
			RateLimitPerMinute: 0,
		},
		Store: StoreConfig{
			Driver:     "sqlite",
			SQLitePath: "./kestrel.db",
		},
		Cache: CacheConfig{
			Type:         "memory",
			LocalMaxSize: 10000,
			TTL:          15 * time.Minute,
		},
		EventBus: EventBusConfig{
			Type:              "channel",
			ChannelBufferSize: 1000,
		},
		Rules: RulesConfig{
			EvalTimeout: 50 * time.Millisecond,
		},
		Scoring: ScoringConfig{
			HeuristicProviders:            []string{"heuristic", "usps-fallback"},
			NonDeliverableHeuristicWeight: 10,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
		Tracing: TracingConfig{
			Enabled:     false,
			ServiceName: "kestrel",
		},
	}
}
