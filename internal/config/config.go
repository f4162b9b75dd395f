// Package config loads and validates service configuration from environment
// variables and optional YAML files, with sane defaults for local development.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Accepted values for database.ssl_mode.
const (
	SSLModeDisable    = "disable"
	SSLModeRequire    = "require"
	SSLModeVerifyCA   = "verify-ca"
	SSLModeVerifyFull = "verify-full"
)

// Config is the root of the service configuration tree.
type Config struct {
	Server       ServerConfig       `mapstructure:"server"`
	Database     DatabaseConfig     `mapstructure:"database"`
	Temporal     TemporalConfig     `mapstructure:"temporal"`
	Logging      LoggingConfig      `mapstructure:"logging"`
	Metrics      MetricsConfig      `mapstructure:"metrics"`
	LLM          LLMConfig          `mapstructure:"llm"`
	Kafka        KafkaConfig        `mapstructure:"kafka"`
	Outbox       OutboxConfig       `mapstructure:"outbox"`
	PaperSources PaperSourcesConfig `mapstructure:"paper_sources"`
	Review       ReviewConfig       `mapstructure:"review"`
}

// ServerConfig holds the HTTP listener settings.
type ServerConfig struct {
	Host            string        `mapstructure:"host"`
	HTTPPort        int           `mapstructure:"http_port"`
	MetricsPort     int           `mapstructure:"metrics_port"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// DatabaseConfig holds PostgreSQL connection and pool settings.
type DatabaseConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	Name     string `mapstructure:"name"`

	// SSLMode defaults to "require"; set LITREVIEW_DATABASE_SSL_MODE=disable
	// for local development only.
	SSLMode string `mapstructure:"ssl_mode"`

	MaxConns          int32         `mapstructure:"max_conns"`
	MinConns          int32         `mapstructure:"min_conns"`
	MaxConnLifetime   time.Duration `mapstructure:"max_conn_lifetime"`
	MaxConnIdleTime   time.Duration `mapstructure:"max_conn_idle_time"`
	HealthCheckPeriod time.Duration `mapstructure:"health_check_period"`
	ConnectTimeout    time.Duration `mapstructure:"connect_timeout"`

	MigrationPath    string `mapstructure:"migration_path"`
	MigrationAutoRun bool   `mapstructure:"migration_auto_run"`

	StatementCacheCapacity int `mapstructure:"statement_cache_capacity"`
}

// TemporalConfig points the service at the Temporal cluster.
type TemporalConfig struct {
	HostPort  string `mapstructure:"host_port"`
	Namespace string `mapstructure:"namespace"`
	TaskQueue string `mapstructure:"task_queue"`
}

// LoggingConfig controls zerolog output.
type LoggingConfig struct {
	Level      string `mapstructure:"level"`
	Format     string `mapstructure:"format"`
	Output     string `mapstructure:"output"`
	AddSource  bool   `mapstructure:"add_source"`
	TimeFormat string `mapstructure:"time_format"`
}

// MetricsConfig controls the Prometheus endpoint.
type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Path    string `mapstructure:"path"`
}

// LLMConfig selects and tunes the LLM provider used by the review agents.
type LLMConfig struct {
	// Provider picks the backend: "gemini" or "openai".
	Provider string `mapstructure:"provider"`

	Timeout     time.Duration `mapstructure:"timeout"`
	MaxRetries  int           `mapstructure:"max_retries"`
	RetryDelay  time.Duration `mapstructure:"retry_delay"`
	Temperature float64       `mapstructure:"temperature"`

	// MaxTokens caps the completion length; 0 leaves it to the provider.
	MaxTokens int `mapstructure:"max_tokens"`

	OpenAI OpenAIConfig `mapstructure:"openai"`
	Gemini GeminiConfig `mapstructure:"gemini"`
}

// OpenAIConfig holds OpenAI-specific settings. The API key never comes from
// config files; see loadSecrets.
type OpenAIConfig struct {
	APIKey  string `mapstructure:"-"`
	Model   string `mapstructure:"model"`
	BaseURL string `mapstructure:"base_url"`
}

// GeminiConfig holds Google Gemini-specific settings. The API key never
// comes from config files; see loadSecrets.
type GeminiConfig struct {
	APIKey string `mapstructure:"-"`
	Model  string `mapstructure:"model"`
}

// KafkaConfig covers both directions of Kafka traffic: the outbox publisher
// and the inbound command listener.
type KafkaConfig struct {
	Enabled      bool          `mapstructure:"enabled"`
	Brokers      []string      `mapstructure:"brokers"`
	Topic        string        `mapstructure:"topic"`
	BatchSize    int           `mapstructure:"batch_size"`
	BatchTimeout time.Duration `mapstructure:"batch_timeout"`

	// CommandTopic carries inbound review commands; empty disables the
	// listener entirely.
	CommandTopic   string `mapstructure:"command_topic"`
	CommandGroupID string `mapstructure:"command_group_id"`
}

// OutboxConfig tunes the outbox relay loop.
type OutboxConfig struct {
	PollInterval time.Duration `mapstructure:"poll_interval"`
	BatchSize    int           `mapstructure:"batch_size"`

	// MaxRetries is the delivery attempt ceiling before dead-lettering.
	MaxRetries int `mapstructure:"max_retries"`
}

// PaperSourcesConfig holds per-source API settings.
type PaperSourcesConfig struct {
	ArXiv PaperSourceConfig `mapstructure:"arxiv"`
}

// PaperSourceConfig configures one paper source client.
type PaperSourceConfig struct {
	Enabled    bool          `mapstructure:"enabled"`
	BaseURL    string        `mapstructure:"base_url"`
	Timeout    time.Duration `mapstructure:"timeout"`
	RateLimit  float64       `mapstructure:"rate_limit"`
	MaxResults int           `mapstructure:"max_results"`
}

// ReviewConfig carries the defaults applied to incoming review requests.
type ReviewConfig struct {
	DefaultPapers   int `mapstructure:"default_papers"`
	OverfetchFactor int `mapstructure:"overfetch_factor"`
	MaxResults      int `mapstructure:"max_results"`
	ReviewBatchSize int `mapstructure:"review_batch_size"`
}

// DSN renders the PostgreSQL connection string with user and password
// escaped for URL placement.
func (c *DatabaseConfig) DSN() string {
	params := url.Values{}
	params.Set("sslmode", c.SSLMode)
	if c.ConnectTimeout > 0 {
		params.Set("connect_timeout", fmt.Sprintf("%d", int(c.ConnectTimeout.Seconds())))
	}
	if c.StatementCacheCapacity > 0 {
		params.Set("statement_cache_capacity", fmt.Sprintf("%d", c.StatementCacheCapacity))
	}

	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?%s",
		url.QueryEscape(c.User),
		url.QueryEscape(c.Password),
		c.Host,
		c.Port,
		c.Name,
		params.Encode(),
	)
}

// HTTPAddress is the host:port the HTTP server binds to.
func (c *ServerConfig) HTTPAddress() string {
	return fmt.Sprintf("%s:%d", c.Host, c.HTTPPort)
}

// Load assembles the configuration: defaults first, then an optional YAML
// file, then LITREVIEW_* environment variables, then secrets from their own
// env vars. The result is validated before being returned.
func Load() (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("LITREVIEW")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.AddConfigPath("/etc/litreview-service")

	if err := v.ReadInConfig(); err != nil {
		// A missing config file is fine; env vars and defaults carry it.
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	loadSecrets(&cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return &cfg, nil
}

// loadSecrets reads API keys from the environment. The bare names are
// honored for drop-in compatibility with existing deployments; the
// LITREVIEW-prefixed names win when both are set.
func loadSecrets(cfg *Config) {
	cfg.LLM.Gemini.APIKey = os.Getenv("GEMINI_API_KEY")
	if key := os.Getenv("LITREVIEW_LLM_GEMINI_API_KEY"); key != "" {
		cfg.LLM.Gemini.APIKey = key
	}

	cfg.LLM.OpenAI.APIKey = os.Getenv("OPENAI_API_KEY")
	if key := os.Getenv("LITREVIEW_LLM_OPENAI_API_KEY"); key != "" {
		cfg.LLM.OpenAI.APIKey = key
	}
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.http_port", 8080)
	v.SetDefault("server.metrics_port", 9091)
	v.SetDefault("server.read_timeout", "30s")
	v.SetDefault("server.write_timeout", "30s")
	v.SetDefault("server.shutdown_timeout", "30s")

	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "litreview")
	v.SetDefault("database.password", "")
	v.SetDefault("database.name", "litreview_service")
	v.SetDefault("database.ssl_mode", SSLModeRequire)
	v.SetDefault("database.max_conns", 50)
	v.SetDefault("database.min_conns", 10)
	v.SetDefault("database.max_conn_lifetime", "1h")
	v.SetDefault("database.max_conn_idle_time", "30m")
	v.SetDefault("database.health_check_period", "30s")
	v.SetDefault("database.connect_timeout", "10s")
	v.SetDefault("database.migration_path", "migrations")
	v.SetDefault("database.migration_auto_run", false)
	v.SetDefault("database.statement_cache_capacity", 512)

	v.SetDefault("temporal.host_port", "localhost:7233")
	v.SetDefault("temporal.namespace", "litreview")
	v.SetDefault("temporal.task_queue", "litreview-tasks")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
	v.SetDefault("logging.output", "stdout")
	v.SetDefault("logging.add_source", false)
	v.SetDefault("logging.time_format", time.RFC3339)

	v.SetDefault("metrics.enabled", true)
	v.SetDefault("metrics.path", "/metrics")

	v.SetDefault("llm.provider", "gemini")
	v.SetDefault("llm.timeout", "60s")
	v.SetDefault("llm.max_retries", 3)
	v.SetDefault("llm.retry_delay", "2s")
	v.SetDefault("llm.temperature", 0.7)
	v.SetDefault("llm.max_tokens", 0)
	v.SetDefault("llm.openai.model", "gpt-4o-mini")
	v.SetDefault("llm.openai.base_url", "https://api.openai.com/v1")
	v.SetDefault("llm.gemini.model", "gemini-1.5-flash-8b")

	v.SetDefault("kafka.enabled", false)
	v.SetDefault("kafka.brokers", []string{"localhost:9092"})
	v.SetDefault("kafka.topic", "events.outbox.litreview_service")
	v.SetDefault("kafka.batch_size", 100)
	v.SetDefault("kafka.batch_timeout", "10ms")
	v.SetDefault("kafka.command_topic", "")
	v.SetDefault("kafka.command_group_id", "litreview-worker")

	v.SetDefault("outbox.poll_interval", "1s")
	v.SetDefault("outbox.batch_size", 100)
	v.SetDefault("outbox.max_retries", 5)

	// arXiv asks clients for at most 3 requests per second.
	v.SetDefault("paper_sources.arxiv.enabled", true)
	v.SetDefault("paper_sources.arxiv.base_url", "https://export.arxiv.org/api")
	v.SetDefault("paper_sources.arxiv.timeout", "30s")
	v.SetDefault("paper_sources.arxiv.rate_limit", 3.0)
	v.SetDefault("paper_sources.arxiv.max_results", 100)

	v.SetDefault("review.default_papers", 5)
	v.SetDefault("review.overfetch_factor", 5)
	v.SetDefault("review.max_results", 100)
	v.SetDefault("review.review_batch_size", 5)
}

// Validate rejects configurations the service cannot start with.
func (c *Config) Validate() error {
	if err := validatePort("HTTP", c.Server.HTTPPort); err != nil {
		return err
	}
	if err := validatePort("metrics", c.Server.MetricsPort); err != nil {
		return err
	}
	if err := c.validateDatabase(); err != nil {
		return err
	}
	if err := c.validateLogging(); err != nil {
		return err
	}
	if err := c.validateReview(); err != nil {
		return err
	}
	return c.validateLLM()
}

func validatePort(name string, port int) error {
	if port <= 0 || port > 65535 {
		return fmt.Errorf("invalid %s port: %d", name, port)
	}
	return nil
}

func (c *Config) validateDatabase() error {
	db := &c.Database
	if db.Host == "" {
		return fmt.Errorf("database host is required")
	}
	if db.Port <= 0 || db.Port > 65535 {
		return fmt.Errorf("invalid database port: %d", db.Port)
	}
	if db.Name == "" {
		return fmt.Errorf("database name is required")
	}
	if db.MaxConns < db.MinConns {
		return fmt.Errorf("max_conns (%d) must be >= min_conns (%d)", db.MaxConns, db.MinConns)
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch strings.ToLower(c.Logging.Level) {
	case "trace", "debug", "info", "warn", "error", "fatal", "panic":
		return nil
	default:
		return fmt.Errorf("invalid log level: %s", c.Logging.Level)
	}
}

func (c *Config) validateReview() error {
	if c.Review.DefaultPapers <= 0 {
		return fmt.Errorf("review default_papers must be positive")
	}
	if c.Review.OverfetchFactor < 1 {
		return fmt.Errorf("review overfetch_factor must be at least 1")
	}
	return nil
}

// validateLLM checks the selected provider has its API key set.
func (c *Config) validateLLM() error {
	switch strings.ToLower(c.LLM.Provider) {
	case "gemini":
		if c.LLM.Gemini.APIKey == "" {
			return fmt.Errorf("LLM provider %q requires GEMINI_API_KEY to be set", c.LLM.Provider)
		}
	case "openai":
		if c.LLM.OpenAI.APIKey == "" {
			return fmt.Errorf("LLM provider %q requires OPENAI_API_KEY to be set", c.LLM.Provider)
		}
	default:
		return fmt.Errorf("unsupported LLM provider: %s", c.LLM.Provider)
	}
	return nil
}
