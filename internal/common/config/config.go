// internal/common/config/config.go
package config

import "fmt"

// Config is the main application configuration struct.
type Config struct {
	App           AppConfig               `mapstructure:"app"`
	Camunda       CamundaConfig           `mapstructure:"camunda"`
	Database      DatabaseConfig          `mapstructure:"database"`
	Catalog       CatalogConfig           `mapstructure:"catalog"`
	Dialog        DialogConfig            `mapstructure:"dialog"`
	Conversation  ConversationConfig      `mapstructure:"conversation"`
	Template      TemplateConfig          `mapstructure:"template"`
	Analytics     AnalyticsConfig         `mapstructure:"analytics"`
	Workers       map[string]WorkerConfig `mapstructure:"workers"`
	Logging       LoggingConfig           `mapstructure:"logging"`
	Observability ObservabilityConfig     `mapstructure:"observability"`
	Notifications NotificationConfig      `mapstructure:"notifications"`
}

// --- Core App/Infrastructure Config ---
type AppConfig struct {
	Name        string `mapstructure:"name"`
	Version     string `mapstructure:"version"`
	Environment string `mapstructure:"environment"`
}

type CamundaConfig struct {
	BrokerAddress  string `mapstructure:"broker_address"`
	MaxJobsActive  int    `mapstructure:"max_jobs_active"`
	Timeout        int    `mapstructure:"timeout"`         // milliseconds
	RequestTimeout int    `mapstructure:"request_timeout"` // milliseconds
}

type DatabaseConfig struct {
	Postgres      PostgresConfig      `mapstructure:"postgres"`
	Elasticsearch ElasticsearchConfig `mapstructure:"elasticsearch"`
	Redis         RedisConfig         `mapstructure:"redis"`
}

type PostgresConfig struct {
	Host           string `mapstructure:"host"`
	Port           int    `mapstructure:"port"`
	Database       string `mapstructure:"database"`
	User           string `mapstructure:"user"`
	Password       string `mapstructure:"password"`
	MaxConnections int    `mapstructure:"max_connections"`
	MaxIdle        int    `mapstructure:"max_idle"`
	SSLMode        string `mapstructure:"sslmode"`
}

// GetDSN returns the PostgreSQL connection string
func (p PostgresConfig) GetDSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		p.Host, p.Port, p.User, p.Password, p.Database, p.SSLMode,
	)
}

type ElasticsearchConfig struct {
	Addresses  []string `mapstructure:"addresses"`
	Username   string   `mapstructure:"username"`
	Password   string   `mapstructure:"password"`
	SSLEnabled bool     `mapstructure:"ssl_enabled"`
	URL        string   `mapstructure:"url"` // Single URL for backwards compatibility
}

// GetURL returns the first address or the URL field
func (e ElasticsearchConfig) GetURL() string {
	if e.URL != "" {
		return e.URL
	}
	if len(e.Addresses) > 0 {
		return e.Addresses[0]
	}
	return ""
}

type RedisConfig struct {
	Address  string `mapstructure:"address"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// WorkerConfig holds the core settings applicable to every worker.
type WorkerConfig struct {
	Enabled       bool `mapstructure:"enabled"`
	MaxJobsActive int  `mapstructure:"max_jobs_active"`
	Timeout       int  `mapstructure:"timeout"`     // milliseconds
	MaxRetries    int  `mapstructure:"max_retries"` // For error handling
}

// --- Specific Configuration Sections ---

// CatalogConfig selects where the intent catalog is loaded from at
// bootstrap. Source is "file" or "postgres"; Format applies to the file
// source. There is no runtime mode switching: this value is fixed at load.
type CatalogConfig struct {
	Source string `mapstructure:"source"`
	Path   string `mapstructure:"path"`
	Format string `mapstructure:"format"`
}

// DialogConfig holds the disambiguation thresholds. Zero values fall back
// to the engine defaults.
type DialogConfig struct {
	ConfidenceFloor float64 `mapstructure:"confidence_floor"`
	MarginFloor     float64 `mapstructure:"margin_floor"`
	MaxOptions      int     `mapstructure:"max_options"`
}

// ConversationConfig controls the Redis-backed conversation state store.
// TTLMinutes bounds a conversation's lifetime; expiry is the only deletion
// besides explicit cleanup.
type ConversationConfig struct {
	KeyPrefix  string `mapstructure:"key_prefix"`
	TTLMinutes int    `mapstructure:"ttl_minutes"`
}

// AnalyticsConfig holds settings for decision auditing and stats queries.
type AnalyticsConfig struct {
	DecisionsIndex   string `mapstructure:"decisions_index"`
	DecisionsTable   string `mapstructure:"decisions_table"`
	StatsCacheTTLSec int    `mapstructure:"stats_cache_ttl_sec"`
}

// NotificationConfig holds settings for the escalate-unresolved worker.
type NotificationConfig struct {
	Email struct {
		Enabled   bool   `mapstructure:"enabled"`
		FromEmail string `mapstructure:"from_email"`
		Operator  string `mapstructure:"operator"`
	} `mapstructure:"email"`
	SMS struct {
		Enabled        bool   `mapstructure:"enabled"`
		OperatorNumber string `mapstructure:"operator_number"`
	} `mapstructure:"sms"`
	Webhook struct {
		Enabled bool   `mapstructure:"enabled"`
		URL     string `mapstructure:"url"`
	} `mapstructure:"webhook"`
	AWS struct {
		Region string `mapstructure:"region"`
	} `mapstructure:"aws"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
	Output string `mapstructure:"output"`
}

// ObservabilityConfig holds tracing settings. Prometheus metrics are
// always exported regardless of these values.
type ObservabilityConfig struct {
	TracingEnabled bool   `mapstructure:"tracing_enabled"`
	JaegerEndpoint string `mapstructure:"jaeger_endpoint"`
}

// TemplateConfig holds settings for the build-clarification-prompt worker.
type TemplateConfig struct {
	RegistryPath string `mapstructure:"registry_path"`
}
