package config

import "fmt"

// Config is the main application configuration struct.
type Config struct {
	App           AppConfig               `mapstructure:"app"`
	Server        ServerConfig            `mapstructure:"server"`
	Camunda       CamundaConfig           `mapstructure:"camunda"`
	Database      DatabaseConfig          `mapstructure:"database"`
	Dispatch      DispatchConfig          `mapstructure:"dispatch"`
	Sinks         SinksConfig             `mapstructure:"sinks"`
	Conversion    ConversionConfig        `mapstructure:"conversion"`
	Handoff       HandoffConfig           `mapstructure:"handoff"`
	Replay        ReplayConfig            `mapstructure:"replay"`
	Workers       map[string]WorkerConfig `mapstructure:"workers"`
	Logging       LoggingConfig           `mapstructure:"logging"`
	Observability ObservabilityConfig     `mapstructure:"observability"`
}

type AppConfig struct {
	Name        string `mapstructure:"name"`
	Version     string `mapstructure:"version"`
	Environment string `mapstructure:"environment"`
}

// ServerConfig configures the HTTP intake API used by the landing page.
type ServerConfig struct {
	Port           int      `mapstructure:"port"`
	AllowedOrigins []string `mapstructure:"allowed_origins"`
	ReadTimeout    int      `mapstructure:"read_timeout"`  // milliseconds
	WriteTimeout   int      `mapstructure:"write_timeout"` // milliseconds
}

// Addr returns the listen address.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf(":%d", s.Port)
}

type CamundaConfig struct {
	Enabled        bool   `mapstructure:"enabled"`
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

// Configured reports whether enough settings exist to open a connection.
func (p PostgresConfig) Configured() bool {
	return p.Host != "" && p.Database != "" && p.User != ""
}

type ElasticsearchConfig struct {
	Addresses []string `mapstructure:"addresses"`
	Username  string   `mapstructure:"username"`
	Password  string   `mapstructure:"password"`
}

type RedisConfig struct {
	Address  string `mapstructure:"address"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// DispatchConfig controls the fan-out coordinator.
type DispatchConfig struct {
	SinkTimeout int      `mapstructure:"sink_timeout"` // milliseconds
	Required    []string `mapstructure:"required"`     // sink names counted in overallSuccess
}

// SinksConfig holds the credentials of every delivery target. Empty credentials
// make the corresponding sink skip rather than fail.
type SinksConfig struct {
	Supabase   SupabaseConfig   `mapstructure:"supabase"`
	Postgres   PostgresSink     `mapstructure:"postgres"`
	Telegram   TelegramConfig   `mapstructure:"telegram"`
	SalesAlert SalesAlertConfig `mapstructure:"sales_alert"`
	Facebook   FacebookConfig   `mapstructure:"facebook"`
	Stape      StapeConfig      `mapstructure:"stape"`
}

type SupabaseConfig struct {
	URL    string `mapstructure:"url"`
	APIKey string `mapstructure:"api_key"`
	Table  string `mapstructure:"table"`
}

type PostgresSink struct {
	Enabled bool   `mapstructure:"enabled"`
	Table   string `mapstructure:"table"`
}

type TelegramConfig struct {
	BotToken string `mapstructure:"bot_token"`
	ChatID   string `mapstructure:"chat_id"`
	BaseURL  string `mapstructure:"base_url"`
	TimeZone string `mapstructure:"time_zone"`
}

type SalesAlertConfig struct {
	Region    string `mapstructure:"region"`
	FromEmail string `mapstructure:"from_email"`
	ToEmail   string `mapstructure:"to_email"`
	SMSPhone  string `mapstructure:"sms_phone"`
}

type FacebookConfig struct {
	PixelID        string `mapstructure:"pixel_id"`
	AccessToken    string `mapstructure:"access_token"`
	APIVersion     string `mapstructure:"api_version"`
	TestEventCode  string `mapstructure:"test_event_code"`
	BaseURL        string `mapstructure:"base_url"`
	EventSourceURL string `mapstructure:"event_source_url"`
}

type StapeConfig struct {
	Endpoint        string `mapstructure:"endpoint"`
	APIKey          string `mapstructure:"api_key"`
	ContainerDomain string `mapstructure:"container_domain"`
}

// ConversionConfig is the single source of the conversion value and currency used by
// every conversion sink and the pixel signal.
type ConversionConfig struct {
	Value      float64 `mapstructure:"value"`
	Currency   string  `mapstructure:"currency"`
	CryptoOnly bool    `mapstructure:"crypto_only"`
}

type HandoffConfig struct {
	TTL int `mapstructure:"ttl"` // seconds
}

type ReplayConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Index   string `mapstructure:"index"`
}

// WorkerConfig holds the settings applicable to a Zeebe worker.
type WorkerConfig struct {
	Enabled       bool `mapstructure:"enabled"`
	MaxJobsActive int  `mapstructure:"max_jobs_active"`
	Timeout       int  `mapstructure:"timeout"` // milliseconds
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

type ObservabilityConfig struct {
	ServiceName    string `mapstructure:"service_name"`
	JaegerEndpoint string `mapstructure:"jaeger_endpoint"`
}
