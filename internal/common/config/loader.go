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

// Load reads configs/config.yaml, merges config.{APP_ENVIRONMENT}.yaml over it and
// applies environment overrides.
func Load() (*Config, error) {
	loadEnvFile()

	v := newViper()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath("./configs")
	v.AddConfigPath("../../configs")
	v.AddConfigPath(".")

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
	_ = v.MergeInConfig()

	return finish(v)
}

// LoadFromFile loads configuration from a specific file path
func LoadFromFile(path string) (*Config, error) {
	loadEnvFile()

	v := newViper()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	return finish(v)
}

func newViper() *viper.Viper {
	v := viper.New()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()
	return v
}

func finish(v *viper.Viper) (*Config, error) {
	expandEnvVars(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	applyDefaults(&cfg)
	overrideFromEnv(&cfg)

	if err := validateConfig(&cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

func loadEnvFile() {
	possiblePaths := []string{".env", "../.env", "../../.env"}
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
			return ""
		}
		dir = parent
	}
}

// expandEnvVars resolves ${VAR} placeholders left in string values.
func expandEnvVars(v *viper.Viper) {
	for _, key := range v.AllKeys() {
		strVal, ok := v.Get(key).(string)
		if !ok {
			continue
		}
		if strings.Contains(strVal, "${") || (strings.HasPrefix(strVal, "$") && len(strVal) > 1) {
			if expanded := os.ExpandEnv(strVal); expanded != strVal {
				v.Set(key, expanded)
			}
		}
	}
}

// overrideFromEnv fills sink credentials from the conventional variable names used by
// the landing-page deployment when the YAML left them empty.
func overrideFromEnv(cfg *Config) {
	setIfEmpty(&cfg.Sinks.Supabase.URL, "SUPABASE_URL")
	setIfEmpty(&cfg.Sinks.Supabase.APIKey, "SUPABASE_ANON_KEY")
	setIfEmpty(&cfg.Sinks.Telegram.BotToken, "TELEGRAM_BOT_TOKEN")
	setIfEmpty(&cfg.Sinks.Telegram.ChatID, "TELEGRAM_CHAT_ID")
	setIfEmpty(&cfg.Sinks.Facebook.PixelID, "FACEBOOK_PIXEL_ID")
	setIfEmpty(&cfg.Sinks.Facebook.AccessToken, "FACEBOOK_ACCESS_TOKEN")
	setIfEmpty(&cfg.Sinks.Facebook.TestEventCode, "FACEBOOK_TEST_EVENT_CODE")
	setIfEmpty(&cfg.Sinks.Stape.Endpoint, "STAPE_GTM_ENDPOINT")
	setIfEmpty(&cfg.Sinks.Stape.APIKey, "STAPE_API_KEY")
	setIfEmpty(&cfg.Sinks.Stape.ContainerDomain, "STAPE_CONTAINER_DOMAIN")
	setIfEmpty(&cfg.Database.Postgres.User, "DB_USER")
	setIfEmpty(&cfg.Database.Postgres.Password, "DB_PASSWORD")

	if val := os.Getenv("FACEBOOK_API_VERSION"); val != "" {
		cfg.Sinks.Facebook.APIVersion = val
	}
}

func setIfEmpty(dst *string, envKey string) {
	if *dst != "" {
		return
	}
	if val := os.Getenv(envKey); val != "" {
		*dst = val
	}
}

// applyDefaults sets default values for optional configuration fields
func applyDefaults(cfg *Config) {
	if cfg.App.Name == "" {
		cfg.App.Name = "lead-dispatcher"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Server.ReadTimeout == 0 {
		cfg.Server.ReadTimeout = 10000
	}
	if cfg.Server.WriteTimeout == 0 {
		cfg.Server.WriteTimeout = 30000
	}

	if cfg.Camunda.MaxJobsActive == 0 {
		cfg.Camunda.MaxJobsActive = 10
	}
	if cfg.Camunda.Timeout == 0 {
		cfg.Camunda.Timeout = 30000
	}
	if cfg.Camunda.RequestTimeout == 0 {
		cfg.Camunda.RequestTimeout = 30000
	}

	if cfg.Database.Postgres.Port == 0 {
		cfg.Database.Postgres.Port = 5432
	}
	if cfg.Database.Postgres.MaxConnections == 0 {
		cfg.Database.Postgres.MaxConnections = 10
	}
	if cfg.Database.Postgres.MaxIdle == 0 {
		cfg.Database.Postgres.MaxIdle = 2
	}
	if cfg.Database.Postgres.SSLMode == "" {
		cfg.Database.Postgres.SSLMode = "disable"
	}

	if cfg.Dispatch.SinkTimeout == 0 {
		cfg.Dispatch.SinkTimeout = 5000
	}

	if cfg.Sinks.Supabase.Table == "" {
		cfg.Sinks.Supabase.Table = "leads"
	}
	if cfg.Sinks.Postgres.Table == "" {
		cfg.Sinks.Postgres.Table = "leads"
	}
	if cfg.Sinks.Telegram.BaseURL == "" {
		cfg.Sinks.Telegram.BaseURL = "https://api.telegram.org"
	}
	if cfg.Sinks.Telegram.TimeZone == "" {
		cfg.Sinks.Telegram.TimeZone = "Asia/Dubai"
	}
	if cfg.Sinks.Facebook.APIVersion == "" {
		cfg.Sinks.Facebook.APIVersion = "v18.0"
	}
	if cfg.Sinks.Facebook.BaseURL == "" {
		cfg.Sinks.Facebook.BaseURL = "https://graph.facebook.com"
	}
	if cfg.Sinks.Stape.ContainerDomain == "" {
		cfg.Sinks.Stape.ContainerDomain = "cars-vault.com"
	}

	if cfg.Conversion.Value == 0 {
		cfg.Conversion.Value = 15
	}
	if cfg.Conversion.Currency == "" {
		cfg.Conversion.Currency = "USD"
	}
	cfg.Conversion.Currency = strings.ToUpper(cfg.Conversion.Currency)

	if cfg.Handoff.TTL == 0 {
		cfg.Handoff.TTL = 1800
	}
	if cfg.Replay.Index == "" {
		cfg.Replay.Index = "lead-dispatch-replay"
	}

	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "json"
	}
	if cfg.Observability.ServiceName == "" {
		cfg.Observability.ServiceName = cfg.App.Name
	}

	for key, worker := range cfg.Workers {
		if worker.MaxJobsActive == 0 {
			worker.MaxJobsActive = 5
		}
		if worker.Timeout == 0 {
			worker.Timeout = 30000
		}
		cfg.Workers[key] = worker
	}
}

// validateConfig only rejects settings that would make the process misbehave. Missing
// sink credentials are legal: those sinks skip.
func validateConfig(cfg *Config) error {
	if cfg.Server.Port < 0 || cfg.Server.Port > 65535 {
		return fmt.Errorf("server.port out of range: %d", cfg.Server.Port)
	}
	if cfg.Dispatch.SinkTimeout < 0 {
		return fmt.Errorf("dispatch.sink_timeout must be positive")
	}
	if cfg.Camunda.Enabled && cfg.Camunda.BrokerAddress == "" {
		return fmt.Errorf("camunda.broker_address is required when camunda is enabled")
	}
	if cfg.Sinks.Postgres.Enabled && !cfg.Database.Postgres.Configured() {
		return fmt.Errorf("database.postgres host, database and user are required by sinks.postgres")
	}
	if cfg.Replay.Enabled && len(cfg.Database.Elasticsearch.Addresses) == 0 {
		return fmt.Errorf("database.elasticsearch.addresses is required when replay is enabled")
	}
	if cfg.Conversion.Value < 0 {
		return fmt.Errorf("conversion.value must not be negative")
	}
	return nil
}

// GetDuration converts milliseconds from config to time.Duration
func GetDuration(milliseconds int) time.Duration {
	return time.Duration(milliseconds) * time.Millisecond
}

// GetWorkerConfig retrieves worker-specific configuration with fallback to defaults
func GetWorkerConfig(cfg *Config, workerName string) WorkerConfig {
	if worker, exists := cfg.Workers[workerName]; exists {
		return worker
	}
	return WorkerConfig{
		Enabled:       true,
		MaxJobsActive: 5,
		Timeout:       30000,
	}
}
