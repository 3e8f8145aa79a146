package config

import (
	"fmt"
	"strings"
	"time"

	"pestops-sync/internal/domain"
	"pestops-sync/internal/infrastructure/quickbooks"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	Server     ServerConfig     `mapstructure:"server"`
	Log        LogConfig        `mapstructure:"log"`
	Storage    StorageConfig    `mapstructure:"storage"`
	Mongo      MongoConfig      `mapstructure:"mongo"`
	Redis      RedisConfig      `mapstructure:"redis"`
	QuickBooks QuickBooksConfig `mapstructure:"quickbooks"`
	Schedule   ScheduleConfig   `mapstructure:"schedule"`
	Sync       SyncConfig       `mapstructure:"sync"`
	Encryption EncryptionConfig `mapstructure:"encryption"`
}

type ServerConfig struct {
	HTTPAddr        string        `mapstructure:"http_addr"`
	AppURL          string        `mapstructure:"app_url"`
	AllowedOrigins  []string      `mapstructure:"allowed_origins"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Pretty bool   `mapstructure:"pretty"`
}

// StorageConfig selects the persistence backend: "mongo" or "memory".
type StorageConfig struct {
	Driver string `mapstructure:"driver"`
}

type MongoConfig struct {
	URI      string `mapstructure:"uri"`
	Database string `mapstructure:"database"`
}

// RedisConfig enables the shared lock and OAuth state store. An empty Addr
// keeps both in process memory.
type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
	Prefix   string `mapstructure:"prefix"`
}

type QuickBooksConfig struct {
	ClientID             string        `mapstructure:"client_id"`
	ClientSecret         string        `mapstructure:"client_secret"`
	RedirectURL          string        `mapstructure:"redirect_url"`
	Environment          string        `mapstructure:"environment"`
	BaseURL              string        `mapstructure:"base_url"`
	WebhookVerifierToken string        `mapstructure:"webhook_verifier_token"`
	MinorVersion         string        `mapstructure:"minor_version"`
	PageSize             int           `mapstructure:"page_size"`
	RequestTimeout       time.Duration `mapstructure:"request_timeout"`
	DefaultReturnURL     string        `mapstructure:"default_return_url"`
}

type ScheduleConfig struct {
	Timezone          string `mapstructure:"timezone"`
	BusinessStartHour int    `mapstructure:"business_start_hour"`
	BusinessEndHour   int    `mapstructure:"business_end_hour"`
}

type SyncConfig struct {
	LockTTL     time.Duration `mapstructure:"lock_ttl"`
	Incremental bool          `mapstructure:"incremental"`
}

type EncryptionConfig struct {
	Key string `mapstructure:"key"`
}

// Load reads .env, the optional YAML file at path and the environment, in
// increasing precedence. Env keys are the config keys upper-cased with dots
// replaced by underscores, e.g. QUICKBOOKS_CLIENT_ID.
func Load(path string) (Config, error) {
	// a missing .env is normal outside local development
	_ = godotenv.Load()

	v := viper.New()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("failed to decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.http_addr", ":8080")
	v.SetDefault("server.app_url", "http://localhost:8080")
	v.SetDefault("server.allowed_origins", []string{"*"})
	v.SetDefault("server.shutdown_timeout", "15s")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.pretty", false)
	v.SetDefault("storage.driver", "mongo")
	v.SetDefault("mongo.uri", "mongodb://localhost:27017")
	v.SetDefault("mongo.database", "pestops_sync")
	v.SetDefault("redis.addr", "")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.prefix", "pestops-sync:")
	v.SetDefault("quickbooks.client_id", "")
	v.SetDefault("quickbooks.client_secret", "")
	v.SetDefault("quickbooks.redirect_url", "http://localhost:8080/auth/quickbooks/callback")
	v.SetDefault("quickbooks.environment", "sandbox")
	v.SetDefault("quickbooks.base_url", "")
	v.SetDefault("quickbooks.webhook_verifier_token", "")
	v.SetDefault("quickbooks.minor_version", "75")
	v.SetDefault("quickbooks.page_size", 100)
	v.SetDefault("quickbooks.request_timeout", "30s")
	v.SetDefault("quickbooks.default_return_url", "http://localhost:5173")
	v.SetDefault("schedule.timezone", "Local")
	v.SetDefault("schedule.business_start_hour", 7)
	v.SetDefault("schedule.business_end_hour", 19)
	v.SetDefault("sync.lock_ttl", "30m")
	v.SetDefault("sync.incremental", false)
	v.SetDefault("encryption.key", "")
}

// Validate rejects configurations the service cannot start with.
func (c Config) Validate() error {
	if c.Encryption.Key == "" {
		return fmt.Errorf("encryption.key is required")
	}
	switch c.Storage.Driver {
	case "mongo", "memory":
	default:
		return fmt.Errorf("storage.driver must be mongo or memory, got %q", c.Storage.Driver)
	}
	switch c.QuickBooks.Environment {
	case "sandbox", "production":
	default:
		return fmt.Errorf("quickbooks.environment must be sandbox or production, got %q", c.QuickBooks.Environment)
	}
	if c.Schedule.BusinessStartHour < 0 || c.Schedule.BusinessEndHour > 24 ||
		c.Schedule.BusinessStartHour >= c.Schedule.BusinessEndHour {
		return fmt.Errorf("invalid business hours %d-%d", c.Schedule.BusinessStartHour, c.Schedule.BusinessEndHour)
	}
	if _, err := time.LoadLocation(c.Schedule.Timezone); err != nil {
		return fmt.Errorf("invalid schedule.timezone: %w", err)
	}
	return nil
}

// QuickBooksBaseURL is the explicit base url, or the one implied by the environment.
func (c Config) QuickBooksBaseURL() string {
	if c.QuickBooks.BaseURL != "" {
		return strings.TrimRight(c.QuickBooks.BaseURL, "/")
	}
	if c.QuickBooks.Environment == "production" {
		return quickbooks.ProductionBaseURL
	}
	return quickbooks.SandboxBaseURL
}

// BusinessHours builds the schedule gate window.
func (c Config) BusinessHours() domain.BusinessHours {
	loc, err := time.LoadLocation(c.Schedule.Timezone)
	if err != nil {
		loc = time.Local
	}
	return domain.BusinessHours{
		StartHour: c.Schedule.BusinessStartHour,
		EndHour:   c.Schedule.BusinessEndHour,
		Location:  loc,
	}
}
