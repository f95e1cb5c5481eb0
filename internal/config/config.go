package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/spf13/viper"
)

const (
	envPrefix            = "CAREBOOK"
	defaultHTTPAddress   = "127.0.0.1:8080"
	defaultDatabasePath  = "carebook.db"
	defaultLogLevel      = "info"
	defaultSessionIssuer = "carebook"
	defaultRemoteDriver  = RemoteDriverMemory
	defaultTombstoneTTL  = 10 * time.Minute
	defaultRearmSchedule = "5 0 * * *"
	defaultAIModel       = "gpt-4o-mini"

	// RemoteDriverMemory keeps remote documents in process.
	RemoteDriverMemory = "memory"
	// RemoteDriverPostgres stores remote documents in PostgreSQL.
	RemoteDriverPostgres = "postgres"
)

// AppConfig captures runtime configuration for carebook.
type AppConfig struct {
	HTTPAddress          string
	AllowedOrigins       []string
	DatabasePath         string
	LogLevel             string
	SessionSigningSecret string
	SessionIssuer        string
	SessionToken         string
	UserID               string
	RemoteDriver         string
	RemotePostgresURL    string
	TombstoneTTL         time.Duration
	RearmSchedule        string
	TelegramToken        string
	TelegramChatID       int64
	AIAPIKey             string
	AIBaseURL            string
	AIModel              string
}

// NewViper returns a viper instance with defaults and env bindings configured.
func NewViper() *viper.Viper {
	configViper := viper.New()
	ApplyDefaults(configViper)
	return configViper
}

// ApplyDefaults configures defaults and env bindings on the provided viper instance.
func ApplyDefaults(configViper *viper.Viper) {
	configViper.SetEnvPrefix(envPrefix)
	configViper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	configViper.AutomaticEnv()

	configViper.SetDefault("http.address", defaultHTTPAddress)
	configViper.SetDefault("http.allowed_origins", []string{})
	configViper.SetDefault("database.path", defaultDatabasePath)
	configViper.SetDefault("log.level", defaultLogLevel)
	configViper.SetDefault("session.issuer", defaultSessionIssuer)
	configViper.SetDefault("remote.driver", defaultRemoteDriver)
	configViper.SetDefault("sync.tombstone_ttl", defaultTombstoneTTL)
	configViper.SetDefault("reminders.rearm_schedule", defaultRearmSchedule)
	configViper.SetDefault("ai.model", defaultAIModel)
}

// Load parses runtime configuration from viper.
func Load(configViper *viper.Viper) (AppConfig, error) {
	cfg := AppConfig{
		HTTPAddress:          configViper.GetString("http.address"),
		AllowedOrigins:       configViper.GetStringSlice("http.allowed_origins"),
		DatabasePath:         configViper.GetString("database.path"),
		LogLevel:             configViper.GetString("log.level"),
		SessionSigningSecret: configViper.GetString("session.signing_secret"),
		SessionIssuer:        configViper.GetString("session.issuer"),
		SessionToken:         configViper.GetString("session.token"),
		UserID:               configViper.GetString("user.id"),
		RemoteDriver:         strings.ToLower(strings.TrimSpace(configViper.GetString("remote.driver"))),
		RemotePostgresURL:    configViper.GetString("remote.postgres_url"),
		TombstoneTTL:         configViper.GetDuration("sync.tombstone_ttl"),
		RearmSchedule:        configViper.GetString("reminders.rearm_schedule"),
		TelegramToken:        configViper.GetString("telegram.token"),
		TelegramChatID:       configViper.GetInt64("telegram.chat_id"),
		AIAPIKey:             configViper.GetString("ai.api_key"),
		AIBaseURL:            configViper.GetString("ai.base_url"),
		AIModel:              configViper.GetString("ai.model"),
	}

	if err := cfg.validate(); err != nil {
		return AppConfig{}, err
	}

	return cfg, nil
}

// TelegramEnabled reports whether reminders should also go to Telegram.
func (c AppConfig) TelegramEnabled() bool {
	return strings.TrimSpace(c.TelegramToken) != ""
}

// AssistantEnabled reports whether the AI summary endpoint is configured.
func (c AppConfig) AssistantEnabled() bool {
	return strings.TrimSpace(c.AIAPIKey) != ""
}

func (c AppConfig) validate() error {
	if strings.TrimSpace(c.SessionSigningSecret) == "" {
		return fmt.Errorf("session.signing_secret is required")
	}
	if strings.TrimSpace(c.SessionIssuer) == "" {
		return fmt.Errorf("session.issuer is required")
	}
	if strings.TrimSpace(c.DatabasePath) == "" {
		return fmt.Errorf("database.path is required")
	}
	if strings.TrimSpace(c.SessionToken) == "" && strings.TrimSpace(c.UserID) == "" {
		return fmt.Errorf("either session.token or user.id is required")
	}
	switch c.RemoteDriver {
	case RemoteDriverMemory:
	case RemoteDriverPostgres:
		if strings.TrimSpace(c.RemotePostgresURL) == "" {
			return fmt.Errorf("remote.postgres_url is required for the postgres driver")
		}
	default:
		return fmt.Errorf("remote.driver %q is not supported", c.RemoteDriver)
	}
	if c.TombstoneTTL <= 0 {
		return fmt.Errorf("sync.tombstone_ttl must be positive")
	}
	if _, err := cron.ParseStandard(c.RearmSchedule); err != nil {
		return fmt.Errorf("reminders.rearm_schedule is invalid: %w", err)
	}
	if c.TelegramEnabled() && c.TelegramChatID == 0 {
		return fmt.Errorf("telegram.chat_id is required when telegram.token is set")
	}
	return nil
}
