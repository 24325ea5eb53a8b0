package config

import (
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/sells-group/broker-crm/internal/store"
)

// Config holds the full application configuration.
type Config struct {
	Store   StoreConfig   `yaml:"store" mapstructure:"store"`
	Cognito CognitoConfig `yaml:"cognito" mapstructure:"cognito"`
	Gmail   GmailConfig   `yaml:"gmail" mapstructure:"gmail"`
	Sync    SyncConfig    `yaml:"sync" mapstructure:"sync"`
	Server  ServerConfig  `yaml:"server" mapstructure:"server"`
	Log     LogConfig     `yaml:"log" mapstructure:"log"`
}

// StoreConfig configures the database backend.
type StoreConfig struct {
	Driver      string            `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string            `yaml:"database_url" mapstructure:"database_url"`
	SQLitePath  string            `yaml:"sqlite_path" mapstructure:"sqlite_path"`
	Pool        *store.PoolConfig `yaml:"pool" mapstructure:"pool"`
}

// CognitoConfig holds Cognito Forms API credentials.
type CognitoConfig struct {
	APIKey         string `yaml:"api_key" mapstructure:"api_key"`
	OrganizationID string `yaml:"organization_id" mapstructure:"organization_id"`
	BaseURL        string `yaml:"base_url" mapstructure:"base_url"`
}

// GmailConfig holds the OAuth material for the notification inbox.
type GmailConfig struct {
	ClientID     string `yaml:"client_id" mapstructure:"client_id"`
	ClientSecret string `yaml:"client_secret" mapstructure:"client_secret"`
	RefreshToken string `yaml:"refresh_token" mapstructure:"refresh_token"`
	Query        string `yaml:"query" mapstructure:"query"`
	MaxResults   int64  `yaml:"max_results" mapstructure:"max_results"`
}

// SyncConfig configures the ingestion orchestrators.
type SyncConfig struct {
	LookbackDays int      `yaml:"lookback_days" mapstructure:"lookback_days"`
	IncludeForms []string `yaml:"include_forms" mapstructure:"include_forms"`
	ExcludeForms []string `yaml:"exclude_forms" mapstructure:"exclude_forms"`
	Schedule     string   `yaml:"schedule" mapstructure:"schedule"`
	AliasFile    string   `yaml:"alias_file" mapstructure:"alias_file"`
}

// ServerConfig configures the HTTP API server.
type ServerConfig struct {
	Port     int    `yaml:"port" mapstructure:"port"`
	APIToken string `yaml:"api_token" mapstructure:"api_token"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("BROKERCRM")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("store.driver", "postgres")
	v.SetDefault("store.sqlite_path", "broker-crm.db")
	v.SetDefault("cognito.base_url", "https://www.cognitoforms.com/api")
	v.SetDefault("gmail.query", "from:cognitoforms.com newer_than:30d")
	v.SetDefault("gmail.max_results", 200)
	v.SetDefault("sync.lookback_days", 30)
	v.SetDefault("sync.schedule", "")
	v.SetDefault("server.port", 8080)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}

// Validate checks that the configuration required for a given mode is
// present. Modes: "sync-forms", "sync-email", "serve", "migrate".
func (c *Config) Validate(mode string) error {
	var missing []string

	requireStore := func() {
		switch c.Store.Driver {
		case "sqlite":
			if c.Store.SQLitePath == "" {
				missing = append(missing, "store.sqlite_path is required")
			}
		default:
			if c.Store.DatabaseURL == "" {
				missing = append(missing, "store.database_url is required")
			}
		}
	}

	switch mode {
	case "sync-forms":
		requireStore()
		if c.Cognito.APIKey == "" {
			missing = append(missing, "cognito.api_key is required")
		}
		if c.Cognito.OrganizationID == "" {
			missing = append(missing, "cognito.organization_id is required")
		}
	case "sync-email":
		requireStore()
		if c.Gmail.ClientID == "" {
			missing = append(missing, "gmail.client_id is required")
		}
		if c.Gmail.ClientSecret == "" {
			missing = append(missing, "gmail.client_secret is required")
		}
		if c.Gmail.RefreshToken == "" {
			missing = append(missing, "gmail.refresh_token is required")
		}
	case "serve":
		requireStore()
		if c.Server.Port <= 0 {
			missing = append(missing, "server.port must be > 0")
		}
	case "migrate", "deals":
		requireStore()
	default:
		return eris.Errorf("config: unknown mode %q", mode)
	}

	if len(missing) > 0 {
		return eris.Errorf("config: %s", strings.Join(missing, "; "))
	}
	return nil
}
