package config

import (
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Store   StoreConfig   `yaml:"store" mapstructure:"store"`
	Gmail   GmailConfig   `yaml:"gmail" mapstructure:"gmail"`
	Browser BrowserConfig `yaml:"browser" mapstructure:"browser"`
	Gemini  GeminiConfig  `yaml:"gemini" mapstructure:"gemini"`
	Agent   AgentConfig   `yaml:"agent" mapstructure:"agent"`
	Server  ServerConfig  `yaml:"server" mapstructure:"server"`
	Log     LogConfig     `yaml:"log" mapstructure:"log"`
}

// StoreConfig configures the database backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
	MaxConns    int32  `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns    int32  `yaml:"min_conns" mapstructure:"min_conns"`
}

// GmailConfig configures the webmail interaction.
type GmailConfig struct {
	URL            string `yaml:"url" mapstructure:"url"`
	SearchSubject  string `yaml:"search_subject" mapstructure:"search_subject"`
	SelectorsFile  string `yaml:"selectors_file" mapstructure:"selectors_file"`
	LoginWaitMS    int    `yaml:"login_wait_ms" mapstructure:"login_wait_ms"`
	SelectorWaitMS int    `yaml:"selector_wait_ms" mapstructure:"selector_wait_ms"`
}

// BrowserConfig configures the Playwright driver sidecar.
type BrowserConfig struct {
	BaseURL  string `yaml:"base_url" mapstructure:"base_url"`
	Headless bool   `yaml:"headless" mapstructure:"headless"`
}

// GeminiConfig holds Gemini API settings.
type GeminiConfig struct {
	Key               string  `yaml:"key" mapstructure:"key"`
	Model             string  `yaml:"model" mapstructure:"model"`
	Temperature       float32 `yaml:"temperature" mapstructure:"temperature"`
	MaxOutputTokens   int32   `yaml:"max_output_tokens" mapstructure:"max_output_tokens"`
	RequestsPerSecond float64 `yaml:"requests_per_second" mapstructure:"requests_per_second"`
	Burst             int     `yaml:"burst" mapstructure:"burst"`
}

// AgentConfig configures extraction runs.
type AgentConfig struct {
	StartDate string `yaml:"start_date" mapstructure:"start_date"`
	MaxEmails int    `yaml:"max_emails" mapstructure:"max_emails"`
}

// ServerConfig configures the HTTP API server.
type ServerConfig struct {
	Port int `yaml:"port" mapstructure:"port"`
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
	v.SetEnvPrefix("FITBIT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.database_url", "fitbit_data.db")
	v.SetDefault("gmail.url", "https://gmail.com")
	v.SetDefault("gmail.search_subject", "Your weekly progress report from Fitbit!")
	v.SetDefault("gmail.login_wait_ms", 300000)
	v.SetDefault("gmail.selector_wait_ms", 10000)
	v.SetDefault("browser.base_url", "http://localhost:3000")
	v.SetDefault("browser.headless", false)
	v.SetDefault("gemini.model", "gemma-3-27b-it")
	v.SetDefault("gemini.temperature", 0.2)
	v.SetDefault("gemini.max_output_tokens", 2048)
	v.SetDefault("gemini.requests_per_second", 0.5)
	v.SetDefault("gemini.burst", 1)
	v.SetDefault("agent.start_date", "2024/06/01")
	v.SetDefault("agent.max_emails", 10)
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
