package config

import (
	"fmt"
	"strings"

	"github.com/hashicorp/go-multierror"

	"github.com/lewisedginton/chat_console/pkg/config"
	"github.com/lewisedginton/chat_console/pkg/logger"
)

// AppConfig holds all application configuration
type AppConfig struct {
	// Service configuration
	ServiceName string `env:"SERVICE_NAME" yaml:"service_name" default:"chat-console"`
	Version     string `env:"VERSION" yaml:"version" default:"dev"`
	Environment string `env:"ENVIRONMENT" yaml:"environment" default:"development"`

	// Logging configuration
	Logging config.CommonConfig `yaml:"logging"`

	// Console behaviour and operators
	Console ConsoleConfig `yaml:"console"`

	// Platform connectors, each enabled by its tokens
	Discord  DiscordConfig  `yaml:"discord"`
	Slack    SlackConfig    `yaml:"slack"`
	Telegram TelegramConfig `yaml:"telegram"`

	// Overflow paste backend
	Paste PasteConfig `yaml:"paste"`

	// Ops HTTP server (metrics and health endpoints)
	Ops    config.OpsServerConfig `yaml:"ops"`
	Health HealthConfig           `yaml:"health"`

	// Database configuration (optional, enables the Postgres audit log)
	Database config.DatabaseConfig `yaml:"database"`
}

// Validate validates the configuration and returns an error if invalid
func (c AppConfig) Validate() error {
	var result error

	for _, v := range []config.Validator{c.Logging, c.Console, c.Discord, c.Slack, c.Telegram, c.Paste, c.Ops, c.Health, c.Database} {
		if err := v.Validate(); err != nil {
			result = multierror.Append(result, err)
		}
	}

	if !c.Discord.Enabled() && !c.Slack.Enabled() && !c.Telegram.Enabled() {
		result = multierror.Append(result, fmt.Errorf("no connectors configured: set tokens for at least one of Discord, Slack or Telegram"))
	}

	for platform, enabled := range map[string]bool{
		"discord":  c.Discord.Enabled(),
		"slack":    c.Slack.Enabled(),
		"telegram": c.Telegram.Enabled(),
	} {
		if enabled && len(c.Console.OperatorIDs(platform)) == 0 {
			result = multierror.Append(result, fmt.Errorf("%s is enabled but has no operator ids", platform))
		}
	}

	return result
}

// GetLogLevel returns the parsed logger level
func (c *AppConfig) GetLogLevel() logger.Level {
	return logger.ParseLevel(c.Logging.LogLevel)
}

// NewLogger builds the service logger from the logging section.
func (c *AppConfig) NewLogger() logger.Logger {
	return logger.NewLogger(logger.Config{
		Level:   c.GetLogLevel(),
		Format:  c.Logging.LogFormat,
		Service: c.ServiceName,
	})
}

// IsProduction returns true if running in production environment
func (c *AppConfig) IsProduction() bool {
	return strings.ToLower(c.Environment) == "production"
}

// LogConfig logs the current configuration (without sensitive data)
func (c *AppConfig) LogConfig(log logger.Logger) {
	log.Info("Application configuration loaded",
		logger.StringField("service_name", c.ServiceName),
		logger.StringField("version", c.Version),
		logger.StringField("environment", c.Environment),
		logger.StringField("log_level", c.Logging.LogLevel),
		logger.StringField("engine", c.Console.Engine),
		logger.StringField("prefix", c.Console.Prefix),
		logger.DurationField("idle_timeout", c.Console.IdleTimeout),
		logger.StringField("paste_backend", c.Paste.Backend),
		logger.BoolField("discord_enabled", c.Discord.Enabled()),
		logger.BoolField("slack_enabled", c.Slack.Enabled()),
		logger.BoolField("telegram_enabled", c.Telegram.Enabled()),
		logger.BoolField("ops_enabled", c.Ops.Enabled),
		logger.BoolField("database_configured", c.Database.Enabled()),
	)
}
