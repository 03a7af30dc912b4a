package config

import (
	"fmt"
	"slices"
	"time"

	"github.com/hashicorp/go-multierror"
)

// ConsoleConfig holds the command surface settings and the operator list.
type ConsoleConfig struct {
	Prefix      string        `env:"CONSOLE_PREFIX" yaml:"prefix" default:"!"`
	Engine      string        `env:"CONSOLE_ENGINE" yaml:"engine" default:"lua"`
	IdleTimeout time.Duration `env:"CONSOLE_IDLE_TIMEOUT" yaml:"idle_timeout" default:"10m"`
	Ceiling     int           `env:"CONSOLE_CEILING" yaml:"ceiling" default:"2000"`
	Shell       string        `env:"CONSOLE_SHELL" yaml:"shell" default:"sh"`

	// Operator author IDs, comma separated in the environment
	DiscordOperators  []string `env:"DISCORD_OPERATOR_IDS" yaml:"discord_operators"`
	SlackOperators    []string `env:"SLACK_OPERATOR_IDS" yaml:"slack_operators"`
	TelegramOperators []string `env:"TELEGRAM_OPERATOR_IDS" yaml:"telegram_operators"`
}

// OperatorIDs returns the configured operators of a platform.
func (c ConsoleConfig) OperatorIDs(platform string) []string {
	switch platform {
	case "discord":
		return c.DiscordOperators
	case "slack":
		return c.SlackOperators
	case "telegram":
		return c.TelegramOperators
	default:
		return nil
	}
}

// Operators maps every platform to its operator IDs.
func (c ConsoleConfig) Operators() map[string][]string {
	return map[string][]string{
		"discord":  c.DiscordOperators,
		"slack":    c.SlackOperators,
		"telegram": c.TelegramOperators,
	}
}

// Validate checks the console settings
func (c ConsoleConfig) Validate() error {
	var result error
	if c.Prefix == "" {
		result = multierror.Append(result, fmt.Errorf("console prefix cannot be empty"))
	}
	if !slices.Contains([]string{"lua", "js"}, c.Engine) {
		result = multierror.Append(result, fmt.Errorf("console engine must be lua or js, got %q", c.Engine))
	}
	if c.IdleTimeout <= 0 {
		result = multierror.Append(result, fmt.Errorf("console idle_timeout must be greater than 0"))
	}
	if c.Ceiling < 1 {
		result = multierror.Append(result, fmt.Errorf("console ceiling must be positive, got %d", c.Ceiling))
	}
	return result
}
