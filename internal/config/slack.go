package config

import (
	"fmt"
	"strings"

	"github.com/hashicorp/go-multierror"
)

// SlackConfig holds Slack-specific configuration
type SlackConfig struct {
	BotToken string `env:"SLACK_BOT_TOKEN" yaml:"bot_token"`
	AppToken string `env:"SLACK_APP_TOKEN" yaml:"app_token"`
	Debug    bool   `env:"SLACK_DEBUG" yaml:"debug"`
}

// Enabled returns true if Slack is configured with both tokens
func (c SlackConfig) Enabled() bool {
	return c.BotToken != "" && c.AppToken != ""
}

// Validate checks the token kinds when Slack is enabled
func (c SlackConfig) Validate() error {
	if !c.Enabled() {
		return nil
	}
	var result error
	if !strings.HasPrefix(c.BotToken, "xoxb-") {
		result = multierror.Append(result, fmt.Errorf("slack bot_token must start with xoxb-"))
	}
	if !strings.HasPrefix(c.AppToken, "xapp-") {
		result = multierror.Append(result, fmt.Errorf("slack app_token must start with xapp-"))
	}
	return result
}
