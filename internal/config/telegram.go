package config

import (
	"fmt"
	"strconv"
	"strings"
)

// TelegramConfig holds Telegram-specific configuration
type TelegramConfig struct {
	BotToken string `env:"TELEGRAM_BOT_TOKEN" yaml:"bot_token"`
	Debug    bool   `env:"TELEGRAM_DEBUG" yaml:"debug"`
}

// Enabled returns true if Telegram is configured with a bot token
func (c TelegramConfig) Enabled() bool {
	return c.BotToken != ""
}

// Validate checks the "<bot id>:<secret>" shape BotFather issues tokens in.
func (c TelegramConfig) Validate() error {
	if !c.Enabled() {
		return nil
	}
	id, secret, ok := strings.Cut(c.BotToken, ":")
	if _, err := strconv.ParseUint(id, 10, 64); !ok || err != nil || secret == "" {
		return fmt.Errorf("telegram bot_token must look like <bot id>:<secret>")
	}
	return nil
}
