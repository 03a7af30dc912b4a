package config

import "fmt"

// DiscordConfig holds Discord-specific configuration
type DiscordConfig struct {
	BotToken         string `env:"DISCORD_BOT_TOKEN" yaml:"bot_token"`
	MessageCacheSize int    `env:"DISCORD_MESSAGE_CACHE_SIZE" yaml:"message_cache_size" default:"500"`
}

// Enabled returns true if Discord is configured with a bot token
func (c DiscordConfig) Enabled() bool {
	return c.BotToken != ""
}

// Validate checks the message cache used to recover pre-edit content
func (c DiscordConfig) Validate() error {
	if c.Enabled() && c.MessageCacheSize < 0 {
		return fmt.Errorf("discord message_cache_size cannot be negative")
	}
	return nil
}
