package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lewisedginton/chat_console/pkg/config"
)

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("DISCORD_BOT_TOKEN", "discord-token")
	t.Setenv("DISCORD_OPERATOR_IDS", "111, 222")
	t.Setenv("CONSOLE_ENGINE", "js")
	t.Setenv("CONSOLE_IDLE_TIMEOUT", "30s")

	var cfg AppConfig
	require.NoError(t, config.GetConfigFromEnvVars(&cfg))

	assert.Equal(t, "chat-console", cfg.ServiceName)
	assert.Equal(t, "!", cfg.Console.Prefix)
	assert.Equal(t, "js", cfg.Console.Engine)
	assert.Equal(t, 30*time.Second, cfg.Console.IdleTimeout)
	assert.Equal(t, 2000, cfg.Console.Ceiling)
	assert.Equal(t, []string{"111", "222"}, cfg.Console.OperatorIDs("discord"))
	assert.Equal(t, 500, cfg.Discord.MessageCacheSize)
	assert.Equal(t, PasteHastebin, cfg.Paste.Backend)
	assert.Equal(t, 24*time.Hour, cfg.Paste.S3Expiry)
	assert.True(t, cfg.Ops.Enabled)
	assert.Equal(t, "/health/ready", cfg.Health.ReadinessPath)
	assert.False(t, cfg.Database.Enabled())
	assert.True(t, cfg.Discord.Enabled())
	assert.False(t, cfg.Slack.Enabled())
}

func TestLoadFromYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "console.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
service_name: ops-console
console:
  prefix: "?"
  telegram_operators: ["42"]
telegram:
  bot_token: "123456:tg-token"
paste:
  backend: gist
  gist_token: gh-token
`), 0o600))

	var cfg AppConfig
	require.NoError(t, config.GetConfig(&cfg, path, false))

	assert.Equal(t, "ops-console", cfg.ServiceName)
	assert.Equal(t, "?", cfg.Console.Prefix)
	assert.Equal(t, "lua", cfg.Console.Engine)
	assert.Equal(t, []string{"42"}, cfg.Console.Operators()["telegram"])
	assert.Equal(t, PasteGist, cfg.Paste.Backend)
	assert.Equal(t, "https://api.github.com", cfg.Paste.GistAPIURL)
}

func validConfig() AppConfig {
	return AppConfig{
		Logging: config.CommonConfig{LogLevel: "info", LogFormat: "json"},
		Console: ConsoleConfig{
			Prefix:           "!",
			Engine:           "lua",
			IdleTimeout:      10 * time.Minute,
			Ceiling:          2000,
			SlackOperators:   []string{"U1"},
			DiscordOperators: []string{"1"},
		},
		Slack:   SlackConfig{BotToken: "xoxb-1", AppToken: "xapp-1"},
		Paste:   PasteConfig{Backend: PasteHastebin, HastebinURL: "https://hastebin.com", Timeout: time.Second},
		Ops:     config.OpsServerConfig{Enabled: true, Port: 8080},
		Health:  HealthConfig{Timeout: time.Second, FailureThreshold: 1},
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*AppConfig)
		wantErr string
	}{
		{name: "valid", mutate: func(*AppConfig) {}},
		{
			name:    "no connectors",
			mutate:  func(c *AppConfig) { c.Slack = SlackConfig{} },
			wantErr: "no connectors configured",
		},
		{
			name:    "connector without operators",
			mutate:  func(c *AppConfig) { c.Telegram.BotToken = "123456:secret" },
			wantErr: "telegram is enabled but has no operator ids",
		},
		{
			name:    "unknown engine",
			mutate:  func(c *AppConfig) { c.Console.Engine = "python" },
			wantErr: "console engine must be lua or js",
		},
		{
			name:    "empty prefix",
			mutate:  func(c *AppConfig) { c.Console.Prefix = "" },
			wantErr: "console prefix cannot be empty",
		},
		{
			name:    "wrong slack token",
			mutate:  func(c *AppConfig) { c.Slack.BotToken = "xoxp-1" },
			wantErr: "slack bot_token must start with xoxb-",
		},
		{
			name: "wrong telegram token",
			mutate: func(c *AppConfig) {
				c.Telegram.BotToken = "secret-only"
				c.Console.TelegramOperators = []string{"42"}
			},
			wantErr: "telegram bot_token must look like <bot id>:<secret>",
		},
		{
			name:    "s3 without bucket",
			mutate:  func(c *AppConfig) { c.Paste.Backend = PasteS3; c.Paste.S3Expiry = time.Hour },
			wantErr: "paste s3_bucket is required",
		},
		{
			name:    "unknown paste backend",
			mutate:  func(c *AppConfig) { c.Paste.Backend = "pastebin" },
			wantErr: "unsupported paste backend",
		},
		{
			name:    "bad log level",
			mutate:  func(c *AppConfig) { c.Logging.LogLevel = "loud" },
			wantErr: "log_level must be one of",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				require.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}
