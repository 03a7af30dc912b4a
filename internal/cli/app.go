// Package cli holds the console's command line: run, config validate and health.
package cli

import (
	"github.com/urfave/cli/v2"

	"github.com/lewisedginton/chat_console/pkg/logger"
)

// NewApp builds the console command line application.
func NewApp(version string) *cli.App {
	return &cli.App{
		Name:    "chat-console",
		Usage:   "An operator console for Discord, Slack and Telegram",
		Version: version,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "log-level",
				Value:   "info",
				Usage:   "Log level (debug, info, warn, error)",
				EnvVars: []string{"LOG_LEVEL"},
			},
			&cli.StringFlag{
				Name:    "config-file",
				Value:   "",
				Usage:   "Path to configuration file",
				EnvVars: []string{"CONFIG_FILE"},
			},
		},
		Before: func(ctx *cli.Context) error {
			log := logger.NewLogger(logger.Config{
				Level:   logger.ParseLevel(ctx.String("log-level")),
				Format:  "json",
				Service: "chat-console",
			})

			ctx.App.Metadata = map[string]interface{}{
				"logger": log,
			}
			return nil
		},
		Commands: []*cli.Command{
			RunCommand(),
			ConfigCommand(),
			HealthCommand(),
		},
	}
}
