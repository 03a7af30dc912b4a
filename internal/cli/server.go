package cli

import (
	"fmt"

	"github.com/urfave/cli/v2"

	"github.com/lewisedginton/chat_console/internal/server"
	"github.com/lewisedginton/chat_console/pkg/logger"
)

// RunCommand returns the command that starts the console service
func RunCommand() *cli.Command {
	return &cli.Command{
		Name:    "run",
		Aliases: []string{"r"},
		Usage:   "Connect to the configured chat platforms and serve the console",
		Action:  runAction,
	}
}

func runAction(ctx *cli.Context) error {
	cfg, err := loadConfig(ctx)
	if err != nil {
		getLogger(ctx).Error("Failed to load config", logger.ErrorField(err))
		return err
	}

	// The configured logging section wins over the bootstrap logger.
	log := cfg.NewLogger()
	cfg.LogConfig(log)

	s, err := server.New(ctx.Context, cfg, log)
	if err != nil {
		log.Error("Failed to create server", logger.ErrorField(err))
		return fmt.Errorf("failed to create server: %w", err)
	}

	log.Info("Starting console service", logger.StringField("version", cfg.Version))
	if err := s.Run(ctx.Context); err != nil {
		log.Error("Fatal server error occurred", logger.ErrorField(err))
		return fmt.Errorf("server error: %w", err)
	}

	log.Info("Server exited gracefully")
	return nil
}
