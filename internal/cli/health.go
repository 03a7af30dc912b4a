package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/lewisedginton/chat_console/pkg/health/checkers"
	"github.com/lewisedginton/chat_console/pkg/logger"
)

// HealthCommand returns a command that checks a running service's liveness endpoint
func HealthCommand() *cli.Command {
	return &cli.Command{
		Name:  "health",
		Usage: "Perform health check against the ops server",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "url",
				Usage: "Liveness URL (defaults to the configured liveness path on localhost)",
			},
			&cli.DurationFlag{
				Name:  "timeout",
				Value: 5 * time.Second,
				Usage: "Request timeout",
			},
		},
		Action: healthAction,
	}
}

func healthAction(ctx *cli.Context) error {
	log := getLogger(ctx)

	url := ctx.String("url")
	if url == "" {
		cfg, err := loadConfig(ctx)
		if err != nil {
			return err
		}
		url = fmt.Sprintf("http://localhost:%d%s", cfg.Ops.Port, cfg.Health.LivenessPath)
	}

	checkCtx, cancel := context.WithTimeout(ctx.Context, ctx.Duration("timeout"))
	defer cancel()

	if err := checkers.NewHTTPChecker(url, "liveness", checkers.WithSuccessOnly()).Check(checkCtx); err != nil {
		log.Error("Health check failed", logger.StringField("url", url), logger.ErrorField(err))
		return fmt.Errorf("health check failed: %w", err)
	}

	_, _ = fmt.Fprintln(ctx.App.Writer, "Service is healthy")
	return nil
}
