// Package server assembles the console service: the chat connectors, the
// console itself, the audit log and the ops HTTP server.
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/lewisedginton/chat_console/internal/audit"
	appconfig "github.com/lewisedginton/chat_console/internal/config"
	"github.com/lewisedginton/chat_console/internal/console"
	"github.com/lewisedginton/chat_console/internal/engine"
	"github.com/lewisedginton/chat_console/internal/monitoring"
	"github.com/lewisedginton/chat_console/internal/paste"
	"github.com/lewisedginton/chat_console/internal/transport"
	"github.com/lewisedginton/chat_console/internal/transport/discord"
	"github.com/lewisedginton/chat_console/internal/transport/slack"
	"github.com/lewisedginton/chat_console/internal/transport/telegram"
	"github.com/lewisedginton/chat_console/pkg/httpmiddleware"
	"github.com/lewisedginton/chat_console/pkg/logger"
	"github.com/lewisedginton/chat_console/pkg/metrics"
	"github.com/lewisedginton/chat_console/pkg/utils"
)

// forceExitAfter bounds shutdown once a signal has been received.
const forceExitAfter = 30 * time.Second

// Server encapsulates all the console service components and lifecycle management
type Server struct {
	cfg        *appconfig.AppConfig
	log        logger.Logger
	metrics    *metrics.Metrics
	console    *console.Console
	connectors []transport.Connector
	monitor    *monitoring.HealthMonitor
	pool       *pgxpool.Pool
}

// New creates a new Server instance with all components initialized
func New(ctx context.Context, cfg *appconfig.AppConfig, log logger.Logger) (*Server, error) {
	s := &Server{
		cfg:     cfg,
		log:     log,
		metrics: metrics.NewMetrics(true),
	}

	eng, err := engine.New(cfg.Console.Engine)
	if err != nil {
		return nil, fmt.Errorf("failed to create engine: %w", err)
	}

	publisher, err := s.createPublisher(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create paste publisher: %w", err)
	}

	recorder, err := s.createAuditRecorder(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create audit recorder: %w", err)
	}

	s.connectors, err = s.createConnectors()
	if err != nil {
		s.closePool()
		return nil, err
	}
	if len(s.connectors) == 0 {
		s.closePool()
		return nil, errors.New("no connectors configured: please set tokens for at least one platform (Discord, Slack or Telegram)")
	}

	transports := make([]transport.Transport, 0, len(s.connectors))
	for _, conn := range s.connectors {
		transports = append(transports, conn)
	}

	s.console, err = console.New(console.Options{
		Config: console.Config{
			Name:        cfg.ServiceName,
			Version:     cfg.Version,
			Prefix:      cfg.Console.Prefix,
			Ceiling:     cfg.Console.Ceiling,
			IdleTimeout: cfg.Console.IdleTimeout,
			Shell:       cfg.Console.Shell,
		},
		Engine:     eng,
		Transports: transports,
		Publisher:  publisher,
		Authorizer: console.NewOperators(cfg.Console.Operators()),
		Audit:      recorder,
		Logger:     log,
		Metrics:    s.metrics,
	})
	if err != nil {
		s.closePool()
		return nil, fmt.Errorf("failed to create console: %w", err)
	}

	monitorCfg := monitoring.Config{
		Logger:           log,
		Version:          cfg.Version,
		Connectors:       s.connectors,
		Timeout:          cfg.Health.Timeout,
		FailureThreshold: cfg.Health.FailureThreshold,
	}
	if s.pool != nil {
		monitorCfg.Database = s.pool
	}
	if cfg.Paste.Backend == appconfig.PasteHastebin {
		monitorCfg.PasteURL = cfg.Paste.HastebinURL
	}
	s.monitor = monitoring.NewHealthMonitor(monitorCfg)

	return s, nil
}

// Run starts the connectors and the ops server and blocks until ctx is done,
// a signal arrives or a connector fails.
func (s *Server) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	s.setupGracefulShutdown(cancel)

	errChans := []<-chan error{}
	if s.cfg.Ops.Enabled {
		opsErrs, _, gracefulCloser, err := utils.ListenHTTP(s.opsServer(), s.log)
		if err != nil {
			return fmt.Errorf("failed to start ops server: %w", err)
		}
		defer gracefulCloser()
		errChans = append(errChans, opsErrs)
	}

	var wg sync.WaitGroup
	connErrs := make(chan error, len(s.connectors))
	errChans = append(errChans, connErrs)
	for _, conn := range s.connectors {
		wg.Add(1)
		go func(conn transport.Connector) {
			defer wg.Done()
			log := s.log.WithFields(logger.PlatformField(conn.Platform()))
			log.Info("Starting connector")
			if err := conn.Start(ctx, s.console); err != nil {
				log.Error("Connector error", logger.ErrorField(err))
				connErrs <- fmt.Errorf("%s connector: %w", conn.Platform(), err)
				return
			}
			log.Info("Connector stopped")
		}(conn)
	}
	s.log.Info("All enabled connectors started", logger.IntField("count", len(s.connectors)))

	merged := utils.MergeErrorChans(errChans...)
	var runErr error
	select {
	case <-ctx.Done():
	case runErr = <-merged:
	}
	// Errors raised while shutting down are already logged.
	go func() {
		for range merged {
		}
	}()

	s.monitor.Drain()
	cancel()
	wg.Wait()
	close(connErrs)
	s.log.Info("All connectors stopped")

	if err := s.console.Close(); err != nil {
		s.log.Error("Console shutdown error", logger.ErrorField(err))
	}
	s.closePool()
	return runErr
}

// opsServer serves metrics, health endpoints and, outside production, pprof.
func (s *Server) opsServer() *http.Server {
	r := chi.NewRouter()
	httpmiddleware.WithObservability(r, s.log, s.metrics)

	r.Handle("/metrics", s.metrics.Handler())
	s.monitor.RegisterHandlers(r, monitoring.Paths{
		Liveness:  s.cfg.Health.LivenessPath,
		Readiness: s.cfg.Health.ReadinessPath,
		Combined:  s.cfg.Health.CombinedPath,
	})
	if !s.cfg.IsProduction() {
		r.Mount("/debug", middleware.Profiler())
	}

	return &http.Server{
		Addr:              s.cfg.Ops.Addr(),
		Handler:           r,
		ReadTimeout:       s.cfg.Ops.ReadTimeout,
		ReadHeaderTimeout: s.cfg.Ops.ReadTimeout,
		WriteTimeout:      s.cfg.Ops.WriteTimeout,
		IdleTimeout:       s.cfg.Ops.IdleTimeout,
	}
}

func (s *Server) createConnectors() ([]transport.Connector, error) {
	var connectors []transport.Connector

	if s.cfg.Discord.Enabled() {
		conn, err := discord.NewConnector(discord.Config{
			Token:            s.cfg.Discord.BotToken,
			MessageCacheSize: s.cfg.Discord.MessageCacheSize,
		}, s.log)
		if err != nil {
			return nil, fmt.Errorf("failed to create Discord connector: %w", err)
		}
		connectors = append(connectors, conn)
	} else {
		s.log.Info("Discord connector disabled (missing DISCORD_BOT_TOKEN)")
	}

	if s.cfg.Slack.Enabled() {
		conn, err := slack.NewConnector(slack.Config{
			BotToken: s.cfg.Slack.BotToken,
			AppToken: s.cfg.Slack.AppToken,
			Debug:    s.cfg.Slack.Debug,
		}, s.log)
		if err != nil {
			return nil, fmt.Errorf("failed to create Slack connector: %w", err)
		}
		connectors = append(connectors, conn)
	} else {
		s.log.Info("Slack connector disabled (missing SLACK_BOT_TOKEN or SLACK_APP_TOKEN)")
	}

	if s.cfg.Telegram.Enabled() {
		conn, err := telegram.NewConnector(telegram.Config{
			BotToken: s.cfg.Telegram.BotToken,
			Debug:    s.cfg.Telegram.Debug,
		}, s.log)
		if err != nil {
			return nil, fmt.Errorf("failed to create Telegram connector: %w", err)
		}
		connectors = append(connectors, conn)
	} else {
		s.log.Info("Telegram connector disabled (missing TELEGRAM_BOT_TOKEN)")
	}

	return connectors, nil
}

// createPublisher creates the paste backend used for oversized output
func (s *Server) createPublisher(ctx context.Context) (paste.Publisher, error) {
	cfg := &s.cfg.Paste
	client := &http.Client{Timeout: cfg.Timeout}

	switch cfg.Backend {
	case appconfig.PasteHastebin:
		s.log.Info("Using hastebin paste backend", logger.StringField("url", cfg.HastebinURL))
		return paste.NewHastebin(cfg.HastebinURL, client), nil

	case appconfig.PasteGist:
		s.log.Info("Using gist paste backend", logger.BoolField("public", cfg.GistPublic))
		return paste.NewGist(paste.GistConfig{
			APIURL: cfg.GistAPIURL,
			Token:  cfg.GistToken,
			Public: cfg.GistPublic,
			Client: client,
		}), nil

	case appconfig.PasteS3:
		s.log.Info("Using S3 paste backend",
			logger.StringField("bucket", cfg.S3Bucket),
			logger.StringField("prefix", cfg.S3Prefix),
			logger.StringField("region", cfg.S3Region))

		configOptions := []func(*awsconfig.LoadOptions) error{}
		if cfg.S3Profile != "" {
			configOptions = append(configOptions, awsconfig.WithSharedConfigProfile(cfg.S3Profile))
		}
		if cfg.S3Region != "" {
			configOptions = append(configOptions, awsconfig.WithRegion(cfg.S3Region))
		}

		awsCfg, err := awsconfig.LoadDefaultConfig(ctx, configOptions...)
		if err != nil {
			return nil, fmt.Errorf("failed to load AWS config: %w", err)
		}

		return paste.NewS3(paste.S3Config{
			Bucket: cfg.S3Bucket,
			Prefix: cfg.S3Prefix,
			Expiry: cfg.S3Expiry,
			Client: s3.NewFromConfig(awsCfg),
		})

	default:
		return nil, fmt.Errorf("unsupported paste backend: %s", cfg.Backend)
	}
}

// createAuditRecorder stores executions in Postgres when a database is
// configured and logs them otherwise.
func (s *Server) createAuditRecorder(ctx context.Context) (audit.Recorder, error) {
	if !s.cfg.Database.Enabled() {
		s.log.Info("Audit log writes to the service log (DATABASE_URL not set)")
		return audit.NewLogRecorder(s.log), nil
	}

	pool, err := audit.OpenPool(ctx, s.cfg.Database)
	if err != nil {
		return nil, err
	}

	migrations := audit.NewMigrationManager(pool, s.log)
	if err := migrations.RunMigrations(); err != nil {
		_ = migrations.Close()
		pool.Close()
		return nil, err
	}
	if err := migrations.Close(); err != nil {
		s.log.Warn("Failed to close migration connection", logger.ErrorField(err))
	}

	s.pool = pool
	s.log.Info("Audit log writes to Postgres")
	return audit.NewPostgresRecorder(pool, s.log), nil
}

func (s *Server) closePool() {
	if s.pool != nil {
		s.pool.Close()
		s.pool = nil
	}
}

// setupGracefulShutdown cancels the run on SIGINT or SIGTERM and force exits
// if shutdown stalls.
func (s *Server) setupGracefulShutdown(cancel context.CancelFunc) {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-sigChan
		s.log.Info("Received shutdown signal", logger.StringField("signal", sig.String()))
		cancel()

		time.AfterFunc(forceExitAfter, func() {
			s.log.Warn("Force exiting due to timeout")
			os.Exit(1)
		})
	}()
}
