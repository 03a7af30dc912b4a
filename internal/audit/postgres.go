package audit

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"

	"github.com/lewisedginton/chat_console/pkg/config"
	"github.com/lewisedginton/chat_console/pkg/logger"
)

//go:embed migrations/*.sql
var migrationFS embed.FS

const insertExecution = `INSERT INTO console_executions
	(id, platform, channel_id, author_id, message_id, mode, source, outcome, duration_ms, executed_at)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`

// Execer is the subset of *pgxpool.Pool used by PostgresRecorder.
type Execer interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// PostgresRecorder stores entries in the console_executions table.
type PostgresRecorder struct {
	db     Execer
	logger logger.Logger
}

// NewPostgresRecorder creates a recorder over db.
func NewPostgresRecorder(db Execer, log logger.Logger) *PostgresRecorder {
	return &PostgresRecorder{db: db, logger: log}
}

func (r *PostgresRecorder) Record(ctx context.Context, entry Entry) error {
	_, err := r.db.Exec(ctx, insertExecution,
		entry.ID.String(),
		entry.Platform,
		entry.ChannelID,
		entry.AuthorID,
		entry.MessageID,
		entry.Mode,
		entry.Source,
		entry.Outcome,
		entry.Duration.Milliseconds(),
		entry.At,
	)
	if err != nil {
		r.logger.Error("failed to record execution", logger.ErrorField(err), logger.StringField("execution_id", entry.ID.String()))
		return fmt.Errorf("insert execution: %w", err)
	}
	return nil
}

// OpenPool connects to Postgres with the configured pool limits.
func OpenPool(ctx context.Context, cfg config.DatabaseConfig) (*pgxpool.Pool, error) {
	poolCfg, err := pgxpool.ParseConfig(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("parse database url: %w", err)
	}
	poolCfg.MaxConns = int32(cfg.MaxConnections)
	poolCfg.MinConns = int32(cfg.MinConnections)
	poolCfg.ConnConfig.ConnectTimeout = cfg.ConnectTimeout

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return pool, nil
}

// MigrationManager applies the embedded schema migrations.
type MigrationManager struct {
	db     *sql.DB
	logger logger.Logger
}

// NewMigrationManager creates a migration manager from pgxpool
func NewMigrationManager(pool *pgxpool.Pool, log logger.Logger) *MigrationManager {
	return &MigrationManager{
		db:     stdlib.OpenDBFromPool(pool),
		logger: log,
	}
}

// RunMigrations executes pending migrations
func (m *MigrationManager) RunMigrations() error {
	migrator, err := m.createMigrator()
	if err != nil {
		return fmt.Errorf("create migrator: %w", err)
	}
	defer func() {
		_, _ = migrator.Close()
	}()

	m.logger.Info("Starting database migrations")

	if err := migrator.Up(); err != nil {
		if errors.Is(err, migrate.ErrNoChange) {
			m.logger.Info("No new migrations to apply")
			return nil
		}
		m.logger.Error("Failed to run migrations", logger.ErrorField(err))
		return fmt.Errorf("run migrations: %w", err)
	}

	m.logger.Info("Successfully applied migrations")
	return nil
}

func (m *MigrationManager) createMigrator() (*migrate.Migrate, error) {
	sourceDriver, err := iofs.New(migrationFS, "migrations")
	if err != nil {
		return nil, fmt.Errorf("create embedded migration source: %w", err)
	}

	driver, err := postgres.WithInstance(m.db, &postgres.Config{})
	if err != nil {
		return nil, fmt.Errorf("create postgres driver: %w", err)
	}

	return migrate.NewWithInstance("iofs", sourceDriver, "postgres", driver)
}

// Close closes the migration connection
func (m *MigrationManager) Close() error {
	return m.db.Close()
}
