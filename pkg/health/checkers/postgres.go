package checkers

import (
	"context"
	"fmt"
)

// Pinger is implemented by database pools such as *pgxpool.Pool.
type Pinger interface {
	Ping(ctx context.Context) error
}

// PostgresChecker checks that a Postgres pool can reach the server.
type PostgresChecker struct {
	db   Pinger
	name string
}

// NewPostgresChecker creates a new Postgres health checker.
// If name is empty, defaults to "postgres".
func NewPostgresChecker(db Pinger, name string) *PostgresChecker {
	if name == "" {
		name = "postgres"
	}
	return &PostgresChecker{db: db, name: name}
}

// Name returns the name of this health check.
func (p *PostgresChecker) Name() string {
	return p.name
}

// Check pings the database.
func (p *PostgresChecker) Check(ctx context.Context) error {
	if err := p.db.Ping(ctx); err != nil {
		return fmt.Errorf("postgres ping failed: %w", err)
	}
	return nil
}
