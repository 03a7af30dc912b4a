package config

import (
	"fmt"
	"time"

	"github.com/hashicorp/go-multierror"
)

// DatabaseConfig holds Postgres connection settings. An empty URL disables
// database-backed features.
type DatabaseConfig struct {
	URL            string        `env:"DATABASE_URL" yaml:"url"`
	MaxConnections int           `env:"DB_MAX_CONNECTIONS" yaml:"max_connections" default:"5"`
	MinConnections int           `env:"DB_MIN_CONNECTIONS" yaml:"min_connections" default:"1"`
	ConnectTimeout time.Duration `env:"DB_CONNECT_TIMEOUT" yaml:"connect_timeout" default:"10s"`
}

// Enabled reports whether a database URL has been configured
func (d DatabaseConfig) Enabled() bool {
	return d.URL != ""
}

// Validate checks DatabaseConfig pool settings
func (d DatabaseConfig) Validate() error {
	if !d.Enabled() {
		return nil
	}
	var result error
	if d.MaxConnections < 1 {
		result = multierror.Append(result, fmt.Errorf("max_connections must be positive, got %d", d.MaxConnections))
	}
	if d.MinConnections < 0 {
		result = multierror.Append(result, fmt.Errorf("min_connections must be non-negative, got %d", d.MinConnections))
	}
	if d.MinConnections > d.MaxConnections {
		result = multierror.Append(result, fmt.Errorf("min_connections (%d) cannot exceed max_connections (%d)", d.MinConnections, d.MaxConnections))
	}
	return result
}
