package config

import (
	"fmt"
	"time"

	"github.com/hashicorp/go-multierror"
)

// OpsServerConfig configures the operational HTTP listener that serves
// health endpoints and the Prometheus /metrics endpoint.
type OpsServerConfig struct {
	Enabled      bool          `env:"OPS_ENABLED" yaml:"enabled" default:"true"`
	Port         int           `env:"OPS_PORT" yaml:"port" default:"8080"`
	ReadTimeout  time.Duration `env:"OPS_READ_TIMEOUT" yaml:"read_timeout" default:"15s"`
	WriteTimeout time.Duration `env:"OPS_WRITE_TIMEOUT" yaml:"write_timeout" default:"15s"`
	IdleTimeout  time.Duration `env:"OPS_IDLE_TIMEOUT" yaml:"idle_timeout" default:"60s"`
}

// Validate checks OpsServerConfig for a valid port when the listener is enabled
func (o OpsServerConfig) Validate() error {
	var result error
	if o.Enabled && (o.Port < 1 || o.Port > 65535) {
		result = multierror.Append(result, fmt.Errorf("ops port must be between 1-65535, got %d", o.Port))
	}
	return result
}

// Addr returns the listen address for the ops server
func (o OpsServerConfig) Addr() string {
	return fmt.Sprintf(":%d", o.Port)
}
