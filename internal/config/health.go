package config

import (
	"fmt"
	"time"
)

// HealthConfig holds health check configuration
type HealthConfig struct {
	LivenessPath     string        `env:"HEALTH_LIVENESS_PATH" yaml:"liveness_path" default:"/health/live"`
	ReadinessPath    string        `env:"HEALTH_READINESS_PATH" yaml:"readiness_path" default:"/health/ready"`
	CombinedPath     string        `env:"HEALTH_COMBINED_PATH" yaml:"combined_path" default:"/health"`
	Timeout          time.Duration `env:"HEALTH_TIMEOUT" yaml:"timeout" default:"10s"`
	FailureThreshold int           `env:"HEALTH_FAILURE_THRESHOLD" yaml:"failure_threshold" default:"3"`
}

// Validate checks health check timing
func (c HealthConfig) Validate() error {
	if c.Timeout <= 0 {
		return fmt.Errorf("health timeout must be greater than 0")
	}
	if c.FailureThreshold < 1 {
		return fmt.Errorf("health failure_threshold must be at least 1")
	}
	return nil
}
