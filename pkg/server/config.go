// Package server hosts the long-running schedule mode: the scheduler plus
// its metrics, health and pprof listeners
package server

import (
	"errors"
	"time"
)

// Define static errors
var (
	ErrMetricsAddrConflict = errors.New("metrics and health check addresses must differ")
)

// Config holds server configuration
type Config struct {
	// MetricsAddr is the address to listen on for metrics. Empty disables it.
	MetricsAddr string `yaml:"metricsAddr" default:":9091"`
	// HealthCheckAddr is the address to listen on for healthcheck.
	HealthCheckAddr *string `yaml:"healthCheckAddr"`
	// PProfAddr is the address to listen on for pprof.
	PProfAddr *string `yaml:"pprofAddr"`
	// ShutdownTimeout is the timeout for shutting down the listeners.
	ShutdownTimeout time.Duration `yaml:"shutdownTimeout" default:"10s"`
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.HealthCheckAddr != nil && c.MetricsAddr != "" && *c.HealthCheckAddr == c.MetricsAddr {
		return ErrMetricsAddrConflict
	}

	return nil
}
