package config

import (
	"fmt"
	"time"
)

// ObservabilityConfig configures probes, metrics and the gRPC health service.
type ObservabilityConfig struct {
	// Port serves the HTTP probes and the Prometheus endpoint.
	Port string `envconfig:"PORT" default:"9090"`

	// Timeout bounds probe handling and the server read/write deadlines.
	Timeout time.Duration `envconfig:"TIMEOUT" default:"5s" validate:"min=1s"`

	LivenessPath  string `envconfig:"LIVENESS_PATH" default:"/healthz"`
	ReadinessPath string `envconfig:"READINESS_PATH" default:"/readyz"`
	MetricsPath   string `envconfig:"METRICS_PATH" default:"/metrics"`

	// GRPCPort exposes the standard grpc.health.v1 service. Empty disables it.
	GRPCPort string `envconfig:"GRPC_PORT"`

	// HealthInterval is how often the gRPC health statuses are refreshed.
	HealthInterval time.Duration `envconfig:"HEALTH_INTERVAL" default:"10s"`

	// CollectorInterval is how often cache and pool statistics are exported.
	CollectorInterval time.Duration `envconfig:"COLLECTOR_INTERVAL" default:"15s"`
}

// Validate checks ports and intervals.
func (o *ObservabilityConfig) Validate() error {
	if err := validatePort(o.Port, "observability"); err != nil {
		return err
	}
	if o.GRPCPort != "" {
		if err := validatePort(o.GRPCPort, "grpc health"); err != nil {
			return err
		}
	}
	if o.HealthInterval <= 0 {
		return fmt.Errorf("observability health interval must be positive, got %s", o.HealthInterval)
	}
	if o.CollectorInterval <= 0 {
		return fmt.Errorf("observability collector interval must be positive, got %s", o.CollectorInterval)
	}
	return nil
}
