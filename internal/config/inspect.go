package config

import (
	"fmt"
	"time"
)

// InspectConfig configures the local inspection API used to evaluate flags
// and swap targeting attributes on a running resolver.
type InspectConfig struct {
	Enabled           bool          `envconfig:"ENABLED" default:"true"`
	Port              string        `envconfig:"PORT" default:"8080"`
	Host              string        `envconfig:"HOST" default:"127.0.0.1"`
	ReadTimeout       time.Duration `envconfig:"READ_TIMEOUT" default:"10s"`
	WriteTimeout      time.Duration `envconfig:"WRITE_TIMEOUT" default:"10s"`
	ReadHeaderTimeout time.Duration `envconfig:"READ_HEADER_TIMEOUT" default:"5s"`
	IdleTimeout       time.Duration `envconfig:"IDLE_TIMEOUT" default:"60s"`
	MaxHeaderBytes    int           `envconfig:"MAX_HEADER_BYTES" default:"65536" validate:"min=1"`
}

// Addr returns the listen address in host:port format.
func (c *InspectConfig) Addr() string {
	return fmt.Sprintf("%s:%s", c.Host, c.Port)
}

// Validate performs validation on the InspectConfig. Disabled configs are not checked.
func (c *InspectConfig) Validate() error {
	if !c.Enabled {
		return nil
	}

	if err := validatePort(c.Port, "inspect api"); err != nil {
		return err
	}

	if err := validateHost(c.Host, "inspect api"); err != nil {
		return err
	}

	return nil
}
