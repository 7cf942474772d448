package agent

import (
	"context"
	"log/slog"

	"go.opentelemetry.io/otel/metric"
)

// Option configures an Agent.
type Option func(*Agent)

// WithConfig uses an already loaded configuration.
func WithConfig(cfg *Config) Option {
	return func(a *Agent) {
		if cfg != nil {
			a.loadConfig = func(context.Context) (*Config, error) {
				cfg.ApplyDefaults()
				if err := cfg.Validate(); err != nil {
					return nil, err
				}
				return cfg, nil
			}
		}
	}
}

// WithConfigFile loads the configuration from a YAML file during Initialize.
func WithConfigFile(path string) Option {
	return func(a *Agent) {
		if path != "" {
			a.loadConfig = func(context.Context) (*Config, error) {
				return LoadConfig(path)
			}
		}
	}
}

// WithLogger sets a custom logger.
func WithLogger(l *slog.Logger) Option {
	return func(a *Agent) {
		if l != nil {
			a.logger = l
		}
	}
}

// WithMeter sets the meter handed to engine factories.
func WithMeter(m metric.Meter) Option {
	return func(a *Agent) {
		if m != nil {
			a.meter = m
		}
	}
}
