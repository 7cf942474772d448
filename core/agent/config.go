package agent

import (
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"github.com/Masterminds/semver/v3"
	"github.com/go-playground/validator/v10"

	"github.com/dmitrymomot/zonecast/core/broadcast"
	"github.com/dmitrymomot/zonecast/core/config"
)

// Default configuration file names for each role.
const (
	DefaultPublisherConfig  = "PublishingAgent.yaml"
	DefaultSubscriberConfig = "SubscribingAgent.yaml"
)

// DefaultConfigFile returns the file name used when no path is given.
func DefaultConfigFile(r Role) string {
	if r == RoleSubscriber {
		return DefaultSubscriberConfig
	}
	return DefaultPublisherConfig
}

// Config is the agent configuration file.
type Config struct {
	ID              string                  `yaml:"id" validate:"required"`
	Name            string                  `yaml:"name"`
	Version         string                  `yaml:"version" validate:"required"`
	HomeDir         string                  `yaml:"home_dir"`
	WorkDir         string                  `yaml:"work_dir"`
	Transport       TransportConfig         `yaml:"transport"`
	Zones           []ZoneConfig            `yaml:"zones" validate:"dive"`
	Objects         map[string]ObjectConfig `yaml:"objects" validate:"dive"`
	Publishers      []string                `yaml:"publishers"`
	Subscribers     []string                `yaml:"subscribers"`
	ShutdownTimeout time.Duration           `yaml:"shutdown_timeout" validate:"gte=0"`
	HealthAddr      string                  `yaml:"health_addr"`
	Log             LogConfig               `yaml:"log"`
}

// TransportConfig selects the zone transport.
type TransportConfig struct {
	Kind string `yaml:"kind" validate:"omitempty,oneof=memory redis"`
	URL  string `yaml:"url"`
}

// ZoneConfig describes one zone.
type ZoneConfig struct {
	ID  string `yaml:"id" validate:"required"`
	URL string `yaml:"url"`
}

// LogConfig controls the process logger.
type LogConfig struct {
	Level  string `yaml:"level" validate:"omitempty,oneof=debug info warn warning error"`
	Format string `yaml:"format" validate:"omitempty,oneof=text json"`
}

// ObjectConfig holds per object type settings.
type ObjectConfig struct {
	Enabled          bool          `yaml:"enabled"`
	EventFrequency   time.Duration `yaml:"event_frequency"`
	RequestFrequency time.Duration `yaml:"request_frequency"`
	MaxRequests      int           `yaml:"max_requests" validate:"gte=0"`
	Source           SourceConfig  `yaml:"source"`
}

// SourceConfig describes where a publisher reads its records from.
// Which fields apply depends on Kind.
type SourceConfig struct {
	Kind       string            `yaml:"kind" validate:"omitempty,oneof=xml file s3 sql mongo"`
	Mode       string            `yaml:"mode" validate:"omitempty,oneof=once repeat"`
	Action     string            `yaml:"action" validate:"omitempty,oneof=add change delete Add Change Delete"`
	Documents  []string          `yaml:"documents"`
	Path       string            `yaml:"path"`
	Bucket     string            `yaml:"bucket"`
	Key        string            `yaml:"key"`
	Query      string            `yaml:"query"`
	Database   string            `yaml:"database"`
	Collection string            `yaml:"collection"`
	Columns    map[string]string `yaml:"columns"`
}

// Identity is what a transport needs to know about the agent.
type Identity struct {
	ID      string
	Name    string
	Version string
}

// Identity returns the agent identity derived from the configuration.
func (c *Config) Identity() Identity {
	name := c.Name
	if name == "" {
		name = c.ID
	}
	return Identity{ID: c.ID, Name: name, Version: c.Version}
}

// Object returns the settings for objectType. Missing entries are zero.
func (c *Config) Object(objectType string) ObjectConfig {
	return c.Objects[objectType]
}

// ApplyDefaults fills unset optional fields.
func (c *Config) ApplyDefaults() {
	if c.HomeDir == "" {
		c.HomeDir = "."
	}
	if c.WorkDir == "" {
		c.WorkDir = filepath.Join(c.HomeDir, "work")
	}
	if c.Transport.Kind == "" {
		c.Transport.Kind = "memory"
	}
	if c.ShutdownTimeout == 0 {
		c.ShutdownTimeout = 30 * time.Second
	}
	for name, obj := range c.Objects {
		if obj.MaxRequests == 0 {
			obj.MaxRequests = 2
		}
		c.Objects[name] = obj
	}
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks the configuration. Failures are ConfigurationErrors.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			return &broadcast.ConfigurationError{Setting: verrs[0].Namespace(), Err: err}
		}
		return &broadcast.ConfigurationError{Err: err}
	}

	if _, err := semver.NewVersion(c.Version); err != nil {
		return &broadcast.ConfigurationError{
			Setting: "version",
			Err:     fmt.Errorf("%w %q: %w", ErrInvalidVersion, c.Version, err),
		}
	}

	seen := make(map[string]struct{}, len(c.Zones))
	for _, z := range c.Zones {
		if _, dup := seen[z.ID]; dup {
			return &broadcast.ConfigurationError{Setting: "zones", Err: fmt.Errorf("duplicate zone %q", z.ID)}
		}
		seen[z.ID] = struct{}{}
	}
	return nil
}

// LoadConfig reads, defaults and validates a configuration file.
func LoadConfig(path string) (*Config, error) {
	var cfg Config
	if err := config.LoadFile(path, &cfg); err != nil {
		return nil, &broadcast.ConfigurationError{Setting: path, Err: err}
	}
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}
