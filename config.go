package partialcache

import (
	"time"

	"github.com/bool64/ctxd"
	"github.com/bool64/stats"
)

// Default configuration values.
const (
	DefaultDirective       = "cache"
	DefaultDurationSeconds = 60
)

// Config controls Directive instance.
type Config struct {
	// Enabled turns caching on, default true.
	// When disabled fragments are rendered on every call.
	Enabled *bool `yaml:"enabled"`

	// Key is a namespace prefix for keys of fragments with variation.
	Key string `yaml:"key"`

	// DefaultDuration is time to live in seconds used when directive has no TTL, default 60.
	DefaultDuration int `yaml:"default_duration"`

	// Directive is template syntax name, default "cache".
	// Variants are registered with "If" and "When" suffixes.
	Directive string `yaml:"directive"`

	// Name is added to logs and stats.
	Name string `yaml:"name"`

	// Logger collects messages with context.
	Logger ctxd.Logger `yaml:"-"`

	// Stats tracks stats.
	Stats stats.Tracker `yaml:"-"`
}

// Enable returns a pointer to use in Config.Enabled.
func Enable(enabled bool) *bool {
	return &enabled
}

// IsEnabled returns true if caching is enabled.
func (c Config) IsEnabled() bool {
	return c.Enabled == nil || *c.Enabled
}

func (c Config) defaultTTL() time.Duration {
	return time.Duration(c.DefaultDuration) * time.Second
}

func (c Config) withDefaults() Config {
	if c.DefaultDuration == 0 {
		c.DefaultDuration = DefaultDurationSeconds
	}

	if c.Directive == "" {
		c.Directive = DefaultDirective
	}

	if c.Name == "" {
		c.Name = "partials"
	}

	if c.Logger == nil {
		c.Logger = ctxd.NoOpLogger{}
	}

	if c.Stats == nil {
		c.Stats = stats.NoOp{}
	}

	return c
}
