package main

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/vearutop/partialcache"
	"gopkg.in/yaml.v3"
)

// Store drivers.
const (
	DriverMemory   = "memory"
	DriverFailover = "failover"
	DriverRedis    = "redis"
)

// RedisSettings holds Redis connection settings.
type RedisSettings struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	Prefix   string `yaml:"prefix"`
}

// StoreSettings selects and configures fragment store.
type StoreSettings struct {
	Driver string        `yaml:"driver"`
	Name   string        `yaml:"name"`
	Redis  RedisSettings `yaml:"redis"`

	// HeapInUseSoftLimit enables eviction of memory store fragments on heap overuse (bytes).
	HeapInUseSoftLimit uint64 `yaml:"heap_in_use_soft_limit"`

	// EvictInterval is a delay between heap checks of serve command.
	EvictInterval time.Duration `yaml:"evict_interval"`
}

// Settings is the central configuration of the tool.
type Settings struct {
	// Views is a directory with view files.
	Views string `yaml:"views"`

	// Extension is a file name suffix of views.
	Extension string `yaml:"extension"`

	// Reload enables recompilation of changed views.
	Reload bool `yaml:"reload"`

	// Listen is an HTTP address of serve command.
	Listen string `yaml:"listen"`

	// Dump is a file to restore memory store from on start and to save it to on exit.
	Dump string `yaml:"dump"`

	// ShutdownTimeout limits graceful shutdown of serve command.
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`

	Cache partialcache.Config `yaml:"cache"`
	Store StoreSettings       `yaml:"store"`
}

// DefaultSettings returns Settings with defaults.
func DefaultSettings() *Settings {
	return &Settings{
		Views:           ".",
		Extension:       ".html",
		Listen:          "localhost:8080",
		ShutdownTimeout: 10 * time.Second,
		Store: StoreSettings{
			Driver:        DriverMemory,
			Name:          "fragments",
			EvictInterval: time.Minute,
			Redis: RedisSettings{
				Addr: "localhost:6379",
			},
		},
	}
}

// LoadSettings reads YAML file over defaults, empty path skips the file.
func LoadSettings(path string) (*Settings, error) {
	s := DefaultSettings()

	if path == "" {
		return s, nil
	}

	data, err := os.ReadFile(path) //nolint:gosec // Path is provided by user.
	if err != nil {
		return nil, err
	}

	if err := yaml.Unmarshal(data, s); err != nil {
		return nil, fmt.Errorf("parse settings %s: %w", path, err)
	}

	return s, nil
}

// LoadFromEnv applies environment variable overrides to the settings.
func (s *Settings) LoadFromEnv() error {
	if v := os.Getenv("PARTIALCACHE_VIEWS"); v != "" {
		s.Views = v
	}

	if v := os.Getenv("PARTIALCACHE_LISTEN"); v != "" {
		s.Listen = v
	}

	if v := os.Getenv("PARTIALCACHE_DUMP"); v != "" {
		s.Dump = v
	}

	if v := os.Getenv("PARTIALCACHE_KEY"); v != "" {
		s.Cache.Key = v
	}

	if v := os.Getenv("PARTIALCACHE_STORE"); v != "" {
		s.Store.Driver = v
	}

	if v := os.Getenv("PARTIALCACHE_REDIS_ADDR"); v != "" {
		s.Store.Redis.Addr = v
	}

	if v := os.Getenv("PARTIALCACHE_REDIS_PASSWORD"); v != "" {
		s.Store.Redis.Password = v
	}

	if v := os.Getenv("PARTIALCACHE_RELOAD"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("PARTIALCACHE_RELOAD: %w", err)
		}

		s.Reload = b
	}

	if v := os.Getenv("PARTIALCACHE_ENABLED"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("PARTIALCACHE_ENABLED: %w", err)
		}

		s.Cache.Enabled = partialcache.Enable(b)
	}

	if v := os.Getenv("PARTIALCACHE_DEFAULT_DURATION"); v != "" {
		d, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("PARTIALCACHE_DEFAULT_DURATION: %w", err)
		}

		s.Cache.DefaultDuration = d
	}

	return nil
}

// Validate checks settings consistency.
func (s *Settings) Validate() error {
	switch s.Store.Driver {
	case DriverMemory, DriverFailover, DriverRedis:
	default:
		return fmt.Errorf("unknown store driver %q, expected %s, %s or %s",
			s.Store.Driver, DriverMemory, DriverFailover, DriverRedis)
	}

	if s.Cache.DefaultDuration < 0 {
		return fmt.Errorf("negative default duration %d", s.Cache.DefaultDuration)
	}

	if s.Dump != "" && s.Store.Driver != DriverMemory {
		return fmt.Errorf("dump is only supported by %s store", DriverMemory)
	}

	return nil
}
