// File: internal/config/config.go
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type RuntimeConfig struct {
	Dev bool
}

type DatabaseConfig struct {
	Driver         string        `yaml:"driver"` // postgres | mysql
	Host           string        `yaml:"host"`
	Port           int           `yaml:"port"`
	User           string        `yaml:"user"`
	Password       string        `yaml:"password"`
	Name           string        `yaml:"name"`
	Connections    int           `yaml:"connections"`
	ConnectTimeout time.Duration `yaml:"connect_timeout"`
}

type EngineConfig struct {
	PollInterval      time.Duration `yaml:"poll_interval"`
	MaxQueryLength    int           `yaml:"max_query_length"`
	LongQueryCapacity int           `yaml:"long_query_capacity"`
	DoneTTL           time.Duration `yaml:"done_ttl"` // 0 keeps unfetched results forever
	JanitorInterval   time.Duration `yaml:"janitor_interval"`
}

type LogConfig struct {
	Level    string `yaml:"level"`    // trace|debug|info|warn|error
	Format   string `yaml:"format"`   // json|console
	Sampling bool   `yaml:"sampling"` // enable sampling in prod
}

type AdminConfig struct {
	Port   int    `yaml:"port"`
	APIKey string `yaml:"api_key"`
}

type Config struct {
	Database DatabaseConfig `yaml:"database"`
	Engine   EngineConfig   `yaml:"engine"`
	Log      LogConfig      `yaml:"log"`
	Admin    AdminConfig    `yaml:"admin"`

	Runtime RuntimeConfig `yaml:"-"`
}

const (
	DefaultPollInterval      = 10 * time.Millisecond
	DefaultMaxQueryLength    = 1024
	DefaultLongQueryCapacity = 10 * 1024
)

func LoadConfig(configPath string, dev bool) (*Config, error) {
	b, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	cfg, err := Parse(b)
	if err != nil {
		return nil, err
	}
	cfg.Runtime.Dev = dev
	return cfg, nil
}

// Parse decodes YAML, applies defaults and validates the result.
func Parse(b []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if pw := os.Getenv("ASYNCSQL_DATABASE_PASSWORD"); pw != "" {
		cfg.Database.Password = pw
	}
	cfg.applyDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	c.Database.Driver = strings.ToLower(strings.TrimSpace(c.Database.Driver))
	if c.Database.Driver == "" {
		c.Database.Driver = "postgres"
	}
	if c.Database.Port == 0 {
		switch c.Database.Driver {
		case "mysql":
			c.Database.Port = 3306
		default:
			c.Database.Port = 5432
		}
	}
	if c.Database.Connections <= 0 {
		c.Database.Connections = 4
	}
	if c.Database.ConnectTimeout <= 0 {
		c.Database.ConnectTimeout = 5 * time.Second
	}
	if c.Engine.PollInterval <= 0 {
		c.Engine.PollInterval = DefaultPollInterval
	}
	if c.Engine.MaxQueryLength <= 0 {
		c.Engine.MaxQueryLength = DefaultMaxQueryLength
	}
	if c.Engine.LongQueryCapacity <= 0 {
		c.Engine.LongQueryCapacity = DefaultLongQueryCapacity
	}
	if c.Engine.DoneTTL < 0 {
		c.Engine.DoneTTL = 0
	}
	if c.Engine.JanitorInterval <= 0 {
		c.Engine.JanitorInterval = time.Minute
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format == "" {
		c.Log.Format = "json"
	}
	if c.Admin.Port == 0 {
		c.Admin.Port = 9090
	}
}

// Minimal validation
func (c *Config) validate() error {
	switch c.Database.Driver {
	case "postgres", "mysql":
	default:
		return fmt.Errorf("database.driver %q is not supported", c.Database.Driver)
	}
	if c.Database.Host == "" {
		return errors.New("database.host is required")
	}
	if c.Database.User == "" {
		return errors.New("database.user is required")
	}
	if c.Database.Name == "" {
		return errors.New("database.name is required")
	}
	if c.Engine.LongQueryCapacity < c.Engine.MaxQueryLength {
		return errors.New("engine.long_query_capacity must not be smaller than engine.max_query_length")
	}
	return nil
}
