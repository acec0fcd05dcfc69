// Package config provides YAML-based configuration loading for a cell.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the top-level cell configuration, loaded from cellwatch.yaml.
type Config struct {
	Cell        string           `yaml:"cell"`
	RoutePrefix string           `yaml:"route_prefix"`
	Database    DatabaseConfig   `yaml:"database"`
	Queues      []QueueConfig    `yaml:"queues"`
	Poll        PollConfig       `yaml:"poll"`
	Controller  ControllerConfig `yaml:"controller"`
	API         APIConfig        `yaml:"api"`
	Alerts      AlertConfig      `yaml:"alerts"`
}

// DatabaseConfig selects and locates the backing database.
type DatabaseConfig struct {
	Driver   string `yaml:"driver"` // sqlite (default) or mysql
	Path     string `yaml:"path"`
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Name     string `yaml:"name"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
}

// QueueConfig declares a material queue. Only declared queues may be used.
type QueueConfig struct {
	Name string `yaml:"name"`
	Role string `yaml:"role"` // raw, in-process, completed; informational
}

// PollConfig controls the periodic re-plan.
type PollConfig struct {
	Schedule string `yaml:"schedule"` // robfig/cron spec, e.g. "@every 1m"
}

// ControllerConfig selects the physical controller variant and its lock.
type ControllerConfig struct {
	Type     string     `yaml:"type"`
	Pallets  int        `yaml:"pallets"`
	Machines int        `yaml:"machines"`
	Lock     LockConfig `yaml:"lock"`
}

// LockConfig configures the cross-process controller lock.
type LockConfig struct {
	Backend  string        `yaml:"backend"` // db (default) or redis
	Name     string        `yaml:"name"`
	Wait     time.Duration `yaml:"wait"`
	TTL      time.Duration `yaml:"ttl"`
	RedisURL string        `yaml:"redis_url"`
}

// APIConfig configures the HTTP surface.
type APIConfig struct {
	Port int `yaml:"port"`
}

// AlertConfig configures where queue-sync and tick faults are announced.
type AlertConfig struct {
	SlackWebhookURL     string `yaml:"slack_webhook_url"`
	DiscordWebhookID    string `yaml:"discord_webhook_id"`
	DiscordWebhookToken string `yaml:"discord_webhook_token"`
}

// Load reads a YAML config file from path and returns a validated Config.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}
	return Parse(data)
}

// Parse unmarshals YAML bytes into a validated Config.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("config: parse: %w", err)
	}
	cfg.applyDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// QueueNames returns the set of declared queue names.
func (c *Config) QueueNames() map[string]bool {
	names := make(map[string]bool, len(c.Queues))
	for _, q := range c.Queues {
		names[q.Name] = true
	}
	return names
}

// applyDefaults fills in derived and default values.
func (c *Config) applyDefaults() {
	if c.RoutePrefix == "" {
		c.RoutePrefix = "cellwatch"
	}
	if c.Database.Driver == "" {
		c.Database.Driver = "sqlite"
	}
	if c.Database.Driver == "sqlite" && c.Database.Path == "" {
		c.Database.Path = "cellwatch.db"
	}
	if c.Database.Driver == "mysql" {
		if c.Database.Host == "" {
			c.Database.Host = "127.0.0.1"
		}
		if c.Database.Port == 0 {
			c.Database.Port = 3306
		}
		if c.Database.Name == "" && c.Cell != "" {
			c.Database.Name = "cellwatch_" + c.Cell
		}
	}
	if c.Poll.Schedule == "" {
		c.Poll.Schedule = "@every 1m"
	}
	if c.Controller.Type == "" {
		c.Controller.Type = "sim"
	}
	if c.Controller.Lock.Backend == "" {
		c.Controller.Lock.Backend = "db"
	}
	if c.Controller.Lock.Name == "" {
		c.Controller.Lock.Name = "controller"
	}
	if c.Controller.Lock.Wait == 0 {
		c.Controller.Lock.Wait = 2 * time.Minute
	}
	if c.Controller.Lock.TTL == 0 {
		c.Controller.Lock.TTL = 10 * time.Minute
	}
	if c.API.Port == 0 {
		c.API.Port = 5000
	}
}

// validate checks that all required fields are present and consistent.
func (c *Config) validate() error {
	var errs []string
	if c.Cell == "" {
		errs = append(errs, "cell is required")
	}
	switch c.Database.Driver {
	case "sqlite", "mysql":
	default:
		errs = append(errs, fmt.Sprintf("database.driver %q is not supported", c.Database.Driver))
	}
	if c.Database.Driver == "mysql" && c.Database.Name == "" {
		errs = append(errs, "database.name is required for mysql")
	}
	seen := make(map[string]bool)
	for i, q := range c.Queues {
		if q.Name == "" {
			errs = append(errs, fmt.Sprintf("queues[%d].name is required", i))
			continue
		}
		if seen[q.Name] {
			errs = append(errs, fmt.Sprintf("queues[%d].name %q is duplicated", i, q.Name))
		}
		seen[q.Name] = true
	}
	switch c.Controller.Lock.Backend {
	case "db":
	case "redis":
		if c.Controller.Lock.RedisURL == "" {
			errs = append(errs, "controller.lock.redis_url is required for the redis backend")
		}
	default:
		errs = append(errs, fmt.Sprintf("controller.lock.backend %q is not supported", c.Controller.Lock.Backend))
	}
	if c.Controller.Lock.Wait < 0 {
		errs = append(errs, "controller.lock.wait must not be negative")
	}
	if c.Controller.Pallets < 0 || c.Controller.Machines < 0 {
		errs = append(errs, "controller pallet and machine counts must not be negative")
	}
	if len(errs) > 0 {
		return fmt.Errorf("config: validation failed: %s", strings.Join(errs, "; "))
	}
	return nil
}
