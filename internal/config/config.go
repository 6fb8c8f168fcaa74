// Package config provides YAML-based configuration loading for FieldPilot.
package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/fieldpilot/fieldpilot/internal/identity"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config is the top-level FieldPilot configuration, loaded from fieldpilot.yaml.
type Config struct {
	Tenant    string          `yaml:"tenant"`
	Database  DatabaseConfig  `yaml:"database"`
	Notify    NotifyConfig    `yaml:"notify"`
	Scheduler SchedulerConfig `yaml:"scheduler"`
	Staff     []StaffConfig   `yaml:"staff"`
	Equipment []string        `yaml:"equipment"`
}

// DatabaseConfig holds connection settings for the relational store.
type DatabaseConfig struct {
	Driver   string `yaml:"driver"` // mysql or sqlite
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Name     string `yaml:"name"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	Path     string `yaml:"path"` // sqlite only
}

// NotifyConfig selects notification sinks. Empty sections are disabled.
type NotifyConfig struct {
	Slack   SlackConfig   `yaml:"slack"`
	Discord DiscordConfig `yaml:"discord"`
}

// SlackConfig holds Slack bot credentials and the target channel.
type SlackConfig struct {
	BotToken string `yaml:"bot_token"`
	Channel  string `yaml:"channel"`
}

// DiscordConfig holds the Discord bot token and the target channel.
type DiscordConfig struct {
	Token   string `yaml:"token"`
	Channel string `yaml:"channel"`
}

// SchedulerConfig controls the scheduled-task activation loop.
type SchedulerConfig struct {
	Cron string `yaml:"cron"` // 5-field cron expression
}

// StaffConfig declares one staff identity for the static directory.
type StaffConfig struct {
	ID         string `yaml:"id"`
	Name       string `yaml:"name"`
	Technician bool   `yaml:"technician"`
}

// Load reads a YAML config file from path and returns a validated Config.
// A .env file in the working directory, if present, is loaded first so
// environment overrides apply.
func Load(path string) (*Config, error) {
	// Missing .env is fine; it only supplies overrides.
	_ = godotenv.Load()

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
	cfg.applyEnv()
	cfg.applyDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// applyEnv overlays secrets from the environment so they need not live in YAML.
func (c *Config) applyEnv() {
	if v := os.Getenv("FIELDPILOT_DB_PASSWORD"); v != "" {
		c.Database.Password = v
	}
	if v := os.Getenv("FIELDPILOT_SLACK_BOT_TOKEN"); v != "" {
		c.Notify.Slack.BotToken = v
	}
	if v := os.Getenv("FIELDPILOT_DISCORD_TOKEN"); v != "" {
		c.Notify.Discord.Token = v
	}
}

// applyDefaults fills in derived and default values.
func (c *Config) applyDefaults() {
	if c.Database.Driver == "" {
		c.Database.Driver = "sqlite"
	}
	if c.Database.Driver == "mysql" {
		if c.Database.Host == "" {
			c.Database.Host = "127.0.0.1"
		}
		if c.Database.Port == 0 {
			c.Database.Port = 3306
		}
		if c.Database.User == "" {
			c.Database.User = "root"
		}
		if c.Database.Name == "" && c.Tenant != "" {
			c.Database.Name = "fieldpilot_" + c.Tenant
		}
	}
	if c.Database.Driver == "sqlite" && c.Database.Path == "" {
		c.Database.Path = "fieldpilot.db"
	}
	if c.Scheduler.Cron == "" {
		c.Scheduler.Cron = "*/5 * * * *"
	}
}

// validate checks that all required fields are present and consistent.
func (c *Config) validate() error {
	if c.Tenant == "" {
		return fmt.Errorf("config: tenant is required")
	}
	switch c.Database.Driver {
	case "sqlite":
	case "mysql":
		if c.Database.Name == "" {
			return fmt.Errorf("config: database name is required for mysql")
		}
	default:
		return fmt.Errorf("config: unsupported database driver %q", c.Database.Driver)
	}

	seen := make(map[string]bool, len(c.Staff))
	for _, s := range c.Staff {
		if s.ID == "" {
			return fmt.Errorf("config: staff entry missing id")
		}
		if seen[s.ID] {
			return fmt.Errorf("config: duplicate staff id %q", s.ID)
		}
		seen[s.ID] = true
	}

	if c.Notify.Slack.BotToken != "" && c.Notify.Slack.Channel == "" {
		return fmt.Errorf("config: notify.slack.channel is required when a bot token is set")
	}
	if c.Notify.Discord.Token != "" && c.Notify.Discord.Channel == "" {
		return fmt.Errorf("config: notify.discord.channel is required when a token is set")
	}
	return nil
}

// Directory builds the static identity directory declared in the config.
func (c *Config) Directory() identity.StaticDirectory {
	ids := make([]identity.Identity, 0, len(c.Staff))
	for _, s := range c.Staff {
		ids = append(ids, identity.Identity{ID: s.ID, Name: s.Name, Technician: s.Technician})
	}
	return identity.NewStaticDirectory(ids)
}

// EquipmentSet returns the configured equipment IDs as a lookup set.
func (c *Config) EquipmentSet() map[string]bool {
	set := make(map[string]bool, len(c.Equipment))
	for _, id := range c.Equipment {
		id = strings.TrimSpace(id)
		if id != "" {
			set[id] = true
		}
	}
	return set
}
