// Package config provides YAML-based configuration loading for CrewRadar.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
	"gopkg.in/yaml.v3"
)

// Config is the top-level CrewRadar configuration, loaded from crewradar.yaml.
type Config struct {
	Database  DatabaseConfig  `yaml:"database"`
	Server    ServerConfig    `yaml:"server"`
	Jira      JiraConfig      `yaml:"jira"`
	Presence  PresenceConfig  `yaml:"presence"`
	Heartbeat HeartbeatConfig `yaml:"heartbeat"`
	Notify    NotifyConfig    `yaml:"notify"`
}

// DatabaseConfig selects the key-value backend. Driver is "mysql" or "sqlite".
type DatabaseConfig struct {
	Driver string `yaml:"driver"`
	Host   string `yaml:"host"`
	Port   int    `yaml:"port"`
	User   string `yaml:"user"`
	Name   string `yaml:"name"`
	Path   string `yaml:"path"`
}

// ServerConfig holds HTTP API settings.
type ServerConfig struct {
	Port int `yaml:"port"`
}

// JiraConfig holds the ticketing system connection.
type JiraConfig struct {
	BaseURL          string `yaml:"base_url"`
	Email            string `yaml:"email"`
	APIToken         string `yaml:"api_token"`
	RequestTypeField string `yaml:"request_type_field"`
	AgentGroupPrefix string `yaml:"agent_group_prefix"`
}

// PresenceConfig holds the Microsoft Graph presence directory integration.
type PresenceConfig struct {
	Enabled      bool   `yaml:"enabled"`
	TenantID     string `yaml:"tenant_id"`
	ClientID     string `yaml:"client_id"`
	ClientSecret string `yaml:"client_secret"`
	GraphURL     string `yaml:"graph_url"`
	TokenURL     string `yaml:"token_url"`
}

// HeartbeatConfig controls session ticks and the online window.
type HeartbeatConfig struct {
	Schedule     string        `yaml:"schedule"`
	OnlineWindow time.Duration `yaml:"online_window"`
}

// NotifyConfig holds optional chat destinations for assignment notices.
type NotifyConfig struct {
	Slack   ChatConfig `yaml:"slack"`
	Discord ChatConfig `yaml:"discord"`
}

// ChatConfig is a bot token plus the channel notices are posted to.
type ChatConfig struct {
	BotToken  string `yaml:"bot_token"`
	ChannelID string `yaml:"channel_id"`
}

// Enabled reports whether both token and channel are set.
func (c ChatConfig) Enabled() bool {
	return c.BotToken != "" && c.ChannelID != ""
}

// Load reads a YAML config file from path and returns a validated Config.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}
	return Parse(data)
}

// Parse expands ${VAR} references and unmarshals YAML bytes into a validated Config.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal([]byte(os.ExpandEnv(string(data))), &cfg); err != nil {
		return nil, fmt.Errorf("config: parse: %w", err)
	}
	cfg.applyDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// applyDefaults fills in derived and default values.
func (c *Config) applyDefaults() {
	if c.Database.Driver == "" {
		c.Database.Driver = "sqlite"
	}
	switch c.Database.Driver {
	case "mysql":
		if c.Database.Host == "" {
			c.Database.Host = "127.0.0.1"
		}
		if c.Database.Port == 0 {
			c.Database.Port = 3306
		}
		if c.Database.User == "" {
			c.Database.User = "root"
		}
		if c.Database.Name == "" {
			c.Database.Name = "crewradar"
		}
	case "sqlite":
		if c.Database.Path == "" {
			c.Database.Path = "crewradar.db"
		}
	}
	if c.Server.Port == 0 {
		c.Server.Port = 8080
	}
	c.Jira.BaseURL = strings.TrimRight(c.Jira.BaseURL, "/")
	if c.Jira.RequestTypeField == "" {
		c.Jira.RequestTypeField = "customfield_10010"
	}
	if c.Jira.AgentGroupPrefix == "" {
		c.Jira.AgentGroupPrefix = "jira-servicemanagement-users-"
	}
	c.Presence.TenantID = strings.TrimSpace(c.Presence.TenantID)
	c.Presence.ClientID = strings.TrimSpace(c.Presence.ClientID)
	c.Presence.ClientSecret = strings.TrimSpace(c.Presence.ClientSecret)
	if c.Presence.GraphURL == "" {
		c.Presence.GraphURL = "https://graph.microsoft.com/v1.0"
	}
	if c.Presence.TokenURL == "" && c.Presence.TenantID != "" {
		c.Presence.TokenURL = "https://login.microsoftonline.com/" + c.Presence.TenantID + "/oauth2/v2.0/token"
	}
	if c.Heartbeat.Schedule == "" {
		c.Heartbeat.Schedule = "@every 30s"
	}
	if c.Heartbeat.OnlineWindow == 0 {
		c.Heartbeat.OnlineWindow = 10 * time.Minute
	}
}

// validate checks that all required fields are present and consistent.
func (c *Config) validate() error {
	var errs []string
	switch c.Database.Driver {
	case "mysql", "sqlite":
	default:
		errs = append(errs, fmt.Sprintf("database.driver %q must be mysql or sqlite", c.Database.Driver))
	}
	if c.Jira.BaseURL == "" {
		errs = append(errs, "jira.base_url is required")
	}
	if c.Jira.Email == "" {
		errs = append(errs, "jira.email is required")
	}
	if c.Jira.APIToken == "" {
		errs = append(errs, "jira.api_token is required")
	}
	if c.Presence.Enabled {
		if c.Presence.TenantID == "" {
			errs = append(errs, "presence.tenant_id is required when presence is enabled")
		}
		if c.Presence.ClientID == "" {
			errs = append(errs, "presence.client_id is required when presence is enabled")
		}
		if c.Presence.ClientSecret == "" {
			errs = append(errs, "presence.client_secret is required when presence is enabled")
		}
	}
	if _, err := cron.ParseStandard(c.Heartbeat.Schedule); err != nil {
		errs = append(errs, fmt.Sprintf("heartbeat.schedule %q: %v", c.Heartbeat.Schedule, err))
	}
	if c.Heartbeat.OnlineWindow < 0 {
		errs = append(errs, "heartbeat.online_window must not be negative")
	}
	if len(errs) > 0 {
		return fmt.Errorf("config: validation failed: %s", strings.Join(errs, "; "))
	}
	return nil
}
