package main

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/mcdev12/bosswatch/go/clients/worldboss_client"
	"github.com/mcdev12/bosswatch/go/internal/worldboss"
	"github.com/mcdev12/bosswatch/go/internal/worldboss/publisher"
	"gopkg.in/yaml.v3"
)

type Config struct {
	API struct {
		BaseURL     string        `yaml:"base_url"`
		StatusPath  string        `yaml:"status_path"`
		RefreshPath string        `yaml:"refresh_path"`
		Timeout     time.Duration `yaml:"timeout"`
	} `yaml:"api"`

	Engine worldboss.Config `yaml:"engine"`

	Session struct {
		CredentialsFile string `yaml:"credentials_file"`
		Access          string `yaml:"-"`
		Refresh         string `yaml:"-"`
	} `yaml:"session"`

	Gateway struct {
		Port           string   `yaml:"port"`
		AllowedOrigins []string `yaml:"allowed_origins"`
	} `yaml:"gateway"`

	NATS struct {
		Enabled       bool   `yaml:"enabled"`
		URL           string `yaml:"url"`
		StreamName    string `yaml:"stream"`
		SubjectPrefix string `yaml:"subject_prefix"`
	} `yaml:"nats"`

	History struct {
		Enabled bool `yaml:"enabled"`
	} `yaml:"history"`

	Log struct {
		Level string `yaml:"level"`
	} `yaml:"log"`
}

func defaultConfig() *Config {
	var cfg Config
	cfg.API.StatusPath = worldboss_client.StatusEndpoint
	cfg.API.RefreshPath = worldboss_client.RefreshEndpoint
	cfg.API.Timeout = 10 * time.Second
	cfg.Engine = worldboss.DefaultConfig()
	cfg.Gateway.Port = "8080"
	cfg.Gateway.AllowedOrigins = []string{"*"}

	js := publisher.DefaultJetStreamConfig()
	cfg.NATS.URL = js.URL
	cfg.NATS.StreamName = js.StreamName
	cfg.NATS.SubjectPrefix = js.SubjectPrefix

	cfg.Log.Level = "info"
	return &cfg
}

// loadConfig reads path on top of the defaults. A missing file is not an
// error.
func loadConfig(path string) (*Config, error) {
	config := defaultConfig()

	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
	case err != nil:
		return nil, fmt.Errorf("failed to read config file: %w", err)
	default:
		if err := yaml.Unmarshal(data, config); err != nil {
			return nil, fmt.Errorf("failed to parse config: %w", err)
		}
	}

	applyEnv(config)

	if config.API.BaseURL == "" {
		return nil, errors.New("api base URL is required (api.base_url or BOSSWATCH_API_URL)")
	}
	return config, nil
}

// applyEnv lets environment variables override the file.
func applyEnv(c *Config) {
	c.API.BaseURL = getEnv("BOSSWATCH_API_URL", c.API.BaseURL)
	c.API.StatusPath = getEnv("BOSSWATCH_STATUS_PATH", c.API.StatusPath)
	c.API.RefreshPath = getEnv("BOSSWATCH_REFRESH_PATH", c.API.RefreshPath)
	c.API.Timeout = getEnvAsDuration("BOSSWATCH_API_TIMEOUT", c.API.Timeout)

	c.Engine.TickInterval = getEnvAsDuration("BOSSWATCH_TICK_INTERVAL", c.Engine.TickInterval)
	c.Engine.FastInterval = getEnvAsDuration("BOSSWATCH_FAST_INTERVAL", c.Engine.FastInterval)
	c.Engine.SlowInterval = getEnvAsDuration("BOSSWATCH_SLOW_INTERVAL", c.Engine.SlowInterval)
	c.Engine.MaxInactive = getEnvAsInt("BOSSWATCH_MAX_INACTIVE", c.Engine.MaxInactive)

	c.Session.CredentialsFile = getEnv("BOSSWATCH_CREDENTIALS_FILE", c.Session.CredentialsFile)
	c.Session.Access = getEnv("BOSSWATCH_ACCESS_TOKEN", c.Session.Access)
	c.Session.Refresh = getEnv("BOSSWATCH_REFRESH_TOKEN", c.Session.Refresh)

	c.Gateway.Port = getEnv("PORT", c.Gateway.Port)
	if origins := getEnv("BOSSWATCH_ALLOWED_ORIGINS", ""); origins != "" {
		c.Gateway.AllowedOrigins = strings.Split(origins, ",")
	}

	c.NATS.Enabled = getEnvAsBool("NATS_ENABLED", c.NATS.Enabled)
	c.NATS.URL = getEnv("NATS_URL", c.NATS.URL)

	c.History.Enabled = getEnvAsBool("HISTORY_ENABLED", c.History.Enabled)

	c.Log.Level = getEnv("LOG_LEVEL", c.Log.Level)
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
