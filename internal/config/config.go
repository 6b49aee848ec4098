// Package config loads service configuration from an optional YAML file
// (CONFIG_PATH) with environment-variable overrides.
package config

import (
	"fmt"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Port        int    `yaml:"port"`
	DatabaseURL string `yaml:"databaseUrl"`
	RedisURL    string `yaml:"redisUrl"`

	Auth struct {
		Mode       string `yaml:"mode"` // dev, hmac
		HMACSecret string `yaml:"hmacSecret"`
	} `yaml:"auth"`

	Rate struct {
		RPS   float64 `yaml:"rps"`
		Burst int     `yaml:"burst"`
	} `yaml:"rate"`

	Webhooks struct {
		MaxAttempts int `yaml:"maxAttempts"`
	} `yaml:"webhooks"`

	Planner Planner `yaml:"planner"`
}

// Planner holds the request ceilings and defaults enforced before the core
// engine is invoked.
type Planner struct {
	DefaultCongestionFactor float64 `yaml:"defaultCongestionFactor"`
	MaxDestinations         int     `yaml:"maxDestinations"`
	MaxAlternates           int     `yaml:"maxAlternates"`
	Workers                 int     `yaml:"workers"`
	SpeedKph                float64 `yaml:"speedKph"`
}

func Default() Config {
	var c Config
	c.Port = 8080
	c.Auth.Mode = "dev"
	c.Rate.RPS = 50
	c.Rate.Burst = 100
	c.Webhooks.MaxAttempts = 10
	c.Planner = Planner{
		DefaultCongestionFactor: 1.0,
		MaxDestinations:         20,
		MaxAlternates:           8,
		Workers:                 4,
		SpeedKph:                30,
	}
	return c
}

// Load builds the config: defaults, then the YAML file named by CONFIG_PATH
// (if any), then environment overrides.
func Load() (Config, error) {
	c := Default()

	if path := os.Getenv("CONFIG_PATH"); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("config: read %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, &c); err != nil {
			return Config{}, fmt.Errorf("config: parse %s: %w", path, err)
		}
	}

	applyEnv(&c)

	if c.Planner.MaxDestinations <= 0 || c.Planner.MaxDestinations > 20 {
		return Config{}, fmt.Errorf("config: maxDestinations must be in 1..20, got %d", c.Planner.MaxDestinations)
	}
	if c.Planner.MaxAlternates < 0 || c.Planner.MaxAlternates > 8 {
		return Config{}, fmt.Errorf("config: maxAlternates must be in 0..8, got %d", c.Planner.MaxAlternates)
	}
	if c.Planner.DefaultCongestionFactor < 1.0 {
		return Config{}, fmt.Errorf("config: defaultCongestionFactor must be >= 1.0, got %v", c.Planner.DefaultCongestionFactor)
	}
	return c, nil
}

func applyEnv(c *Config) {
	if v := os.Getenv("PORT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Port = n
		}
	}
	if v := os.Getenv("DATABASE_URL"); v != "" {
		c.DatabaseURL = v
	}
	if v := os.Getenv("REDIS_URL"); v != "" {
		c.RedisURL = v
	}
	if v := os.Getenv("AUTH_MODE"); v != "" {
		c.Auth.Mode = v
	}
	if v := os.Getenv("AUTH_HMAC_SECRET"); v != "" {
		c.Auth.HMACSecret = v
	}
	if v := os.Getenv("RATE_RPS"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil && f > 0 {
			c.Rate.RPS = f
		}
	}
	if v := os.Getenv("RATE_BURST"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			c.Rate.Burst = n
		}
	}
	if v := os.Getenv("WEBHOOK_MAX_ATTEMPTS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			c.Webhooks.MaxAttempts = n
		}
	}
}
