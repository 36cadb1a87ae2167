// Package config loads the service configuration from YAML with
// ${ENV_VAR} placeholder expansion.
package config

import (
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Backend struct {
		BaseURL           string  `yaml:"base_url"`
		APIKey            string  `yaml:"api_key"`
		TimeoutSeconds    int     `yaml:"timeout_seconds"`
		PageSize          int     `yaml:"page_size"`
		PageCeiling       int     `yaml:"page_ceiling"`
		RequestsPerSecond float64 `yaml:"requests_per_second"`
	} `yaml:"backend"`

	Redis struct {
		Address         string `yaml:"address"`
		Password        string `yaml:"password"`
		DB              int    `yaml:"db"`
		CacheTTLSeconds int    `yaml:"cache_ttl_seconds"`
	} `yaml:"redis"`

	HTTP struct {
		ListenAddress string `yaml:"listen_address"`
	} `yaml:"http"`

	Monitoring struct {
		PrometheusEnabled bool `yaml:"prometheus_enabled"`
		PrometheusPort    int  `yaml:"prometheus_port"`
	} `yaml:"monitoring"`

	Facility struct {
		Timezone string `yaml:"timezone"`
	} `yaml:"facility"`

	Booking struct {
		MinAdvanceMinutes int `yaml:"min_advance_minutes"`
		MaxAdvanceDays    int `yaml:"max_advance_days"`
	} `yaml:"booking"`
}

func Load(path string) (*Config, error) {
	if path == "" {
		path = "configs/config.yaml"
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	// Support ${ENV_VAR} placeholders in YAML config.
	data = []byte(os.ExpandEnv(string(data)))

	var cfg Config
	if err = yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}

	if cfg.Backend.TimeoutSeconds <= 0 {
		cfg.Backend.TimeoutSeconds = 10
	}
	if cfg.HTTP.ListenAddress == "" {
		cfg.HTTP.ListenAddress = ":8080"
	}
	if cfg.Facility.Timezone == "" {
		cfg.Facility.Timezone = "Local"
	}

	return &cfg, nil
}

func (c *Config) BackendTimeout() time.Duration {
	return time.Duration(c.Backend.TimeoutSeconds) * time.Second
}

func (c *Config) CacheTTL() time.Duration {
	return time.Duration(c.Redis.CacheTTLSeconds) * time.Second
}

func (c *Config) BookingMinAdvance() time.Duration {
	if c.Booking.MinAdvanceMinutes <= 0 {
		return 0
	}
	return time.Duration(c.Booking.MinAdvanceMinutes) * time.Minute
}

func (c *Config) BookingMaxAdvance() time.Duration {
	if c.Booking.MaxAdvanceDays <= 0 {
		return 0
	}
	return time.Duration(c.Booking.MaxAdvanceDays) * 24 * time.Hour
}

// Location resolves the facility timezone.
func (c *Config) Location() (*time.Location, error) {
	if c.Facility.Timezone == "" || c.Facility.Timezone == "Local" {
		return time.Local, nil
	}
	return time.LoadLocation(c.Facility.Timezone)
}
