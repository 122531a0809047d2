package main

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Server struct {
		SocketURL  string `yaml:"socket_url"`
		APIBaseURL string `yaml:"api_base_url"`
	} `yaml:"server"`
	Reconnect struct {
		MaxAttempts int `yaml:"max_attempts"`
		DelaySec    int `yaml:"delay_sec"`
		JitterSec   int `yaml:"jitter_sec"`
	} `yaml:"reconnect"`
	Betting struct {
		FeeRate           float64 `yaml:"fee_rate"`
		QuietWindowSec    int     `yaml:"quiet_window_sec"`
		AckTimeoutSec     int     `yaml:"ack_timeout_sec"`
		ResolveDisplaySec int     `yaml:"resolve_display_sec"`
	} `yaml:"betting"`
	Metrics struct {
		Port string `yaml:"port"`
	} `yaml:"metrics"`
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

func loadConfig(path string) (*Config, error) {
	var config Config

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, &config); err != nil {
			return nil, fmt.Errorf("failed to parse config: %w", err)
		}
	}

	// Env overrides, then defaults for anything still unset.
	config.Server.SocketURL = getEnv("BETSYNC_SOCKET_URL", config.Server.SocketURL)
	config.Server.APIBaseURL = getEnv("BETSYNC_API_BASE_URL", config.Server.APIBaseURL)
	config.Metrics.Port = getEnv("BETSYNC_METRICS_PORT", config.Metrics.Port)

	if config.Reconnect.MaxAttempts == 0 {
		config.Reconnect.MaxAttempts = getEnvAsInt("BETSYNC_RECONNECT_MAX_ATTEMPTS", 1)
	}
	if config.Reconnect.DelaySec == 0 {
		config.Reconnect.DelaySec = getEnvAsInt("BETSYNC_RECONNECT_DELAY_SEC", 3)
	}
	if config.Betting.FeeRate == 0 {
		config.Betting.FeeRate = 0.10
	}
	if config.Betting.QuietWindowSec == 0 {
		config.Betting.QuietWindowSec = 2
	}
	if config.Betting.AckTimeoutSec == 0 {
		config.Betting.AckTimeoutSec = 15
	}
	if config.Betting.ResolveDisplaySec == 0 {
		config.Betting.ResolveDisplaySec = 5
	}
	if config.Metrics.Port == "" {
		config.Metrics.Port = "9105"
	}

	return &config, nil
}

func (c *Config) reconnectDelay() time.Duration {
	return time.Duration(c.Reconnect.DelaySec) * time.Second
}

func (c *Config) reconnectJitter() time.Duration {
	return time.Duration(c.Reconnect.JitterSec) * time.Second
}

func (c *Config) quietWindow() time.Duration {
	return time.Duration(c.Betting.QuietWindowSec) * time.Second
}

func (c *Config) ackTimeout() time.Duration {
	return time.Duration(c.Betting.AckTimeoutSec) * time.Second
}

func (c *Config) resolveDisplayWindow() time.Duration {
	return time.Duration(c.Betting.ResolveDisplaySec) * time.Second
}
