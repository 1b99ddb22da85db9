// Punchsync - Biometric Attendance Terminal Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/punchsync

package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// DefaultConfigPaths lists the paths where config files are searched in order of priority.
// The first file found will be used.
var DefaultConfigPaths = []string{
	"punchsync.yaml",
	"punchsync.yml",
	"/etc/punchsync/config.yaml",
	"/etc/punchsync/config.yml",
}

// ConfigPathEnvVar is the environment variable that can override the config file path.
const ConfigPathEnvVar = "CONFIG_PATH"

// defaultConfig returns the built-in defaults. They match the values the
// service has always shipped with so existing env files keep working.
func defaultConfig() *Config {
	return &Config{
		Device: DeviceConfig{
			Address:  "192.168.1.100",
			Port:     4370,
			Timeout:  60 * time.Second,
			Password: 0,
			Timezone: "Local",
		},
		API: APIConfig{
			URL:       "",
			Timeout:   30 * time.Second,
			RateLimit: 0,
			RateBurst: 1,
		},
		Sync: SyncConfig{
			Interval:               5 * time.Minute,
			StateFile:              "sync_state.json",
			MaxRetries:             3,
			BaseDelay:              10 * time.Second,
			RetryDelay:             10 * time.Second,
			MaxConsecutiveFailures: 3,
		},
		State: StateConfig{
			Backend:    "file",
			BadgerPath: "",
		},
		Notify: NotifyConfig{
			MailEndpoint: "",
			Recipients:   []string{},
			Entity:       "ZKTECO_SERVICE",
			Timeout:      30 * time.Second,
		},
		Breaker: BreakerConfig{
			Enabled:     false, // opt-in: the orchestrator already bounds retries
			MaxFailures: 5,
			MaxRequests: 1,
			Interval:    0,
			Timeout:     2 * time.Minute,
		},
		Server: ServerConfig{
			Enabled:          false,
			Host:             "127.0.0.1",
			Port:             9105,
			TriggerRateLimit: 6,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Caller: false,
			File:   "",
		},
	}
}

// LoadWithKoanf loads configuration using Koanf v2 with layered sources:
//  1. Defaults: built-in defaults
//  2. Config File: optional YAML config file (if exists)
//  3. Environment Variables: override any setting
//
// Precedence is ENV > File > Defaults. The result is validated before it
// is returned.
func LoadWithKoanf() (*Config, error) {
	k := koanf.New(".")

	// Layer 1: defaults
	if err := k.Load(structs.Provider(defaultConfig(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	// Layer 2: config file (optional)
	if configPath := findConfigFile(); configPath != "" {
		if err := k.Load(file.Provider(configPath), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", configPath, err)
		}
	}

	// Layer 3: environment variables
	// DEVICE_IP -> device.address, SYNC_INTERVAL -> sync.interval, ...
	if err := k.Load(env.Provider("", ".", envTransformFunc), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	if err := processSliceFields(k); err != nil {
		return nil, fmt.Errorf("failed to process slice fields: %w", err)
	}
	if err := processDurationFields(k); err != nil {
		return nil, fmt.Errorf("failed to process duration fields: %w", err)
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// findConfigFile returns CONFIG_PATH when it exists, else the first of
// DefaultConfigPaths that exists, else "".
func findConfigFile() string {
	if envPath := os.Getenv(ConfigPathEnvVar); envPath != "" {
		if _, err := os.Stat(envPath); err == nil {
			return envPath
		}
	}
	for _, path := range DefaultConfigPaths {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return ""
}

// sliceConfigPaths defines which config paths should be parsed as comma-separated slices
var sliceConfigPaths = []string{
	"notify.recipients",
}

// processSliceFields converts comma-separated string values to slices for known slice fields.
// Env vars arrive as strings; YAML lists are left alone.
func processSliceFields(k *koanf.Koanf) error {
	for _, path := range sliceConfigPaths {
		strVal, ok := k.Get(path).(string)
		if !ok {
			continue
		}
		parts := strings.Split(strVal, ",")
		trimmed := make([]string, 0, len(parts))
		for _, p := range parts {
			if p = strings.TrimSpace(p); p != "" {
				trimmed = append(trimmed, p)
			}
		}
		if err := k.Set(path, trimmed); err != nil {
			return fmt.Errorf("failed to set %s: %w", path, err)
		}
	}
	return nil
}

// durationUnits gives the unit applied to bare numbers for duration fields.
// Deployments configured SYNC_INTERVAL in minutes and the other delays in
// seconds; Go duration strings ("90s", "5m") are accepted everywhere.
var durationUnits = map[string]time.Duration{
	"sync.interval":    time.Minute,
	"sync.base_delay":  time.Second,
	"sync.retry_delay": time.Second,
	"device.timeout":   time.Second,
	"api.timeout":      time.Second,
	"notify.timeout":   time.Second,
	"breaker.timeout":  time.Second,
	"breaker.interval": time.Second,
}

// processDurationFields rewrites bare numeric durations into time.Duration
// values using durationUnits. Anything else is left for the unmarshal hook.
func processDurationFields(k *koanf.Koanf) error {
	for path, unit := range durationUnits {
		var n float64
		switch v := k.Get(path).(type) {
		case string:
			f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
			if err != nil {
				continue // "5m", "10s": handled by the decode hook
			}
			n = f
		case int:
			n = float64(v)
		case int64:
			n = float64(v)
		case float64:
			n = v
		default:
			continue
		}
		if n < 0 {
			return fmt.Errorf("%s must not be negative", path)
		}
		if err := k.Set(path, time.Duration(n*float64(unit))); err != nil {
			return fmt.Errorf("failed to set %s: %w", path, err)
		}
	}
	return nil
}

// envTransformFunc maps environment variable names to koanf paths.
// Unmapped variables return "" and are ignored so unrelated environment
// does not leak into the configuration.
func envTransformFunc(key string) string {
	envMappings := map[string]string{
		// Device
		"device_ip":       "device.address",
		"device_port":     "device.port",
		"device_timeout":  "device.timeout",
		"device_password": "device.password",
		"device_timezone": "device.timezone",

		// Backend API
		"api_url":        "api.url",
		"api_timeout":    "api.timeout",
		"api_rate_limit": "api.rate_limit",
		"api_rate_burst": "api.rate_burst",

		// Sync
		"sync_interval":            "sync.interval",
		"sync_file":                "sync.state_file",
		"max_retries":              "sync.max_retries",
		"base_delay":               "sync.base_delay",
		"retry_delay":              "sync.retry_delay",
		"max_consecutive_failures": "sync.max_consecutive_failures",

		// Watermark backend
		"state_backend":     "state.backend",
		"state_badger_path": "state.badger_path",

		// Notifications
		"api_endpoint_send_mail": "notify.mail_endpoint",
		"receivers_emails":       "notify.recipients",
		"email_host":             "notify.email_host",
		"email_host_user":        "notify.email_host_user",
		"email_host_password":    "notify.email_host_password",
		"notify_entity":          "notify.entity",
		"notify_webhook_url":     "notify.webhook_url",
		"notify_timeout":         "notify.timeout",

		// Circuit breaker
		"breaker_enabled":      "breaker.enabled",
		"breaker_max_failures": "breaker.max_failures",
		"breaker_max_requests": "breaker.max_requests",
		"breaker_interval":     "breaker.interval",
		"breaker_timeout":      "breaker.timeout",

		// Admin HTTP
		"http_enabled":            "server.enabled",
		"http_host":               "server.host",
		"http_port":               "server.port",
		"http_trigger_rate_limit": "server.trigger_rate_limit",

		// Logging
		"log_level":  "logging.level",
		"log_format": "logging.format",
		"log_caller": "logging.caller",
		"log_file":   "logging.file",
	}

	if mapped, ok := envMappings[strings.ToLower(key)]; ok {
		return mapped
	}
	return ""
}
