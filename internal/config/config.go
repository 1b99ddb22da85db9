// Punchsync - Biometric Attendance Terminal Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/punchsync

package config

import (
	"fmt"
	"net"
	"strconv"
	"time"
)

// Config holds all application configuration.
//
// Loading order (Koanf v2):
//  1. Defaults: built-in values from defaultConfig()
//  2. Config file: optional YAML file (CONFIG_PATH or DefaultConfigPaths)
//  3. Environment variables: override any setting
//
// Example:
//
//	cfg, err := config.LoadWithKoanf()
//	if err != nil {
//	    logging.Fatal().Err(err).Msg("Failed to load configuration")
//	}
//	logging.Info().Str("device", cfg.Device.Endpoint()).Msg("Configuration loaded")
type Config struct {
	Device  DeviceConfig  `koanf:"device"`
	API     APIConfig     `koanf:"api"`
	Sync    SyncConfig    `koanf:"sync"`
	State   StateConfig   `koanf:"state"`
	Notify  NotifyConfig  `koanf:"notify"`
	Breaker BreakerConfig `koanf:"breaker"`
	Server  ServerConfig  `koanf:"server"`
	Logging LoggingConfig `koanf:"logging"`
}

// DeviceConfig describes the attendance terminal.
//
// Environment Variables:
//   - DEVICE_IP: terminal address (default: 192.168.1.100)
//   - DEVICE_PORT: TCP port (default: 4370)
//   - DEVICE_TIMEOUT: socket timeout, bare numbers are seconds (default: 60s)
//   - DEVICE_PASSWORD: numeric comm key, 0 when unset
//   - DEVICE_TIMEZONE: IANA zone of the terminal clock (default: Local)
type DeviceConfig struct {
	Address  string        `koanf:"address" validate:"required"`
	Port     int           `koanf:"port" validate:"min=1,max=65535"`
	Timeout  time.Duration `koanf:"timeout" validate:"gt=0"`
	Password int           `koanf:"password" validate:"min=0"`
	Timezone string        `koanf:"timezone" validate:"required"`
}

// Endpoint returns host:port of the terminal.
func (d DeviceConfig) Endpoint() string {
	return net.JoinHostPort(d.Address, strconv.Itoa(d.Port))
}

// Location resolves Timezone. Terminal clocks carry no offset, so every
// timestamp read from the device is interpreted in this location.
func (d DeviceConfig) Location() (*time.Location, error) {
	loc, err := time.LoadLocation(d.Timezone)
	if err != nil {
		return nil, fmt.Errorf("unknown device timezone %q: %w", d.Timezone, err)
	}
	return loc, nil
}

// APIConfig describes the backend that receives attendance batches.
type APIConfig struct {
	URL     string        `koanf:"url" validate:"required,http_url"`
	Timeout time.Duration `koanf:"timeout" validate:"gt=0"`

	// RateLimit caps outbound delivery requests per second. 0 disables the limiter.
	RateLimit float64 `koanf:"rate_limit" validate:"min=0"`
	RateBurst int     `koanf:"rate_burst" validate:"min=0"`
}

// SyncConfig controls the orchestrator and the scheduler.
//
// Environment Variables:
//   - SYNC_INTERVAL: period between runs, bare numbers are minutes; 0 runs once and exits (default: 5m)
//   - SYNC_FILE: watermark file for the file backend (default: sync_state.json)
//   - MAX_RETRIES: outer and inner attempt bound (default: 3)
//   - BASE_DELAY: first delivery backoff, doubled per attempt (default: 10s)
//   - RETRY_DELAY: flat delay between device attempts (default: 10s)
//   - MAX_CONSECUTIVE_FAILURES: failed runs before a critical log line (default: 3)
type SyncConfig struct {
	Interval               time.Duration `koanf:"interval" validate:"gte=0"`
	StateFile              string        `koanf:"state_file"`
	MaxRetries             int           `koanf:"max_retries" validate:"min=1,max=100"`
	BaseDelay              time.Duration `koanf:"base_delay" validate:"gte=0"`
	RetryDelay             time.Duration `koanf:"retry_delay" validate:"gte=0"`
	MaxConsecutiveFailures int           `koanf:"max_consecutive_failures" validate:"min=1"`
}

// StateConfig selects the watermark backend.
type StateConfig struct {
	// Backend is "file" (JSON document at Sync.StateFile) or "badger".
	Backend    string `koanf:"backend" validate:"oneof=file badger"`
	BadgerPath string `koanf:"badger_path"`
}

// mailEndpointPlaceholder is the value shipped in sample env files when no
// mail relay exists. It is treated the same as an empty endpoint.
const mailEndpointPlaceholder = "API_ENDPOINT_SEND_MAIL"

// NotifyConfig configures failure notifications.
type NotifyConfig struct {
	// MailEndpoint is the mail relay API (API_ENDPOINT_SEND_MAIL).
	MailEndpoint string   `koanf:"mail_endpoint"`
	Recipients   []string `koanf:"recipients" validate:"dive,email"`

	// SMTP credentials forwarded to the relay as-is.
	EmailHost         string `koanf:"email_host"`
	EmailHostUser     string `koanf:"email_host_user"`
	EmailHostPassword string `koanf:"email_host_password"`

	// Entity identifies this service to the relay.
	Entity string `koanf:"entity" validate:"required"`

	// WebhookURL receives a JSON copy of every notification when set.
	WebhookURL string        `koanf:"webhook_url" validate:"omitempty,http_url"`
	Timeout    time.Duration `koanf:"timeout" validate:"gt=0"`
}

// MailConfigured reports whether a usable mail relay endpoint is set.
func (n NotifyConfig) MailConfigured() bool {
	return n.MailEndpoint != "" && n.MailEndpoint != mailEndpointPlaceholder
}

// BreakerConfig configures the circuit breaker around delivery.
type BreakerConfig struct {
	Enabled bool `koanf:"enabled"`

	// MaxFailures is the consecutive failure count that opens the breaker.
	MaxFailures uint32 `koanf:"max_failures" validate:"min=1"`

	// MaxRequests is the number of probes allowed while half-open.
	MaxRequests uint32 `koanf:"max_requests" validate:"min=1"`

	// Interval resets closed-state counts; 0 never resets.
	Interval time.Duration `koanf:"interval" validate:"gte=0"`

	// Timeout is how long the breaker stays open.
	Timeout time.Duration `koanf:"timeout" validate:"gt=0"`
}

// ServerConfig configures the optional admin HTTP endpoint.
type ServerConfig struct {
	Enabled bool   `koanf:"enabled"`
	Host    string `koanf:"host"`
	Port    int    `koanf:"port" validate:"min=1,max=65535"`

	// TriggerRateLimit is the number of manual triggers accepted per minute.
	TriggerRateLimit int `koanf:"trigger_rate_limit" validate:"min=1"`
}

// Addr returns the listen address.
func (s ServerConfig) Addr() string {
	return net.JoinHostPort(s.Host, strconv.Itoa(s.Port))
}

// LoggingConfig configures internal/logging.
type LoggingConfig struct {
	Level  string `koanf:"level" validate:"oneof=trace debug info warn warning error"`
	Format string `koanf:"format" validate:"oneof=json console"`
	Caller bool   `koanf:"caller"`
	File   string `koanf:"file"`
}
