// Punchsync - Biometric Attendance Terminal Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/punchsync

/*
Package config loads and validates punchsync configuration.

# Configuration Sources

Koanf v2 merges three layers, later layers winning:

  - Built-in defaults (defaultConfig)
  - An optional YAML file: CONFIG_PATH, else punchsync.yaml in the working
    directory, else /etc/punchsync/config.yaml
  - Environment variables, through an explicit mapping table

The environment names are the ones existing deployments already use
(DEVICE_IP, API_URL, SYNC_INTERVAL, RECEIVERS_EMAILS, ...). Bare numbers
in duration variables keep their historical units: minutes for
SYNC_INTERVAL, seconds for every other delay or timeout.

# Example YAML

	device:
	  address: 10.0.0.20
	  port: 4370
	  timeout: 60s
	  timezone: Africa/Casablanca
	api:
	  url: https://hr.example.com/api/attendance/import
	  timeout: 30s
	sync:
	  interval: 5m
	  max_retries: 3
	  base_delay: 10s
	  retry_delay: 10s
	notify:
	  mail_endpoint: https://mail-relay.example.com/send
	  recipients: [ops@example.com]

# Validation

Struct tags are checked with go-playground/validator, then cross-field
rules (timezone resolvable, backend-specific paths, mail endpoint shape).
*/
package config
