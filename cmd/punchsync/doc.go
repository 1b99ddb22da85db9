// Punchsync - Biometric Attendance Terminal Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/punchsync

/*
Punchsync copies attendance punches from a ZKTeco terminal to an HTTP API.

Each run connects to the terminal, suspends capture, reads the attendance
log, resumes capture, and posts every record newer than the stored
watermark. The watermark advances only after the API accepts the batch.
Failed runs are retried and then reported by mail relay and webhook.

Usage:

	punchsync                     # loop every SYNC_INTERVAL (default 5m)
	SYNC_INTERVAL=0 punchsync     # one run; exit status 1 if it failed

Configuration comes from defaults, an optional YAML file (CONFIG_PATH or
./punchsync.yaml), and environment variables, in increasing precedence:

	DEVICE_IP, DEVICE_PORT, DEVICE_TIMEOUT, DEVICE_PASSWORD, DEVICE_TIMEZONE
	API_URL, API_TIMEOUT, BREAKER_ENABLED, STATE_BACKEND
	SYNC_INTERVAL, SYNC_FILE, MAX_RETRIES, BASE_DELAY, RETRY_DELAY
	API_ENDPOINT_SEND_MAIL, RECEIVERS_EMAILS, EMAIL_HOST, EMAIL_HOST_USER,
	EMAIL_HOST_PASSWORD
	LOG_LEVEL, LOG_FORMAT, LOG_FILE
	HTTP_ENABLED, HTTP_HOST, HTTP_PORT

SIGINT and SIGTERM stop the loop between runs. An in-flight run is never
cancelled and the process waits for it to finish; a second signal stops
waiting and exits with status 1.
*/
package main
