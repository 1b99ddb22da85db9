// Punchsync - Biometric Attendance Terminal Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/punchsync

package config

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
)

var (
	validate     *validator.Validate
	validateOnce sync.Once
)

// getValidator returns the shared validator instance.
func getValidator() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
	})
	return validate
}

// Validate checks struct tags first, then the cross-field rules tags
// cannot express.
func (c *Config) Validate() error {
	if err := validateTags(c); err != nil {
		return err
	}

	validators := []func() error{
		c.validateDevice,
		c.validateSync,
		c.validateState,
		c.validateNotify,
	}
	for _, fn := range validators {
		if err := fn(); err != nil {
			return err
		}
	}
	return nil
}

// validateTags runs go-playground/validator and flattens its field errors
// into one message that names the koanf path of each offending field.
func validateTags(c *Config) error {
	err := getValidator().Struct(c)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return err
	}

	msgs := make([]string, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		msg := fmt.Sprintf("%s failed %q", fieldPath(fe.Namespace()), fe.Tag())
		if fe.Param() != "" {
			msg += fmt.Sprintf(" (%s)", fe.Param())
		}
		msgs = append(msgs, msg)
	}
	return errors.New(strings.Join(msgs, "; "))
}

// fieldPath turns "Config.Sync.MaxRetries" into "Sync.MaxRetries".
func fieldPath(namespace string) string {
	_, rest, found := strings.Cut(namespace, ".")
	if !found {
		return namespace
	}
	return rest
}

func (c *Config) validateDevice() error {
	if _, err := c.Device.Location(); err != nil {
		return fmt.Errorf("DEVICE_TIMEZONE is invalid: %w", err)
	}
	return nil
}

func (c *Config) validateSync() error {
	if c.Sync.Interval > 0 && c.Sync.Interval < time.Second {
		return fmt.Errorf("SYNC_INTERVAL must be 0 (run once) or at least 1s, got %s", c.Sync.Interval)
	}
	return nil
}

func (c *Config) validateState() error {
	switch c.State.Backend {
	case "file":
		if strings.TrimSpace(c.Sync.StateFile) == "" {
			return fmt.Errorf("SYNC_FILE is required when STATE_BACKEND=file")
		}
	case "badger":
		if strings.TrimSpace(c.State.BadgerPath) == "" {
			return fmt.Errorf("STATE_BADGER_PATH is required when STATE_BACKEND=badger")
		}
	}
	return nil
}

func (c *Config) validateNotify() error {
	if !c.Notify.MailConfigured() {
		return nil
	}
	if err := validateHTTPURL(c.Notify.MailEndpoint); err != nil {
		return fmt.Errorf("API_ENDPOINT_SEND_MAIL is invalid: %w", err)
	}
	return nil
}

// validateHTTPURL accepts absolute http and https URLs.
func validateHTTPURL(raw string) error {
	return getValidator().Var(raw, "http_url")
}
