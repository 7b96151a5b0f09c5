package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateAPI(); err != nil {
		return err
	}
	if err := c.validateSync(); err != nil {
		return err
	}
	if strings.TrimSpace(c.Paths.StateDir) == "" {
		return errors.New("paths.state_dir must be set")
	}
	return nil
}

func (c *Config) validateAPI() error {
	if c.API.BaseURL == "" {
		return errors.New("api.base_url must be set")
	}
	parsed, err := url.Parse(c.API.BaseURL)
	if err != nil {
		return fmt.Errorf("api.base_url: %w", err)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return fmt.Errorf("api.base_url must use http or https, got %q", c.API.BaseURL)
	}
	if parsed.Host == "" {
		return fmt.Errorf("api.base_url must include a host, got %q", c.API.BaseURL)
	}
	return ensurePositiveMap(map[string]int{
		"api.timeout_seconds":   c.API.TimeoutSeconds,
		"api.max_path_attempts": c.API.MaxPathAttempts,
	})
}

func (c *Config) validateSync() error {
	if err := ensurePositiveMap(map[string]int{
		"sync.interval_ms":              c.Sync.IntervalMS,
		"sync.request_timeout_seconds": c.Sync.RequestTimeoutSeconds,
	}); err != nil {
		return err
	}
	if c.Sync.MaxAttempts < 0 {
		return errors.New("sync.max_attempts must be >= 0")
	}
	if c.Sync.MaxDurationSeconds < 0 {
		return errors.New("sync.max_duration_seconds must be >= 0")
	}
	if c.Sync.MaxDurationSeconds > 0 && c.Sync.MaxDurationSeconds*1000 < c.Sync.IntervalMS {
		return errors.New("sync.max_duration_seconds must cover at least one sync.interval_ms")
	}
	return nil
}

func ensurePositiveMap(values map[string]int) error {
	for key, value := range values {
		if value <= 0 {
			return fmt.Errorf("%s must be positive", key)
		}
	}
	return nil
}
