package config

import (
	"fmt"
	"os"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeAPI()
	c.normalizeStation()
	if err := c.normalizeCapture(); err != nil {
		return err
	}
	c.normalizeNotifications()
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if strings.TrimSpace(c.Paths.StateDir) == "" {
		c.Paths.StateDir = defaultStateDir
	}
	if c.Paths.StateDir, err = expandPath(c.Paths.StateDir); err != nil {
		return fmt.Errorf("paths.state_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.LogDir) == "" {
		c.Paths.LogDir = defaultLogDir
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	return nil
}

func (c *Config) normalizeAPI() {
	c.API.BaseURL = strings.TrimRight(strings.TrimSpace(c.API.BaseURL), "/")
	if c.API.BaseURL == "" {
		c.API.BaseURL = defaultAPIBaseURL
	}
	c.API.Token = strings.TrimSpace(c.API.Token)
	if c.API.Token == "" {
		if value, ok := os.LookupEnv("DISPATCH_API_TOKEN"); ok {
			c.API.Token = strings.TrimSpace(value)
		}
	}
	if c.API.RequestTimeout < 0 {
		c.API.RequestTimeout = 0
	}
}

func (c *Config) normalizeStation() {
	c.Station.WarehouseID = strings.TrimSpace(c.Station.WarehouseID)
	c.Station.Operator = strings.TrimSpace(c.Station.Operator)
	if c.Station.Operator == "" {
		if value, ok := os.LookupEnv("USER"); ok && strings.TrimSpace(value) != "" {
			c.Station.Operator = strings.TrimSpace(value)
		} else {
			c.Station.Operator = defaultOperatorFallbackLabel
		}
	}
	c.Station.DefaultAction = strings.ToLower(strings.TrimSpace(c.Station.DefaultAction))
	if c.Station.DefaultAction == "" {
		c.Station.DefaultAction = defaultScanAction
	}
	c.Station.StatusBind = strings.TrimSpace(c.Station.StatusBind)
	c.Station.StatusToken = strings.TrimSpace(c.Station.StatusToken)

	channels := make([]string, 0, len(c.Station.Channels))
	seen := make(map[string]struct{}, len(c.Station.Channels))
	for _, channel := range c.Station.Channels {
		trimmed := strings.TrimSpace(channel)
		if trimmed == "" {
			continue
		}
		key := strings.ToLower(trimmed)
		if _, exists := seen[key]; exists {
			continue
		}
		seen[key] = struct{}{}
		channels = append(channels, trimmed)
	}
	c.Station.Channels = channels
}

func (c *Config) normalizeCapture() error {
	c.Capture.Source = strings.ToLower(strings.TrimSpace(c.Capture.Source))
	if c.Capture.Source == "" {
		c.Capture.Source = defaultCaptureSource
	}
	c.Capture.Device = strings.TrimSpace(c.Capture.Device)

	command := make([]string, 0, len(c.Capture.Command))
	for _, arg := range c.Capture.Command {
		if trimmed := strings.TrimSpace(arg); trimmed != "" {
			command = append(command, trimmed)
		}
	}
	c.Capture.Command = command

	var err error
	if strings.TrimSpace(c.Capture.LockDir) == "" {
		c.Capture.LockDir = defaultLockDir
	}
	if c.Capture.LockDir, err = expandPath(c.Capture.LockDir); err != nil {
		return fmt.Errorf("capture.lock_dir: %w", err)
	}
	return nil
}

func (c *Config) normalizeNotifications() {
	c.Notifications.NtfyTopic = strings.TrimSpace(c.Notifications.NtfyTopic)
	if c.Notifications.RequestTimeout <= 0 {
		c.Notifications.RequestTimeout = defaultNotifyRequestTimeout
	}
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	switch c.Logging.Format {
	case "", "console":
		c.Logging.Format = "console"
	case "json":
	default:
		c.Logging.Format = "console"
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
	if c.Logging.RetentionDays < 0 {
		c.Logging.RetentionDays = 0
	}
}
