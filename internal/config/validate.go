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
	if err := c.validateStation(); err != nil {
		return err
	}
	if err := c.validateCapture(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validateAPI() error {
	parsed, err := url.Parse(c.API.BaseURL)
	if err != nil {
		return fmt.Errorf("api.base_url: %w", err)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return fmt.Errorf("api.base_url must use http or https, got %q", c.API.BaseURL)
	}
	if parsed.Host == "" {
		return errors.New("api.base_url must include a host")
	}
	return nil
}

func (c *Config) validateStation() error {
	switch c.Station.DefaultAction {
	case "dispatch", "cancel":
	default:
		return fmt.Errorf("station.default_action must be dispatch or cancel, got %q", c.Station.DefaultAction)
	}
	return nil
}

func (c *Config) validateCapture() error {
	switch c.Capture.Source {
	case CaptureSourceNone:
		return nil
	case CaptureSourceDevice:
		if strings.TrimSpace(c.Capture.Device) == "" {
			return errors.New("capture.device must be set when capture.source is device")
		}
	case CaptureSourceCommand:
		if len(c.Capture.Command) == 0 {
			return errors.New("capture.command must be set when capture.source is command")
		}
	default:
		return fmt.Errorf("capture.source must be device, command, or none, got %q", c.Capture.Source)
	}
	return nil
}
