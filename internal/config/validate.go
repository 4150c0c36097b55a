package config

import (
	"errors"
	"fmt"
	"path/filepath"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateFramework(); err != nil {
		return err
	}
	if err := c.validateService(); err != nil {
		return err
	}
	return c.validateLogging()
}

func (c *Config) validateFramework() error {
	if c.Framework.Target == "" {
		return errors.New("framework.target must be set")
	}
	if !filepath.IsAbs(c.Framework.SocketPath) {
		return errors.New("framework.socket_path must be an absolute path")
	}
	if c.Framework.PeerUID < -1 {
		return errors.New("framework.peer_uid must be -1 (disabled) or a uid")
	}
	values := map[string]int{
		"framework.ping_timeout_ms":        c.Framework.PingTimeoutMillis,
		"framework.call_timeout_ms":        c.Framework.CallTimeoutMillis,
		"framework.launch_timeout_seconds": c.Framework.LaunchTimeoutSeconds,
		"framework.reconnect_initial_ms":   c.Framework.ReconnectInitialMS,
		"framework.reconnect_max_ms":       c.Framework.ReconnectMaxMS,
	}
	if err := ensurePositiveMap(values); err != nil {
		return err
	}
	if c.Framework.ReconnectMaxMS < c.Framework.ReconnectInitialMS {
		return errors.New("framework.reconnect_max_ms must be >= framework.reconnect_initial_ms")
	}
	return nil
}

func (c *Config) validateService() error {
	if c.Service.Version < 1 {
		return errors.New("service.version must be >= 1")
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Format {
	case "console", "json":
	default:
		return fmt.Errorf("logging.format: unsupported value %q", c.Logging.Format)
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "warning", "error":
	default:
		return fmt.Errorf("logging.level: unsupported value %q", c.Logging.Level)
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
