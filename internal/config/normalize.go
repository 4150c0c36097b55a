package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	if err := c.normalizeFramework(); err != nil {
		return err
	}
	if err := c.normalizeService(); err != nil {
		return err
	}
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
	if strings.TrimSpace(c.Paths.RuntimeDir) == "" {
		c.Paths.RuntimeDir = defaultRuntimeDir
	}
	if c.Paths.RuntimeDir, err = expandPath(c.Paths.RuntimeDir); err != nil {
		return fmt.Errorf("paths.runtime_dir: %w", err)
	}
	return nil
}

func (c *Config) normalizeFramework() error {
	c.Framework.Target = strings.TrimSpace(c.Framework.Target)
	if c.Framework.Target == "" {
		c.Framework.Target = defaultFrameworkTarget
	}

	if strings.TrimSpace(c.Framework.SocketPath) == "" {
		if value, ok := os.LookupEnv(envFrameworkSocket); ok && strings.TrimSpace(value) != "" {
			c.Framework.SocketPath = strings.TrimSpace(value)
		} else {
			c.Framework.SocketPath = filepath.Join(c.Paths.RuntimeDir, defaultFrameworkSocketName)
		}
	}
	var err error
	if c.Framework.SocketPath, err = expandPath(strings.TrimSpace(c.Framework.SocketPath)); err != nil {
		return fmt.Errorf("framework.socket_path: %w", err)
	}

	if strings.TrimSpace(c.Framework.Executable) == "" {
		if value, ok := os.LookupEnv(envFrameworkExecutable); ok {
			c.Framework.Executable = value
		}
	}
	c.Framework.Executable = strings.TrimSpace(c.Framework.Executable)

	if c.Framework.PingTimeoutMillis == 0 {
		c.Framework.PingTimeoutMillis = defaultPingTimeoutMillis
	}
	if c.Framework.CallTimeoutMillis == 0 {
		c.Framework.CallTimeoutMillis = defaultCallTimeoutMillis
	}
	if c.Framework.LaunchTimeoutSeconds == 0 {
		c.Framework.LaunchTimeoutSeconds = defaultLaunchTimeoutSeconds
	}
	if c.Framework.ReconnectInitialMS == 0 {
		c.Framework.ReconnectInitialMS = defaultReconnectInitialMillis
	}
	if c.Framework.ReconnectMaxMS == 0 {
		c.Framework.ReconnectMaxMS = defaultReconnectMaxMillis
	}
	return nil
}

func (c *Config) normalizeService() error {
	if strings.TrimSpace(c.Service.Database) == "" {
		c.Service.Database = filepath.Join(c.Paths.StateDir, defaultServiceDatabaseName)
	}
	var err error
	if c.Service.Database, err = expandPath(strings.TrimSpace(c.Service.Database)); err != nil {
		return fmt.Errorf("service.database: %w", err)
	}
	return nil
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	if c.Logging.Format == "" {
		c.Logging.Format = defaultLogFormat
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
}
