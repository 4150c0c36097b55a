package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains directory configuration.
type Paths struct {
	StateDir   string `toml:"state_dir"`
	LogDir     string `toml:"log_dir"`
	RuntimeDir string `toml:"runtime_dir"`
}

// Framework describes how the host reaches the privileged framework service.
type Framework struct {
	Target              string `toml:"target"`
	SocketPath          string `toml:"socket_path"`
	Executable          string `toml:"executable"`
	AutoCreate          bool   `toml:"auto_create"`
	IncludeCapabilities bool   `toml:"include_capabilities"`
	// PeerUID is the uid the framework socket must be served by; -1 disables the check.
	PeerUID              int `toml:"peer_uid"`
	PingTimeoutMillis    int `toml:"ping_timeout_ms"`
	CallTimeoutMillis    int `toml:"call_timeout_ms"`
	LaunchTimeoutSeconds int `toml:"launch_timeout_seconds"`
	ReconnectInitialMS   int `toml:"reconnect_initial_ms"`
	ReconnectMaxMS       int `toml:"reconnect_max_ms"`
}

// Service configures the reference framework service.
type Service struct {
	Enabled  bool   `toml:"enabled"`
	Version  int    `toml:"version"`
	Database string `toml:"database"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format string `toml:"format"`
	Level  string `toml:"level"`
}

// Config encapsulates all configuration values for the wellbeing host,
// the reference framework service, and the CLI.
type Config struct {
	Paths     Paths     `toml:"paths"`
	Framework Framework `toml:"framework"`
	Service   Service   `toml:"service"`
	Logging   Logging   `toml:"logging"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath(defaultConfigPath)
}

// Load locates, parses, and validates a configuration file. The returned config has all
// path fields expanded and normalized.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		if err := toml.NewDecoder(file).Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}
	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		if _, err := os.Stat(expanded); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := expandPath(defaultConfigPath)
	if err != nil {
		return "", false, err
	}
	projectPath, err := filepath.Abs("wellbeing.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}
	return defaultPath, false, nil
}

// EnsureDirectories creates the state, log and runtime directories.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.StateDir, c.Paths.LogDir, c.Paths.RuntimeDir} {
		if strings.TrimSpace(dir) == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return nil
}

// PingTimeout bounds a liveness probe of an established framework channel.
func (c *Config) PingTimeout() time.Duration {
	return time.Duration(c.Framework.PingTimeoutMillis) * time.Millisecond
}

// CallTimeout bounds a single remote call on the framework channel.
func (c *Config) CallTimeout() time.Duration {
	return time.Duration(c.Framework.CallTimeoutMillis) * time.Millisecond
}

// LaunchTimeout bounds how long an auto-created framework service may take to appear.
func (c *Config) LaunchTimeout() time.Duration {
	return time.Duration(c.Framework.LaunchTimeoutSeconds) * time.Second
}

// ReconnectBackoff returns the initial and maximum re-dial delays of a persistent binding.
func (c *Config) ReconnectBackoff() (time.Duration, time.Duration) {
	return time.Duration(c.Framework.ReconnectInitialMS) * time.Millisecond,
		time.Duration(c.Framework.ReconnectMaxMS) * time.Millisecond
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// Encode renders cfg as TOML.
func Encode(cfg *Config) ([]byte, error) {
	if cfg == nil {
		return nil, errors.New("config is nil")
	}
	return toml.Marshal(cfg)
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}
	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}
