package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"wellbeing/internal/config"
	"wellbeing/internal/host"
	"wellbeing/internal/logging"
)

type commandContext struct {
	socketFlag *string
	configFlag *string

	configOnce   sync.Once
	config       *config.Config
	configPath   string
	resolvedPath string
	configErr    error
}

func newCommandContext(socketFlag, configFlag *string) *commandContext {
	return &commandContext{
		socketFlag: socketFlag,
		configFlag: configFlag,
	}
}

func (c *commandContext) ensureConfig() (*config.Config, error) {
	c.configOnce.Do(func() {
		var path string
		if c.configFlag != nil {
			path = strings.TrimSpace(*c.configFlag)
		}
		cfg, resolved, exists, err := config.Load(path)
		if err != nil {
			c.configErr = err
			return
		}
		if socket := c.socketOverride(); socket != "" {
			expanded, err := config.ExpandPath(socket)
			if err != nil {
				c.configErr = fmt.Errorf("resolve socket path: %w", err)
				return
			}
			cfg.Framework.SocketPath = expanded
		}
		if cfg.Framework.AutoCreate && cfg.Framework.Executable == "" {
			if exe, err := os.Executable(); err == nil {
				cfg.Framework.Executable = exe
			}
		}
		if err := cfg.EnsureDirectories(); err != nil {
			c.configErr = err
			return
		}
		c.resolvedPath = resolved
		if exists {
			c.configPath = resolved
		}
		c.config = cfg
	})
	return c.config, c.configErr
}

func (c *commandContext) socketOverride() string {
	if c.socketFlag == nil {
		return ""
	}
	return strings.TrimSpace(*c.socketFlag)
}

func (c *commandContext) socketPath() string {
	cfg, err := c.ensureConfig()
	if err != nil || cfg == nil {
		return c.socketOverride()
	}
	return cfg.Framework.SocketPath
}

// daemonLogger logs like a long-running service: console or json per config,
// to stdout and the log file.
func (c *commandContext) daemonLogger() (*slog.Logger, error) {
	cfg, err := c.ensureConfig()
	if err != nil {
		return nil, err
	}
	return logging.NewFromConfig(cfg)
}

// toolLogger keeps one-shot command output clean: warnings and errors only,
// on stderr.
func (c *commandContext) toolLogger() *slog.Logger {
	logger, err := logging.New(logging.Options{
		Level:   "warn",
		Format:  "console",
		Outputs: []string{"stderr"},
	})
	if err != nil {
		return logging.NewNop()
	}
	return logger
}

// connectHost starts a host and waits up to timeout for its first
// connection attempt to resolve. The caller closes the host.
func (c *commandContext) connectHost(ctx context.Context, logger *slog.Logger, timeout time.Duration) (*host.Host, bool, error) {
	cfg, err := c.ensureConfig()
	if err != nil {
		return nil, false, err
	}
	h, err := host.New(cfg, logger, host.WithConfigPath(c.configPath))
	if err != nil {
		return nil, false, err
	}
	h.Start(ctx)

	waitCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	available, err := h.WaitResolved(waitCtx)
	if err != nil && !errors.Is(err, context.DeadlineExceeded) {
		h.Close()
		return nil, false, err
	}
	return h, available, nil
}

func wrapDialError(err error, socket string) error {
	switch {
	case errors.Is(err, syscall.ENOENT) || os.IsNotExist(err):
		return fmt.Errorf("connect to framework: socket %s not found; start it with `wellbeing framework serve`", socket)
	case errors.Is(err, syscall.ECONNREFUSED):
		return fmt.Errorf("connect to framework: socket %s refused the connection; verify the framework service is running", socket)
	default:
		return fmt.Errorf("connect to framework: %w", err)
	}
}

func shouldSkipConfig(cmd *cobra.Command) bool {
	for c := cmd; c != nil; c = c.Parent() {
		if c.Annotations != nil && c.Annotations["skipConfigLoad"] == "true" {
			return true
		}
	}
	return false
}

func yesNo(value bool) string {
	if value {
		return "yes"
	}
	return "no"
}

func onOff(value bool) string {
	if value {
		return "on"
	}
	return "off"
}
