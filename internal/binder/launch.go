package binder

import (
	"context"
	"fmt"
	"net"
	"os/exec"
	"strings"
	"time"
)

const socketPollInterval = 200 * time.Millisecond

// Launch starts a detached service process.
func Launch(executable string, args []string) error {
	if strings.TrimSpace(executable) == "" {
		return fmt.Errorf("resolve executable: executable path is empty")
	}
	proc := exec.Command(executable, args...)
	if err := proc.Start(); err != nil {
		return fmt.Errorf("launch service: %w", err)
	}
	return proc.Process.Release()
}

// WaitForSocket polls until the socket at path accepts connections.
func WaitForSocket(ctx context.Context, path string, timeout time.Duration) error {
	deadline := time.Now().Add(timeout)
	var lastErr error
	for {
		conn, err := net.DialTimeout("unix", path, socketPollInterval)
		if err == nil {
			_ = conn.Close()
			return nil
		}
		lastErr = err
		if !time.Now().Before(deadline) {
			break
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(socketPollInterval):
		}
	}
	return fmt.Errorf("service socket %s not ready after %s: %w", path, timeout, lastErr)
}
