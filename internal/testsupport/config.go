package testsupport

import (
	"os"
	"path/filepath"
	"testing"

	"wellbeing/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*configBuilder)

type configBuilder struct {
	t       testing.TB
	baseDir string
	cfg     *config.Config
}

// NewConfig produces a config seeded with unique temp directories per test.
// The runtime directory lives under the system temp dir so socket paths stay
// within the unix socket length limit.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	runtimeDir, err := os.MkdirTemp("", "wb")
	if err != nil {
		t.Fatalf("create runtime dir: %v", err)
	}
	t.Cleanup(func() { _ = os.RemoveAll(runtimeDir) })

	cfgVal := config.Default()
	cfgVal.Paths.StateDir = filepath.Join(base, "state")
	cfgVal.Paths.LogDir = filepath.Join(base, "logs")
	cfgVal.Paths.RuntimeDir = runtimeDir
	cfgVal.Framework.SocketPath = filepath.Join(runtimeDir, "framework.sock")
	cfgVal.Framework.Executable = ""
	cfgVal.Framework.ReconnectInitialMS = 10
	cfgVal.Framework.ReconnectMaxMS = 50
	cfgVal.Framework.LaunchTimeoutSeconds = 2
	cfgVal.Service.Database = filepath.Join(base, "state", "framework.db")

	builder := &configBuilder{
		t:       t,
		baseDir: base,
		cfg:     &cfgVal,
	}
	for _, opt := range opts {
		opt(builder)
	}
	return builder.cfg
}

// WithServiceDisabled makes the reference service decline binds.
func WithServiceDisabled() ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Service.Enabled = false
	}
}

// WithServiceVersion sets the protocol version the reference service reports.
func WithServiceVersion(version int) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Service.Version = version
	}
}

// WithPeerUID requires the framework socket peer to run as uid.
func WithPeerUID(uid int) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Framework.PeerUID = uid
	}
}
