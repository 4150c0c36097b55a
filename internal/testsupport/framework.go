package testsupport

import (
	"context"
	"strings"
	"testing"

	"wellbeing/internal/config"
	"wellbeing/internal/frameworkd"
	"wellbeing/internal/logging"
)

// StartFramework runs the reference framework service for cfg and stops it on
// cleanup. Tests are skipped where unix sockets are not permitted.
func StartFramework(t testing.TB, cfg *config.Config) *frameworkd.Instance {
	t.Helper()

	inst, err := frameworkd.Start(context.Background(), cfg, logging.NewNop())
	if err != nil {
		if strings.Contains(err.Error(), "operation not permitted") {
			t.Skipf("skipping framework service test: %v", err)
		}
		t.Fatalf("frameworkd.Start: %v", err)
	}
	t.Cleanup(func() { _ = inst.Close() })
	return inst
}
