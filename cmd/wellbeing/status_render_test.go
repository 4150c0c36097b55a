package main

import (
	"fmt"
	"io"
	"strings"
	"testing"

	"wellbeing/internal/framework"
)

func TestRenderStatusLineNoColor(t *testing.T) {
	got := renderStatusLine("Framework", statusWarn, "Unavailable", false)
	want := fmt.Sprintf("%s%-*s %s", statusIndent, statusLabelWidth, "Framework:", "[WARN] Unavailable")
	if got != want {
		t.Fatalf("renderStatusLine mismatch\n got: %q\nwant: %q", got, want)
	}
}

func TestRenderStatusLineWithColor(t *testing.T) {
	got := renderStatusLine("Socket", statusOK, "Listening", true)
	if !strings.HasPrefix(got, ansiGreen) || !strings.HasSuffix(got, ansiReset) {
		t.Fatalf("expected green line, got %q", got)
	}
}

func TestConnectionState(t *testing.T) {
	cases := []struct {
		status framework.Status
		want   string
	}{
		{framework.Status{}, "pending"},
		{framework.Status{Version: -1, Connecting: true}, "connecting"},
		{framework.Status{Version: 2, Connected: true, Resolved: true}, "connected"},
		{framework.Status{Connected: true}, "bound"},
		{framework.Status{Resolved: true}, "unavailable"},
	}
	for _, tc := range cases {
		if got := connectionState(tc.status); got != tc.want {
			t.Fatalf("connectionState(%+v) = %q, want %q", tc.status, got, tc.want)
		}
	}
	requireContains(t, frameworkLine(framework.Status{Version: 4, Connected: true}, false), "[OK] Connected (version 4)")
}

func TestShouldColorizeNonFile(t *testing.T) {
	if shouldColorize(io.Discard) {
		t.Fatalf("expected non-file writer to disable color")
	}
}
