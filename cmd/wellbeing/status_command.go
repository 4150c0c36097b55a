package main

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"wellbeing/internal/binder"
	"wellbeing/internal/framework"
)

type statusReport struct {
	Target       string `json:"target"`
	Socket       string `json:"socket"`
	SocketError  string `json:"socket_error,omitempty"`
	State        string `json:"state"`
	Resolved     bool   `json:"resolved"`
	Available    bool   `json:"available"`
	Version      int    `json:"version"`
	AirplaneMode *bool  `json:"airplane_mode,omitempty"`
}

func newStatusCommand(ctx *commandContext) *cobra.Command {
	var timeout time.Duration
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show the framework connection status",
		RunE: func(cmd *cobra.Command, args []string) error {
			report, err := collectStatus(cmd.Context(), ctx, timeout)
			if err != nil {
				return err
			}
			if jsonOutput {
				return writeJSON(cmd, report)
			}
			printStatus(cmd, report)
			return nil
		},
	}
	cmd.Flags().DurationVar(&timeout, "timeout", 5*time.Second, "How long to wait for the framework connection")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")
	return cmd
}

func collectStatus(parent context.Context, ctx *commandContext, timeout time.Duration) (statusReport, error) {
	socket := ctx.socketPath()
	report := statusReport{Socket: socket}
	if err := binder.WaitForSocket(parent, socket, 0); err != nil {
		report.SocketError = wrapDialError(err, socket).Error()
	}

	h, available, err := ctx.connectHost(parent, ctx.toolLogger(), timeout)
	if err != nil {
		return report, err
	}
	defer h.Close()

	st := h.Status()
	report.Target = st.Target
	report.State = connectionState(st)
	report.Resolved = st.Resolved
	report.Available = available
	report.Version = h.VersionCode()
	if enabled, err := h.AirplaneMode(); err == nil {
		report.AirplaneMode = &enabled
	} else if !errors.Is(err, framework.ErrUnavailable) {
		report.State = "error"
		report.SocketError = err.Error()
	}
	return report, nil
}

func printStatus(cmd *cobra.Command, report statusReport) {
	out := cmd.OutOrStdout()
	colorize := shouldColorize(out)

	lines := renderSectionHeader("Wellbeing", colorize)
	if report.SocketError == "" {
		lines = append(lines, renderStatusLine("Socket", statusOK, "Listening", colorize))
	} else {
		lines = append(lines, renderStatusLine("Socket", statusError, report.SocketError, colorize))
	}
	lines = append(lines, frameworkLine(framework.Status{
		Version:    report.Version,
		Connected:  report.State == "connected" || report.State == "bound",
		Connecting: report.State == "connecting",
		Resolved:   report.Resolved,
	}, colorize))
	fmt.Fprintln(out, strings.Join(lines, "\n"))
	fmt.Fprintln(out)

	airplane := "n/a"
	if report.AirplaneMode != nil {
		airplane = onOff(*report.AirplaneMode)
	}
	fmt.Fprintln(out, renderProperties([2]string{"Property", "Value"}, [][2]string{
		{"Target", report.Target},
		{"Socket", report.Socket},
		{"State", titleCaser.String(report.State)},
		{"Resolved", yesNo(report.Resolved)},
		{"Version", strconv.Itoa(report.Version)},
		{"Airplane Mode", airplane},
	}))
}
