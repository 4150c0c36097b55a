package main

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"wellbeing/internal/host"
	"wellbeing/internal/logging"
)

func newHostCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "host",
		Short: "Run the wellbeing host until interrupted",
		Long: "Run the wellbeing host in the foreground. The host connects to the framework\n" +
			"service and keeps the connection alive. Send SIGHUP to request a reconnect\n" +
			"after the binding has died.",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			logger, err := ctx.daemonLogger()
			if err != nil {
				return err
			}

			runCtx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			h, err := host.New(cfg, logger, host.WithConfigPath(ctx.configPath))
			if err != nil {
				return err
			}
			defer h.Close()

			hup := make(chan os.Signal, 1)
			signal.Notify(hup, syscall.SIGHUP)
			defer signal.Stop(hup)

			h.Start(runCtx)
			for {
				select {
				case <-runCtx.Done():
					return nil
				case <-hup:
					logger.Info("reconnect requested", logging.String(logging.FieldEventType, "host_reconnect_requested"))
					h.Reconnect()
				}
			}
		},
	}
}
