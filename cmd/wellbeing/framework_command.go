package main

import (
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"wellbeing/internal/binder"
	"wellbeing/internal/frameworkd"
)

func newFrameworkCommand(ctx *commandContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "framework",
		Short: "Run or probe the framework service",
	}
	cmd.AddCommand(newFrameworkServeCommand(ctx))
	cmd.AddCommand(newFrameworkPingCommand(ctx))
	return cmd
}

func newFrameworkServeCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve the framework service on its socket",
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

			err = frameworkd.Run(runCtx, cfg, logger)
			if errors.Is(err, frameworkd.ErrAlreadyRunning) {
				return fmt.Errorf("framework service already running on %s", cfg.Framework.SocketPath)
			}
			return err
		},
	}
}

func newFrameworkPingCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "ping",
		Short: "Check that the framework socket accepts connections",
		RunE: func(cmd *cobra.Command, args []string) error {
			socket := ctx.socketPath()
			if err := binder.WaitForSocket(cmd.Context(), socket, 0); err != nil {
				return wrapDialError(err, socket)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Framework socket %s is listening\n", socket)
			return nil
		},
	}
}
