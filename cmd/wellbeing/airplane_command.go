package main

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"wellbeing/internal/framework"
)

func newAirplaneCommand(ctx *commandContext) *cobra.Command {
	var timeout time.Duration

	cmd := &cobra.Command{
		Use:       "airplane [on|off]",
		Short:     "Show or set airplane mode through the framework",
		Args:      cobra.MatchAll(cobra.MaximumNArgs(1), cobra.OnlyValidArgs),
		ValidArgs: []string{"on", "off"},
		RunE: func(cmd *cobra.Command, args []string) error {
			h, _, err := ctx.connectHost(cmd.Context(), ctx.toolLogger(), timeout)
			if err != nil {
				return err
			}
			defer h.Close()

			out := cmd.OutOrStdout()
			version := h.VersionCode()
			if len(args) == 0 {
				enabled, err := h.AirplaneMode()
				if errors.Is(err, framework.ErrUnavailable) {
					fmt.Fprintf(out, "Airplane mode unknown: framework unavailable (version %d)\n", version)
					return nil
				}
				if err != nil {
					return fmt.Errorf("read airplane mode: %w", err)
				}
				fmt.Fprintf(out, "Airplane mode is %s\n", onOff(enabled))
				return nil
			}

			enabled := args[0] == "on"
			if version < framework.MinVersionSetAirplaneMode {
				fmt.Fprintf(out, "Airplane mode skipped: framework version %d is below %d\n", version, framework.MinVersionSetAirplaneMode)
				return nil
			}
			if err := h.SetAirplaneMode(enabled); err != nil {
				return fmt.Errorf("set airplane mode: %w", err)
			}
			fmt.Fprintf(out, "Airplane mode %s\n", onOff(enabled))
			return nil
		},
	}
	cmd.Flags().DurationVar(&timeout, "timeout", 5*time.Second, "How long to wait for the framework connection")
	return cmd
}
