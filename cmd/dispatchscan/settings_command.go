package main

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"dispatchscan/internal/dispatch"
	"dispatchscan/internal/session"
	"dispatchscan/internal/store"
)

func newSettingsCommand(ctx *commandContext) *cobra.Command {
	settingsCmd := &cobra.Command{
		Use:   "settings",
		Short: "Show or change persisted scanner settings",
	}
	settingsCmd.AddCommand(newSettingsShowCommand(ctx))
	settingsCmd.AddCommand(newSettingsSetCommand(ctx))
	return settingsCmd
}

func newSettingsShowCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Show scanner settings",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(st *store.Store) error {
				state, err := session.Load(cmd.Context(), st, session.WithLogger(ctx.commandLogger()))
				if err != nil {
					return err
				}
				printSettings(cmd, state.Settings())
				return nil
			})
		},
	}
}

func newSettingsSetCommand(ctx *commandContext) *cobra.Command {
	var autoSubmit string
	var mode string

	cmd := &cobra.Command{
		Use:   "set",
		Short: "Change scanner settings",
		RunE: func(cmd *cobra.Command, args []string) error {
			if strings.TrimSpace(autoSubmit) == "" && strings.TrimSpace(mode) == "" {
				return errors.New("nothing to change: pass --auto-submit and/or --mode")
			}
			return ctx.withStore(func(st *store.Store) error {
				state, err := session.Load(cmd.Context(), st, session.WithLogger(ctx.commandLogger()))
				if err != nil {
					return err
				}
				next := state.Settings()
				if value := strings.TrimSpace(autoSubmit); value != "" {
					enabled, err := parseToggle(value)
					if err != nil {
						return err
					}
					next.AutoSubmit = enabled
				}
				if value := strings.TrimSpace(mode); value != "" {
					parsed, err := dispatch.ParseValidationMode(value)
					if err != nil {
						return err
					}
					next.ValidationMode = parsed
				}
				if err := state.ApplySettings(cmd.Context(), next); err != nil {
					return err
				}
				printSettings(cmd, state.Settings())
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&autoSubmit, "auto-submit", "", "Auto-submit scanner detections (on or off)")
	cmd.Flags().StringVar(&mode, "mode", "", "Validation mode (strict or loose)")
	return cmd
}

func printSettings(cmd *cobra.Command, settings dispatch.Settings) {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Auto-submit:     %s\n", onOff(settings.AutoSubmit))
	fmt.Fprintf(out, "Validation mode: %s\n", settings.ValidationMode)
}
