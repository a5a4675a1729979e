package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"dispatchscan/internal/dispatch"
	"dispatchscan/internal/logging"
	"dispatchscan/internal/station"
)

func newRunCommand(ctx *commandContext) *cobra.Command {
	var channel string
	var action string
	var startCapture bool

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run an interactive scanning session",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			sessionID := uuid.NewString()
			logger, logPath, err := ctx.sessionLogger(sessionID, true)
			if err != nil {
				return err
			}
			logging.CleanupOldLogs(logger, cfg.Paths.LogDir, logPath, cfg.Logging.RetentionDays)

			sigCtx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			runCtx, cancel := context.WithCancel(sigCtx)

			out := cmd.OutOrStdout()
			con := newConsole(cmd.InOrStdin(), out, shouldColorize(out))
			st, err := station.Open(runCtx, station.Options{
				Config:    cfg,
				Logger:    logger,
				SessionID: sessionID,
				Confirmer: con,
				Reporter:  con,
			})
			if err != nil {
				cancel()
				return err
			}
			defer st.Close()
			defer cancel()

			if err := st.Start(runCtx); err != nil {
				return err
			}
			if value := strings.TrimSpace(action); value != "" {
				parsed, err := dispatch.ParseScanAction(value)
				if err != nil {
					return err
				}
				if err := st.Session().SetAction(parsed); err != nil {
					return err
				}
			}
			if value := strings.TrimSpace(channel); value != "" {
				if err := st.LockChannel(value); err != nil {
					return err
				}
			}
			if startCapture {
				if err := st.StartCapture(runCtx); err != nil {
					con.report(err, "")
				}
			}

			fmt.Fprintf(out, "dispatchscan session %s (log %s)\n", shortID(sessionID), dash(logPath))
			if addr := st.StatusAddr(); addr != "" {
				fmt.Fprintf(out, "Status API on http://%s\n", addr)
			}
			fmt.Fprintln(out, "Type :help for commands.")
			return con.run(runCtx, st)
		},
	}

	cmd.Flags().StringVar(&channel, "channel", "", "Lock the session to this channel at start")
	cmd.Flags().StringVar(&action, "action", "", "Initial scan action (dispatch or cancel)")
	cmd.Flags().BoolVar(&startCapture, "capture", false, "Start the configured scanner at start (requires --channel)")
	return cmd
}
