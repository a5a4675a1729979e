package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"dispatchscan/internal/config"
	"dispatchscan/internal/statusapi"
)

const statusClientTimeout = 5 * time.Second

func newStatusCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show the state of the running session",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			var status statusapi.Status
			if err := callStatusAPI(cmd.Context(), cfg, http.MethodGet, "/api/status", &status); err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			colorize := shouldColorize(out)
			for _, line := range renderSectionHeader("Session "+shortID(status.SessionID), colorize) {
				fmt.Fprintln(out, line)
			}
			channelKind := statusOK
			if !status.Session.Locked {
				channelKind = statusWarn
			}
			captureKind := statusInfo
			if status.Capture == "running" {
				captureKind = statusOK
			}
			fmt.Fprintln(out, renderStatusLine("Channel", channelKind, channelTitle(status.Session.Channel), colorize))
			fmt.Fprintln(out, renderStatusLine("Action", statusInfo, string(status.Session.Action), colorize))
			fmt.Fprintln(out, renderStatusLine("Mode", statusInfo, string(status.Session.Settings.ValidationMode), colorize))
			fmt.Fprintln(out, renderStatusLine("Auto-submit", statusInfo, onOff(status.Session.Settings.AutoSubmit), colorize))
			fmt.Fprintln(out, renderStatusLine("Scanner", captureKind, fmt.Sprintf("%s (%s)", status.Capture, dash(status.CaptureName)), colorize))
			fmt.Fprintln(out, renderStatusLine("Busy", statusInfo, yesNo(status.Busy), colorize))
			if status.AwaitingNext {
				fmt.Fprintln(out, renderStatusLine("Next", statusWarn, "waiting for ready for next", colorize))
			}
			fmt.Fprintln(out, renderStatusLine("Today", statusInfo, fmt.Sprintf("%d scans", status.TodayCount), colorize))
			return nil
		},
	}
}

func newNextCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "next",
		Short: "Signal ready for next scan to the running session",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			var resp statusapi.NextResponse
			if err := callStatusAPI(cmd.Context(), cfg, http.MethodPost, "/api/next", &resp); err != nil {
				return err
			}
			if resp.Released {
				fmt.Fprintln(cmd.OutOrStdout(), "Ready for next scan")
			} else {
				fmt.Fprintln(cmd.OutOrStdout(), "Nothing was waiting")
			}
			return nil
		},
	}
}

func callStatusAPI(ctx context.Context, cfg *config.Config, method, path string, out any) error {
	bind := strings.TrimSpace(cfg.Station.StatusBind)
	if bind == "" {
		return errors.New("status API disabled: set station.status_bind")
	}
	ctx, cancel := context.WithTimeout(ctx, statusClientTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, method, "http://"+bind+path, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	if token := cfg.Station.StatusToken; token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return fmt.Errorf("contact running session at %s: %w (is `dispatchscan run` active?)", bind, err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("read status response: %w", err)
	}
	if resp.StatusCode >= 300 {
		var apiErr struct {
			Error string `json:"error"`
		}
		if json.Unmarshal(body, &apiErr) == nil && apiErr.Error != "" {
			return fmt.Errorf("status API: %s", apiErr.Error)
		}
		return fmt.Errorf("status API: %s", resp.Status)
	}
	return json.Unmarshal(body, out)
}
