package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"dispatchscan/internal/dispatch"
	"dispatchscan/internal/pipeline"
	"dispatchscan/internal/station"
)

func newScanCommand(ctx *commandContext) *cobra.Command {
	var channel string
	var action string
	var awb string
	var courier string
	var assumeYes bool

	cmd := &cobra.Command{
		Use:   "scan <barcode>",
		Short: "Submit a single scan through the dispatch pipeline",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			sessionID := uuid.NewString()
			logger, _, err := ctx.sessionLogger(sessionID, false)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			confirmer := confirmFromReader(cmd.InOrStdin(), out)
			if assumeYes {
				confirmer = pipeline.ConfirmerFunc(func(context.Context, string, *dispatch.ValidationResult) (bool, error) {
					return true, nil
				})
			}

			st, err := station.Open(cmd.Context(), station.Options{
				Config:    cfg,
				Logger:    logger,
				SessionID: sessionID,
				Confirmer: confirmer,
			})
			if err != nil {
				return err
			}
			defer st.Close()

			if value := strings.TrimSpace(action); value != "" {
				parsed, err := dispatch.ParseScanAction(value)
				if err != nil {
					return err
				}
				if err := st.Session().SetAction(parsed); err != nil {
					return err
				}
			}
			if err := st.LockChannel(channel); err != nil {
				return err
			}

			fb := st.Pipeline().Submit(cmd.Context(), args[0], dispatch.FormFields{
				AWBNumber:      awb,
				CourierPartner: courier,
			})
			fmt.Fprintln(out, renderFeedback(fb, shouldColorize(out)))
			switch fb.Kind {
			case pipeline.KindFailure, pipeline.KindInput, pipeline.KindBusy:
				if fb.Err != nil {
					return fb.Err
				}
				return errors.New(fb.Message)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&channel, "channel", "", "Sales channel for the scan (required)")
	cmd.Flags().StringVar(&action, "action", "", "Scan action (dispatch or cancel)")
	cmd.Flags().StringVar(&awb, "awb", "", "AWB number")
	cmd.Flags().StringVar(&courier, "courier", "", "Courier partner")
	cmd.Flags().BoolVarP(&assumeYes, "yes", "y", false, "Confirm cancellations without prompting")
	_ = cmd.MarkFlagRequired("channel")
	return cmd
}

// confirmFromReader asks on out and reads a single answer line from in.
func confirmFromReader(in io.Reader, out io.Writer) pipeline.Confirmer {
	reader := bufio.NewReader(in)
	return pipeline.ConfirmerFunc(func(ctx context.Context, raw string, result *dispatch.ValidationResult) (bool, error) {
		if err := ctx.Err(); err != nil {
			return false, err
		}
		fmt.Fprintf(out, "Cancel order %s? [y/N] ", raw)
		line, err := reader.ReadString('\n')
		if err != nil && !errors.Is(err, io.EOF) {
			return false, err
		}
		return isYes(line), nil
	})
}
