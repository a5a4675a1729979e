package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"dispatchscan/internal/pipeline"
	"dispatchscan/internal/store"
)

func newHistoryCommand(ctx *commandContext) *cobra.Command {
	var local bool
	var limit int

	cmd := &cobra.Command{
		Use:   "history",
		Short: "List today's scans",
		Long:  "List today's scans from the backend, or with --local the station journal of scans submitted here.",
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			if limit <= 0 {
				limit = pipeline.LedgerCapacity
			}
			if local {
				return ctx.withStore(func(st *store.Store) error {
					entries, err := st.RecentJournal(cmd.Context(), limit)
					if err != nil {
						return err
					}
					if len(entries) == 0 {
						fmt.Fprintln(out, "No scans recorded on this station")
						return nil
					}
					fmt.Fprintln(out, renderJournalTable(entries))
					return nil
				})
			}

			client, err := ctx.backendClient()
			if err != nil {
				return err
			}
			now := time.Now()
			midnight := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
			records, err := client.RecentScans(cmd.Context(), midnight, limit)
			if err != nil {
				return fmt.Errorf("fetch scans: %w", err)
			}
			if len(records) == 0 {
				fmt.Fprintln(out, "No scans today")
				return nil
			}
			fmt.Fprintln(out, renderScanTable(records))
			return nil
		},
	}

	cmd.Flags().BoolVar(&local, "local", false, "Read the station journal instead of the backend")
	cmd.Flags().IntVarP(&limit, "limit", "n", pipeline.LedgerCapacity, "Maximum number of scans to list")
	return cmd
}
