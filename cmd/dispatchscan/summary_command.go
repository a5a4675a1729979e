package main

import (
	"fmt"
	"sort"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"dispatchscan/internal/store"
)

func newSummaryCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "summary",
		Short: "Show today's dispatch summary from the backend",
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := ctx.backendClient()
			if err != nil {
				return err
			}
			summary, err := client.Summary(cmd.Context())
			if err != nil {
				return fmt.Errorf("fetch summary: %w", err)
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Today:     %d\n", summary.TodayCount)
			fmt.Fprintf(out, "Total:     %d\n", summary.TotalCount)
			if summary.LastScanTime != nil {
				fmt.Fprintf(out, "Last scan: %s\n", summary.LastScanTime.Local().Format("2006-01-02 15:04:05"))
			}
			if err := ctx.withStore(func(st *store.Store) error {
				now := time.Now()
				midnight := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
				local, err := st.CountSince(cmd.Context(), midnight)
				if err != nil {
					return err
				}
				fmt.Fprintf(out, "Station:   %d\n", local)
				return nil
			}); err != nil {
				return fmt.Errorf("count local scans: %w", err)
			}
			if len(summary.ByPlatform) == 0 {
				return nil
			}
			names := make([]string, 0, len(summary.ByPlatform))
			for name := range summary.ByPlatform {
				names = append(names, name)
			}
			sort.Strings(names)
			rows := make([][]string, 0, len(names))
			for _, name := range names {
				rows = append(rows, []string{channelTitle(name), strconv.Itoa(summary.ByPlatform[name])})
			}
			fmt.Fprintln(out, renderTable([]string{"Channel", "Scans"}, rows, []columnAlignment{alignLeft, alignRight}))
			return nil
		},
	}
}
