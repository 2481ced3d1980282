package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/kidandcat/taskdesk/internal/stats"
)

func newStatsCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Task statistics",
	}
	cmd.AddCommand(newStatsExportCmd(a))
	return cmd
}

func newStatsExportCmd(a *app) *cobra.Command {
	var (
		out   string
		users []string
	)
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write an XLSX workbook with per-user performance, trend and weekly completions",
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := a.openStore()
			if err != nil {
				return err
			}
			defer store.Close()

			dir, err := store.LoadUsers(cmd.Context())
			if err != nil {
				return err
			}
			names := users
			if len(names) == 0 {
				names = dir.SortedNames()
			}

			today := time.Now()
			reports := make([]stats.Report, 0, len(names))
			for _, name := range names {
				u, ok := dir[name]
				if !ok {
					return fmt.Errorf("unknown user %s", name)
				}
				reports = append(reports, stats.NewReport(u, today))
			}

			f, err := os.Create(out)
			if err != nil {
				return err
			}
			if err := stats.WriteWorkbook(f, reports); err != nil {
				f.Close()
				return err
			}
			if err := f.Close(); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "✓ Wrote %d report(s) to %s\n", len(reports), out)
			return nil
		},
	}
	cmd.Flags().StringVarP(&out, "out", "o", "taskdesk-stats.xlsx", "Output file")
	cmd.Flags().StringSliceVarP(&users, "user", "u", nil, "Limit to these users (default all)")
	return cmd
}
