package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"soundloom/internal/history"
)

func newHistoryCommand(ctx *commandContext) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show recent build runs",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			store, err := history.Open(cfg.HistoryPath())
			if err != nil {
				return err
			}
			defer store.Close()

			records, err := store.Recent(cmd.Context(), limit)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if len(records) == 0 {
				fmt.Fprintln(out, "No build history recorded yet")
				return nil
			}

			rows := make([][]string, 0, len(records))
			for _, record := range records {
				detail := record.Error
				rows = append(rows, []string{
					record.CreatedAt.Local().Format(time.DateTime),
					shortRunID(record.RunID),
					record.Speaker,
					record.Status,
					fmt.Sprintf("%d", record.TotalFiles),
					record.Fingerprint,
					detail,
				})
			}
			fmt.Fprintln(out, renderTable(out,
				[]string{"When", "Run", "Speaker", "Status", "Files", "Fingerprint", "Error"},
				rows,
				[]columnAlignment{alignLeft, alignLeft, alignLeft, alignLeft, alignRight, alignLeft, alignLeft},
			))
			return nil
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Maximum records to show")
	return cmd
}

func shortRunID(runID string) string {
	if len(runID) > 8 {
		return runID[:8]
	}
	return runID
}
