package main

import (
	"fmt"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/edgard/inboxintel/internal/ingest"
)

func backfillCmd() *cobra.Command {
	var days int

	cmd := &cobra.Command{
		Use:   "backfill",
		Short: "Import historical messages from Guesty",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()

			e, err := bootstrap()
			if err != nil {
				return err
			}
			defer e.close()

			if !cmd.Flags().Changed("days") {
				days = e.cfg.Backfill.Days
			}

			client, err := e.guestyClient(ctx)
			if err != nil {
				return err
			}

			gateway := ingest.NewGateway(e.store, e.log)
			stats, runErr := ingest.NewBackfiller(gateway, client, client.PageSize(), e.log).Run(ctx, days)

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Backfill of the last %d days\n", days)
			fmt.Fprintf(out, "  total fetched:      %s\n", humanize.Comma(int64(stats.TotalFetched)))
			fmt.Fprintf(out, "  new saved:          %s\n", humanize.Comma(int64(stats.NewSaved)))
			fmt.Fprintf(out, "  duplicates skipped: %s\n", humanize.Comma(int64(stats.DuplicatesSkipped)))
			if stats.InvalidSkipped > 0 {
				fmt.Fprintf(out, "  invalid skipped:    %s\n", humanize.Comma(int64(stats.InvalidSkipped)))
			}

			if runErr != nil {
				e.log.Error("Backfill stopped early", "error", runErr)
				return runErr
			}
			return nil
		},
	}

	cmd.Flags().IntVarP(&days, "days", "d", 0, "number of days to import (default: backfill.days from config)")
	return cmd
}
