package main

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/edgard/inboxintel/internal/app/tasks"
	"github.com/edgard/inboxintel/internal/notify"
	"github.com/edgard/inboxintel/internal/report"
)

func reportCmd() *cobra.Command {
	var (
		dateStr string
		send    bool
	)

	cmd := &cobra.Command{
		Use:   "report",
		Short: "Print the daily arrivals summary",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()

			date := time.Now()
			if dateStr != "" {
				var err error
				date, err = time.Parse(time.DateOnly, dateStr)
				if err != nil {
					return fmt.Errorf("invalid --date %q, want YYYY-MM-DD: %w", dateStr, err)
				}
			}

			e, err := bootstrap()
			if err != nil {
				return err
			}
			defer e.close()

			client, err := e.guestyClient(ctx)
			if err != nil {
				return err
			}

			text, err := report.NewGenerator(client, e.store, e.log).GenerateDailySummary(ctx, date)
			if err != nil {
				e.log.Error("Failed to generate daily summary", "error", err)
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), text)

			if !send {
				return nil
			}
			n, err := e.notifier()
			if err != nil {
				return err
			}
			if !notify.Enabled(n) {
				return errors.New("--send given but no notification channel is configured")
			}
			return n.Send(ctx, tasks.ReportTitle, text)
		},
	}

	cmd.Flags().StringVar(&dateStr, "date", "", "report date as YYYY-MM-DD (default: today)")
	cmd.Flags().BoolVar(&send, "send", false, "also send the summary through the configured notification channels")
	return cmd
}
