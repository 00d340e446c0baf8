package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func classifyCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "classify",
		Short: "Run one classification pass over unclassified messages",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()

			e, err := bootstrap()
			if err != nil {
				return err
			}
			defer e.close()

			n, err := e.notifier()
			if err != nil {
				return err
			}
			w, err := e.worker(ctx, n)
			if err != nil {
				return err
			}

			summary, err := w.Run(ctx)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "processed %d, failed %d, alerted %d\n",
				summary.Processed, summary.Failed, summary.Alerted)
			return nil
		},
	}
}
