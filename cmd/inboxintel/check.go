package main

import (
	"errors"
	"fmt"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/edgard/inboxintel/internal/database"
)

func checkCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "check",
		Short: "Verify the database and the Guesty credentials",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			out := cmd.OutOrStdout()

			e, err := bootstrap()
			if err != nil {
				return err
			}
			defer e.close()

			var failed bool

			if err := e.store.Ping(ctx); err != nil {
				fmt.Fprintf(out, "✗ database: %v\n", err)
				failed = true
			} else {
				counts, err := e.store.CountByState(ctx)
				if err != nil {
					fmt.Fprintf(out, "✗ database: %v\n", err)
					failed = true
				} else {
					fmt.Fprintf(out, "✓ database: %s unclassified, %s classified\n",
						humanize.Comma(int64(counts[database.StateUnclassified])),
						humanize.Comma(int64(counts[database.StateClassified])))
				}
			}

			client, err := e.guestyClient(ctx)
			if err != nil {
				fmt.Fprintf(out, "✗ guesty: %v\n", err)
				failed = true
			} else if n, err := client.TestConnection(ctx); err != nil {
				fmt.Fprintf(out, "✗ guesty: %v\n", err)
				failed = true
			} else {
				fmt.Fprintf(out, "✓ guesty: connected, %d listings visible\n", n)
			}

			if failed {
				return errors.New("one or more checks failed")
			}
			return nil
		},
	}
}
