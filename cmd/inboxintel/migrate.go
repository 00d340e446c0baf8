package main

import (
	"github.com/spf13/cobra"
)

func migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply database migrations and exit",
		RunE: func(_ *cobra.Command, _ []string) error {
			// opening the store applies pending migrations
			e, err := bootstrap()
			if err != nil {
				return err
			}
			defer e.close()

			e.log.Info("Database is up to date")
			return nil
		},
	}
}
