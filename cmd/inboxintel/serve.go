package main

import (
	"time"

	"github.com/spf13/cobra"

	"github.com/edgard/inboxintel/internal/app"
	"github.com/edgard/inboxintel/internal/app/tasks"
	"github.com/edgard/inboxintel/internal/ingest"
	"github.com/edgard/inboxintel/internal/report"
	"github.com/edgard/inboxintel/internal/server"
)

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the webhook server and the scheduled jobs",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()

			e, err := bootstrap()
			if err != nil {
				return err
			}
			defer e.close()

			client, err := e.guestyClient(ctx)
			if err != nil {
				return err
			}
			n, err := e.notifier()
			if err != nil {
				return err
			}
			w, err := e.worker(ctx, n)
			if err != nil {
				return err
			}

			gateway := ingest.NewGateway(e.store, e.log)
			deps := tasks.TaskDeps{
				Logger:   e.log,
				Store:    e.store,
				Poller:   ingest.NewPoller(gateway, client, e.cfg.Polling.Lookback, client.PageSize(), e.log),
				Worker:   w,
				Reporter: report.NewGenerator(client, e.store, e.log),
				Notifier: n,
				Config:   e.cfg,
			}

			sched, err := app.NewScheduler(e.log, tasks.RegisterAllTasks(deps))
			if err != nil {
				e.log.Error("Failed to create scheduler", "error", err)
				return err
			}
			srv := server.New(e.cfg.Server, gateway, e.store, e.log)

			runErr := app.New(e.log, srv, sched).Run(ctx)
			// let the last log lines flush
			time.Sleep(time.Second)
			return runErr
		},
	}
}
