package main

import (
	"github.com/spf13/cobra"

	"github.com/kareemsasa3/rinkcal/internal/api"
	"github.com/kareemsasa3/rinkcal/internal/schedule"
	"github.com/kareemsasa3/rinkcal/internal/storage"
)

func newServeCmd() *cobra.Command {
	var (
		port     int
		schedExp string
	)
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API, optionally with scheduled batch scrapes",
		Example: `  rinkcal serve --port 8080
  rinkcal serve --schedule "0 5 * * *"`,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(true)
			if err != nil {
				return err
			}
			defer a.Close()

			if cmd.Flags().Changed("port") {
				a.cfg.API.Port = port
			}
			if schedExp == "" {
				schedExp = a.cfg.Schedule.Cron
			}

			store, err := storage.New(a.cfg.Redis)
			if err != nil {
				return err
			}
			defer store.Close()
			if a.cfg.Redis.Addr != "" {
				a.log.Info("Using Redis job storage at %s", a.cfg.Redis.Addr)
			} else {
				a.log.Info("Using in-memory job storage (not persistent)")
			}
			if a.db == nil {
				a.log.Warn("database.path not set; history endpoints are disabled")
			}

			ctx := cmd.Context()
			if schedExp != "" {
				var rec schedule.Recorder
				if a.db != nil {
					rec = a.db
				}
				sched := schedule.New(a.scraper, rec, a.cfg.Associations, a.log)
				if err := sched.Add(schedExp); err != nil {
					return err
				}
				sched.Start(ctx)
				a.log.Info("Next scheduled batch at %s", sched.Next().Format("2006-01-02 15:04 MST"))
			}

			h := api.NewAPIHandler(a.scraper, a.cfg, store, a.db, a.metrics, a.log)
			h.SetVerifier(a.newVerifier)
			return api.Serve(ctx, h)
		},
	}
	cmd.Flags().IntVarP(&port, "port", "p", 8080, "listen port (default api.port)")
	cmd.Flags().StringVar(&schedExp, "schedule", "", `cron expression for recurring batch scrapes, e.g. "0 5 * * *" (default schedule.cron)`)
	return cmd
}
