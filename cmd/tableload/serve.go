package main

import (
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/rushairer/upsertsql"
	"github.com/rushairer/upsertsql/connection"
	"github.com/rushairer/upsertsql/monitoring"
	"github.com/rushairer/upsertsql/server"
)

func newServeCmd(a *app) *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the HTTP ingestion API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			if addr == "" {
				addr = a.cfg.HTTPAddr
			}

			db, driver, err := connection.OpenSQL(ctx, a.cfg)
			if err != nil {
				return err
			}
			defer db.Close()

			s := server.New(db, driver, server.Options{
				Logger:        a.logger,
				Metrics:       monitoring.NewPrometheusMetrics(monitoring.Options{}),
				WriterOptions: []upsertsql.Option{upsertsql.WithAuditUser(a.cfg.AuditUser)},
			})
			a.logger.Info("starting ingestion server", zap.String("driver", driver.Name()))
			return s.Run(ctx, addr)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address (default HTTP_ADDR)")
	return cmd
}
