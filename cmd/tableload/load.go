package main

import (
	"context"
	"net/http"
	"os"
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"go.mongodb.org/mongo-driver/bson"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/rushairer/upsertsql"
	"github.com/rushairer/upsertsql/connection"
	"github.com/rushairer/upsertsql/loader"
	"github.com/rushairer/upsertsql/monitoring"
	"github.com/rushairer/upsertsql/source"
)

type loadFlags struct {
	schema      string
	table       string
	keys        []string
	mode        string
	batchSize   int
	auditUser   string
	guardColumn string
	guardOp     string
	metricsAddr string
}

func newLoadCmd(a *app) *cobra.Command {
	f := &loadFlags{}

	cmd := &cobra.Command{
		Use:   "load",
		Short: "Load rows from an upstream source into a table",
	}
	pf := cmd.PersistentFlags()
	pf.StringVar(&f.schema, "schema", "", "target schema (default: connection default)")
	pf.StringVar(&f.table, "table", "", "target table")
	pf.StringSliceVar(&f.keys, "keys", nil, "conflict key columns")
	pf.StringVar(&f.mode, "mode", "ignore", "ignore or upsert")
	pf.IntVar(&f.batchSize, "batch-size", source.DefaultBatchSize, "rows per statement")
	pf.StringVar(&f.auditUser, "audit-user", "", "audit user (default AUDIT_USER)")
	pf.StringVar(&f.guardColumn, "guard-column", "", "upsert only when incoming <guard-op> stored on this column")
	pf.StringVar(&f.guardOp, "guard-op", ">", "guard comparison operator")
	pf.StringVar(&f.metricsAddr, "metrics-addr", "", "serve /metrics on this address while loading")
	_ = cmd.MarkPersistentFlagRequired("table")
	_ = cmd.MarkPersistentFlagRequired("keys")

	var emptyAsNull bool
	csvCmd := &cobra.Command{
		Use:   "csv <file>",
		Short: "Load a CSV file with a header row",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			file, err := os.Open(args[0])
			if err != nil {
				return err
			}
			defer file.Close()

			src := source.NewCSVSource(file, f.batchSize)
			src.EmptyAsNull = emptyAsNull
			return a.runLoad(cmd.Context(), f, src)
		},
	}
	csvCmd.Flags().BoolVar(&emptyAsNull, "empty-as-null", false, "write empty cells as NULL")

	redisCmd := &cobra.Command{
		Use:   "redis <key>",
		Short: "Drain JSON objects from a Redis list",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := connection.OpenRedis(cmd.Context(), a.cfg.Redis)
			if err != nil {
				return err
			}
			defer client.Close()
			return a.runLoad(cmd.Context(), f, source.NewRedisListSource(client, args[0], f.batchSize))
		},
	}

	var database string
	mongoCmd := &cobra.Command{
		Use:   "mongo <collection>",
		Short: "Copy documents from a MongoDB collection",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if database == "" {
				database = a.cfg.Mongo.DB
			}
			if database == "" {
				return errors.New("--database is required when MONGO_DB is not set")
			}

			client, err := connection.OpenMongo(ctx, a.cfg.Mongo)
			if err != nil {
				return err
			}
			defer client.Disconnect(context.Background())

			src, err := source.NewMongoSource(ctx, client.Database(database).Collection(args[0]), bson.D{}, f.batchSize)
			if err != nil {
				return err
			}
			defer src.Close(context.Background())
			return a.runLoad(ctx, f, src)
		},
	}
	mongoCmd.Flags().StringVar(&database, "database", "", "database name (default MONGO_DB)")

	cmd.AddCommand(csvCmd, redisCmd, mongoCmd)
	return cmd
}

func (f *loadFlags) writerOptions(auditUser string, metrics *monitoring.PrometheusMetrics, logger *zap.Logger) ([]upsertsql.Option, error) {
	if f.auditUser != "" {
		auditUser = f.auditUser
	}
	opts := []upsertsql.Option{
		upsertsql.WithAuditUser(auditUser),
		upsertsql.WithLogger(logger),
		upsertsql.WithMetricsReporter(metrics),
	}
	if f.guardColumn != "" {
		if f.mode != "upsert" {
			return nil, errors.Wrap(upsertsql.ErrInvalidArgument, "--guard-column requires --mode upsert")
		}
		wm, err := upsertsql.Compare(f.guardColumn, f.guardOp)
		if err != nil {
			return nil, err
		}
		opts = append(opts, upsertsql.WithWhereMaker(wm))
	}
	return opts, nil
}

func (a *app) runLoad(ctx context.Context, f *loadFlags, src source.Source) error {
	db, driver, err := connection.OpenSQL(ctx, a.cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	metrics := monitoring.NewPrometheusMetrics(monitoring.Options{})
	opts, err := f.writerOptions(a.cfg.AuditUser, metrics, a.logger)
	if err != nil {
		return err
	}

	var w loader.BatchWriter
	switch f.mode {
	case "ignore":
		w, err = upsertsql.NewInsertOrIgnoreWriter(ctx, db, driver, f.schema, f.table, f.keys, opts...)
	case "upsert":
		w, err = upsertsql.NewInsertOrUpdateWriter(ctx, db, driver, f.schema, f.table, f.keys, opts...)
	default:
		return errors.Wrapf(upsertsql.ErrInvalidArgument, "unknown mode %q", f.mode)
	}
	if err != nil {
		return err
	}

	g, gctx := errgroup.WithContext(ctx)
	loadCtx, cancel := context.WithCancel(gctx)
	defer cancel()

	if f.metricsAddr != "" {
		srv := &http.Server{Addr: f.metricsAddr, Handler: metrics.Handler(), ReadHeaderTimeout: 10 * time.Second}
		g.Go(func() error {
			if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		})
		g.Go(func() error {
			<-loadCtx.Done()
			shutdownCtx, done := context.WithTimeout(context.Background(), 5*time.Second)
			defer done()
			return srv.Shutdown(shutdownCtx)
		})
	}

	g.Go(func() error {
		defer cancel()
		stats, err := loader.New(w, f.batchSize, a.logger).Run(loadCtx, src)
		a.logger.Info("load finished",
			zap.String("table", f.table),
			zap.String("mode", f.mode),
			zap.Int("batches", stats.Batches),
			zap.Int64("rows", stats.Rows),
			zap.Int64("affected", stats.Affected),
			zap.Int64("skipped", stats.Skipped),
			zap.Duration("duration", stats.Duration),
		)
		return err
	})
	return g.Wait()
}
