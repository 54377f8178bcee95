package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/rushairer/upsertsql/internal/config"
	"github.com/rushairer/upsertsql/internal/logger"
)

// app 子命令共享的运行环境
type app struct {
	cfg    *config.Config
	logger *zap.Logger
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	a := &app{}
	var envFile string

	root := &cobra.Command{
		Use:           "tableload",
		Short:         "Batch insert-or-ignore / insert-or-update into relational tables",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			// .env 不存在时忽略，环境变量优先
			if err := godotenv.Load(envFile); err != nil && !os.IsNotExist(err) {
				return err
			}
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			log, err := logger.New("tableload", cfg.Logger.Level, cfg.Logger.Format, cfg.Logger.File)
			if err != nil {
				return err
			}
			a.cfg, a.logger = cfg, log
			return nil
		},
		PersistentPostRun: func(*cobra.Command, []string) {
			if a.logger != nil {
				_ = a.logger.Sync()
			}
		},
	}
	root.PersistentFlags().StringVar(&envFile, "env-file", ".env", "dotenv file to load before reading the environment")

	root.AddCommand(newServeCmd(a), newLoadCmd(a))
	return root
}
