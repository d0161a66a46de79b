package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"asyncsql/internal/config"
	"asyncsql/internal/engine"
	"asyncsql/internal/infra/logging"
	"asyncsql/internal/infra/metrics"
	"asyncsql/internal/infra/sched"
	"asyncsql/internal/infra/scheduler"
	"asyncsql/internal/infra/web"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

const shutdownTimeout = 10 * time.Second

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Open the connection pool and serve the admin API until interrupted",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		return serve(ctx)
	},
}

func serve(ctx context.Context) error {
	cfg, err := config.LoadConfig(cfgPath, devMode)
	if err != nil {
		return err
	}
	logger := logging.New(cfg.Log, cfg.Runtime.Dev)
	if cfg.Runtime.Dev {
		logger.Warn().Msg("dev mode enabled; queries are logged unredacted")
	}

	metrics.MustRegister()
	metrics.SetBuildInfo(version, commit, cfg.Database.Driver)

	dialer, err := newDialer(cfg.Database)
	if err != nil {
		return err
	}
	eng := engine.New(dialer, engine.OptionsFromConfig(cfg.Engine, cfg.Runtime.Dev), logger)
	ids, err := eng.Init(ctx, connParams(cfg.Database), cfg.Database.Connections)
	if err != nil {
		return err
	}
	logger.Info().
		Str("driver", dialer.Name()).
		Str("host", cfg.Database.Host).
		Int("connections", len(ids)).
		Msg("connection pool ready")

	janitor := scheduler.NewScheduler(cfg.Engine.JanitorInterval, sched.NewJanitor(eng, logger), logger)
	janitor.Start(ctx)

	admin := web.NewServer(eng, cfg.Admin.APIKey, cfg.Admin.Port, logger)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(admin.Start)
	g.Go(func() error {
		<-gctx.Done()
		logger.Info().Msg("shutdown requested")
		sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return admin.Shutdown(sctx)
	})
	err = g.Wait()

	janitor.Stop()
	sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if cerr := eng.Close(sctx); cerr != nil {
		logger.Error().Err(cerr).Msg("engine close")
	}
	return err
}
