package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/ibeckermayer/xblueprint/internal/app"
	"github.com/ibeckermayer/xblueprint/internal/config"
	"github.com/ibeckermayer/xblueprint/internal/logging"
	"github.com/ibeckermayer/xblueprint/internal/metrics"
	"github.com/ibeckermayer/xblueprint/internal/scheduler"
	"github.com/ibeckermayer/xblueprint/internal/server"
	"github.com/ibeckermayer/xblueprint/internal/store"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "xblueprint: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, loadErr := loadConfig()
	cfg.ApplyEnv()

	logger, err := logging.New(cfg.Logging.Level)
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}
	defer func() { _ = logger.Sync() }()

	if loadErr != nil {
		logger.Warn("could not load config, using defaults", zap.Error(loadErr))
	}
	if cfg.Generation.APIKey == "" {
		logger.Warn("no generation API key configured; live analysis will fall back to the dataset")
	}

	st, err := store.New(cfg.Store.Path)
	if err != nil {
		return fmt.Errorf("failed to open store: %w", err)
	}
	defer st.Close()

	m := metrics.New()
	a, err := app.FromConfig(cfg, app.Options{Store: st, Logger: logger, Metrics: m})
	if err != nil {
		return err
	}

	sched, err := scheduler.New("", logger)
	if err != nil {
		return err
	}
	if err := a.RegisterJobs(sched); err != nil {
		return fmt.Errorf("failed to schedule jobs: %w", err)
	}
	for _, j := range sched.ListJobs() {
		logger.Info("scheduled job", zap.String("job", j.Name))
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	srv := server.New(a, m, logger)

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return srv.Run(ctx, cfg)
	})
	g.Go(func() error {
		sched.Start()
		<-ctx.Done()
		<-sched.Stop().Done()
		return nil
	})
	g.Go(func() error {
		return reloadOnHangup(ctx, a, logger)
	})

	logger.Info("xblueprint starting", zap.String("addr", cfg.Server.Addr))
	return g.Wait()
}

// loadConfig reads the config file, writing a default one on first run.
// It always returns a usable config.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load()
	if err == nil {
		return cfg, nil
	}
	if !os.IsNotExist(err) {
		return config.Default(), err
	}

	cfg = config.Default()
	if err := cfg.Save(); err != nil {
		return cfg, fmt.Errorf("could not save default config: %w", err)
	}
	return cfg, nil
}

// reloadOnHangup reloads the config file on SIGHUP
func reloadOnHangup(ctx context.Context, a *app.App, logger *zap.Logger) error {
	hup := make(chan os.Signal, 1)
	signal.Notify(hup, syscall.SIGHUP)
	defer signal.Stop(hup)

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-hup:
			if err := a.ReloadConfig(); err != nil {
				logger.Error("config reload failed", zap.Error(err))
			}
		}
	}
}
