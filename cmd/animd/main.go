package main

import (
	"context"
	"flag"
	"log"
	"net"
	"os/signal"
	"syscall"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/kerrizor/ckb/internal/anim"
	"github.com/kerrizor/ckb/internal/api"
	"github.com/kerrizor/ckb/internal/infrastructure/config"
	"github.com/kerrizor/ckb/internal/infrastructure/logging"
	"github.com/kerrizor/ckb/internal/infrastructure/monitoring"
	"github.com/kerrizor/ckb/internal/scheduler"
)

func main() {
	cfg := config.LoadOrDefault()

	// Flags override environment for development convenience
	scriptDir := flag.String("animations", cfg.Anim.ScriptDir, "Animation script directory")
	port := flag.String("port", cfg.Server.Port, "HTTP listen port")
	frameRate := flag.Int("fps", cfg.Anim.FrameRate, "Frame rate")
	flag.Parse()
	cfg.Anim.ScriptDir = *scriptDir
	cfg.Server.Port = *port
	cfg.Anim.FrameRate = *frameRate

	var logger *logging.Logger
	if cfg.Logging.Development {
		logger = logging.NewDevelopment()
	} else {
		logger = logging.NewDefault()
	}
	defer logger.Sync()

	metrics := monitoring.NewMetrics()

	catalog := anim.NewCatalog(logger.Named("catalog")).
		WithInfoTimeout(cfg.Anim.InfoTimeout)
	accepted := catalog.Discover(cfg.Anim.ScriptDir)
	metrics.ScriptsDiscovered.Set(float64(len(accepted)))
	metrics.ScriptsRejected.Add(float64(catalog.Rejected()))
	logger.Info("animation discovery finished",
		zap.String("dir", cfg.Anim.ScriptDir),
		zap.Int("scripts", len(accepted)),
		zap.Int("rejected", catalog.Rejected()))

	sched := scheduler.New(cfg.Anim.FrameRate, logger.Named("scheduler"), metrics)
	srv := api.New(cfg, catalog, sched, metrics, logger.Named("api"))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return sched.Run(ctx)
	})
	g.Go(func() error {
		addr := net.JoinHostPort(cfg.Server.Host, cfg.Server.Port)
		logger.Info("listening", zap.String("addr", addr))
		return srv.Run(ctx, addr)
	})

	if err := g.Wait(); err != nil && err != context.Canceled {
		log.Fatalf("animd exited: %v", err)
	}
	logger.Info("shutdown complete")
}
