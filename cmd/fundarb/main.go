package main

import (
	"context"
	"errors"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"fundarb/internal/infrastructure/config"
	"fundarb/internal/infrastructure/logger"
	"fundarb/internal/infrastructure/svc"
)

func main() {
	logger.Setup()

	configPath := flag.String("config", "configs/config.toml", "path to config.toml")
	envPath := flag.String("env", ".env", "path to .env with api credentials")
	flag.Parse()

	if err := godotenv.Load(*envPath); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.Warn().Err(err).Str("env", *envPath).Msg("load env file failed")
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatal().Err(err).Str("config", *configPath).Msg("load config failed")
	}
	logCloser := logger.Configure(cfg.Log)
	defer logCloser.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	sc, err := svc.New(ctx, cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("service context initialization failed")
	}
	defer sc.Close()

	// 首次全量刷新，部分交易所失败不阻止启动
	if err := sc.Cache.RefreshAll(ctx); err != nil {
		log.Warn().Err(err).Msg("initial market refresh incomplete")
	}

	log.Info().
		Str("config", *configPath).
		Strs("exchanges", cfg.EnabledExchanges()).
		Int("symbols", len(cfg.Symbols.List)).
		Msg("fundarb started")

	g, gctx := errgroup.WithContext(ctx)
	for _, task := range sc.Tasks() {
		task := task
		g.Go(func() error {
			err := task.Run(gctx)
			if err != nil && !errors.Is(err, context.Canceled) {
				log.Error().Err(err).Str("task", task.Name).Msg("task exited")
				return err
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		log.Error().Err(err).Msg("fundarb stopped with error")
		return
	}
	log.Info().Msg("fundarb stopped")
}
