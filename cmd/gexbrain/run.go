package main

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/dgnsrekt/gexbrain/internal/config"
	"github.com/dgnsrekt/gexbrain/internal/gex"
	"github.com/dgnsrekt/gexbrain/internal/gexdata"
	"github.com/dgnsrekt/gexbrain/internal/market"
	"github.com/dgnsrekt/gexbrain/internal/notify"
	"github.com/dgnsrekt/gexbrain/internal/server"
	"github.com/dgnsrekt/gexbrain/internal/squeeze"
	"github.com/dgnsrekt/gexbrain/internal/store"
	"github.com/dgnsrekt/gexbrain/internal/ws"
)

func runCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Run the squeeze monitor and HTTP server until interrupted",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDaemon(cmd.Context())
		},
	}
}

func runDaemon(ctx context.Context) error {
	defer logger.Sync()

	clock := market.NewClock(cfg.Market.Timezone, cfg.Market.OpenSkip())
	provider := newProvider(cfg, logger)
	gexEngine := gex.NewEngine(provider, gexConfig(cfg), logger)

	st, err := newStore(ctx, cfg)
	if err != nil {
		return fmt.Errorf("store: %w", err)
	}

	notifier := notify.New(&notify.Config{
		Enabled:  cfg.Notify.Enabled,
		Server:   cfg.Notify.Server,
		Topic:    cfg.Notify.Topic,
		Priority: cfg.Notify.Priority,
		Tags:     strings.Join(cfg.Notify.Tags, ","),
		Token:    cfg.Notify.Token,
	}, logger)

	squeezeEngine := squeeze.NewEngine(gexEngine, clock, st, notifier, squeezeConfig(cfg), logger)
	squeezeEngine.SetWatchlist(cfg.Tickers)

	hub := ws.NewHub(logger)
	if cfg.Server.WSEnabled {
		squeezeEngine.SetTransitionHook(func(ev squeeze.TransitionEvent) {
			hub.Publish("squeeze_transition", ev.Ticker, ev)
		})
		go hub.Run(ctx)
	}

	if err := squeezeEngine.Start(ctx); err != nil {
		return fmt.Errorf("starting squeeze engine: %w", err)
	}

	srv := server.NewServer(gexEngine, squeezeEngine, hub, cfg.Server, logger)
	srv.Start()

	logger.Info("gexbrain running",
		zap.Strings("tickers", cfg.Tickers),
		zap.Duration("pollInterval", cfg.Squeeze.PollInterval()),
		zap.String("port", cfg.Server.Port),
	)

	<-ctx.Done()
	logger.Info("shutting down")

	squeezeEngine.Stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warn("server shutdown", zap.Error(err))
	}

	return nil
}

func newProvider(cfg *config.Config, logger *zap.Logger) *gexdata.HTTPProvider {
	return gexdata.NewHTTPProvider(
		cfg.API.BaseURL,
		cfg.API.APIKey,
		cfg.API.RatePerSecond,
		time.Duration(cfg.API.TimeoutSec)*time.Second,
		time.Duration(cfg.API.RetryDelaySec)*time.Second,
		cfg.API.RetryCount,
		logger,
	)
}

func newStore(ctx context.Context, cfg *config.Config) (store.Store, error) {
	if cfg.Redis.Enabled {
		return store.NewRedis(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB, cfg.Redis.Prefix)
	}
	return store.NewMemory(), nil
}

func gexConfig(cfg *config.Config) gex.Config {
	return gex.Config{
		DetectionFloor:  cfg.GEX.DetectionFloor,
		ConfidenceScale: cfg.GEX.ConfidenceScale,
		FlipFarPct:      cfg.GEX.FlipFarPct,
		FlipNearPct:     cfg.GEX.FlipNearPct,
		IncludeExpiries: cfg.GEX.IncludeExpiries,
	}
}

func squeezeConfig(cfg *config.Config) squeeze.Config {
	return squeeze.Config{
		PollInterval:     cfg.Squeeze.PollInterval(),
		SeriesCapacity:   cfg.Squeeze.HistoryCapacity,
		Workers:          cfg.Squeeze.Workers,
		DetectionFloor:   cfg.GEX.DetectionFloor,
		FastGEXChangePct: cfg.Squeeze.FastGEXChangePct,
		NearFlipPct:      cfg.Squeeze.NearFlipPct,
		WallBreakPct:     cfg.Squeeze.WallBreakPct,
		RatioShiftMin:    cfg.Squeeze.RatioShift,
		ConfirmTicks:     cfg.Squeeze.ConfirmTicks,
		AlertCooldown:    cfg.Squeeze.AlertCooldown(),
	}
}
