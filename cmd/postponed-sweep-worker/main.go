package main

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/radieske/pvp-settlement-platform/internal/settlement/edgecase"
	"github.com/radieske/pvp-settlement-platform/internal/settlement/ledgercli"
	srepo "github.com/radieske/pvp-settlement-platform/internal/settlement/repo"
	"github.com/radieske/pvp-settlement-platform/internal/shared/config"
	"github.com/radieske/pvp-settlement-platform/internal/shared/db"
	"github.com/radieske/pvp-settlement-platform/internal/shared/logger"
	"github.com/radieske/pvp-settlement-platform/internal/shared/metrics"
)

func main() {
	cfg := config.Load()
	log, err := logger.New("postponed-sweep-worker", cfg.Env)
	if err != nil {
		panic(err)
	}
	defer log.Sync()

	pg, err := db.ConnectPostgres(cfg.PostgresDSN)
	if err != nil {
		log.Fatal("pg connect", zap.Error(err))
	}
	defer pg.Close()

	repo := srepo.NewPostgres(pg)
	ledger := ledgercli.New(cfg.LedgerBaseURL)
	edge := edgecase.New(log, repo, ledger,
		time.Duration(cfg.PostponeTimeoutHours)*time.Hour,
		time.Duration(cfg.SweepIntervalSeconds)*time.Second,
	)

	metrics.StartMetricsServer(cfg.MetricsPort, func(ctx context.Context) error {
		return pg.PingContext(ctx)
	})

	interval := time.Duration(cfg.SweepIntervalSeconds) * time.Second
	log.Info("postponed-sweep-worker started", zap.Duration("interval", interval))

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	ctx := context.Background()
	for range ticker.C {
		if err := edge.Sweep(ctx); err != nil {
			log.Warn("sweep failed", zap.Error(err))
		}
	}
}
