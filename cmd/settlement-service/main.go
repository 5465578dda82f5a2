package main

import (
	"context"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/radieske/pvp-settlement-platform/internal/settlement/edgecase"
	shttp "github.com/radieske/pvp-settlement-platform/internal/settlement/http"
	"github.com/radieske/pvp-settlement-platform/internal/settlement/ledgercli"
	"github.com/radieske/pvp-settlement-platform/internal/settlement/orchestrator"
	srepo "github.com/radieske/pvp-settlement-platform/internal/settlement/repo"
	"github.com/radieske/pvp-settlement-platform/internal/settlement/ws"
	"github.com/radieske/pvp-settlement-platform/internal/shared/cache"
	"github.com/radieske/pvp-settlement-platform/internal/shared/config"
	"github.com/radieske/pvp-settlement-platform/internal/shared/db"
	"github.com/radieske/pvp-settlement-platform/internal/shared/logger"
)

func main() {
	cfg := config.Load()

	log, err := logger.New("settlement-service", cfg.Env)
	if err != nil {
		panic(err)
	}
	defer log.Sync()
	log.Info("starting service", zap.String("service", "settlement-service"), zap.String("env", cfg.Env))

	// Conexão com Postgres para partidas, slips, picks e auditoria
	pg, err := db.ConnectPostgres(cfg.PostgresDSN)
	if err != nil {
		log.Fatal("postgres connect", zap.Error(err))
	}
	defer pg.Close()

	// Redis para o broadcast de liquidações via WebSocket
	rdb, err := cache.ConnectRedis(cfg.RedisAddr)
	if err != nil {
		log.Fatal("redis connect", zap.Error(err))
	}
	defer rdb.Close()

	// Núcleo: repositório, cliente do ledger, orquestrador e edge cases
	repo := srepo.NewPostgres(pg)
	ledger := ledgercli.New(cfg.LedgerBaseURL)
	orch := orchestrator.New(log, repo, ledger)
	edge := edgecase.New(log, repo, ledger,
		time.Duration(cfg.PostponeTimeoutHours)*time.Hour,
		time.Duration(cfg.SweepIntervalSeconds)*time.Second,
	)

	// Hub WebSocket alimentado pelo Pub/Sub do Redis
	hub := ws.NewHub(func(r *http.Request) bool { return true })
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	ws.StartRedisSubscriber(ctx, log, rdb, cfg.RedisPubSubChannel, hub)

	api := shttp.NewServer(log, orch, edge, hub)
	apiSrv := &http.Server{
		Addr:    ":" + cfg.HTTPPort, // ex: 8083
		Handler: api.Router(),
	}

	// Servidor de métricas e health check
	metricsMux := http.NewServeMux()
	metricsMux.Handle("/metrics", promhttp.Handler())
	metricsMux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		hctx, hcancel := context.WithTimeout(r.Context(), 500*time.Millisecond)
		defer hcancel()
		if err := pg.PingContext(hctx); err != nil {
			http.Error(w, "pg", http.StatusServiceUnavailable)
			return
		}
		if err := rdb.Ping(hctx).Err(); err != nil {
			http.Error(w, "redis", http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	metricsSrv := &http.Server{Addr: ":" + cfg.MetricsPort, Handler: metricsMux} // ex: 9099

	go func() {
		log.Info("metrics/health listening", zap.String("addr", metricsSrv.Addr))
		if err := metricsSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("metrics srv", zap.Error(err))
		}
	}()

	log.Info("api listening", zap.String("addr", apiSrv.Addr))
	if err := apiSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Fatal("api srv", zap.Error(err))
	}
}
