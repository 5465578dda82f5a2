package main

import (
	"context"
	"strings"
	"time"

	kafkago "github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	fcache "github.com/radieske/pvp-settlement-platform/internal/eventfeed/cache"
	"github.com/radieske/pvp-settlement-platform/internal/eventfeed/consumer"
	"github.com/radieske/pvp-settlement-platform/internal/eventfeed/pubsub"
	"github.com/radieske/pvp-settlement-platform/internal/eventfeed/publisher"
	"github.com/radieske/pvp-settlement-platform/internal/settlement/edgecase"
	"github.com/radieske/pvp-settlement-platform/internal/settlement/ledgercli"
	"github.com/radieske/pvp-settlement-platform/internal/settlement/orchestrator"
	srepo "github.com/radieske/pvp-settlement-platform/internal/settlement/repo"
	"github.com/radieske/pvp-settlement-platform/internal/shared/cache"
	"github.com/radieske/pvp-settlement-platform/internal/shared/config"
	"github.com/radieske/pvp-settlement-platform/internal/shared/db"
	"github.com/radieske/pvp-settlement-platform/internal/shared/kafka"
	"github.com/radieske/pvp-settlement-platform/internal/shared/logger"
	"github.com/radieske/pvp-settlement-platform/internal/shared/metrics"
)

func main() {
	cfg := config.Load()
	log, err := logger.New("settlement-worker", cfg.Env)
	if err != nil {
		panic(err)
	}
	defer log.Sync()

	// Conexão com Postgres para snapshots de eventos e liquidação
	pg, err := db.ConnectPostgres(cfg.PostgresDSN)
	if err != nil {
		log.Fatal("pg connect", zap.Error(err))
	}
	defer pg.Close()

	// Redis: cache de snapshots e broadcast de desfechos
	rdb, err := cache.ConnectRedis(cfg.RedisAddr)
	if err != nil {
		log.Fatal("redis connect", zap.Error(err))
	}
	defer rdb.Close()

	// Kafka consumer: consome resultados de eventos do feed upstream
	reader := kafkago.NewReader(kafkago.ReaderConfig{
		Brokers:  strings.Split(cfg.KafkaBrokers, ","),
		GroupID:  "settlement-worker",
		Topic:    cfg.TopicEventResults,
		MinBytes: 1e3,
		MaxBytes: 10e6,
	})
	defer reader.Close()

	// Kafka producer: publica match_settled e, opcionalmente, envia para DLQ
	settledWriter := kafka.NewWriter(cfg.KafkaBrokers, cfg.TopicMatchSettled)
	defer settledWriter.Close()

	var dlqWriter *kafkago.Writer
	if cfg.TopicEventResultsDLQ != "" {
		dlqWriter = kafka.NewWriter(cfg.KafkaBrokers, cfg.TopicEventResultsDLQ)
		defer dlqWriter.Close()
	}

	// Núcleo de liquidação compartilhado com o settlement-service
	repo := srepo.NewPostgres(pg)
	ledger := ledgercli.New(cfg.LedgerBaseURL)
	orch := orchestrator.New(log, repo, ledger)
	edge := edgecase.New(log, repo, ledger,
		time.Duration(cfg.PostponeTimeoutHours)*time.Hour,
		time.Duration(cfg.SweepIntervalSeconds)*time.Second,
	)

	broadcaster := pubsub.NewRedisBroadcaster(rdb)
	publ := publisher.New(settledWriter, broadcaster, cfg.RedisPubSubChannel)

	// Servidor de métricas e health check
	metrics.StartMetricsServer(cfg.MetricsPort, func(ctx context.Context) error {
		if err := pg.PingContext(ctx); err != nil {
			return err
		}
		return rdb.Ping(ctx).Err()
	})

	log.Info("settlement-worker started",
		zap.String("consume", cfg.TopicEventResults),
		zap.String("publish", cfg.TopicMatchSettled),
	)

	proc := &consumer.Processor{
		Log:    log,
		Reader: reader,
		Store:  repo,
		Cache:  fcache.NewRedisCache(rdb, 6*time.Hour),
		Settle: orch,
		Edge:   edge,
		Publ:   publ,
		DLQ:    dlqWriter,
	}

	if err := proc.Run(context.Background()); err != nil {
		log.Fatal("processor stopped", zap.Error(err))
	}
}
