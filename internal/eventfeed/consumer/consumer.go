package consumer

import (
	"context"
	"encoding/json"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	fcache "github.com/radieske/pvp-settlement-platform/internal/eventfeed/cache"
	"github.com/radieske/pvp-settlement-platform/internal/settlement/engine"
	"github.com/radieske/pvp-settlement-platform/internal/settlement/orchestrator"
	ev "github.com/radieske/pvp-settlement-platform/pkg/contracts/events"
)

// Store é o subconjunto de persistência usado pelo consumidor do feed.
type Store interface {
	UpsertEventOutcome(ctx context.Context, e engine.EventOutcome) error
	ActiveMatchIDsByEvent(ctx context.Context, eventID string) ([]string, error)
}

// Settler liquida partidas prontas.
type Settler interface {
	Settle(ctx context.Context, matchID string) (*orchestrator.Result, error)
	CheckReadiness(ctx context.Context, matchID string) (*orchestrator.Readiness, error)
}

// EdgeCases trata cancelamento e adiamento vindos do feed.
type EdgeCases interface {
	CancelEvent(ctx context.Context, eventID, reason string) error
	PostponeEvent(ctx context.Context, eventID string) error
}

// Publisher publica o desfecho no Kafka e no canal Redis de broadcast.
type Publisher interface {
	PublishMatchSettled(ctx context.Context, settled ev.MatchSettled) error
}

// Processor consome resultados de eventos do Kafka, mantém o snapshot
// (Postgres + Redis) e dispara liquidação / fluxos de exceção.
// Callbacks de métricas podem ser usadas para monitoramento de cada etapa
type Processor struct {
	Log    *zap.Logger
	Reader *kafka.Reader
	Store  Store
	Cache  *fcache.RedisCache
	Settle Settler
	Edge   EdgeCases
	Publ   Publisher
	DLQ    *kafka.Writer

	OnConsumed func()       // métricas (counter++)
	OnSettled  func()       // métricas
	OnError    func(string) // métricas por fase
}

// Run inicia o loop principal de consumo e processamento das mensagens Kafka
func (p *Processor) Run(ctx context.Context) error {
	for {
		m, err := p.Reader.ReadMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err() // encerra se o contexto for cancelado
			}
			p.Log.Warn("kafka read failed", zap.Error(err))
			if p.OnError != nil {
				p.OnError("read")
			}
			time.Sleep(500 * time.Millisecond)
			continue
		}

		if p.OnConsumed != nil {
			p.OnConsumed()
		}

		var result ev.EventResult
		if err := json.Unmarshal(m.Value, &result); err != nil {
			p.Log.Warn("invalid message", zap.Error(err))
			if p.OnError != nil {
				p.OnError("decode")
			}
			continue
		}

		if err := p.processOne(ctx, result); err != nil {
			p.Log.Error("process event result", zap.String("eventId", result.EventID), zap.Error(err))
			if p.OnError != nil {
				p.OnError("process")
			}
			// Retry simples antes de mandar para a DLQ
			const retries = 3
			for i := 0; i < retries; i++ {
				time.Sleep(time.Duration(300*(i+1)) * time.Millisecond)
				if err = p.processOne(ctx, result); err == nil {
					break
				}
			}
			if err != nil && p.DLQ != nil {
				_ = p.DLQ.WriteMessages(ctx, kafka.Message{Key: []byte(result.EventID), Value: m.Value})
			}
		}
	}
}

// processOne aplica um resultado de evento:
//  1. Atualiza o snapshot no Redis
//  2. CANCELLED/POSTPONED seguem direto para o edge-case handler, dono da
//     escrita de status terminal no snapshot
//  3. Demais status gravam placar no Postgres; FINAL dispara liquidação de
//     toda partida ativa pronta e publica o desfecho
func (p *Processor) processOne(ctx context.Context, result ev.EventResult) error {
	if p.Cache != nil {
		if err := p.Cache.SetCurrent(ctx, result); err != nil {
			p.Log.Warn("redis set failed", zap.Error(err))
			// não bloqueia persistência se falhar o cache
		}
	}

	outcome := engine.EventOutcome{
		ID:        result.EventID,
		HomeScore: result.HomeScore,
		AwayScore: result.AwayScore,
		Status:    engine.EventStatus(result.Status),
	}

	switch outcome.Status {
	case engine.EventCancelled:
		return p.Edge.CancelEvent(ctx, result.EventID, "feed cancellation")
	case engine.EventPostponed:
		return p.Edge.PostponeEvent(ctx, result.EventID)
	}

	if err := p.Store.UpsertEventOutcome(ctx, outcome); err != nil {
		return err
	}
	if outcome.Status == engine.EventFinal {
		return p.settleAffected(ctx, result.EventID)
	}
	return nil
}

func (p *Processor) settleAffected(ctx context.Context, eventID string) error {
	matchIDs, err := p.Store.ActiveMatchIDsByEvent(ctx, eventID)
	if err != nil {
		return err
	}
	for _, matchID := range matchIDs {
		ready, err := p.Settle.CheckReadiness(ctx, matchID)
		if err != nil {
			return err
		}
		if !ready.IsReady {
			continue
		}
		res, err := p.Settle.Settle(ctx, matchID)
		if err != nil {
			return err
		}
		if p.OnSettled != nil {
			p.OnSettled()
		}
		settled := ev.MatchSettled{
			MatchID:        res.MatchID,
			Status:         res.Status,
			WinnerID:       res.WinnerID,
			IsDraw:         res.IsDraw,
			CreatorPoints:  res.CreatorPoints,
			OpponentPoints: res.OpponentPoints,
			TotalPotCents:  res.TotalPotCents,
			RakeCents:      res.RakeCents,
			PayoutCents:    res.PayoutCents,
			Reason:         res.Reason,
			Ts:             time.Now().UTC(),
		}
		if err := p.Publ.PublishMatchSettled(ctx, settled); err != nil {
			p.Log.Warn("publish match_settled", zap.String("matchId", matchID), zap.Error(err))
		}
	}
	return nil
}
