package ws

import (
	"context"
	"encoding/json"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	ev "github.com/radieske/pvp-settlement-platform/pkg/contracts/events"
)

// StartRedisSubscriber inicia uma goroutine que escuta o canal Redis Pub/Sub
// de liquidações e repassa cada desfecho aos clientes WebSocket inscritos
//
// Funcionamento:
// - Recebe mensagens JSON do canal Redis
// - Desserializa para MatchSettled
// - Chama hub.Broadcast para os clientes inscritos no matchId
func StartRedisSubscriber(ctx context.Context, log *zap.Logger, r *redis.Client, channel string, hub *Hub) {
	sub := r.Subscribe(ctx, channel)
	ch := sub.Channel()
	go func() {
		for {
			select {
			case <-ctx.Done():
				_ = sub.Close() // encerra a inscrição ao finalizar o contexto
				return
			case msg := <-ch:
				if msg == nil {
					continue
				}
				var settled ev.MatchSettled
				if err := json.Unmarshal([]byte(msg.Payload), &settled); err != nil {
					log.Warn("ws subscriber unmarshal", zap.Error(err))
					continue
				}
				hub.Broadcast(SettlementUpdate{MatchID: settled.MatchID, Payload: settled})
			}
		}
	}()
}
