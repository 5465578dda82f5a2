package publisher

import (
	"context"
	"encoding/json"

	"github.com/segmentio/kafka-go"

	"github.com/radieske/pvp-settlement-platform/internal/eventfeed/pubsub"
	ev "github.com/radieske/pvp-settlement-platform/pkg/contracts/events"
)

// MatchSettledPublisher publica o desfecho no Kafka e, em paralelo, no canal
// Redis de broadcast para o hub WebSocket. Falha no broadcast não derruba a
// publicação no Kafka.
type MatchSettledPublisher struct {
	Writer      *kafka.Writer
	Broadcaster *pubsub.RedisBroadcaster
	Channel     string
}

func New(w *kafka.Writer, b *pubsub.RedisBroadcaster, channel string) *MatchSettledPublisher {
	return &MatchSettledPublisher{Writer: w, Broadcaster: b, Channel: channel}
}

func (p *MatchSettledPublisher) PublishMatchSettled(ctx context.Context, settled ev.MatchSettled) error {
	b, _ := json.Marshal(settled)
	if p.Broadcaster != nil {
		_ = p.Broadcaster.Publish(ctx, p.Channel, b)
	}
	return p.Writer.WriteMessages(ctx, kafka.Message{Key: []byte(settled.MatchID), Value: b})
}
