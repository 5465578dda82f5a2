package pubsub

import (
	"context"

	"github.com/redis/go-redis/v9"
)

const ChannelMatchSettledBroadcast = "match_settled_broadcast"

// RedisBroadcaster publica desfechos de liquidação no Pub/Sub do Redis,
// consumidos pelo hub WebSocket do settlement-service.
type RedisBroadcaster struct {
	r *redis.Client
}

func NewRedisBroadcaster(r *redis.Client) *RedisBroadcaster {
	return &RedisBroadcaster{r: r}
}

func (b *RedisBroadcaster) Publish(ctx context.Context, channel string, payload []byte) error {
	return b.r.Publish(ctx, channel, payload).Err()
}
