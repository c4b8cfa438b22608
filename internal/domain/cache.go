package domain

import (
	"context"
	"time"
)

// RateLimiter provides distributed rate limiting.
type RateLimiter interface {
	Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error)
}

// SignalBus provides pub/sub fan-out of projection updates to interested
// consumers (the WebSocket hub, primarily).
type SignalBus interface {
	Publish(ctx context.Context, channel string, payload []byte) error
	Subscribe(ctx context.Context, channel string) (<-chan []byte, error)
}

// SignalBus channels for projection updates.
const (
	ChannelRounds = "indexer:rounds"
	ChannelPools  = "indexer:pools"
	ChannelBets   = "indexer:bets"
)
