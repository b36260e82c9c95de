// Package publisher emits merged-game events to Redis streams for consumers
// that want change notifications without polling the partition files.
package publisher

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/fortuna/talon/internal/store"
)

// RedisPublisher publishes pipeline events to Redis streams.
type RedisPublisher struct {
	client *redis.Client
}

// NewRedisPublisher connects and pings.
func NewRedisPublisher(redisURL string) (*RedisPublisher, error) {
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, err
	}
	client := redis.NewClient(opt)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, err
	}
	return &RedisPublisher{client: client}, nil
}

// Close closes the Redis connection.
func (rp *RedisPublisher) Close() error {
	return rp.client.Close()
}

// PublishGameUpdate appends one merged game to the season's update stream.
func (rp *RedisPublisher) PublishGameUpdate(ctx context.Context, season string, game store.Game) error {
	data, err := json.Marshal(game)
	if err != nil {
		return err
	}
	return rp.client.XAdd(ctx, &redis.XAddArgs{
		Stream: fmt.Sprintf("games.updated.%s", season),
		Values: map[string]interface{}{
			"data":      string(data),
			"timestamp": time.Now().Unix(),
		},
	}).Err()
}
