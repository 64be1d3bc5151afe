package cache

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/redis/go-redis/v9"
)

// ConnectRedis initializes and returns a Redis client instance.
func ConnectRedis(addr, password string, db int) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	_, err := rdb.Ping(ctx).Result()
	if err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	log.Println("Successfully connected to Redis!")
	return rdb, nil
}

// DisconnectRedis closes the Redis client connection.
func DisconnectRedis(client *redis.Client) error {
	if client == nil {
		return nil
	}
	if err := client.Close(); err != nil {
		return fmt.Errorf("failed to close Redis connection: %w", err)
	}
	log.Println("Redis connection closed.")
	return nil
}

// changeChannel is the pub/sub channel carrying data-change notifications
// between API instances. The payload is the topic whose data changed.
const changeChannel = "ratemyrez:changes"

// PublishChange notifies all instances that the data behind a topic changed.
// A nil client is a no-op, which keeps single-process setups and tests working
// without Redis.
func PublishChange(ctx context.Context, client *redis.Client, topic string) error {
	if client == nil {
		return nil
	}
	if err := client.Publish(ctx, changeChannel, topic).Err(); err != nil {
		return fmt.Errorf("failed to publish change for topic %s: %w", topic, err)
	}
	return nil
}

// SubscribeChanges subscribes to cross-instance change notifications and
// invokes handler with each changed topic until ctx is cancelled.
// A nil client is a no-op.
func SubscribeChanges(ctx context.Context, client *redis.Client, handler func(topic string)) {
	if client == nil {
		return
	}
	sub := client.Subscribe(ctx, changeChannel)
	go func() {
		defer sub.Close()
		ch := sub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				handler(msg.Payload)
			}
		}
	}()
}
