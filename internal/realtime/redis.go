package realtime

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// EventsChannelName returns the pub/sub channel for an instance's change
// events. All channels are namespaced by instance name so several
// deployments can share one Redis server.
func EventsChannelName(instance string) string {
	return fmt.Sprintf("echeancier:%s:events", instance)
}

// RedisChannel consumes change events from a Redis pub/sub channel.
// Delivery is at-most-once: if the consumer is too slow, Redis drops
// messages rather than blocking the publisher.
type RedisChannel struct {
	*pipe
	rdb *redis.Client
}

// NewRedisChannel subscribes to the instance's event channel.
// Caller must Close() the channel when done; cancelling ctx also stops it.
func NewRedisChannel(ctx context.Context, opts *redis.Options, instance string) (*RedisChannel, error) {
	if instance == "" {
		return nil, fmt.Errorf("instance name cannot be empty")
	}

	rdb := redis.NewClient(opts)
	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("redis not accessible: %w", err)
	}

	subCtx, cancel := context.WithCancel(ctx)
	ch := &RedisChannel{
		pipe: newPipe(cancel),
		rdb:  rdb,
	}

	pubsub := rdb.Subscribe(subCtx, EventsChannelName(instance))

	go func() {
		defer close(ch.events)
		defer close(ch.errors)
		defer pubsub.Close()
		defer rdb.Close()

		msgs := pubsub.Channel()
		for {
			select {
			case <-subCtx.Done():
				return
			case msg, ok := <-msgs:
				if !ok {
					return
				}

				ev, err := decode([]byte(msg.Payload))
				if err != nil {
					// Skip the message, keep the subscription alive.
					if !ch.fail(subCtx, err) {
						return
					}
					continue
				}

				if !ch.emit(subCtx, ev) {
					return
				}
			}
		}
	}()

	return ch, nil
}
