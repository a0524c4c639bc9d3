package notify

import (
	"context"
	"fmt"
	"sync"

	"github.com/redis/go-redis/v9"
)

// RedisBroadcaster carries cross-tab signals over Redis pub/sub so tabs
// served by different storefront instances still hear each other.
type RedisBroadcaster struct {
	client *redis.Client
}

func NewRedisBroadcaster(client *redis.Client) *RedisBroadcaster {
	return &RedisBroadcaster{client: client}
}

func (r *RedisBroadcaster) Publish(ctx context.Context, origin, source string) error {
	if err := r.client.Publish(ctx, channelName(origin), source).Err(); err != nil {
		return fmt.Errorf("redis publish failed: %w", err)
	}
	return nil
}

func (r *RedisBroadcaster) Subscribe(ctx context.Context, origin, self string) (Subscription, error) {
	pubsub := r.client.Subscribe(ctx, channelName(origin))
	// wait for the subscription to be confirmed before returning
	if _, err := pubsub.Receive(ctx); err != nil {
		_ = pubsub.Close()
		return nil, fmt.Errorf("redis subscribe failed: %w", err)
	}

	sub := &redisSubscription{
		pubsub: pubsub,
		ch:     make(chan Signal, 1),
		done:   make(chan struct{}),
	}
	go sub.forward(origin, self)
	return sub, nil
}

type redisSubscription struct {
	pubsub *redis.PubSub
	ch     chan Signal
	done   chan struct{}
	once   sync.Once
}

func (s *redisSubscription) forward(origin, self string) {
	defer close(s.ch)

	messages := s.pubsub.Channel()
	for {
		select {
		case msg, ok := <-messages:
			if !ok {
				return
			}
			if msg.Payload == self {
				continue
			}
			select {
			case s.ch <- Signal{Origin: origin, Source: msg.Payload}:
			default:
			}
		case <-s.done:
			return
		}
	}
}

func (s *redisSubscription) Signals() <-chan Signal {
	return s.ch
}

func (s *redisSubscription) Close() error {
	var err error
	s.once.Do(func() {
		close(s.done)
		err = s.pubsub.Close()
	})
	return err
}

func channelName(origin string) string {
	return fmt.Sprintf("sf:%s:storage", origin)
}
