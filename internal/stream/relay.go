package stream

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	apperrors "pattern-trader/internal/errors"
	"pattern-trader/internal/logging"
)

// RedisConfig holds connection settings for the Pub/Sub relay.
type RedisConfig struct {
	Addr           string
	Password       string
	DB             int
	Prefix         string
	ReconnectDelay time.Duration
}

// NewRedisClient connects to Redis and verifies the connection with a ping.
func NewRedisClient(ctx context.Context, cfg RedisConfig) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := client.Ping(pingCtx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return client, nil
}

// Broadcaster delivers a payload to the subscribers of a channel.
type Broadcaster interface {
	Broadcast(channel string, payload any) error
}

// Relay forwards messages published on "<prefix>:<channel>" in Redis to the
// local broadcaster on <channel>, so several processes can feed one hub.
type Relay struct {
	client  *redis.Client
	target  Broadcaster
	prefix  string
	delay   time.Duration
	logger  zerolog.Logger
	metrics *Metrics
}

// NewRelay creates a relay from client into target.
func NewRelay(client *redis.Client, target Broadcaster, cfg RedisConfig, logger zerolog.Logger, metrics *Metrics) *Relay {
	delay := cfg.ReconnectDelay
	if delay <= 0 {
		delay = 3 * time.Second
	}
	return &Relay{
		client:  client,
		target:  target,
		prefix:  cfg.Prefix,
		delay:   delay,
		logger:  logging.WithComponent(logger, "relay"),
		metrics: metrics,
	}
}

// Run subscribes and relays until ctx is cancelled, resubscribing after a
// fixed delay whenever the subscription fails.
func (r *Relay) Run(ctx context.Context) error {
	for {
		err := r.runOnce(ctx)
		if ctx.Err() != nil {
			return nil
		}
		r.logger.Warn().Err(err).Dur("retry_in", r.delay).Msg("Relay subscription lost")
		r.metrics.relayReconnect()

		select {
		case <-ctx.Done():
			return nil
		case <-time.After(r.delay):
		}
	}
}

func (r *Relay) runOnce(ctx context.Context) error {
	pattern := r.prefix + ":*"
	pubsub := r.client.PSubscribe(ctx, pattern)
	defer pubsub.Close()

	if _, err := pubsub.Receive(ctx); err != nil {
		return fmt.Errorf("psubscribe %s: %w", pattern, err)
	}
	r.logger.Info().Str("pattern", pattern).Msg("Relay subscribed")

	ch := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-ch:
			if !ok {
				return fmt.Errorf("pubsub channel closed")
			}
			r.forward(msg.Channel, msg.Payload)
		}
	}
}

func (r *Relay) forward(redisChannel, payload string) {
	channel, ok := channelFromKey(r.prefix, redisChannel)
	if !ok {
		return
	}
	if err := r.target.Broadcast(channel, json.RawMessage(payload)); err != nil {
		r.logger.Warn().Err(err).Str("channel", channel).Msg("Dropping relayed message")
		return
	}
	r.metrics.relayed()
}

// channelFromKey strips "<prefix>:" from a Redis channel name.
func channelFromKey(prefix, key string) (string, bool) {
	rest, ok := strings.CutPrefix(key, prefix+":")
	if !ok || rest == "" {
		return "", false
	}
	return rest, true
}

// RedisPublisher publishes events to "<prefix>:<channel>" for a relay to pick up.
type RedisPublisher struct {
	client *redis.Client
	prefix string
}

// NewRedisPublisher creates a publisher on client.
func NewRedisPublisher(client *redis.Client, prefix string) *RedisPublisher {
	return &RedisPublisher{client: client, prefix: prefix}
}

// Publish encodes payload as JSON and publishes it.
func (p *RedisPublisher) Publish(ctx context.Context, channel string, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return apperrors.Wrapf(err, "encode payload for %s", channel)
	}
	if err := p.client.Publish(ctx, p.prefix+":"+channel, data).Err(); err != nil {
		return apperrors.Wrapf(err, "redis publish %s", channel)
	}
	return nil
}
