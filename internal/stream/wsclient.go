package stream

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"pattern-trader/internal/logging"
)

// Event is one channel frame received by a Consumer.
type Event struct {
	Channel string
	Data    json.RawMessage
}

// ConsumerConfig configures a Consumer.
type ConsumerConfig struct {
	URL            string
	Channels       []string
	ReconnectDelay time.Duration
	PingInterval   time.Duration
}

// Consumer is a WebSocket subscriber that reconnects after a fixed delay.
type Consumer struct {
	cfg    ConsumerConfig
	dialer *websocket.Dialer
	logger zerolog.Logger
}

// NewConsumer creates a consumer for the given server URL.
func NewConsumer(cfg ConsumerConfig, logger zerolog.Logger) *Consumer {
	if cfg.ReconnectDelay <= 0 {
		cfg.ReconnectDelay = 3 * time.Second
	}
	if cfg.PingInterval <= 0 {
		cfg.PingInterval = 25 * time.Second
	}
	return &Consumer{
		cfg:    cfg,
		dialer: websocket.DefaultDialer,
		logger: logging.WithComponent(logger, "consumer"),
	}
}

// Run connects, subscribes and delivers events to handle until ctx is
// cancelled. Connection failures are retried after ReconnectDelay.
func (c *Consumer) Run(ctx context.Context, handle func(Event)) error {
	for {
		err := c.session(ctx, handle)
		if ctx.Err() != nil {
			return nil
		}
		c.logger.Warn().Err(err).Dur("retry_in", c.cfg.ReconnectDelay).Msg("Connection lost")

		select {
		case <-ctx.Done():
			return nil
		case <-time.After(c.cfg.ReconnectDelay):
		}
	}
}

func (c *Consumer) session(ctx context.Context, handle func(Event)) error {
	conn, _, err := c.dialer.DialContext(ctx, c.cfg.URL, nil)
	if err != nil {
		return fmt.Errorf("dial %s: %w", c.cfg.URL, err)
	}
	defer conn.Close()

	c.logger.Info().Str("url", c.cfg.URL).Strs("channels", c.cfg.Channels).Msg("Connected")

	for _, ch := range c.cfg.Channels {
		if err := conn.WriteJSON(ClientMessage{Type: TypeSubscribe, Channel: ch}); err != nil {
			return fmt.Errorf("subscribe %s: %w", ch, err)
		}
	}

	// Writes after subscribe come only from the keepalive goroutine.
	done := make(chan struct{})
	defer close(done)
	go func() {
		ticker := time.NewTicker(c.cfg.PingInterval)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ctx.Done():
				conn.WriteControl(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
					time.Now().Add(time.Second))
				conn.Close()
				return
			case <-ticker.C:
				if err := conn.WriteJSON(ClientMessage{Type: TypePing}); err != nil {
					return
				}
			}
		}
	}()

	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			return err
		}

		var env Envelope
		if err := json.Unmarshal(raw, &env); err != nil || env.Channel == "" {
			// {"type":"pong"} and anything else without a channel.
			continue
		}
		handle(Event{Channel: env.Channel, Data: env.Data})
	}
}
