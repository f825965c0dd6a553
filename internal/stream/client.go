package stream

import (
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	apperrors "pattern-trader/internal/errors"
)

// Client is one registered connection. channels and missed are guarded by
// the hub mutex; send is closed only by the hub.
type Client struct {
	id     string
	conn   Conn
	hub    *Hub
	send   chan []byte
	logger zerolog.Logger

	channels map[string]struct{}
	missed   int
}

// ID returns the connection identifier.
func (c *Client) ID() string {
	return c.id
}

// writePump is the only goroutine that writes data frames to the connection.
func (c *Client) writePump() {
	defer c.conn.Close()

	for msg := range c.send {
		if err := c.write(websocket.TextMessage, msg); err != nil {
			c.logger.Debug().Err(err).Msg("Write failed")
			c.hub.metrics.deliveryFailure()
			// Unregister closes send, which ends this loop after draining.
			go c.hub.Unregister(c)
			for range c.send {
			}
			return
		}
	}

	if err := c.write(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")); err != nil {
		c.logger.Debug().Err(err).Msg("Close frame failed")
	}
}

func (c *Client) write(messageType int, data []byte) error {
	if err := c.conn.SetWriteDeadline(time.Now().Add(c.hub.config.WriteTimeout)); err != nil {
		return err
	}
	return c.conn.WriteMessage(messageType, data)
}

// readPump processes control messages until the connection fails.
func (c *Client) readPump() {
	defer c.hub.Unregister(c)

	c.conn.SetReadLimit(c.hub.config.MaxMessageSize)
	c.conn.SetPongHandler(func(string) error {
		c.hub.markAlive(c)
		return nil
	})

	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.logger.Debug().Err(err).Msg("Read failed")
			}
			return
		}
		c.handle(raw)
	}
}

// handle applies one control message. Malformed messages are logged and
// counted; the connection stays open.
func (c *Client) handle(raw []byte) {
	msg, err := parseClientMessage(c.id, raw)
	if err != nil {
		c.hub.metrics.malformed()
		var perr *apperrors.ProtocolError
		if apperrors.As(err, &perr) {
			c.logger.Warn().Str("reason", perr.Reason).Msg("Malformed client message")
		} else {
			c.logger.Warn().Err(err).Msg("Malformed client message")
		}
		return
	}

	switch msg.Type {
	case TypeSubscribe:
		c.hub.Subscribe(c, msg.Channel)
		c.logger.Debug().Str("channel", msg.Channel).Msg("Subscribed")
	case TypeUnsubscribe:
		c.hub.Unsubscribe(c, msg.Channel)
		c.logger.Debug().Str("channel", msg.Channel).Msg("Unsubscribed")
	case TypePing:
		c.hub.markAlive(c)
		c.hub.reply(c, pongFrame)
	}
}
